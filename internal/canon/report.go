package canon

import (
	"github.com/roach88/fixturekit/internal/runner"
)

// ResultRecord is the canonical form of a result: what happened, without
// timing or run identity.
func ResultRecord(res *runner.Result) map[string]any {
	markers := make([]string, 0, len(res.Case.Markers))
	for _, m := range res.Case.Markers {
		markers = append(markers, m.Name)
	}
	return map[string]any{
		"test_id":         res.ID(),
		"outcome":         string(res.Outcome),
		"attempts":        res.Attempts,
		"markers":         markers,
		"teardown_errors": len(res.TeardownErrors),
	}
}

// RunDigest hashes the results of a report in order. Two runs that
// selected the same tests and got the same outcomes share a digest.
func RunDigest(report *runner.Report) (string, error) {
	records := make([]any, len(report.Results))
	for i, res := range report.Results {
		records[i] = ResultRecord(res)
	}
	return Hash(DomainRun, map[string]any{
		"results": records,
		"aborted": report.Aborted,
	})
}

// ResultID identifies a result within a run.
func ResultID(runID string, res *runner.Result) (string, error) {
	rec := ResultRecord(res)
	rec["run_id"] = runID
	rec["seq"] = res.Seq
	return Hash(DomainResult, rec)
}
