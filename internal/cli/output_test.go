package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fixturekit/internal/config"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"question": "что не так с <проектом>?"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Contains(t, buf.String(), "<проектом>", "HTML characters are not escaped")
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(CodeConfig, "invalid configuration", map[string]string{"field": "driver"})
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeConfig, resp.Error.Code)
	assert.Equal(t, "invalid configuration", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("6 tests collected")
	require.NoError(t, err)
	assert.Equal(t, "6 tests collected\n", buf.String())
}

func TestOutputFormatter_TextErrorGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "text",
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   true,
	}

	err := formatter.Error(CodeCommand, "failed to open database", "runs.db")
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Error [E003]: failed to open database")
	assert.Contains(t, errOut.String(), "Details: runs.db")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("loading suite %s", "fixture81")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "loading suite fixture81")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "inner", errors.New("cause")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "outer: inner: cause", wrapped.Error())
}

func TestErrorCode(t *testing.T) {
	invalid := WrapExitError(ExitCommandError, "failed to load configuration", &config.ValidationError{Err: errors.New("driver")})
	assert.Equal(t, CodeConfig, ErrorCode(invalid))
	assert.Equal(t, CodeFailure, ErrorCode(WrapExitError(ExitFailure, "run aborted", errors.New("canceled"))))
	assert.Equal(t, CodeCommand, ErrorCode(NewExitError(ExitCommandError, "--db is required")))
}
