package marker

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest declares markers outside of test code.
//
//	registered: [smoke, win10]
//	tests:
//	  fixture10::TestJoin::test_join_now:
//	    - name: xfail
//	      reason: button removed from the landing page
type Manifest struct {
	// Registered lists the marker names allowed in strict mode.
	Registered []string `yaml:"registered"`

	// Tests maps test IDs (or ID prefixes ending in "::") to extra markers.
	Tests map[string][]Marker `yaml:"tests"`
}

// LoadManifest reads a marker manifest. Unknown fields are rejected.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read marker manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse marker manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid marker manifest: %w", err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	for id, markers := range m.Tests {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("empty test id")
		}
		for i, mk := range markers {
			if mk.Name == "" {
				return fmt.Errorf("tests[%s][%d]: name is required", id, i)
			}
			if mk.Strict && mk.Name != NameXFail {
				return fmt.Errorf("tests[%s][%d]: strict only applies to %s", id, i, NameXFail)
			}
		}
	}
	return nil
}

// Known returns the registered names plus the recognized ones.
func (m *Manifest) Known() Known {
	return NewKnown(m.Registered...)
}

// Table builds the manifest markers of every matching test ID in ids. An
// entry matches its exact ID, or every ID below it when it ends in "::".
// Exact entries come first, then prefixes from longest to shortest, so the
// most specific entry is the one Set.Get finds.
func (m *Manifest) Table(ids []string) Table {
	keys := make([]string, 0, len(m.Tests))
	for key := range m.Tests {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := strings.HasSuffix(keys[i], "::"), strings.HasSuffix(keys[j], "::")
		if pi != pj {
			return pj
		}
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	t := Table{}
	for _, id := range ids {
		for _, key := range keys {
			if key == id || (strings.HasSuffix(key, "::") && strings.HasPrefix(id, key)) {
				t.Add(id, m.Tests[key]...)
			}
		}
	}
	return t
}
