package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// scenario is one program with its expected output and diagnostics. State
// defaults to SUCCEEDED.
type scenario struct {
	Name        string       `yaml:"name"`
	Source      string       `yaml:"source"`
	Output      string       `yaml:"output"`
	State       string       `yaml:"state"`
	Diagnostics []diagnostic `yaml:"diagnostics"`
}

func loadScenarios(t *testing.T, file string) []scenario {
	t.Helper()
	data, err := os.ReadFile(file)
	require.NoError(t, err)

	var scenarios []scenario
	require.NoError(t, yaml.Unmarshal(data, &scenarios), "parsing %s", file)
	require.NotEmpty(t, scenarios, "no scenarios in %s", file)
	return scenarios
}

func TestScenarios(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	srv := newServer(t)

	for _, file := range files {
		file := file
		t.Run(filepath.Base(file), func(t *testing.T) {
			for _, sc := range loadScenarios(t, file) {
				sc := sc
				t.Run(sc.Name, func(t *testing.T) {
					want := sc.State
					if want == "" {
						want = "SUCCEEDED"
					}

					run := runSource(t, srv, sc.Source)
					assert.Equal(t, want, run.State)
					assert.Equal(t, sc.Output, run.Output)
					if len(sc.Diagnostics) == 0 {
						assert.Empty(t, run.Diagnostics)
					} else {
						assert.Equal(t, sc.Diagnostics, run.Diagnostics)
					}
				})
			}
		})
	}
}

// Runs share nothing: a global defined by one run is unknown to the next.
func TestRunsAreIsolated(t *testing.T) {
	srv := newServer(t)

	first := runSource(t, srv, "var shared = 1; print shared;")
	assert.Equal(t, "SUCCEEDED", first.State)

	second := runSource(t, srv, "print shared;")
	assert.Equal(t, "FAILED", second.State)
	require.Len(t, second.Diagnostics, 1)
	assert.Equal(t, "Undefined variable 'shared'.", second.Diagnostics[0].Message)
}
