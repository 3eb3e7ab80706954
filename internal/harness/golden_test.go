package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_FullHistory(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/full_history.yaml")
	require.NoError(t, err)

	// To regenerate:
	//   go test ./internal/harness -run TestRunWithGolden_FullHistory -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "correction.golden"),
		GoldenPath(filepath.Join("scenarios", "correction.yaml")))
}

func TestUpdateAndCompareGolden(t *testing.T) {
	dir := t.TempDir()
	scenarioFile := filepath.Join(dir, "correction.yaml")
	scenario, err := LoadScenario("testdata/scenarios/correction.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	_, ok, err := CompareGolden(scenarioFile, result)
	require.NoError(t, err)
	assert.False(t, ok, "no golden file yet")

	require.NoError(t, UpdateGolden(scenarioFile, result))
	match, ok, err := CompareGolden(scenarioFile, result)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, match)

	data, err := os.ReadFile(GoldenPath(scenarioFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"correction"`)

	result.Snapshot.Corps[0].Status = "FAILED"
	match, _, err = CompareGolden(scenarioFile, result)
	require.NoError(t, err)
	assert.False(t, match)
}
