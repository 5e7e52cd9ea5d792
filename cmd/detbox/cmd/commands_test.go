package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/detbox/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the root command with args and returns combined
// output. Persistent flag values survive between Execute calls, so the
// globals are reset afterwards to keep test cases independent.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	t.Cleanup(func() {
		_ = rootCmd.PersistentFlags().Set("profile", "voc")
		_ = rootCmd.PersistentFlags().Set("config", "")
		cfgFile = ""
	})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestInvalidConfigFileSurfacesError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: loud\n"), 0o600))

	// Bad configuration must come back as a command error, not kill
	// the process.
	_, err := runCommand(t, "--config", path, "version")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
}

func TestPriorsCommand_VOC(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "priors.json")

	_, err := runCommand(t, "priors", "--profile", "voc", "--output", outPath)
	require.NoError(t, err)

	var result PriorsOutput
	require.NoError(t, testutil.ReadJSON(outPath, &result))

	assert.Equal(t, "voc", result.Profile)
	assert.Equal(t, 8732, result.Count)
	require.Len(t, result.Priors, 8732)

	for _, p := range result.Priors[:100] {
		assert.GreaterOrEqual(t, p.CX, 0.0)
		assert.LessOrEqual(t, p.CX, 1.0)
		assert.Positive(t, p.W)
		assert.Positive(t, p.H)
	}
}

func TestPriorsCommand_UnknownProfile(t *testing.T) {
	output, err := runCommand(t, "priors", "--profile", "no-such-profile")

	require.Error(t, err)
	assert.Contains(t, output+err.Error(), "profile")
}

func TestMatchCommand(t *testing.T) {
	dir := t.TempDir()
	truthPath := filepath.Join(dir, "gt.json")
	outPath := filepath.Join(dir, "matches.json")

	require.NoError(t, testutil.WriteJSON(truthPath, testutil.SampleGroundTruths()))

	_, err := runCommand(t, "match",
		"--profile", "voc",
		"--truth", truthPath,
		"--encode",
		"--output", outPath)
	require.NoError(t, err)

	var result MatchOutput
	require.NoError(t, testutil.ReadJSON(outPath, &result))

	assert.Equal(t, 8732, result.Count)
	require.Len(t, result.Matches, 8732)
	require.Len(t, result.Targets, 8732)

	// Every truth keeps at least one assigned prior
	assert.GreaterOrEqual(t, result.Foreground, len(testutil.SampleGroundTruths()))
}

func TestMatchCommand_InvalidThreshold(t *testing.T) {
	dir := t.TempDir()
	truthPath := filepath.Join(dir, "gt.json")
	require.NoError(t, testutil.WriteJSON(truthPath, testutil.SampleGroundTruths()))

	_, err := runCommand(t, "match",
		"--profile", "voc",
		"--truth", truthPath,
		"--iou-threshold", "1.5")

	require.Error(t, err)
}

func TestDetectCommand(t *testing.T) {
	dir := t.TempDir()
	predsPath := filepath.Join(dir, "preds.json")
	outPath := filepath.Join(dir, "detections.json")

	preds, err := testutil.SamplePredictions(8732, 21, 5, 0.9)
	require.NoError(t, err)
	require.NoError(t, testutil.WriteJSON(predsPath, preds))

	_, err = runCommand(t, "detect",
		"--profile", "voc",
		"--input", predsPath,
		"--min-score", "0.5",
		"--output", outPath)
	require.NoError(t, err)

	var result DetectOutput
	require.NoError(t, testutil.ReadJSON(outPath, &result))

	require.Equal(t, 1, result.Count)
	det := result.Detections[0]
	assert.Equal(t, 5, det.Label)
	assert.InDelta(t, 0.9, det.Score, 1e-9)
	assert.NotEmpty(t, det.Class)
}

func TestDetectCommand_ClassFilter(t *testing.T) {
	dir := t.TempDir()
	predsPath := filepath.Join(dir, "preds.json")
	outPath := filepath.Join(dir, "detections.json")

	preds, err := testutil.SamplePredictions(8732, 21, 5, 0.9)
	require.NoError(t, err)
	require.NoError(t, testutil.WriteJSON(predsPath, preds))

	// The single detection carries label 5; keeping only label 7 must
	// drop it.
	_, err = runCommand(t, "detect",
		"--profile", "voc",
		"--input", predsPath,
		"--classes", "7",
		"--output", outPath)
	require.NoError(t, err)

	var result DetectOutput
	require.NoError(t, testutil.ReadJSON(outPath, &result))
	assert.Equal(t, 0, result.Count)
}

func TestDetectCommand_RowCountMismatch(t *testing.T) {
	dir := t.TempDir()
	predsPath := filepath.Join(dir, "preds.json")

	preds, err := testutil.SamplePredictions(10, 21, 5, 0.9)
	require.NoError(t, err)
	require.NoError(t, testutil.WriteJSON(predsPath, preds))

	_, err = runCommand(t, "detect", "--profile", "voc", "--input", predsPath)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match prior count")
}

func TestDetectCommand_MissingInputFile(t *testing.T) {
	_, err := runCommand(t, "detect",
		"--profile", "voc",
		"--input", filepath.Join(t.TempDir(), "missing.json"))

	require.Error(t, err)
}

func TestOutputRowShapes(t *testing.T) {
	// Wire shapes must round-trip through JSON unchanged
	row := DetectionRow{Box: [4]float64{0.1, 0.2, 0.3, 0.4}, Label: 3, Class: "cat", Score: 0.75}

	data, err := json.Marshal(row)
	require.NoError(t, err)

	var decoded DetectionRow
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, row, decoded)
}
