package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/MeKo-Tech/detbox/internal/anchors"
	"github.com/MeKo-Tech/detbox/internal/testutil"
	"github.com/cucumber/godog"
)

// iRunCommand executes a CLI command and captures its output.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)

	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	// Logs go to stderr and JSON to stdout; keep the streams apart so
	// JSON assertions see stdout only.
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	testCtx.LastStdout = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastOutput = testCtx.LastStdout + testCtx.LastStderr
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	} else {
		testCtx.LastExitCode = 0
	}

	return nil
}

// substituteCommandVariables replaces fixture placeholders in a command
// string with the paths created during the scenario.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	replacer := strings.NewReplacer(
		"{TEMP_DIR}", testCtx.TempDir,
		"{TRUTH_FILE}", testCtx.TruthFile,
		"{PREDS_FILE}", testCtx.PredictionsFile,
		"{OUTPUT_FILE}", testCtx.OutputFile,
	)
	return replacer.Replace(command)
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// extractJSON returns the JSON portion of the last stdout, skipping any
// preceding plain text.
func (testCtx *TestContext) extractJSON() (string, error) {
	output := strings.TrimSpace(testCtx.LastStdout)

	jsonStart := -1
	for i, r := range output {
		if r == '{' || r == '[' {
			jsonStart = i
			break
		}
	}

	if jsonStart == -1 {
		return "", fmt.Errorf("no JSON found in stdout: %s", testCtx.LastOutput)
	}

	return output[jsonStart:], nil
}

// theOutputShouldBeValidJSON verifies the output is valid JSON.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	jsonPart, err := testCtx.extractJSON()
	if err != nil {
		return err
	}

	var js json.RawMessage
	if err := json.Unmarshal([]byte(jsonPart), &js); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nJSON part: %s", err, jsonPart)
	}
	return nil
}

// theJSONShouldContain verifies JSON contains a specific field.
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	jsonPart, err := testCtx.extractJSON()
	if err != nil {
		return err
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(jsonPart), &data); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	return testCtx.checkFieldExists(data, field)
}

// theJSONFieldShouldEqual verifies a numeric field in the JSON output.
func (testCtx *TestContext) theJSONFieldShouldEqual(field string, expected int) error {
	jsonPart, err := testCtx.extractJSON()
	if err != nil {
		return err
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(jsonPart), &data); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	val, exists := data[field]
	if !exists {
		return fmt.Errorf("field '%s' not found in JSON", field)
	}

	num, ok := val.(float64)
	if !ok {
		return fmt.Errorf("field '%s' is not a number: %v", field, val)
	}
	if int(num) != expected {
		return fmt.Errorf("field '%s' is %v, expected %d", field, num, expected)
	}

	return nil
}

func (testCtx *TestContext) checkFieldExists(data map[string]interface{}, field string) error {
	// Handle nested field paths (e.g., "detections.array")
	parts := strings.Split(field, ".")
	current := data

	for i, part := range parts {
		if part == "array" {
			return testCtx.checkArrayField(current, parts, i)
		}

		val, exists := current[part]
		if !exists {
			return fmt.Errorf("field '%s' not found in JSON", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return nil
		}
		nextMap, ok := val.(map[string]interface{})
		if !ok {
			return fmt.Errorf("cannot navigate deeper into non-object field '%s'", part)
		}
		current = nextMap
	}

	return nil
}

func (testCtx *TestContext) checkArrayField(current map[string]interface{}, parts []string, i int) error {
	if i == 0 {
		return errors.New("array cannot be the root field")
	}
	prevPart := parts[i-1]
	val, exists := current[prevPart]
	if !exists {
		return fmt.Errorf("field '%s' not found in JSON", prevPart)
	}
	if _, isArray := val.([]interface{}); !isArray {
		return fmt.Errorf("field '%s' is not an array", prevPart)
	}
	return nil
}

// theErrorShouldMention verifies the error message contains specific text.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil && testCtx.LastExitCode == 0 {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", errorText)
	}

	fullErrorText := testCtx.LastOutput
	if testCtx.LastError != nil {
		fullErrorText += " " + testCtx.LastError.Error()
	}

	if !strings.Contains(strings.ToLower(fullErrorText), strings.ToLower(errorText)) {
		return fmt.Errorf("error does not contain '%s'\nActual error: %s", errorText, fullErrorText)
	}

	return nil
}

// aGroundTruthFileExists writes the sample ground-truth fixture.
func (testCtx *TestContext) aGroundTruthFileExists() error {
	path := testCtx.GetTempFile("-gt.json")
	if err := testutil.WriteJSON(path, testutil.SampleGroundTruths()); err != nil {
		return fmt.Errorf("failed to write ground truth fixture: %w", err)
	}
	testCtx.TruthFile = path
	return nil
}

// aPredictionFileForProfile writes a prediction fixture sized for the
// named profile with one confident foreground row.
func (testCtx *TestContext) aPredictionFileForProfile(profile string) error {
	priors, err := anchors.ByName(profile)
	if err != nil {
		return fmt.Errorf("failed to resolve profile %q: %w", profile, err)
	}

	numClasses := 2
	if profile == "voc" {
		numClasses = len(anchors.VOCClassNames())
	}

	rows, err := testutil.SamplePredictions(len(priors), numClasses, 1, 0.9)
	if err != nil {
		return fmt.Errorf("failed to build prediction fixture: %w", err)
	}

	path := testCtx.GetTempFile("-preds.json")
	if err := testutil.WriteJSON(path, rows); err != nil {
		return fmt.Errorf("failed to write prediction fixture: %w", err)
	}
	testCtx.PredictionsFile = path
	return nil
}

// anOutputPathIsPrepared reserves a temp path for --output.
func (testCtx *TestContext) anOutputPathIsPrepared() error {
	testCtx.OutputFile = testCtx.GetTempFile("-out.json")
	return nil
}

// theOutputFileShouldExist checks that the reserved output path was written.
func (testCtx *TestContext) theOutputFileShouldExist() error {
	if testCtx.OutputFile == "" {
		return errors.New("no output path was prepared")
	}
	if _, err := os.Stat(testCtx.OutputFile); err != nil {
		return fmt.Errorf("output file %s was not written: %w", testCtx.OutputFile, err)
	}
	return nil
}

// theOutputFileShouldContain checks the reserved output file's content.
func (testCtx *TestContext) theOutputFileShouldContain(expectedText string) error {
	if err := testCtx.theOutputFileShouldExist(); err != nil {
		return err
	}
	data, err := os.ReadFile(testCtx.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to read output file: %w", err)
	}
	if !strings.Contains(string(data), expectedText) {
		return fmt.Errorf("output file does not contain '%s'\nContent: %s", expectedText, string(data))
	}
	return nil
}

// theEnvironmentVariableIsSetTo sets an env var for subsequent commands.
func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, value)
	return nil
}

// RegisterCommonSteps registers the shared CLI step definitions.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	// Command execution
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	// Output verification
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should equal (\d+)$`, testCtx.theJSONFieldShouldEqual)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)

	// Fixtures
	sc.Step(`^a ground truth file with labeled boxes$`, testCtx.aGroundTruthFileExists)
	sc.Step(`^a prediction file for the "([^"]*)" profile with one confident object$`,
		testCtx.aPredictionFileForProfile)
	sc.Step(`^an output path is prepared$`, testCtx.anOutputPathIsPrepared)
	sc.Step(`^the output file should exist$`, testCtx.theOutputFileShouldExist)
	sc.Step(`^the output file should contain "([^"]*)"$`, testCtx.theOutputFileShouldContain)

	// Environment
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
}
