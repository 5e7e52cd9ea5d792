package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/MeKo-Tech/detbox/internal/geometry"
	"github.com/MeKo-Tech/detbox/internal/nms"
	"github.com/MeKo-Tech/detbox/internal/postprocess"
	"github.com/MeKo-Tech/detbox/internal/server"
	"github.com/MeKo-Tech/detbox/internal/targets"
	"github.com/cucumber/godog"
)

// DetectionServerWrapper wraps an httptest server running the real
// detection handlers over a small fixed prior set.
type DetectionServerWrapper struct {
	HTTP   *httptest.Server
	Server *server.Server
}

// quadrantPriors tiles the unit square with four half-size boxes. Small
// enough for fast scenarios, and zero offsets decode straight back to
// the prior.
func quadrantPriors() []geometry.CenterBox {
	return []geometry.CenterBox{
		{CX: 0.25, CY: 0.25, W: 0.5, H: 0.5},
		{CX: 0.75, CY: 0.25, W: 0.5, H: 0.5},
		{CX: 0.25, CY: 0.75, W: 0.5, H: 0.5},
		{CX: 0.75, CY: 0.75, W: 0.5, H: 0.5},
	}
}

// theDetectionServerIsRunning starts the detection server on an
// httptest listener.
func (testCtx *TestContext) theDetectionServerIsRunning() error {
	if testCtx.DetectionServer != nil {
		return nil
	}

	srv, err := server.NewServer(server.Config{
		CORSOrigin: "*",
		MaxBodyMB:  1,
		Priors:     quadrantPriors(),
		Pipeline: postprocess.Config{
			Profile:    "quadrant",
			Variances:  targets.DefaultVariances(),
			NMS:        nms.DefaultConfig(),
			ClassNames: []string{"background", "object"},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to build detection server: %w", err)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	testCtx.DetectionServer = &DetectionServerWrapper{
		HTTP:   httptest.NewServer(mux),
		Server: srv,
	}
	return nil
}

// stopDetectionServer shuts the httptest server down.
func (testCtx *TestContext) stopDetectionServer() error {
	if testCtx.DetectionServer != nil && testCtx.DetectionServer.HTTP != nil {
		testCtx.DetectionServer.HTTP.Close()
	}
	testCtx.DetectionServer = nil
	return nil
}

// serverURL joins the httptest base URL with a request path.
func (testCtx *TestContext) serverURL(path string) (string, error) {
	if testCtx.DetectionServer == nil {
		return "", errors.New("detection server is not running")
	}
	return testCtx.DetectionServer.HTTP.URL + path, nil
}

// recordResponse captures status, headers and body for later steps.
func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = map[string]string{}
	for name := range resp.Header {
		testCtx.LastHTTPHeaders[name] = resp.Header.Get(name)
	}
	return nil
}

// iSendAGETRequestTo issues a GET against the running server.
func (testCtx *TestContext) iSendAGETRequestTo(path string) error {
	url, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}

	resp, err := http.Get(url) //nolint:gosec,noctx // G107: test server URL built locally
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", path, err)
	}
	return testCtx.recordResponse(resp)
}

// iSendADetectionRequestWithOneConfidentObject posts a prediction frame
// with one foreground row to /detect.
func (testCtx *TestContext) iSendADetectionRequestWithOneConfidentObject() error {
	rows := make([]map[string]interface{}, len(quadrantPriors()))
	for i := range rows {
		rows[i] = map[string]interface{}{
			"offsets": []float64{0, 0, 0, 0},
			"scores":  []float64{1, 0},
		}
	}
	rows[0]["scores"] = []float64{0.1, 0.9}

	return testCtx.postJSON("/detect", map[string]interface{}{"predictions": rows})
}

// iSendAMatchRequestWithOneLabeledBox posts a single ground-truth box
// to /match.
func (testCtx *TestContext) iSendAMatchRequestWithOneLabeledBox() error {
	return testCtx.postJSON("/match", map[string]interface{}{
		"truths": []map[string]interface{}{
			{"box": []float64{0, 0, 0.5, 0.5}, "label": 1},
		},
	})
}

// iSendAnEmptyDetectionRequest posts a detect request with no rows.
func (testCtx *TestContext) iSendAnEmptyDetectionRequest() error {
	return testCtx.postJSON("/detect", map[string]interface{}{
		"predictions": []map[string]interface{}{},
	})
}

func (testCtx *TestContext) postJSON(path string, payload interface{}) error {
	url, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(data)) //nolint:gosec,noctx // test server URL
	if err != nil {
		return fmt.Errorf("POST %s failed: %w", path, err)
	}
	return testCtx.recordResponse(resp)
}

// theResponseStatusShouldBe verifies the HTTP status code.
func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d\nBody: %s",
			expected, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseShouldContain verifies the response body contains text.
func (testCtx *TestContext) theResponseShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, expectedText) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", expectedText, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseShouldBeValidJSON verifies the body parses as JSON.
func (testCtx *TestContext) theResponseShouldBeValidJSON() error {
	var js json.RawMessage
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &js); err != nil {
		return fmt.Errorf("response is not valid JSON: %w\nBody: %s", err, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseShouldReportDetections checks the detection count field.
func (testCtx *TestContext) theResponseShouldReportDetections(expected int) error {
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &body); err != nil {
		return fmt.Errorf("failed to parse detection response: %w\nBody: %s", err, testCtx.LastHTTPResponse)
	}
	if body.Count != expected {
		return fmt.Errorf("expected %d detections, got %d\nBody: %s", expected, body.Count, testCtx.LastHTTPResponse)
	}
	return nil
}

// theCORSHeadersShouldAllowAnyOrigin verifies the wildcard CORS header.
func (testCtx *TestContext) theCORSHeadersShouldAllowAnyOrigin() error {
	origin, ok := testCtx.LastHTTPHeaders["Access-Control-Allow-Origin"]
	if !ok {
		return errors.New("response has no Access-Control-Allow-Origin header")
	}
	if origin != "*" {
		return fmt.Errorf("expected wildcard CORS origin, got %q", origin)
	}
	return nil
}

// RegisterServerSteps registers the HTTP server step definitions.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the detection server is running$`, testCtx.theDetectionServerIsRunning)
	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendAGETRequestTo)
	sc.Step(`^I send a detection request with one confident object$`,
		testCtx.iSendADetectionRequestWithOneConfidentObject)
	sc.Step(`^I send a match request with one labeled box$`, testCtx.iSendAMatchRequestWithOneLabeledBox)
	sc.Step(`^I send an empty detection request$`, testCtx.iSendAnEmptyDetectionRequest)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response should be valid JSON$`, testCtx.theResponseShouldBeValidJSON)
	sc.Step(`^the response should report (\d+) detections?$`, testCtx.theResponseShouldReportDetections)
	sc.Step(`^the CORS headers should allow any origin$`, testCtx.theCORSHeadersShouldAllowAnyOrigin)
}
