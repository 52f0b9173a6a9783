package support

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/qrscan/internal/server"
)

// RegisterServerSteps registers HTTP server steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the qrscan server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the qrscan server is running with a limit of (\d+) requests? per minute$`,
		testCtx.theServerIsRunningWithRateLimit)
	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendAGETRequestTo)
	sc.Step(`^I upload "([^"]*)" as "([^"]*)" to "([^"]*)"$`, testCtx.iUploadAsTo)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
}

func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.startServer(server.RateLimitConfig{})
}

func (testCtx *TestContext) theServerIsRunningWithRateLimit(perMinute int) error {
	return testCtx.startServer(server.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: perMinute,
		RequestsPerHour:   perMinute * 60,
		MaxDataPerMinute:  100 * 1024 * 1024,
	})
}

func (testCtx *TestContext) startServer(rl server.RateLimitConfig) error {
	srv, err := server.NewServer(server.Config{
		CORSOrigin:     "*",
		MaxUploadMB:    10,
		TimeoutSec:     30,
		OverlayEnabled: true,
		RateLimit:      rl,
		Version:        "integration",
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.scanServer = srv
	testCtx.HTTPServer = httptest.NewServer(srv.Handler())
	return nil
}

func (testCtx *TestContext) iSendAGETRequestTo(path string) error {
	if testCtx.HTTPServer == nil {
		return fmt.Errorf("server is not running")
	}
	resp, err := http.Get(testCtx.HTTPServer.URL + path) //nolint:noctx // test request
	if err != nil {
		return err
	}
	return testCtx.captureResponse(resp)
}

// iUploadAsTo posts files as one multipart field. files is a comma
// separated list of scenario file names.
func (testCtx *TestContext) iUploadAsTo(files, field, path string) error {
	if testCtx.HTTPServer == nil {
		return fmt.Errorf("server is not running")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range splitList(files) {
		data, err := os.ReadFile(testCtx.Path(name))
		if err != nil {
			return err
		}
		part, err := mw.CreateFormFile(field, filepath.Base(name))
		if err != nil {
			return err
		}
		if _, err := part.Write(data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := http.Post(testCtx.HTTPServer.URL+path, mw.FormDataContentType(), &body) //nolint:noctx // test request
	if err != nil {
		return err
	}
	return testCtx.captureResponse(resp)
}

func (testCtx *TestContext) captureResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(data)
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d\nbody: %s", code, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain %q\nbody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]
	if got != value {
		return fmt.Errorf("expected header %s=%q, got %q", name, value, got)
	}
	return nil
}
