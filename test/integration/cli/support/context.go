package support

import (
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastStderr   string
	LastExitCode int
	LastDuration time.Duration

	// Test environment
	TempDir  string
	savedEnv map[string]*string

	// HTTP state
	HTTPServer         *httptest.Server
	scanServer         interface{ Close() error }
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    map[string]string
}

// isolatedEnv points config discovery and the history database into the
// scenario's temp dir.
var isolatedEnv = []string{"HOME", "XDG_CONFIG_HOME", "XDG_DATA_HOME", "QRSCAN_OUTPUT_FORMAT"}

// NewTestContext creates a scenario context with its own temp dir and
// environment.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "qrscan-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	ctx := &TestContext{
		TempDir:         tempDir,
		savedEnv:        make(map[string]*string),
		LastHTTPHeaders: make(map[string]string),
	}
	for _, name := range isolatedEnv {
		if v, ok := os.LookupEnv(name); ok {
			ctx.savedEnv[name] = &v
		} else {
			ctx.savedEnv[name] = nil
		}
	}
	_ = os.Setenv("HOME", tempDir)
	_ = os.Setenv("XDG_CONFIG_HOME", filepath.Join(tempDir, "config"))
	_ = os.Setenv("XDG_DATA_HOME", filepath.Join(tempDir, "data"))
	_ = os.Unsetenv("QRSCAN_OUTPUT_FORMAT")
	return ctx, nil
}

// Path resolves a scenario-relative file name inside the temp dir.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}

// Cleanup stops the server, restores the environment and removes the temp dir.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.scanServer != nil {
		_ = testCtx.scanServer.Close()
		testCtx.scanServer = nil
	}
	for name, v := range testCtx.savedEnv {
		if v == nil {
			_ = os.Unsetenv(name)
		} else {
			_ = os.Setenv(name, *v)
		}
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}
