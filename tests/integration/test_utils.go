package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"locscraper/pkg/checkpoint"
	"locscraper/pkg/config"
	"locscraper/pkg/harvest"
	"locscraper/pkg/jsonval"
	"locscraper/pkg/logger"
	"locscraper/pkg/metrics"
)

const testCollection = "test-collection"

// TestHelper bundles the mock host, a scratch directory and the assertion
// helpers the scenarios share.
type TestHelper struct {
	t          *testing.T
	mockServer *MockCollectionServer
	tempDir    string
}

// NewTestHelper creates a helper rooted at a per-test temp directory.
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()
	return &TestHelper{
		t:       t,
		tempDir: t.TempDir(),
	}
}

// SetupMockServer starts the mock collection host and registers its
// shutdown with the test's cleanup.
func (h *TestHelper) SetupMockServer() *MockCollectionServer {
	h.mockServer = NewMockCollectionServer(testCollection)
	h.t.Cleanup(h.mockServer.Close)
	return h.mockServer
}

// OutputDir returns a named subdirectory of the test's scratch space.
func (h *TestHelper) OutputDir(name string) string {
	dir := filepath.Join(h.tempDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		h.t.Fatalf("Failed to create output dir: %v", err)
	}
	return dir
}

// HarvestConfig builds a config pointed at the mock host, tuned so a test
// run finishes in milliseconds: no politeness delay, tiny backoff, a rate
// limit that never bites.
func (h *TestHelper) HarvestConfig(outputDir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Collection.Slug = testCollection
	cfg.Collection.BaseURL = h.mockServer.ListingURL()
	cfg.Collection.PageSize = 25
	cfg.Output.BaseDirectory = outputDir
	cfg.Download.TimeoutSeconds = 10
	cfg.Download.ProbeTimeoutSeconds = 10
	cfg.Download.ItemDelayMillis = 0
	cfg.RateLimit.RequestsPerMinute = 60000
	cfg.RateLimit.BurstSize = 1000
	cfg.Retry.MaxAttempts = 2
	cfg.Retry.InitialBackoffSeconds = 0
	cfg.Retry.MaxBackoffSeconds = 0
	cfg.Retry.JitterFactor = 0
	return cfg
}

// RunHarvest wires a fresh harvester for cfg and runs it to completion.
// The captured log is returned alongside the result for assertions.
func (h *TestHelper) RunHarvest(cfg *config.Config) (*harvest.Result, *logger.TestLogger, error) {
	h.t.Helper()
	log := logger.NewTestLogger()
	hv, err := harvest.New(cfg, log)
	if err != nil {
		h.t.Fatalf("Failed to build harvester: %v", err)
	}
	hv.SetMetrics(metrics.New())
	res, err := hv.Run(context.Background())
	return res, log, err
}

// AssertFileExists fails the test when path is missing.
func (h *TestHelper) AssertFileExists(path string) {
	h.t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		h.t.Errorf("Expected file to exist: %s", path)
	}
}

// AssertFileNotExists fails the test when path is present.
func (h *TestHelper) AssertFileNotExists(path string) {
	h.t.Helper()
	if _, err := os.Stat(path); err == nil {
		h.t.Errorf("Expected file to not exist: %s", path)
	}
}

// AssertFileContent fails the test unless path holds exactly expected.
func (h *TestHelper) AssertFileContent(path string, expected []byte) {
	h.t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		h.t.Errorf("Failed to read file %s: %v", path, err)
		return
	}
	if string(content) != string(expected) {
		h.t.Errorf("File %s content mismatch.\nExpected: %q\nGot:      %q", path, expected, content)
	}
}

// AssertDirFileCount fails the test unless dir holds exactly expected
// regular files, subdirectories excluded.
func (h *TestHelper) AssertDirFileCount(dir string, expected int) {
	h.t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		h.t.Errorf("Failed to read directory %s: %v", dir, err)
		return
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			count++
		}
	}
	if count != expected {
		h.t.Errorf("Directory %s contains %d files, expected %d", dir, count, expected)
	}
}

// ReadSidecar parses the JSON sidecar at path.
func (h *TestHelper) ReadSidecar(path string) jsonval.Value {
	h.t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		h.t.Fatalf("Failed to read sidecar %s: %v", path, err)
	}
	v, err := jsonval.Unmarshal(data)
	if err != nil {
		h.t.Fatalf("Sidecar %s is not valid JSON: %v", path, err)
	}
	return v
}

// LoadCheckpoint reads the checkpoint under outputDir, nil when absent.
func (h *TestHelper) LoadCheckpoint(outputDir string) *checkpoint.Checkpoint {
	h.t.Helper()
	cp, err := checkpoint.NewManager(outputDir, logger.NewTestLogger()).Load()
	if err != nil {
		h.t.Fatalf("Failed to load checkpoint: %v", err)
	}
	return cp
}

// recordJSON builds one listing record with an id, a title derived from
// it, and any asset URLs under conventional image members.
func recordJSON(id string, assetURLs ...string) string {
	body := fmt.Sprintf(`{"id": %q, "title": "Record %s"`, id, id)
	for i, u := range assetURLs {
		body += fmt.Sprintf(`, "image_url_%d": %q`, i, u)
	}
	return body + "}"
}

// listingPage wraps records into the listing page shape.
func listingPage(records ...string) string {
	body := `{"results": [`
	for i, r := range records {
		if i > 0 {
			body += ", "
		}
		body += r
	}
	return body + `]}`
}
