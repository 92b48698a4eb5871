package integration

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MockCollectionServer simulates a collections host: the paginated JSON
// listing endpoint plus the asset paths its records point at. It doubles
// as a request recorder so tests can assert on the traffic a run produced.
type MockCollectionServer struct {
	server *httptest.Server
	slug   string

	mu             sync.RWMutex
	pages          map[int]string
	pageErrors     map[int]int // sp -> forced status code
	assets         map[string]*AssetFixture
	errorResponses map[string]int // path -> forced status code
	delays         map[string]time.Duration
	listingHits    map[int]int
	assetGets      map[string]int
	requests       []string

	requestCount int32
	headCount    int32
}

// AssetFixture is one downloadable asset served by the mock host.
type AssetFixture struct {
	Body        []byte
	ContentType string
	// LastModified, when set, is sent on probe responses in HTTP date
	// format.
	LastModified time.Time
	// RejectHead answers HEAD with 405 so clients fall back to a ranged
	// GET, the way some asset CDNs behave.
	RejectHead bool
	// NoMetadata strips Content-Length and Last-Modified from probe
	// responses, forcing clients into content comparison.
	NoMetadata bool
}

// NewMockCollectionServer starts a mock host for one collection slug.
func NewMockCollectionServer(slug string) *MockCollectionServer {
	m := &MockCollectionServer{
		slug:           slug,
		pages:          make(map[int]string),
		pageErrors:     make(map[int]int),
		assets:         make(map[string]*AssetFixture),
		errorResponses: make(map[string]int),
		delays:         make(map[string]time.Duration),
		listingHits:    make(map[int]int),
		assetGets:      make(map[string]int),
	}
	m.server = httptest.NewServer(m)
	return m
}

// ServeHTTP dispatches between the listing endpoint and asset paths.
func (m *MockCollectionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.requestCount, 1)
	if r.Method == http.MethodHead {
		atomic.AddInt32(&m.headCount, 1)
	}

	m.mu.Lock()
	m.requests = append(m.requests, r.Method+" "+r.URL.RequestURI())
	m.mu.Unlock()

	if delay := m.getDelay(r.URL.Path); delay > 0 {
		time.Sleep(delay)
	}
	if code := m.getErrorResponse(r.URL.Path); code > 0 {
		w.WriteHeader(code)
		fmt.Fprintf(w, "forced error %d", code)
		return
	}

	if strings.HasPrefix(r.URL.Path, "/collections/"+m.slug+"/") {
		m.handleListing(w, r)
		return
	}
	if fixture := m.getAsset(r.URL.Path); fixture != nil {
		m.handleAsset(w, r, fixture)
		return
	}

	http.NotFound(w, r)
}

// handleListing serves the configured body for the sp page. Pages that
// were never configured are empty, which ends a harvest cleanly.
func (m *MockCollectionServer) handleListing(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("fo") != "json" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "only fo=json is supported"}`)
		return
	}

	sp, err := strconv.Atoi(r.URL.Query().Get("sp"))
	if err != nil {
		sp = 1
	}

	m.mu.Lock()
	m.listingHits[sp]++
	code := m.pageErrors[sp]
	body, ok := m.pages[sp]
	m.mu.Unlock()

	if code > 0 {
		w.WriteHeader(code)
		fmt.Fprintf(w, "forced error %d", code)
		return
	}
	if !ok {
		body = `{"results": []}`
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

// handleAsset serves one fixture, honoring HEAD probes and one-byte range
// requests the way a real asset host would.
func (m *MockCollectionServer) handleAsset(w http.ResponseWriter, r *http.Request, f *AssetFixture) {
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if r.Method == http.MethodHead {
		if f.RejectHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", contentType)
		if !f.NoMetadata {
			w.Header().Set("Content-Length", strconv.Itoa(len(f.Body)))
			if !f.LastModified.IsZero() {
				w.Header().Set("Last-Modified", f.LastModified.UTC().Format(http.TimeFormat))
			}
		}
		return
	}

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if !f.NoMetadata && !f.LastModified.IsZero() {
		w.Header().Set("Last-Modified", f.LastModified.UTC().Format(http.TimeFormat))
	}

	// A ranged request only ever asks for the first byte here; answer it
	// with 206 and the full size in Content-Range.
	if rng := r.Header.Get("Range"); strings.HasPrefix(rng, "bytes=0-0") && len(f.Body) > 0 {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes 0-0/%d", len(f.Body)))
		w.Header().Set("Content-Length", "1")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(f.Body[:1])
		return
	}

	m.mu.Lock()
	m.assetGets[r.URL.Path]++
	m.mu.Unlock()

	w.Header().Set("Content-Length", strconv.Itoa(len(f.Body)))
	w.Write(f.Body)
}

// SetPage configures the listing body served for one sp value.
func (m *MockCollectionServer) SetPage(sp int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[sp] = body
}

// AddAsset registers a fixture at path and returns its absolute URL.
func (m *MockCollectionServer) AddAsset(path string, f *AssetFixture) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[path] = f
	return m.server.URL + path
}

// SetPageError forces a status code for one listing page.
func (m *MockCollectionServer) SetPageError(sp, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageErrors[sp] = code
}

// ClearPageError lets a listing page serve its body again.
func (m *MockCollectionServer) ClearPageError(sp int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pageErrors, sp)
}

// SetErrorResponse forces a status code for every request to path.
func (m *MockCollectionServer) SetErrorResponse(path string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorResponses[path] = code
}

// ClearErrorResponse removes a forced status code for path.
func (m *MockCollectionServer) ClearErrorResponse(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.errorResponses, path)
}

// SetDelay adds an artificial response delay for path.
func (m *MockCollectionServer) SetDelay(path string, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[path] = delay
}

func (m *MockCollectionServer) getErrorResponse(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errorResponses[path]
}

func (m *MockCollectionServer) getDelay(path string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.delays[path]
}

func (m *MockCollectionServer) getAsset(path string) *AssetFixture {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assets[path]
}

// URL returns the mock host's base URL.
func (m *MockCollectionServer) URL() string {
	return m.server.URL
}

// ListingURL returns the collection base URL a harvest config points at.
func (m *MockCollectionServer) ListingURL() string {
	return m.server.URL + "/collections/" + m.slug + "/"
}

// ListingHits returns how often the sp listing page was requested.
func (m *MockCollectionServer) ListingHits(sp int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listingHits[sp]
}

// AssetBodyFetches returns how many full-body GETs hit the asset at path.
// Probe traffic, HEAD and ranged alike, does not count.
func (m *MockCollectionServer) AssetBodyFetches(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assetGets[path]
}

// RequestCount returns the total number of requests served.
func (m *MockCollectionServer) RequestCount() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

// HeadCount returns the number of HEAD probes served.
func (m *MockCollectionServer) HeadCount() int {
	return int(atomic.LoadInt32(&m.headCount))
}

// Requests returns a copy of the recorded request log, in order.
func (m *MockCollectionServer) Requests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.requests...)
}

// ResetCounters clears the request log and counters but keeps the
// configured pages and assets, so a second run can be observed in
// isolation.
func (m *MockCollectionServer) ResetCounters() {
	atomic.StoreInt32(&m.requestCount, 0)
	atomic.StoreInt32(&m.headCount, 0)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.listingHits = make(map[int]int)
	m.assetGets = make(map[string]int)
}

// Close shuts the mock host down.
func (m *MockCollectionServer) Close() {
	m.server.Close()
}
