package loc

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	errs "locscraper/pkg/errors"
	"locscraper/pkg/jsonval"
	"locscraper/pkg/logger"
)

// bodyPreviewLimit bounds how much of an unparseable response lands in logs.
const bodyPreviewLimit = 200

// probeDrainLimit bounds how much of a probe response body is read before
// the connection is released.
const probeDrainLimit = 4096

// Client is an HTTP client for the collection listing API and the asset
// hosts its records point at.
type Client struct {
	httpClient  *http.Client
	probeClient *http.Client
	headers     map[string]string
	baseURL     string
	logger      logger.Logger
}

// NewClient creates a client rooted at the given collection base URL. The
// probe timeout applies to metadata probes only; zero or negative falls
// back to the main timeout.
func NewClient(baseURL string, timeout, probeTimeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if probeTimeout <= 0 {
		probeTimeout = timeout
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		probeClient: &http.Client{Timeout: probeTimeout},
		headers: map[string]string{
			"User-Agent": "locscraper/1.0 (collection harvester)",
			"Accept":     "application/json, image/*;q=0.9, */*;q=0.8",
		},
		baseURL: baseURL,
		logger:  log,
	}
}

// BaseURL returns the collection base URL the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	return c.do(c.httpClient, req)
}

func (c *Client) do(hc *http.Client, req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := hc.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Code:    0,
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// Get performs a GET request to the specified URL
func (c *Client) Get(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Code:    0,
		}
	}

	return c.doRequest(req)
}

// GetJSON performs a GET request and decodes the response into an
// order-preserving JSON value
func (c *Client) GetJSON(url string) (jsonval.Value, error) {
	resp, err := c.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	v, err := jsonval.Unmarshal(body)
	if err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > bodyPreviewLimit {
			bodyPreview = bodyPreview[:bodyPreviewLimit] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
		}
	}

	return v, nil
}

// checkResponseStatus checks the HTTP response status and returns appropriate errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    requestURL(resp),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    requestURL(resp),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode >= 500:
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    requestURL(resp),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode >= 400:
		c.logger.ErrorWithFields("unexpected API error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    requestURL(resp),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	default:
		return nil
	}
}

// requestURL names the request behind a response for logging. Responses
// built by hand-rolled transports may carry no request.
func requestURL(resp *http.Response) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	return resp.Request.URL.String()
}

// FetchPage fetches one listing page and extracts its records.
func (c *Client) FetchPage(page, pageSize int) (*Page, error) {
	pageURL, err := PageURL(c.baseURL, pageSize, page)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: err.Error(),
			Code:    0,
		}
	}

	c.logger.DebugWithFields("fetching listing page", map[string]interface{}{
		"page":      page,
		"page_size": pageSize,
		"url":       pageURL,
	})

	v, err := c.GetJSON(pageURL)
	if err != nil {
		return nil, err
	}

	records, err := ExtractRecords(v)
	if err != nil {
		c.logger.ErrorWithFields("listing page has unexpected shape", map[string]interface{}{
			"page":  page,
			"url":   pageURL,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("page %d: %w", page, err)
	}

	return &Page{Number: page, URL: pageURL, Records: records}, nil
}

// Probe asks the asset host for size, modification time and content type
// without transferring the body. Servers that reject HEAD with 405 are
// asked again with a one-byte ranged GET and the headers are read off that
// response instead. Probing is advisory: any failure returns absent values
// rather than an error.
func (c *Client) Probe(rawURL string) AssetInfo {
	resp, err := c.probeRequest(http.MethodHead, rawURL, "")
	if err != nil {
		return NoInfo()
	}

	if resp.StatusCode == http.StatusMethodNotAllowed {
		drainAndClose(resp.Body)
		c.logger.DebugWithFields("HEAD rejected, probing with ranged GET", map[string]interface{}{
			"url": rawURL,
		})
		resp, err = c.probeRequest(http.MethodGet, rawURL, "bytes=0-0")
		if err != nil {
			return NoInfo()
		}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.DebugWithFields("probe rejected", map[string]interface{}{
			"url":    rawURL,
			"status": resp.StatusCode,
		})
		return NoInfo()
	}

	info := infoFromHeaders(resp.Header)

	// A 206 answer to the one-byte range carries the full size in
	// Content-Range, not Content-Length.
	if resp.StatusCode == http.StatusPartialContent {
		if total, ok := contentRangeTotal(resp.Header.Get("Content-Range")); ok {
			info.Size = total
		}
	}

	return info
}

func (c *Client) probeRequest(method, rawURL, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequest(method, rawURL, nil)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Code:    0,
		}
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	return c.do(c.probeClient, req)
}

// FetchAsset opens a streaming download of an asset. The caller owns the
// returned body and must close it.
func (c *Client) FetchAsset(rawURL string) (io.ReadCloser, AssetInfo, error) {
	resp, err := c.Get(rawURL)
	if err != nil {
		return nil, NoInfo(), err
	}

	if err := c.checkResponseStatus(resp); err != nil {
		drainAndClose(resp.Body)
		return nil, NoInfo(), err
	}

	return resp.Body, infoFromHeaders(resp.Header), nil
}

// infoFromHeaders reads probe metadata off response headers. Invalid
// values are treated as absent.
func infoFromHeaders(h http.Header) AssetInfo {
	info := NoInfo()

	if v := h.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			info.Size = n
		}
	}
	if v := h.Get("Last-Modified"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			info.LastMod = t
		}
	}
	info.ContentType = h.Get("Content-Type")

	return info
}

// contentRangeTotal extracts the complete length from a Content-Range
// value such as "bytes 0-0/4096". An unknown length ("*") or anything
// unparseable reports false.
func contentRangeTotal(v string) (int64, bool) {
	_, total, found := strings.Cut(v, "/")
	if !found {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// drainAndClose discards a bounded amount of the body so the connection
// can be reused, then closes it.
func drainAndClose(body io.ReadCloser) {
	io.CopyN(io.Discard, body, probeDrainLimit)
	body.Close()
}
