package loc

import (
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "locscraper/pkg/errors"
	"locscraper/pkg/logger"
)

// newMockedClient routes both the page and probe transports through httpmock
func newMockedClient(t *testing.T) *Client {
	t.Helper()
	client := NewClient("https://example.org/collections/test/", 5*time.Second, 5*time.Second, logger.NewTestLogger())
	httpmock.ActivateNonDefault(client.httpClient)
	httpmock.ActivateNonDefault(client.probeClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func headResponder(status int, headers map[string]string) httpmock.Responder {
	return func(*http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(status, "")
		for k, v := range headers {
			resp.Header.Set(k, v)
		}
		return resp, nil
	}
}

func TestProbeHead(t *testing.T) {
	client := newMockedClient(t)
	const url = "https://images.example/test.jpg"

	httpmock.RegisterResponder(http.MethodHead, url, headResponder(http.StatusOK, map[string]string{
		"Content-Length": "123",
		"Last-Modified":  "Wed, 21 Oct 2015 07:28:00 GMT",
		"Content-Type":   "image/jpeg",
	}))

	info := client.Probe(url)

	assert.Equal(t, int64(123), info.Size)
	assert.True(t, info.HasSize())
	require.True(t, info.HasLastMod())
	want := time.Date(2015, time.October, 21, 7, 28, 0, 0, time.UTC)
	assert.True(t, info.LastMod.Equal(want), "got %v", info.LastMod)
	assert.Equal(t, "image/jpeg", info.ContentType)
}

func TestProbeHeadNotAllowedFallsBackToRangedGet(t *testing.T) {
	client := newMockedClient(t)
	const url = "https://images.example/test2.jpg"

	httpmock.RegisterResponder(http.MethodHead, url, httpmock.NewStringResponder(http.StatusMethodNotAllowed, ""))
	httpmock.RegisterResponder(http.MethodGet, url, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "bytes=0-0", req.Header.Get("Range"))
		resp := httpmock.NewStringResponse(http.StatusOK, "x")
		resp.Header.Set("Content-Length", "10")
		resp.Header.Set("Content-Type", "image/png")
		return resp, nil
	})

	info := client.Probe(url)

	assert.Equal(t, int64(10), info.Size)
	assert.Equal(t, "image/png", info.ContentType)
	assert.False(t, info.HasLastMod())
}

func TestProbeRangedFallbackPrefersContentRangeTotal(t *testing.T) {
	client := newMockedClient(t)
	const url = "https://images.example/partial.tif"

	httpmock.RegisterResponder(http.MethodHead, url, httpmock.NewStringResponder(http.StatusMethodNotAllowed, ""))
	httpmock.RegisterResponder(http.MethodGet, url, func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusPartialContent, "x")
		resp.Header.Set("Content-Length", "1")
		resp.Header.Set("Content-Range", "bytes 0-0/5120")
		resp.Header.Set("Last-Modified", "Wed, 21 Oct 2015 07:28:00 GMT")
		return resp, nil
	})

	info := client.Probe(url)

	// Content-Length on a 206 is the one-byte slice; the real size sits
	// in the Content-Range total.
	assert.Equal(t, int64(5120), info.Size)
	assert.True(t, info.HasLastMod())
}

func TestProbeRangedFallbackWithoutContentRange(t *testing.T) {
	client := newMockedClient(t)
	const url = "https://images.example/no-range-header.tif"

	httpmock.RegisterResponder(http.MethodHead, url, httpmock.NewStringResponder(http.StatusMethodNotAllowed, ""))
	httpmock.RegisterResponder(http.MethodGet, url, func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusPartialContent, "x")
		resp.Header.Set("Content-Length", "1")
		return resp, nil
	})

	info := client.Probe(url)

	assert.Equal(t, int64(1), info.Size)
}

func TestContentRangeTotal(t *testing.T) {
	tests := []struct {
		value string
		total int64
		ok    bool
	}{
		{"bytes 0-0/5120", 5120, true},
		{"bytes 0-0/ 42", 42, true},
		{"bytes 0-0/*", 0, false},
		{"bytes 0-0", 0, false},
		{"", 0, false},
		{"bytes 0-0/-7", 0, false},
	}

	for _, tt := range tests {
		total, ok := contentRangeTotal(tt.value)
		assert.Equal(t, tt.ok, ok, "value %q", tt.value)
		assert.Equal(t, tt.total, total, "value %q", tt.value)
	}
}

func TestProbeFailuresAreAbsent(t *testing.T) {
	const url = "https://images.example/flaky.jpg"

	tests := []struct {
		name     string
		register func()
	}{
		{
			name: "network error",
			register: func() {
				httpmock.RegisterResponder(http.MethodHead, url,
					httpmock.NewErrorResponder(errors.New("connection refused")))
			},
		},
		{
			name: "head rejected with 404",
			register: func() {
				httpmock.RegisterResponder(http.MethodHead, url,
					httpmock.NewStringResponder(http.StatusNotFound, ""))
			},
		},
		{
			name: "head rejected with 500",
			register: func() {
				httpmock.RegisterResponder(http.MethodHead, url,
					httpmock.NewStringResponder(http.StatusInternalServerError, ""))
			},
		},
		{
			name: "fallback network error",
			register: func() {
				httpmock.RegisterResponder(http.MethodHead, url,
					httpmock.NewStringResponder(http.StatusMethodNotAllowed, ""))
				httpmock.RegisterResponder(http.MethodGet, url,
					httpmock.NewErrorResponder(errors.New("reset by peer")))
			},
		},
		{
			name: "fallback rejected",
			register: func() {
				httpmock.RegisterResponder(http.MethodHead, url,
					httpmock.NewStringResponder(http.StatusMethodNotAllowed, ""))
				httpmock.RegisterResponder(http.MethodGet, url,
					httpmock.NewStringResponder(http.StatusForbidden, ""))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newMockedClient(t)
			tt.register()

			info := client.Probe(url)

			assert.False(t, info.HasSize())
			assert.False(t, info.HasLastMod())
			assert.Empty(t, info.ContentType)
		})
	}
}

func TestProbeInvalidHeaderValues(t *testing.T) {
	client := newMockedClient(t)
	const url = "https://images.example/odd.gif"

	httpmock.RegisterResponder(http.MethodHead, url, headResponder(http.StatusOK, map[string]string{
		"Content-Length": "garbage",
		"Last-Modified":  "not a date",
		"Content-Type":   "image/gif",
	}))

	info := client.Probe(url)

	assert.False(t, info.HasSize())
	assert.False(t, info.HasLastMod())
	assert.Equal(t, "image/gif", info.ContentType, "valid headers survive invalid siblings")
}

func TestFetchAssetMocked(t *testing.T) {
	client := newMockedClient(t)
	const url = "https://images.example/full.jpg"

	httpmock.RegisterResponder(http.MethodGet, url, func(*http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusOK, "abcd")
		resp.Header.Set("Content-Length", "4")
		resp.Header.Set("Content-Type", "image/jpeg")
		return resp, nil
	})

	body, info, err := client.FetchAsset(url)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))
	assert.Equal(t, int64(4), info.Size)
	assert.Equal(t, "image/jpeg", info.ContentType)

	var apiErr *errs.Error
	_, _, err = client.FetchAsset("https://images.example/unregistered.jpg")
	require.Error(t, err)
	require.ErrorAs(t, err, &apiErr)
}
