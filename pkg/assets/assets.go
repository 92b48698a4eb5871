// Package assets discovers media URLs inside arbitrarily shaped collection
// records and synthesizes high-resolution master siblings for recognized
// service renditions.
package assets

import (
	"strings"

	"locscraper/pkg/jsonval"
)

// imageExtensions are the recognized raster suffixes, matched against the
// query-stripped, lowercased URL.
var imageExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".tif", ".tiff", ".webp", ".bmp",
}

// fallbackKeys are conventional top-level media fields checked when a full
// walk of the record finds nothing.
var fallbackKeys = []string{"image", "images", "online_media", "online_media_urls"}

// IsImageURL reports whether s looks like a direct link to an image file:
// an absolute HTTP(S) URL whose query-stripped form ends in a recognized
// raster extension.
func IsImageURL(s string) bool {
	lower := strings.ToLower(stripQuery(s))
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// MasterVariant synthesizes the high-resolution master URL from a service
// rendition: the first /service/ path segment becomes /master/ and the
// trailing r.jpg or r.jpeg becomes u.tif. Matching is case-insensitive but
// the rest of the URL keeps its original form, query dropped. The result
// is never verified against the remote; a dead master surfaces later as a
// failed fetch for that one asset.
func MasterVariant(s string) (string, bool) {
	base := stripQuery(s)
	lower := strings.ToLower(base)

	idx := strings.Index(lower, "/service/")
	if idx < 0 {
		return "", false
	}

	var cut int
	switch {
	case strings.HasSuffix(lower, "r.jpeg"):
		cut = len("r.jpeg")
	case strings.HasSuffix(lower, "r.jpg"):
		cut = len("r.jpg")
	default:
		return "", false
	}

	master := base[:idx] + "/master/" + base[idx+len("/service/"):]
	return master[:len(master)-cut] + "u.tif", true
}

// Discover walks v and returns every asset URL found, in document order
// with first occurrence winning. Each service rendition is followed
// immediately by its synthesized master sibling.
func Discover(v jsonval.Value) []string {
	c := newCollector()
	c.walk(v)
	return c.urls
}

// DiscoverRecord discovers asset URLs for one listing record. When the
// full walk yields nothing, a fixed list of conventional media keys is
// probed at the record's top level and discovery re-runs on each value
// found there.
func DiscoverRecord(rec jsonval.Value) []string {
	c := newCollector()
	c.walk(rec)
	if len(c.urls) > 0 {
		return c.urls
	}

	obj, ok := rec.(jsonval.Object)
	if !ok {
		return nil
	}
	for _, key := range fallbackKeys {
		if v, found := obj.Get(key); found {
			c.walk(v)
		}
	}
	return c.urls
}

type collector struct {
	urls []string
	seen map[string]struct{}
}

func newCollector() *collector {
	return &collector{seen: make(map[string]struct{})}
}

func (c *collector) add(u string) {
	if _, ok := c.seen[u]; ok {
		return
	}
	c.seen[u] = struct{}{}
	c.urls = append(c.urls, u)
}

func (c *collector) walk(v jsonval.Value) {
	switch val := v.(type) {
	case jsonval.Object:
		for _, m := range val {
			c.walk(m.Value)
		}
	case jsonval.Array:
		for _, item := range val {
			c.walk(item)
		}
	case jsonval.String:
		s := string(val)
		if !IsImageURL(s) {
			return
		}
		// Accepted URLs keep their original, query-preserving form
		c.add(s)
		if master, ok := MasterVariant(s); ok {
			c.add(master)
		}
	}
}

func stripQuery(s string) string {
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i]
	}
	return s
}
