// Package names derives filesystem-safe names from the heterogeneous
// identifiers a collection record carries: record ids, titles, URLs, and
// asset filename stems.
package names

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"locscraper/pkg/jsonval"
)

const (
	// DefaultMaxLength bounds sanitized names.
	DefaultMaxLength = 100

	// Fallback is used when sanitizing leaves nothing usable.
	Fallback = "item"
)

var invalidRuns = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// folderKeys are checked in priority order when naming a record's folder.
var folderKeys = []string{"id", "url", "title"}

var (
	masterStem  = regexp.MustCompile(`(?i)(\d+)u\.tif$`)
	serviceStem = regexp.MustCompile(`(?i)(\d+)r\.jpe?g$`)
)

// contentTypeExts maps probed content types to file extensions for asset
// URLs whose basename carries none.
var contentTypeExts = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/tiff": ".tif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Sanitize converts an arbitrary identifier into a filesystem-safe name
// bounded at DefaultMaxLength characters.
func Sanitize(name string) string {
	return SanitizeLimit(name, DefaultMaxLength)
}

// SanitizeLimit replaces every maximal run of characters outside
// [A-Za-z0-9._-] with a single underscore, truncates to maxLen, and strips
// leading and trailing underscores. An empty result falls back to "item".
func SanitizeLimit(name string, maxLen int) string {
	s := invalidRuns.ReplaceAllString(name, "_")
	// Everything left is single-byte ASCII, so slicing is rune-safe
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.Trim(s, "_")
	if s == "" {
		return Fallback
	}
	return s
}

// FolderName derives the on-disk folder for a record. Mappings use the
// first present, non-empty string among id, url and title; anything else
// falls back to item_<index>.
func FolderName(rec jsonval.Value, fallbackIndex int) string {
	if obj, ok := rec.(jsonval.Object); ok {
		for _, key := range folderKeys {
			v, found := obj.Get(key)
			if !found {
				continue
			}
			if s, ok := v.(jsonval.String); ok && s != "" {
				return Sanitize(string(s))
			}
		}
	}
	return fmt.Sprintf("item_%d", fallbackIndex)
}

// JSONStem picks the sidecar base name from the filenames of a record's
// discovered assets. A master scan (<digits>u.tif) wins over a service
// rendition (<digits>r.jpg or r.jpeg); the digits become the stem. With
// neither present the sidecar stays item.json.
func JSONStem(filenames []string) string {
	service := ""
	for _, name := range filenames {
		if m := masterStem.FindStringSubmatch(name); m != nil {
			return m[1]
		}
		if service == "" {
			if m := serviceStem.FindStringSubmatch(name); m != nil {
				service = m[1]
			}
		}
	}
	if service != "" {
		return service
	}
	return Fallback
}

// AssetFileName derives the local filename for an asset URL: the URL
// path's basename, query stripped. When the basename carries no extension
// one is appended from the probed content type if the type is recognized.
func AssetFileName(rawURL, contentType string) string {
	base := Basename(rawURL)
	if path.Ext(base) == "" {
		if ext := ExtensionForContentType(contentType); ext != "" {
			base += ext
		}
	}
	return Sanitize(base)
}

// ExtensionForContentType maps a probed Content-Type header value to a
// file extension. Unknown or empty types map to the empty string.
func ExtensionForContentType(contentType string) string {
	ct := contentType
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return contentTypeExts[strings.ToLower(strings.TrimSpace(ct))]
}

// Basename returns the final path segment of a URL, query stripped.
func Basename(rawURL string) string {
	s := rawURL
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	if u, err := url.Parse(s); err == nil && u.Path != "" {
		s = u.Path
	}
	return path.Base(s)
}
