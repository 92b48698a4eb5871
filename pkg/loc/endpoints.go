package loc

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// jsonFormat is the fo= value selecting JSON listing responses.
const jsonFormat = "json"

// maxSlugLength bounds collection slugs accepted from user input.
const maxSlugLength = 100

// PageURL builds the listing URL for one page: the base URL with fo=json,
// c=<pageSize> and sp=<page> merged into whatever query it already carries.
func PageURL(baseURL string, pageSize, page int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	q := u.Query()
	q.Set("fo", jsonFormat)
	q.Set("c", strconv.Itoa(pageSize))
	q.Set("sp", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// IsValidSlug reports whether a collection slug looks like the lowercase
// hyphenated form the API uses.
func IsValidSlug(slug string) bool {
	if len(slug) == 0 || len(slug) > maxSlugLength {
		return false
	}
	for _, ch := range slug {
		if ch >= 'a' && ch <= 'z' {
			continue
		}
		if ch >= '0' && ch <= '9' {
			continue
		}
		if ch == '-' {
			continue
		}
		return false
	}
	return true
}

// SanitizeSlug normalizes user input into slug form: trimmed of whitespace
// and slashes, lowercased, inner spaces collapsed to hyphens.
func SanitizeSlug(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "/")
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, " ", "-")
}
