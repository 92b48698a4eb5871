package loc

import (
	"fmt"
	"time"

	errs "locscraper/pkg/errors"
	"locscraper/pkg/jsonval"
)

// recordsKey is the top-level member listing pages expose their records under.
const recordsKey = "results"

// Page is one listing page of a collection.
type Page struct {
	Number  int
	URL     string
	Records []jsonval.Value
}

// Short reports whether the page carries fewer records than requested,
// which marks it as the collection's last page.
func (p *Page) Short(pageSize int) bool {
	return len(p.Records) < pageSize
}

// AssetInfo is what a metadata probe learned about a remote asset. Size is
// -1 when the server reported none, LastMod is the zero time when absent,
// and ContentType is empty when absent.
type AssetInfo struct {
	Size        int64
	LastMod     time.Time
	ContentType string
}

// NoInfo returns an AssetInfo with every value absent.
func NoInfo() AssetInfo {
	return AssetInfo{Size: -1}
}

// HasSize reports whether the probe learned a content length.
func (a AssetInfo) HasSize() bool {
	return a.Size >= 0
}

// HasLastMod reports whether the probe learned a modification time.
func (a AssetInfo) HasLastMod() bool {
	return !a.LastMod.IsZero()
}

// ExtractRecords pulls the record list out of a decoded listing page. A
// missing or null results member is an empty page; a page that is not an
// object, or a results member that is not an array, is malformed.
func ExtractRecords(v jsonval.Value) ([]jsonval.Value, error) {
	obj, ok := v.(jsonval.Object)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is %T, expected an object", errs.ErrMalformedPage, v)
	}

	member, found := obj.Get(recordsKey)
	if !found {
		return nil, nil
	}

	switch node := member.(type) {
	case jsonval.Null:
		return nil, nil
	case jsonval.Array:
		return []jsonval.Value(node), nil
	default:
		return nil, fmt.Errorf("%w: %q is %T, expected an array", errs.ErrMalformedPage, recordsKey, node)
	}
}
