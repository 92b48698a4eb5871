// Package mirror decides, per record, which remote assets need to hit disk
// and performs the writes. It persists each record's JSON sidecar, probes
// every discovered asset URL and applies the size, modification-time and
// content-hash tiers before transferring a body. All writes go through the
// storage manager's temp-and-rename path.
package mirror

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"locscraper/pkg/assets"
	"locscraper/pkg/jsonval"
	"locscraper/pkg/loc"
	"locscraper/pkg/logger"
	"locscraper/pkg/metrics"
	"locscraper/pkg/names"
	"locscraper/pkg/stats"
	"locscraper/pkg/storage"
)

// probeCacheSize bounds the per-run cache of asset probe results. The same
// asset URL frequently appears across records in a collection.
const probeCacheSize = 512

// AssetClient is the remote side of a sync: metadata probes and body
// fetches. *loc.Client satisfies it.
type AssetClient interface {
	Probe(rawURL string) loc.AssetInfo
	FetchAsset(rawURL string) (io.ReadCloser, loc.AssetInfo, error)
}

// Options selects which parts of a record are persisted and how collisions
// with existing files are handled.
type Options struct {
	// SaveJSON persists each record as an indented JSON sidecar.
	SaveJSON bool
	// DownloadImages syncs the record's discovered assets.
	DownloadImages bool
	// SkipExisting compares against existing local files and skips ones
	// that are already current. When false every asset is fetched and
	// kept under a suffixed name on collision.
	SkipExisting bool
}

// Policy returns the collision stance the options imply.
func (o Options) Policy() Policy {
	if o.SkipExisting {
		return ReplaceInPlace
	}
	return KeepAll
}

// SidecarOutcome reports what happened to a record's JSON sidecar.
type SidecarOutcome int

const (
	// SidecarNone means no sidecar write was attempted.
	SidecarNone SidecarOutcome = iota
	// SidecarSaved means a fresh sidecar was written.
	SidecarSaved
	// SidecarUnchanged means the existing sidecar already held the same
	// value and was left alone.
	SidecarUnchanged
	// SidecarUpdated means an existing sidecar held a different value and
	// was overwritten.
	SidecarUpdated
	// SidecarReplaced means the existing sidecar could not be parsed and
	// was overwritten.
	SidecarReplaced
	// SidecarFailed means the write was attempted and failed.
	SidecarFailed
)

// RecordResult summarizes what processing one record did.
type RecordResult struct {
	Folder       string
	Sidecar      SidecarOutcome
	Assets       int
	Written      int
	Skipped      int
	Failed       int
	BytesWritten int64
}

// Engine syncs records into per-record folders under one output root.
type Engine struct {
	store   *storage.Manager
	client  AssetClient
	opts    Options
	log     logger.Logger
	session *stats.Session
	metrics *metrics.Metrics
	probes  *lru.Cache[string, loc.AssetInfo]
}

// New creates an engine writing through store and fetching through client.
func New(store *storage.Manager, client AssetClient, opts Options, log logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	probes, err := lru.New[string, loc.AssetInfo](probeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe cache: %w", err)
	}

	return &Engine{
		store:   store,
		client:  client,
		opts:    opts,
		log:     log,
		session: stats.NewSession(),
		probes:  probes,
	}, nil
}

// Session exposes the engine's transfer counters.
func (e *Engine) Session() *stats.Session {
	return e.session
}

// SetMetrics attaches Prometheus collectors. A nil value disables them.
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// ProcessRecord syncs one record's sidecar and assets. sequence is the
// record's zero-based position across the whole run, used for folder
// naming when the record carries no usable identity. The returned error
// reports unrecoverable local I/O only; per-asset and sidecar failures are
// logged and absorbed so one bad asset never sinks the record.
func (e *Engine) ProcessRecord(rec jsonval.Value, sequence int) (RecordResult, error) {
	folder := names.FolderName(rec, sequence)
	dir, err := e.store.EnsureFolder(folder)
	if err != nil {
		return RecordResult{}, fmt.Errorf("record %s: %w", folder, err)
	}

	res := RecordResult{Folder: folder}
	urls := assets.DiscoverRecord(rec)
	res.Assets = len(urls)

	if e.opts.SaveJSON {
		res.Sidecar = e.saveSidecar(dir, folder, rec, urls)
	}

	if e.opts.DownloadImages {
		for _, u := range urls {
			outcome, n, err := e.syncAsset(dir, folder, u)
			if err != nil {
				res.Failed++
				e.metrics.IncError("asset")
				e.log.WarnWithFields("asset sync failed", map[string]interface{}{
					"folder": folder,
					"url":    u,
					"error":  err.Error(),
				})
				continue
			}
			if outcome == OutcomeSkipped {
				res.Skipped++
			} else {
				res.Written++
				res.BytesWritten += n
			}
			e.metrics.AssetSynced(outcome.String())
			e.metrics.AddBytesWritten(n)
		}
	}

	// Only records that newly wrote at least one asset count toward the
	// session totals. Sidecar bytes are bookkeeping, not payload.
	if res.Written > 0 {
		e.session.RecordWriteGroup(res.BytesWritten)
		sets, total := e.session.Snapshot()
		e.log.Info(fmt.Sprintf("Session stats: %d image sets, %s written", sets, stats.FormatBytes(total)))
	}

	e.metrics.RecordProcessed()
	return res, nil
}

// saveSidecar writes the record's canonical JSON next to its assets. The
// stem comes from the record's own asset filenames so re-runs land on the
// same file. An existing sidecar holding an equal value is left alone; an
// unparseable one is overwritten.
func (e *Engine) saveSidecar(dir, folder string, rec jsonval.Value, urls []string) SidecarOutcome {
	basenames := make([]string, 0, len(urls))
	for _, u := range urls {
		basenames = append(basenames, names.Basename(u))
	}
	dest := filepath.Join(dir, names.JSONStem(basenames)+".json")

	data, err := jsonval.MarshalIndent(rec, "  ")
	if err != nil {
		e.log.WithError(err).WithField("folder", folder).Warn("failed to encode record JSON")
		return SidecarFailed
	}

	existing, readErr := os.ReadFile(dest)
	if readErr == nil {
		current, parseErr := jsonval.Unmarshal(existing)
		if parseErr == nil && jsonval.Equal(current, rec) {
			e.log.Info(fmt.Sprintf("Skipping JSON for %s (unchanged)", folder))
			return SidecarUnchanged
		}
		if _, err := e.store.WriteFile(dest, data); err != nil {
			e.log.WithError(err).WithField("path", dest).Warn("failed to write JSON sidecar")
			return SidecarFailed
		}
		if parseErr != nil {
			e.log.Warn(fmt.Sprintf("Replaced corrupted JSON for %s", folder))
			return SidecarReplaced
		}
		e.log.Info(fmt.Sprintf("Updated JSON for %s", folder))
		return SidecarUpdated
	}

	if _, err := e.store.WriteFile(dest, data); err != nil {
		e.log.WithError(err).WithField("path", dest).Warn("failed to write JSON sidecar")
		return SidecarFailed
	}
	if !os.IsNotExist(readErr) {
		// Unreadable counts the same as unparseable.
		e.log.Warn(fmt.Sprintf("Replaced corrupted JSON for %s", folder))
		return SidecarReplaced
	}
	e.log.Info(fmt.Sprintf("Saved JSON for %s", folder))
	return SidecarSaved
}
