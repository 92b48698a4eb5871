package mirror

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"locscraper/pkg/loc"
	"locscraper/pkg/names"
)

// syncAsset brings one discovered asset URL up to date inside dir. It
// returns what it did and how many bytes were published. Bytes staged but
// discarded after a hash match do not count.
func (e *Engine) syncAsset(dir, folder, rawURL string) (Outcome, int64, error) {
	info := e.probe(rawURL)
	filename := names.AssetFileName(rawURL, info.ContentType)

	if e.opts.Policy() == KeepAll {
		ext := path.Ext(filename)
		stem := strings.TrimSuffix(filename, ext)
		dest := e.store.AvailableName(dir, stem, ext)
		n, err := e.fetchTo(dest, rawURL)
		if err != nil {
			return OutcomeSkipped, 0, err
		}
		e.log.Info(fmt.Sprintf("Saved image %s", dest))
		return OutcomeFetched, n, nil
	}

	dest := filepath.Join(dir, filename)
	if !e.store.FileExists(dest) {
		n, err := e.fetchTo(dest, rawURL)
		if err != nil {
			return OutcomeSkipped, 0, err
		}
		e.log.Info(fmt.Sprintf("Saved image %s", dest))
		return OutcomeFetched, n, nil
	}

	localSize, err := e.store.FileSize(dest)
	if err != nil {
		return OutcomeSkipped, 0, err
	}
	localMod, err := e.store.FileModTime(dest)
	if err != nil {
		return OutcomeSkipped, 0, err
	}

	switch Decide(localSize, localMod, info) {
	case Skip:
		e.log.Info(fmt.Sprintf("Skipping image %s (unchanged)", filename))
		return OutcomeSkipped, 0, nil
	case HashCompare:
		return e.replaceIfDiffers(dest, filename, rawURL)
	default:
		n, err := e.fetchTo(dest, rawURL)
		if err != nil {
			return OutcomeSkipped, 0, err
		}
		e.log.Info(fmt.Sprintf("Saved image %s", dest))
		return OutcomeFetched, n, nil
	}
}

// fetchTo downloads rawURL and publishes it at dest.
func (e *Engine) fetchTo(dest, rawURL string) (int64, error) {
	body, _, err := e.client.FetchAsset(rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close()
	return e.store.WriteStream(dest, body)
}

// replaceIfDiffers settles the no-metadata case. The remote body lands in
// a staging file first; only a differing content hash promotes it over the
// local copy, so a byte-identical remote persists nothing.
func (e *Engine) replaceIfDiffers(dest, filename, rawURL string) (Outcome, int64, error) {
	body, _, err := e.client.FetchAsset(rawURL)
	if err != nil {
		return OutcomeSkipped, 0, err
	}
	defer body.Close()

	tmp, n, err := e.store.StageStream(dest, body)
	if err != nil {
		return OutcomeSkipped, 0, err
	}

	remoteHash, err := e.store.HashFile(tmp)
	if err != nil {
		e.store.Discard(tmp)
		return OutcomeSkipped, 0, err
	}
	localHash, err := e.store.HashFile(dest)
	if err != nil {
		e.store.Discard(tmp)
		return OutcomeSkipped, 0, err
	}

	if remoteHash == localHash {
		e.store.Discard(tmp)
		e.log.Info(fmt.Sprintf("Skipping image %s (identical content)", filename))
		return OutcomeSkipped, 0, nil
	}

	if err := e.store.Promote(tmp, dest); err != nil {
		return OutcomeSkipped, 0, err
	}
	e.log.Info(fmt.Sprintf("Replaced image %s", dest))
	return OutcomeReplaced, n, nil
}

// probe returns remote metadata for rawURL, reusing a cached result when
// the same URL was probed earlier in the run. Empty results are not
// cached so a later record can retry.
func (e *Engine) probe(rawURL string) loc.AssetInfo {
	if info, ok := e.probes.Get(rawURL); ok {
		return info
	}
	info := e.client.Probe(rawURL)
	if info.HasSize() || info.HasLastMod() || info.ContentType != "" {
		e.probes.Add(rawURL, info)
	}
	return info
}
