package mirror

import (
	"time"

	"locscraper/pkg/loc"
)

// Policy names the collision stance for assets that already exist locally.
type Policy int

const (
	// ReplaceInPlace compares the local copy against the remote and
	// overwrites it only when they differ.
	ReplaceInPlace Policy = iota
	// KeepAll never compares. Every sync fetches, and name collisions get
	// a numeric suffix instead of overwriting.
	KeepAll
)

// Decision is the verdict for one asset that already exists locally.
type Decision int

const (
	// Skip leaves the local copy untouched.
	Skip Decision = iota
	// Fetch downloads the remote and overwrites the local copy.
	Fetch
	// HashCompare downloads to a staging file and publishes it only when
	// its content hash differs from the local copy's.
	HashCompare
)

// Decide applies the tiered comparison for an existing local file. A size
// match wins outright. Failing that, a local modification time at or after
// the remote's counts as current. When the probe produced neither signal
// the only way to know is to download and compare content.
func Decide(localSize int64, localModTime time.Time, remote loc.AssetInfo) Decision {
	if remote.HasSize() && remote.Size == localSize {
		return Skip
	}
	if remote.HasLastMod() && !localModTime.Before(remote.LastMod) {
		return Skip
	}
	if !remote.HasSize() && !remote.HasLastMod() {
		return HashCompare
	}
	return Fetch
}

// Outcome is what one asset sync actually did.
type Outcome int

const (
	// OutcomeSkipped means the local copy was already current.
	OutcomeSkipped Outcome = iota
	// OutcomeFetched means a new file was written.
	OutcomeFetched
	// OutcomeReplaced means an existing file was overwritten after a
	// content comparison.
	OutcomeReplaced
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFetched:
		return "fetched"
	case OutcomeReplaced:
		return "replaced"
	default:
		return "skipped"
	}
}
