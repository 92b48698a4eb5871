// Package checkpoint provides functionality for saving and resuming harvest progress.
//
// The checkpoint lets a run pick up pagination after interruptions
// such as network failures, rate limits, or manual stops. It tracks:
//   - The next listing page to fetch
//   - How many records have been processed so far
//   - Which collection and listing URL the state belongs to
//
// The file lives at the top of the output root as
// .locscraper-checkpoint.json, so moving a mirrored collection keeps its
// resume state with it.
//
// The checkpoint files are saved atomically to prevent corruption and include
// versioning for future compatibility.
package checkpoint
