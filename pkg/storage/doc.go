// Package storage provides file management for the collection harvester.
//
// The storage package handles:
//   - Creating the output root and per-item folders
//   - Saving downloads with atomic write operations
//   - Staged writes whose publication can be deferred or cancelled
//   - SHA-256 hashing for content comparison
//
// The Manager type is the primary interface for storage operations. Every
// write lands in a same-directory temp file first (dest + ".tmp"), is
// fsynced, and only then renamed to the final path, so readers never see a
// partial file.
//
// The two-step Stage/Promote pair exists for the hash-compare path: a
// download can be staged, compared against the local copy, and either
// promoted over it or discarded without touching the published file.
//
// Usage:
//
//	manager, err := storage.NewManager("output/brady-handy", log)
//	if err != nil {
//	    return err
//	}
//
//	// One-shot atomic write
//	n, err := manager.WriteStream(dest, body)
//
//	// Staged write with a decision in between
//	tmp, n, err := manager.StageStream(dest, body)
//	if err == nil {
//	    if sameHash {
//	        manager.Discard(tmp)
//	    } else {
//	        err = manager.Promote(tmp, dest)
//	    }
//	}
package storage
