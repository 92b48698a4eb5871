package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"locscraper/pkg/logger"
)

// copyBufferSize is the chunk size for streaming downloads to disk.
const copyBufferSize = 8 * 1024

// Manager handles file operations under a single output root. Every write
// goes through a same-directory temp file and is published with os.Rename,
// so a crash mid-download never leaves a partial file at the final path.
type Manager struct {
	outputRoot string
	log        logger.Logger
}

// NewManager creates a storage manager rooted at outputRoot
func NewManager(outputRoot string, log logger.Logger) (*Manager, error) {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Manager{
		outputRoot: outputRoot,
		log:        log,
	}, nil
}

// Root returns the output root directory
func (m *Manager) Root() string {
	return m.outputRoot
}

// EnsureFolder creates the per-item folder if needed and returns its path
func (m *Manager) EnsureFolder(name string) (string, error) {
	dir := filepath.Join(m.outputRoot, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create item folder: %w", err)
	}
	return dir, nil
}

// StageStream copies r into dest+".tmp" and returns the temp path and the
// number of bytes that landed on disk. The temp file is fsynced before
// close so the rename in Promote publishes fully written data. On error
// the temp file is removed.
func (m *Manager) StageStream(dest string, r io.Reader) (string, int64, error) {
	tmp := dest + ".tmp"

	out, err := os.Create(tmp)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	buf := make([]byte, copyBufferSize)
	_, copyErr := io.CopyBuffer(out, r, buf)

	var syncErr error
	if copyErr == nil {
		syncErr = out.Sync()
	}
	closeErr := out.Close()

	if copyErr != nil {
		os.Remove(tmp)
		return "", 0, fmt.Errorf("failed to write data: %w", copyErr)
	}
	if syncErr != nil {
		os.Remove(tmp)
		return "", 0, fmt.Errorf("failed to sync file: %w", syncErr)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return "", 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	// Reported bytes come from what actually landed on disk
	info, err := os.Stat(tmp)
	if err != nil {
		os.Remove(tmp)
		return "", 0, fmt.Errorf("failed to stat temporary file: %w", err)
	}

	return tmp, info.Size(), nil
}

// Promote publishes a staged temp file at its final path
func (m *Manager) Promote(tmp, dest string) error {
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// Discard removes a staged temp file that will not be promoted
func (m *Manager) Discard(tmp string) {
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		m.log.WithError(err).WithField("path", tmp).Debug("failed to remove temp file")
	}
}

// WriteStream stages r and immediately promotes it to dest, returning the
// number of bytes written
func (m *Manager) WriteStream(dest string, r io.Reader) (int64, error) {
	tmp, n, err := m.StageStream(dest, r)
	if err != nil {
		return 0, err
	}
	if err := m.Promote(tmp, dest); err != nil {
		return 0, err
	}
	return n, nil
}

// WriteFile writes data to dest through the same temp-and-rename path
func (m *Manager) WriteFile(dest string, data []byte) (int64, error) {
	return m.WriteStream(dest, bytes.NewReader(data))
}

// FileExists reports whether path exists and is a regular file
func (m *Manager) FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// FileSize returns the size in bytes of the file at path
func (m *Manager) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// FileModTime returns the modification time of the file at path
func (m *Manager) FileModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// HashFile returns the hex encoded SHA-256 digest of the file at path
func (m *Manager) HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// AvailableName returns the first unused file path in dir built from stem
// and ext. The unsuffixed name is tried first, then stem_1, stem_2 and so
// on. Used when every fetched variant is kept instead of replaced.
func (m *Manager) AvailableName(dir, stem, ext string) string {
	candidate := filepath.Join(dir, stem+ext)
	if !m.FileExists(candidate) {
		return candidate
	}
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if !m.FileExists(candidate) {
			return candidate
		}
	}
}
