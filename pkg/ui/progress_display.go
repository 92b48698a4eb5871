package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"locscraper/pkg/stats"
)

// RunDisplay provides a clean, minimal progress line for a harvest run.
// Collections do not announce their size up front, so the line counts
// upward instead of drawing a bar.
type RunDisplay struct {
	mu            sync.Mutex
	collection    string
	page          int
	records       int
	assetsWritten int
	assetsSkipped int
	bytesWritten  int64
	errors        int
	currentFolder string
	startTime     time.Time
	isDebug       bool
}

// NewRunDisplay creates a progress display for one collection run
func NewRunDisplay(collection string, debug bool) *RunDisplay {
	return &RunDisplay{
		collection: collection,
		startTime:  time.Now(),
		isDebug:    debug,
	}
}

// ScanningPage indicates a new listing page is being fetched
func (p *RunDisplay) ScanningPage(page int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.page = page
	if p.isDebug {
		fmt.Printf("\n%s Scanning page %d...\n", Magenta("→"), page)
	}
}

// StartRecord marks the start of one record's sync
func (p *RunDisplay) StartRecord(folder string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.currentFolder = folder
	if !p.isDebug {
		p.printProgress()
	}
}

// CompleteRecord folds one record's results into the running totals
func (p *RunDisplay) CompleteRecord(written, skipped, failed int, bytes int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.records++
	p.assetsWritten += written
	p.assetsSkipped += skipped
	p.errors += failed
	p.bytesWritten += bytes

	if !p.isDebug {
		p.printProgress()
	} else if written > 0 {
		fmt.Printf("\n%s %s • %d assets • %s\n",
			Green("✓"),
			p.currentFolder,
			written,
			stats.FormatBytes(bytes),
		)
	}
}

// printProgress prints the minimal progress line
func (p *RunDisplay) printProgress() {
	elapsed := time.Since(p.startTime)
	rate := float64(p.records) / elapsed.Minutes()

	line := fmt.Sprintf("\r%s page %d • %d records • %d saved / %d skipped • %s • %.1f/min",
		Cyan(p.collection),
		p.page,
		p.records,
		p.assetsWritten,
		p.assetsSkipped,
		stats.FormatBytes(p.bytesWritten),
		rate,
	)

	if p.currentFolder != "" {
		line += fmt.Sprintf(" • %s", p.currentFolder)
	}
	if p.errors > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d errors", p.errors)))
	}

	// Clear line and print
	fmt.Printf("\r%s\r%s", strings.Repeat(" ", 120), line)
}

// RateLimitWarning shows a rate limit warning
func (p *RunDisplay) RateLimitWarning(waitTime time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Printf("\n%s Rate limit reached. Waiting %s...\n",
		Yellow("⚠"),
		formatDuration(waitTime),
	)
}

// Complete prints the end-of-run summary block
func (p *RunDisplay) Complete(pages int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)

	fmt.Printf("\n\n%s Harvested %d records from %s\n",
		Green("✓"),
		p.records,
		p.collection,
	)
	fmt.Printf("  %s %d pages in %s\n",
		Dim("•"),
		pages,
		formatDuration(elapsed),
	)
	fmt.Printf("  %s %d assets saved, %d already current, %s written\n",
		Dim("•"),
		p.assetsWritten,
		p.assetsSkipped,
		stats.FormatBytes(p.bytesWritten),
	)

	if p.errors > 0 {
		fmt.Printf("  %s %d assets failed\n",
			Dim("•"),
			p.errors,
		)
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
