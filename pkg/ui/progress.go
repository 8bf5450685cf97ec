package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"bookmarkvault/pkg/syncer"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 20
)

// Progress prints a single self-overwriting status line while a sync runs
type Progress struct {
	mu        sync.Mutex
	startTime time.Time
	now       func() time.Time
	last      syncer.Summary
	printed   bool
}

// NewProgress creates a progress line starting now
func NewProgress() *Progress {
	return &Progress{startTime: time.Now(), now: time.Now}
}

// Update records a run snapshot and redraws the line
func (p *Progress) Update(s syncer.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.last = s
	p.printed = true
	printf(false, "\r%s\r%s", strings.Repeat(" ", 100), p.line())
}

// Done terminates the progress line
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed {
		printf(false, "\n")
	}
}

// Rate returns the average number of committed bookmarks per minute
func (p *Progress) Rate() float64 {
	elapsed := p.now().Sub(p.startTime).Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(p.last.Committed) / elapsed
}

func (p *Progress) line() string {
	line := fmt.Sprintf("%s page %d %s %d archived • %d skipped • %.1f/min",
		Green("[SYNCING]"),
		p.last.Pages,
		Bar(p.last.Committed+p.last.Skipped+p.last.Failed, p.last.Discovered),
		p.last.Committed,
		p.last.Skipped,
		p.Rate(),
	)
	if p.last.Failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", p.last.Failed))
	}
	if p.last.MediaMissing > 0 {
		line += " • " + Yellow(fmt.Sprintf("%d media missing", p.last.MediaMissing))
	}
	return line
}

// Bar renders done out of total as a fixed width bar
func Bar(done, total int) string {
	filled := 0
	if total > 0 {
		filled = done * barWidth / total
	}
	if filled > barWidth {
		filled = barWidth
	}
	return "[" + strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, barWidth-filled) + "]"
}
