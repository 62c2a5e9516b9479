// Package log carries console progress reporting for long batch runs,
// layered next to zerolog rather than replacing it.
package log

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// Mode selects how progress is surfaced.
type Mode string

const (
	ModeAuto  Mode = "auto"  // interactive bar on a TTY, plain lines otherwise
	ModePlain Mode = "plain" // one line per completed item
	ModeJSON  Mode = "json"  // no console progress; callers emit structured logs
)

// Resolve maps auto onto plain or interactive depending on whether stderr is
// a terminal.
func Resolve(m Mode) Mode {
	if m != ModeAuto {
		return m
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return ModeAuto
	}
	return ModePlain
}

// Progress tracks completion of a fixed-size batch.
type Progress struct {
	mu      sync.Mutex
	name    string
	total   int
	done    int
	mode    Mode
	started time.Time
}

// NewProgress creates a batch progress tracker.
func NewProgress(name string, total int, mode Mode) *Progress {
	return &Progress{name: name, total: total, mode: Resolve(mode), started: time.Now()}
}

// Step records one completed item with a short status.
func (p *Progress) Step(item, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++

	switch p.mode {
	case ModeJSON:
		return
	case ModePlain:
		fmt.Fprintf(os.Stderr, "%s: %s %s (%d/%d)\n", p.name, item, status, p.done, p.total)
	default:
		fmt.Fprintf(os.Stderr, "\r\033[K%s: %d/%d %s %s", p.name, p.done, p.total, item, status)
	}
}

// Finish terminates the progress line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode == ModeJSON {
		return
	}
	elapsed := time.Since(p.started).Round(time.Millisecond)
	if p.mode == ModeAuto {
		fmt.Fprint(os.Stderr, "\r\033[K")
	}
	fmt.Fprintf(os.Stderr, "%s: %d/%d done in %v\n", p.name, p.done, p.total, elapsed)
}
