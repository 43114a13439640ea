package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/maxpowa/actibook-downloader/internal/download"
	"github.com/mattn/go-isatty"
)

// printer renders progress events on a terminal or a plain stream.
type printer struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
	fancy   bool
}

func newPrinter(w io.Writer, verbose bool) *printer {
	return &printer{w: w, verbose: verbose, fancy: isTerminal(w)}
}

// Event prints one progress event. It is safe for concurrent use.
func (p *printer) Event(event download.ProgressEvent) {
	if event.Level == download.LevelVerbose && !p.verbose {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.prefix(event.Level)+event.Message)
}

func (p *printer) prefix(level download.ProgressLevel) string {
	if !p.fancy {
		return "[" + level.String() + "] "
	}
	switch level {
	case download.LevelError:
		return "❌ "
	case download.LevelWarning:
		return "⚠️  "
	case download.LevelSuccess:
		return "✅ "
	case download.LevelInfo:
		return "ℹ️  "
	default:
		return "   "
	}
}

// Header prints the program banner.
func (p *printer) Header(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, title)
	fmt.Fprintln(p.w, p.rule())
	fmt.Fprintln(p.w)
}

// Rule prints a separator line.
func (p *printer) Rule() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.rule())
}

func (p *printer) rule() string {
	if p.fancy {
		return strings.Repeat("━", 40)
	}
	return strings.Repeat("-", 40)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
