package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/handiism/cog-bulk/internal/bulk"
	"github.com/handiism/cog-bulk/internal/mapper"
	"github.com/handiism/cog-bulk/internal/plan"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1A3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFE66D"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A8DADC"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C757D"))
)

// printer writes progress events as they arrive. Batch progress is drawn as
// a single bar line that is redrawn in place until the batch completes.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	bar     progress.Model
	inBatch bool
}

func newPrinter(out io.Writer, verbose bool) *printer {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 30
	return &printer{out: out, verbose: verbose, bar: bar}
}

func (p *printer) event(event bulk.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.Batch != nil {
		p.batch(*event.Batch)
		return
	}
	if event.Level == bulk.LevelVerbose && !p.verbose {
		return
	}
	p.endBatch()
	fmt.Fprintln(p.out, render(event.Level, event.Message))
}

func (p *printer) batch(b mapper.Progress) {
	var percent float64
	if b.Total > 0 {
		percent = float64(b.Done) / float64(b.Total)
	}
	fmt.Fprintf(p.out, "\r%-22s %s %d/%d", b.Label, p.bar.ViewAs(percent), b.Done, b.Total)
	p.inBatch = b.Done < b.Total
	if !p.inBatch {
		fmt.Fprintln(p.out)
	}
}

func (p *printer) endBatch() {
	if p.inBatch {
		fmt.Fprintln(p.out)
		p.inBatch = false
	}
}

func render(level bulk.ProgressLevel, msg string) string {
	switch level {
	case bulk.LevelError:
		return errorStyle.Render("✗ " + msg)
	case bulk.LevelWarning:
		return warningStyle.Render("! " + msg)
	case bulk.LevelSuccess:
		return successStyle.Render("✓ " + msg)
	case bulk.LevelInfo:
		return infoStyle.Render("› " + msg)
	default:
		return dimStyle.Render("• " + msg)
	}
}

// summary prints the failures and orphans of a run followed by its tally.
func summary(out io.Writer, failures []error, orphans []plan.Orphan, tally string, elapsed time.Duration) {
	if len(failures) > 0 || len(orphans) > 0 {
		fmt.Fprintln(out)
	}
	for _, err := range failures {
		fmt.Fprintln(out, render(bulk.LevelError, err.Error()))
	}
	for _, o := range orphans {
		fmt.Fprintln(out, render(bulk.LevelWarning, o.String()))
	}

	level := bulk.LevelSuccess
	if len(failures) > 0 || len(orphans) > 0 {
		level = bulk.LevelWarning
	}
	fmt.Fprintln(out, render(level, tally))
	if elapsed > 0 {
		fmt.Fprintln(out, render(bulk.LevelInfo, fmt.Sprintf("Elapsed: %s", elapsed.Round(time.Millisecond))))
	}
}
