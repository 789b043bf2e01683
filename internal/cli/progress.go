package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/davidthor/smartcfg/pkg/transfer"
)

const progressWidth = 24

// ProgressBar renders transfer progress for one upload or download.
// In interactive mode the bar is redrawn in place; otherwise only the
// final line is written.
type ProgressBar struct {
	mu          sync.Mutex
	writer      io.Writer
	label       string
	interactive bool
	startTime   time.Time
	percent     int
	drawn       bool
}

// NewProgressBar creates a progress bar labelled label.
func NewProgressBar(w io.Writer, label string, interactive bool) *ProgressBar {
	return &ProgressBar{
		writer:      w,
		label:       label,
		interactive: interactive,
		startTime:   time.Now(),
		percent:     -1,
	}
}

// newCommandProgress writes to the command's stderr, redrawing only when it
// is a terminal.
func newCommandProgress(cmd *cobra.Command, label string) *ProgressBar {
	w := cmd.ErrOrStderr()
	f, ok := w.(*os.File)
	return NewProgressBar(w, label, ok && term.IsTerminal(int(f.Fd())))
}

// Func returns the callback to hand to a transfer.
func (p *ProgressBar) Func() transfer.ProgressFunc {
	return p.Update
}

// Update records a completion fraction in [0, 1].
func (p *ProgressBar) Update(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	percent := clampPercent(fraction)
	if percent == p.percent {
		return
	}
	p.percent = percent

	if p.interactive {
		fmt.Fprintf(p.writer, "\r%s", p.render(percent))
		p.drawn = true
	}
}

// Done finishes the bar with a status line.
func (p *ProgressBar) Done(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.drawn {
		fmt.Fprint(p.writer, "\r\033[K")
	}

	elapsed := time.Since(p.startTime).Round(time.Millisecond)
	if err != nil {
		fmt.Fprintf(p.writer, "%s %s failed after %s\n", statusIcon(false), p.label, elapsed)
		return
	}
	fmt.Fprintf(p.writer, "%s %s (%s)\n", statusIcon(true), p.label, elapsed)
}

func (p *ProgressBar) render(percent int) string {
	filled := percent * progressWidth / 100
	return fmt.Sprintf("%s [%s%s] %3d%%",
		p.label,
		strings.Repeat("#", filled),
		strings.Repeat(".", progressWidth-filled),
		percent)
}

func clampPercent(fraction float64) int {
	switch {
	case fraction < 0:
		return 0
	case fraction > 1:
		return 100
	}
	return int(fraction * 100)
}

func statusIcon(ok bool) string {
	if ok {
		return "●"
	}
	return "✗"
}
