// Package progress implements uf2flash's pkg/uf2.ProgressReporter with a
// plain stderr line and an optional bubbletea progress bar, matching the
// Model/Update/View and lipgloss-styling conventions the teacher's chat
// TUI used for its own views.
package progress

import (
	"fmt"
	"io"
	"os"
)

// Plain reports progress as a single overwriting line of text, suitable
// for piping to a log file or running in a non-interactive shell.
type Plain struct {
	out   io.Writer
	total int
	done  int
	label string
}

// NewPlain builds a Plain reporter labeled for the operation it tracks
// (e.g. the board/file name being flashed), writing to out.
func NewPlain(label string, out io.Writer) *Plain {
	if out == nil {
		out = os.Stderr
	}
	return &Plain{out: out, label: label}
}

func (p *Plain) Start(totalBytes int) {
	p.total = totalBytes
	p.done = 0
	fmt.Fprintf(p.out, "%s: 0/%d bytes\n", p.label, p.total)
}

func (p *Plain) Advance(n int) {
	p.done += n
	pct := 0
	if p.total > 0 {
		pct = p.done * 100 / p.total
	}
	fmt.Fprintf(p.out, "\r%s: %d/%d bytes (%d%%)", p.label, p.done, p.total, pct)
}

func (p *Plain) Finish() {
	fmt.Fprintf(p.out, "\r%s: done (%d bytes)\n", p.label, p.done)
}
