package ui

import (
	"io"
	"os"
	"time"

	"github.com/desertthunder/flacsync/internal/services"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Progress draws one byte progress bar per transfer.
type Progress struct {
	w       io.Writer
	enabled bool
}

// NewProgress draws to f only when f is a terminal.
func NewProgress(f *os.File) *Progress {
	fd := f.Fd()
	return &Progress{w: f, enabled: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)}
}

// NewProgressWriter draws to w when enabled is true.
func NewProgressWriter(w io.Writer, enabled bool) *Progress {
	return &Progress{w: w, enabled: enabled}
}

// Enabled reports whether bars are drawn.
func (p *Progress) Enabled() bool { return p != nil && p.enabled }

// Track starts a bar labelled label. The returned callback feeds it and the func closes it.
// When disabled both are no-ops.
func (p *Progress) Track(label string) (services.ProgressFunc, func()) {
	if !p.Enabled() {
		return nil, func() {}
	}

	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(label),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	sized := false
	update := func(written, total int64) {
		if !sized && total > 0 {
			bar.ChangeMax64(total)
			sized = true
		}
		_ = bar.Set64(written)
	}
	return update, func() { _ = bar.Finish() }
}
