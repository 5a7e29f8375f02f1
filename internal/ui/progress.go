// Package ui provides terminal-aware progress rendering for the CLI.
// Progress bars render only on interactive terminals; piped output gets
// nothing, keeping scripts and CI logs clean.
package ui

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewProgress creates a progress bar writing to w. On non-terminal
// writers the bar is invisible but still accepts updates, so callers
// never need to branch.
func NewProgress(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetVisibility(IsTerminal(w)),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// ProgressFunc adapts a progress bar to the builder's callback shape.
// The bar is created lazily on the first call, when the total is known.
// Safe for concurrent callers.
func ProgressFunc(w io.Writer, description string) func(done, total int, path string) {
	var mu sync.Mutex
	var bar *progressbar.ProgressBar
	return func(done, total int, path string) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = NewProgress(w, total, description)
		}
		_ = bar.Set(done)
		if done >= total {
			_ = bar.Finish()
		}
	}
}
