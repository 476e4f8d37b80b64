package util

import (
	"fmt"
	"io"
	"sync"
)

// ClearProgress is an escape sequence that clears the current line, so that
// it can be passed to StopWithPrint to erase the progress message.
const ClearProgress = "\r\033[K"

// ProgressPrinter prints a message followed by a completion percentage,
// rewriting the line in place as the percentage changes.
type ProgressPrinter struct {
	out io.Writer
	msg string

	lock    sync.Mutex
	last    int
	stopped bool
}

// NewProgressPrinter returns a printer that writes to `out`.
func NewProgressPrinter(out io.Writer, msg string) *ProgressPrinter {
	return &ProgressPrinter{out: out, msg: msg, last: -1}
}

// Update prints the new percentage. It's a no-op if the whole percentage
// didn't change.
func (pp *ProgressPrinter) Update(percent float64) {
	pp.lock.Lock()
	defer pp.lock.Unlock()

	rounded := int(percent)
	if pp.stopped || rounded == pp.last {
		return
	}
	pp.last = rounded
	fmt.Fprintf(pp.out, "\r%s %3d%%", pp.msg, rounded)
}

// StopWithPrint stops the printer, and prints `msg`.
func (pp *ProgressPrinter) StopWithPrint(msg string) {
	pp.lock.Lock()
	defer pp.lock.Unlock()

	if pp.stopped {
		return
	}
	pp.stopped = true
	fmt.Fprint(pp.out, msg)
}
