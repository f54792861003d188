// Package prompt asks the operator for confirmation on the console.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/gwillem/pickplace/pkg/choreo"
)

// New returns a form-based confirmer when in is a terminal, and a
// line-based one otherwise.
func New(in *os.File, out io.Writer) choreo.Confirmer {
	if term.IsTerminal(int(in.Fd())) {
		return &Form{}
	}
	return NewLine(in, out)
}

// Form confirms with a huh confirm form.
type Form struct{}

func (f *Form) Confirm(ctx context.Context, prompt string) error {
	ok := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(prompt).
				Affirmative("Continue").
				Negative("Abort").
				Value(&ok),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return choreo.ErrAborted
		}
		return fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		return choreo.ErrAborted
	}
	return nil
}

// Line confirms when the operator presses ENTER. Typing q, quit or abort,
// or closing input, cancels.
type Line struct {
	in    *bufio.Reader
	out   io.Writer
	start sync.Once
	lines chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewLine creates a line confirmer.
func NewLine(in io.Reader, out io.Writer) *Line {
	return &Line{
		in:    bufio.NewReader(in),
		out:   out,
		lines: make(chan lineResult),
	}
}

// readLoop hands lines to Confirm so a pending read never blocks
// cancellation. The channel closes after the first read error.
func (l *Line) readLoop() {
	defer close(l.lines)
	for {
		line, err := l.in.ReadString('\n')
		l.lines <- lineResult{line: line, err: err}
		if err != nil {
			return
		}
	}
}

func (l *Line) Confirm(ctx context.Context, prompt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fmt.Fprintf(l.out, "\n%s (ENTER to continue, q to abort) ", prompt)
	l.start.Do(func() { go l.readLoop() })

	var r lineResult
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res, ok := <-l.lines:
		if !ok {
			return choreo.ErrAborted
		}
		r = res
	}

	if r.err != nil && !(errors.Is(r.err, io.EOF) && r.line != "") {
		if errors.Is(r.err, io.EOF) {
			return choreo.ErrAborted
		}
		return fmt.Errorf("read confirmation: %w", r.err)
	}

	switch strings.ToLower(strings.TrimSpace(r.line)) {
	case "q", "quit", "abort":
		return choreo.ErrAborted
	}
	return nil
}
