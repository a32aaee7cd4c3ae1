package terminal

import (
	"fmt"

	"golang.org/x/term"
)

// RawMode switches the input stream into unbuffered, non-echoing mode.
// Acquire returns the func that restores the previous mode; callers defer it.
type RawMode interface {
	Acquire() (release func(), err error)
}

type ttyRawMode struct {
	fd int
}

type noopRawMode struct{}

// NewRawMode returns a RawMode for fd. When fd is not a terminal, e.g. input is
// piped, there is no mode to change and Acquire is a no-op.
func NewRawMode(fd int) RawMode {
	if !term.IsTerminal(fd) {
		return noopRawMode{}
	}
	return ttyRawMode{fd: fd}
}

func (m ttyRawMode) Acquire() (func(), error) {
	state, err := term.MakeRaw(m.fd)
	if err != nil {
		return nil, fmt.Errorf("enter raw mode: %w", err)
	}
	return func() { _ = term.Restore(m.fd, state) }, nil
}

func (noopRawMode) Acquire() (func(), error) {
	return func() {}, nil
}
