// Package terminal implements operator input for create-admin: visible line
// prompts and masked password entry with confirmation.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/create-admin/internal/core/domain"
	"github.com/99minutos/create-admin/internal/metrics"
)

const (
	passwordPrompt = "Password: "
	confirmPrompt  = "Confirm Password: "
	mask           = "*"
	clearLine      = "\r\x1b[2K"
)

// Control characters understood during masked entry.
const (
	keyETX       = 0x03 // Ctrl-C
	keyEOT       = 0x04 // Ctrl-D
	keyBackspace = 0x08
	keyDelete    = 0x7f
)

// Terminal reads from a single buffered input so line prompts and masked
// entry never lose bytes to each other.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	raw RawMode
	log zerolog.Logger
}

func New(in io.Reader, out io.Writer, raw RawMode, log zerolog.Logger) *Terminal {
	return &Terminal{
		in:  bufio.NewReader(in),
		out: out,
		raw: raw,
		log: log,
	}
}

// Stdio returns a Terminal on the process's standard streams.
func Stdio(log zerolog.Logger) *Terminal {
	return New(os.Stdin, os.Stdout, NewRawMode(int(os.Stdin.Fd())), log)
}

// ReadLine prints prompt and returns the next line without its line ending.
// A final line without a newline is returned as-is.
func (t *Terminal) ReadLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := io.WriteString(t.out, prompt); err != nil {
		return "", err
	}
	line, err := t.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadMasked prints prompt and reads a secret, echoing one mask character per
// rune. Backspace removes the last rune and redraws the line. Entry ends at
// LF, CR or EOT; Ctrl-C aborts with domain.ErrInterrupted.
func (t *Terminal) ReadMasked(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := io.WriteString(t.out, prompt); err != nil {
		return "", err
	}

	release, err := t.raw.Acquire()
	if err != nil {
		return "", err
	}
	defer func() {
		release()
		fmt.Fprintln(t.out)
	}()

	var buf []rune
	for {
		r, _, err := t.in.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}

		switch r {
		case '\r':
			t.skipLF()
			return string(buf), nil
		case '\n', keyEOT:
			return string(buf), nil
		case keyETX:
			return "", domain.ErrInterrupted
		case keyBackspace, keyDelete:
			if len(buf) > 0 {
				buf = buf[:len(buf)-1]
			}
			if _, err := io.WriteString(t.out, clearLine+prompt+strings.Repeat(mask, len(buf))); err != nil {
				return "", err
			}
		default:
			buf = append(buf, r)
			if _, err := io.WriteString(t.out, mask); err != nil {
				return "", err
			}
		}
	}
}

// skipLF drops the LF of an already-buffered CRLF pair. It never blocks.
func (t *Terminal) skipLF() {
	if t.in.Buffered() == 0 {
		return
	}
	if b, err := t.in.Peek(1); err == nil && b[0] == '\n' {
		_, _ = t.in.ReadByte()
	}
}

// Acquire returns preset unchanged when it is non-empty. Otherwise it asks for
// the password twice and starts over until both entries match.
func (t *Terminal) Acquire(ctx context.Context, preset string) (string, error) {
	if preset != "" {
		return preset, nil
	}
	for {
		password, err := t.ReadMasked(ctx, passwordPrompt)
		if err != nil {
			return "", err
		}
		confirm, err := t.ReadMasked(ctx, confirmPrompt)
		if err != nil {
			return "", err
		}
		if password == confirm {
			return password, nil
		}

		metrics.PasswordMismatchesTotal.Inc()
		t.log.Error().Err(domain.ErrPasswordMismatch).Msg("Passwords do not match! Please try again.")
	}
}
