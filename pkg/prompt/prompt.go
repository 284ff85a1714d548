// Package prompt collects operator input from the terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrEmptyInput is returned when the operator submits a blank line
var ErrEmptyInput = errors.New("no input provided")

// PinReader supplies the one-time PIN sent by Blink after login
type PinReader interface {
	ReadPIN(ctx context.Context) (string, error)
}

// Terminal reads from a terminal or, when input is not a TTY, from a plain line reader
type Terminal struct {
	in    io.Reader
	lines *bufio.Reader
	out   io.Writer
	fd    int

	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)
}

// NewTerminal returns a Terminal bound to the process stdin and stdout
func NewTerminal() *Terminal {
	return &Terminal{
		in:           os.Stdin,
		out:          os.Stdout,
		fd:           int(os.Stdin.Fd()),
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
	}
}

// NewReader returns a Terminal that line-reads from in and prompts on out
func NewReader(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:           in,
		out:          out,
		fd:           -1,
		isTerminal:   func(int) bool { return false },
		readPassword: term.ReadPassword,
	}
}

// ReadPIN prompts for the verification PIN. Input is hidden on a TTY.
func (t *Terminal) ReadPIN(ctx context.Context) (string, error) {
	pin, err := t.ReadSecret(ctx, "Input PIN: ")
	if err != nil {
		return "", fmt.Errorf("failed to read PIN: %w", err)
	}
	return pin, nil
}

// ReadSecret prints label and reads one line without echo when possible
func (t *Terminal) ReadSecret(ctx context.Context, label string) (string, error) {
	fmt.Fprint(t.out, label)

	if t.isTerminal(t.fd) {
		return t.await(ctx, func() (string, error) {
			b, err := t.readPassword(t.fd)
			fmt.Fprintln(t.out)
			if err != nil {
				return "", err
			}
			return string(b), nil
		})
	}
	return t.await(ctx, t.readLine)
}

// ReadLine prints label and reads one echoed line
func (t *Terminal) ReadLine(ctx context.Context, label string) (string, error) {
	fmt.Fprint(t.out, label)
	return t.await(ctx, t.readLine)
}

func (t *Terminal) readLine() (string, error) {
	if t.lines == nil {
		t.lines = bufio.NewReader(t.in)
	}
	line, err := t.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return line, nil
}

// await runs read in the background so a cancelled context unblocks the caller.
// The abandoned read finishes whenever the terminal delivers a line.
func (t *Terminal) await(ctx context.Context, read func() (string, error)) (string, error) {
	type result struct {
		value string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := read()
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		v := strings.TrimSpace(r.value)
		if v == "" {
			return "", ErrEmptyInput
		}
		return v, nil
	}
}

// Static is a PinReader that always returns the same PIN
type Static string

// ReadPIN implements PinReader
func (s Static) ReadPIN(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == "" {
		return "", ErrEmptyInput
	}
	return string(s), nil
}
