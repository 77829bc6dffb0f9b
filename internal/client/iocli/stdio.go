package iocli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio реализует IO поверх произвольных reader/writer
type Stdio struct {
	out    io.Writer
	reader *bufio.Reader
	// fd терминала для ввода без эха, -1 если вход не терминал
	fd int
}

var _ IO = (*Stdio)(nil)

// NewStdio returns an IO bound to os.Stdin and os.Stdout
func NewStdio() IO {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		fd = -1
	}
	return &Stdio{
		out:    os.Stdout,
		reader: bufio.NewReader(os.Stdin),
		fd:     fd,
	}
}

// New returns an IO reading lines from in and writing to out.
// Passwords are read as plain lines.
func New(in io.Reader, out io.Writer) IO {
	return &Stdio{
		out:    out,
		reader: bufio.NewReader(in),
		fd:     -1,
	}
}

func (s *Stdio) Println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	return s.readLine()
}

func (s *Stdio) ReadPassword(prompt string) (string, error) {
	s.Printf("%s", prompt)
	if s.fd < 0 {
		return s.readLine()
	}

	pwBytes, err := term.ReadPassword(s.fd)
	s.Println("")
	if err != nil {
		return "", err
	}
	return string(pwBytes), nil
}

// readLine читает строку; последняя строка без перевода тоже засчитывается
func (s *Stdio) readLine() (string, error) {
	input, err := s.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
