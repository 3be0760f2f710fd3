package iocli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio работает с терминалом. Если stdin не терминал (pipe, CI),
// пароль читается обычной строкой.
type Stdio struct {
	in    *bufio.Reader
	out   io.Writer
	inFd  int
	isTTY func(fd int) bool
}

func NewStdio() IO {
	return newStdio(os.Stdin, os.Stdout)
}

func newStdio(in *os.File, out io.Writer) *Stdio {
	return &Stdio{
		in:    bufio.NewReader(in),
		out:   out,
		inFd:  int(in.Fd()),
		isTTY: term.IsTerminal,
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
	if !s.isTTY(s.inFd) {
		return s.readLine()
	}

	pwBytes, err := term.ReadPassword(s.inFd)
	s.Println("")
	if err != nil {
		return "", err
	}
	return string(pwBytes), nil
}

func (s *Stdio) readLine() (string, error) {
	input, err := s.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
