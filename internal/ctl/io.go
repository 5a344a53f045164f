package ctl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// IO ввод-вывод команд
type IO interface {
	Printf(format string, a ...any)
	ReadPassword(prompt string) (string, error)
}

// Stdio терминальная реализация IO
type Stdio struct {
	in  *os.File
	out io.Writer
}

// NewStdio returns IO bound to os.Stdin and os.Stdout
func NewStdio() *Stdio {
	return &Stdio{in: os.Stdin, out: os.Stdout}
}

func (s *Stdio) Printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}

// ReadPassword читает пароль без эха. Если stdin не терминал
// (пароль передан через pipe), читается первая строка
func (s *Stdio) ReadPassword(prompt string) (string, error) {
	fd := int(s.in.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(s.in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	s.Printf("%s", prompt)
	pw, err := term.ReadPassword(fd)
	s.Printf("\n")
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
