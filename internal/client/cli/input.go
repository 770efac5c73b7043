package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// prompter reads answers from the command input. Passwords are read without
// echo when the input is a terminal.
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, reader: bufio.NewReader(in), out: out}
}

// Line prints label and reads one line. Only the line ending is removed, so
// typed-back confirmations are compared exactly as entered. A final line
// without a newline is accepted.
func (p *prompter) Line(label string) (string, error) {
	if _, err := fmt.Fprint(p.out, label+": "); err != nil {
		return "", err
	}
	return p.readLine()
}

// Password reads a secret without echo when the input is a terminal.
func (p *prompter) Password(label string) (string, error) {
	if _, err := fmt.Fprint(p.out, label+": "); err != nil {
		return "", err
	}
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}
	return p.readLine()
}

func (p *prompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
