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

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// GetSecret prints prompt to w and reads a value without echo. When stdin
// is not a terminal a single line is read from in instead, so keys can be
// piped.
//
// The returned byte slice should be wiped by the caller when no longer needed.
func GetSecret(in io.Reader, w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return nil, err
	}

	fd := int(os.Stdin.Fd())
	if in == os.Stdin && isTerminal(fd) {
		v, err := readPassword(fd)
		fmt.Fprintln(w)
		if err != nil {
			return nil, err
		}
		return v, nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	fmt.Fprintln(w)
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return nil, err
	}
	return []byte(strings.TrimSpace(line)), nil
}
