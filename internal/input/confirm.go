package input

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ConfirmFunc answers a yes/no question.
type ConfirmFunc func(question string) bool

// Always returns a ConfirmFunc that gives answer without asking.
func Always(answer bool) ConfirmFunc {
	return func(string) bool { return answer }
}

// Prompt returns a ConfirmFunc that writes "question [y/N]: " to w and
// reads one line from r. Only "y" or "yes" (any case) count as yes; a read
// error, including EOF, counts as no.
func Prompt(r Reader, w io.Writer) ConfirmFunc {
	return func(question string) bool {
		fmt.Fprintf(w, "%s [y/N]: ", question)
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(w)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Confirmer picks the decision source for a run: assumeYes answers every
// question with yes, a terminal on stdin is prompted, and anything else
// (pipes, cron, CI) answers no so an unattended run never proceeds past a
// warning it could not show to anyone.
func Confirmer(assumeYes bool, w io.Writer) ConfirmFunc {
	if assumeYes {
		return Always(true)
	}
	if !IsTerminal(os.Stdin) {
		return Always(false)
	}
	return Prompt(NewStdinReader(), w)
}
