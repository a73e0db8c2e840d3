// Package input supplies the yes/no decisions a provisioning run asks for.
//
// The orchestrator only sees a ConfirmFunc; whether the answer comes from
// a terminal, a --yes flag or a test script is decided here.
package input

import (
	"bufio"
	"io"
	"os"
)

// Reader is an interface for reading user input
type Reader interface {
	ReadString(delim byte) (string, error)
}

// LineReader wraps bufio.Reader around any stream
type LineReader struct {
	reader *bufio.Reader
}

// NewLineReader creates a LineReader over r
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{reader: bufio.NewReader(r)}
}

// NewStdinReader creates a LineReader over os.Stdin
func NewStdinReader() *LineReader {
	return NewLineReader(os.Stdin)
}

// ReadString reads until delimiter
func (r *LineReader) ReadString(delim byte) (string, error) {
	return r.reader.ReadString(delim)
}

// StringReader replays canned answers, one per ReadString call.
// Each input should already end with the delimiter, e.g. "yes\n".
type StringReader struct {
	inputs []string
	index  int
}

// NewStringReader creates a reader from strings
func NewStringReader(inputs ...string) *StringReader {
	return &StringReader{inputs: inputs}
}

// ReadString returns the next answer, or io.EOF once all are consumed.
// delim is ignored.
func (r *StringReader) ReadString(delim byte) (string, error) {
	if r.index >= len(r.inputs) {
		return "", io.EOF
	}
	result := r.inputs[r.index]
	r.index++
	return result, nil
}
