package input

import (
	"io"
	"strings"
	"testing"
)

func TestStringReader_ReadString(t *testing.T) {
	reader := NewStringReader("first\n", "second\n")

	for _, want := range []string{"first\n", "second\n"} {
		got, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("ReadString failed: %v", err)
		}
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}

	if _, err := reader.ReadString('\n'); err != io.EOF {
		t.Errorf("expected io.EOF after inputs are consumed, got %v", err)
	}
}

func TestLineReader_ReadString(t *testing.T) {
	reader := NewLineReader(strings.NewReader("yes\nno"))

	line, err := reader.ReadString('\n')
	if err != nil || line != "yes\n" {
		t.Fatalf("expected \"yes\\n\", got %q (%v)", line, err)
	}

	line, err = reader.ReadString('\n')
	if err != io.EOF || line != "no" {
		t.Errorf("expected trailing \"no\" with EOF, got %q (%v)", line, err)
	}
}

func TestLineReader_ImplementsReader(t *testing.T) {
	var _ Reader = NewStdinReader()
	var _ Reader = NewStringReader()
}
