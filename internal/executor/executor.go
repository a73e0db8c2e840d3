package executor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandExecutor is an interface for executing system commands
type CommandExecutor interface {
	// Execute runs a command with the given name and arguments
	Execute(name string, args ...string) ([]byte, error)

	// ExecuteInput runs a command feeding input on stdin
	ExecuteInput(input []byte, name string, args ...string) ([]byte, error)

	// LookPath searches for an executable in the directories named by the PATH
	LookPath(file string) (string, error)
}

// CommandError carries the combined output of a failed command verbatim.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, out)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// SystemExecutor implements CommandExecutor using os/exec
type SystemExecutor struct{}

// NewSystemExecutor creates a new SystemExecutor
func NewSystemExecutor() *SystemExecutor {
	return &SystemExecutor{}
}

// Execute runs a command and returns combined output. Stdin stays attached
// to the terminal so sudo can ask for a password.
func (e *SystemExecutor) Execute(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = os.Stdin
	return run(cmd)
}

// ExecuteInput runs a command with input on stdin and returns combined output
func (e *SystemExecutor) ExecuteInput(input []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = bytes.NewReader(input)
	return run(cmd)
}

// LookPath searches for an executable
func (e *SystemExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func run(cmd *exec.Cmd) ([]byte, error) {
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, &CommandError{
			Command: strings.Join(cmd.Args, " "),
			Output:  string(out),
			Err:     err,
		}
	}
	return out, nil
}

// SudoExecutor runs every command through sudo. LookPath is not elevated.
type SudoExecutor struct {
	inner CommandExecutor
}

// NewSudoExecutor wraps inner so that commands run as root
func NewSudoExecutor(inner CommandExecutor) *SudoExecutor {
	return &SudoExecutor{inner: inner}
}

// Execute runs "sudo name args..."
func (s *SudoExecutor) Execute(name string, args ...string) ([]byte, error) {
	return s.inner.Execute("sudo", append([]string{name}, args...)...)
}

// ExecuteInput runs "sudo name args..." with input on stdin
func (s *SudoExecutor) ExecuteInput(input []byte, name string, args ...string) ([]byte, error) {
	return s.inner.ExecuteInput(input, "sudo", append([]string{name}, args...)...)
}

// LookPath delegates to the wrapped executor
func (s *SudoExecutor) LookPath(file string) (string, error) {
	return s.inner.LookPath(file)
}

// MockExecutor is a mock implementation for testing
type MockExecutor struct {
	ExecuteFunc  func(name string, args ...string) ([]byte, error)
	LookPathFunc func(file string) (string, error)
	Calls        []CommandCall
}

// CommandCall records a command execution for verification
type CommandCall struct {
	Name  string
	Args  []string
	Input []byte
}

// String returns the command line of the call
func (c CommandCall) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Execute calls the mock function
func (m *MockExecutor) Execute(name string, args ...string) ([]byte, error) {
	m.Calls = append(m.Calls, CommandCall{Name: name, Args: args})
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(name, args...)
	}
	return []byte(""), nil
}

// ExecuteInput records the input and calls the mock function
func (m *MockExecutor) ExecuteInput(input []byte, name string, args ...string) ([]byte, error) {
	m.Calls = append(m.Calls, CommandCall{Name: name, Args: args, Input: input})
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(name, args...)
	}
	return []byte(""), nil
}

// LookPath calls the mock function
func (m *MockExecutor) LookPath(file string) (string, error) {
	if m.LookPathFunc != nil {
		return m.LookPathFunc(file)
	}
	return "/usr/bin/" + file, nil
}

// CommandLines returns every recorded call as a command line
func (m *MockExecutor) CommandLines() []string {
	lines := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		lines = append(lines, c.String())
	}
	return lines
}

// Count returns how many recorded calls start with prefix
func (m *MockExecutor) Count(prefix string) int {
	n := 0
	for _, line := range m.CommandLines() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}
