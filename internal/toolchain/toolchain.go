// Package toolchain probes for the external native-build tool before any
// build work starts. The chosen executable is returned as a value and
// threaded through the later stages explicitly; nothing here mutates the
// process environment.
package toolchain

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrNotFound reports that an executable is not present in PATH.
var ErrNotFound = errors.New("executable not found in PATH")

// ExitError reports that a probed tool was found but its no-op query exited
// non-zero. The tool's own output is preserved for diagnostics.
type ExitError struct {
	Tool   string
	Output []byte
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with an error: %v", e.Tool, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Tool is a usable external executable, as chosen by a probe.
type Tool struct {
	Name string
}

// Probe classifies an invocation of name into one of three outcomes:
// not found (ErrNotFound), exited non-zero (*ExitError), or nil on success.
func Probe(name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return &ExitError{Tool: name, Output: out, Err: err}
	}
	return nil
}

// cmake candidates, in preference order. RHEL-family systems ship the
// modern cmake as cmake3.
var cmakeCandidates = []string{"cmake3", "cmake"}

// FindCMake locates a usable cmake executable by running a version query
// against each candidate name. Both candidates failing halts the whole
// build: the native build invoker has no fallback path.
func FindCMake() (Tool, error) {
	for _, name := range cmakeCandidates {
		if Probe(name, "--version") == nil {
			return Tool{Name: name}, nil
		}
	}
	return Tool{}, fmt.Errorf("missing dependency: cmake: %w", ErrNotFound)
}
