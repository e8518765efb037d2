// Package shell runs external programs (cdo, WPS and WRF executables).
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Runner executes a program in a working directory and returns its
// combined output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct {
	Env []string // Extra KEY=VALUE entries appended to the environment.
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	//nolint:gosec // G204: program names come from configuration.
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, tail(out.String(), 5))
	}
	return out.Bytes(), nil
}

// tail returns the last n non-empty lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Call is one recorded invocation.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// Recorder is a Runner that records calls instead of executing them.
// Fn, when set, produces the output of each call. Read Calls only after
// the runs have finished.
type Recorder struct {
	Calls []Call
	Fn    func(c Call) ([]byte, error)

	mu sync.Mutex
}

// Run implements Runner.
func (r *Recorder) Run(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	c := Call{Dir: dir, Name: name, Args: append([]string(nil), args...)}
	r.mu.Lock()
	r.Calls = append(r.Calls, c)
	r.mu.Unlock()
	if r.Fn != nil {
		return r.Fn(c)
	}
	return nil, nil
}
