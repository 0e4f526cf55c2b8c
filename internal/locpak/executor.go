package locpak

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Executor provides a consistent interface for executing external commands,
// isolating children in their own process group so cancellation can reap the
// whole tree.
type Executor struct {
	Context     context.Context // The context to use for cancellation
	Interactive bool            // Interactive indicates whether the command may prompt the user
}

func NewExecutor(ctx context.Context) *Executor {
	return &Executor{Context: ctx}
}

// InvocationResult captures one finished external command: what ran, what it
// printed, how it exited, and how long it took. Callers inspect the outcome
// instead of assuming success.
type InvocationResult struct {
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

func (r *InvocationResult) Failed() bool {
	return r.ExitCode != 0
}

// Combined returns stdout followed by stderr, for callers that only care
// about "what the tool said".
func (r *InvocationResult) Combined() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + r.Stderr
}

// Run executes the given command attached to the default stdio streams.
// It wires up stdio, isolates the child in its own process group, and kills
// the group when the context is cancelled.
func (e *Executor) Run(cmd *exec.Cmd) error {
	// --- Phase 0: wire up stdio ---
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if len(cmd.Env) == 0 {
		cmd.Env = os.Environ()
	}

	// --- Phase 1: isolate process group for context-based cleanup ---
	if !e.Interactive {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	// --- Phase 2: start and watch for cancel ---
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start command: %w", err)
	}

	if !e.Interactive {
		pgid := cmd.Process.Pid

		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-e.Context.Done():
				syscall.Kill(-pgid, syscall.SIGKILL)
			case <-done:
			}
		}()
	}

	// --- Phase 3: wait and return ---
	if waitErr := cmd.Wait(); waitErr != nil {
		if e.Context.Err() != nil {
			time.Sleep(100 * time.Millisecond)
			return fmt.Errorf("command aborted: %v", e.Context.Err())
		}
		return waitErr
	}
	return nil
}

// Capture runs the command with stdout/stderr buffered and returns the
// result. A non-zero exit is reported through the result, not the error;
// the error is reserved for failures to run at all (and cancellation).
func (e *Executor) Capture(cmd *exec.Cmd) (*InvocationResult, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(cmd.Env) == 0 {
		cmd.Env = os.Environ()
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	pgid := cmd.Process.Pid
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	select {
	case <-e.Context.Done():
		syscall.Kill(-pgid, syscall.SIGKILL)
		<-done
		return nil, fmt.Errorf("command aborted: %v", e.Context.Err())
	case waitErr = <-done:
	}

	res := &InvocationResult{
		Args:     cmd.Args,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("failed to execute command: %w", waitErr)
		}
		res.ExitCode = exitErr.ExitCode()
	}
	return res, nil
}

// Stream runs the command with stdout and stderr merged into a single line
// stream fed to sink in order. Every line reaches the sink; what the sink
// does with them (log, filter, echo) is the caller's business.
func (e *Executor) Stream(cmd *exec.Cmd, sink func(line string)) (*InvocationResult, error) {
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	if len(cmd.Env) == 0 {
		cmd.Env = os.Environ()
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			sink(scanner.Text())
		}
	}()

	pgid := cmd.Process.Pid
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	select {
	case <-e.Context.Done():
		syscall.Kill(-pgid, syscall.SIGKILL)
		<-done
		pw.Close()
		<-scanDone
		return nil, fmt.Errorf("command aborted: %v", e.Context.Err())
	case waitErr = <-done:
	}
	pw.Close()
	<-scanDone

	res := &InvocationResult{
		Args:     cmd.Args,
		Duration: time.Since(start),
	}
	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("failed to execute command: %w", waitErr)
		}
		res.ExitCode = exitErr.ExitCode()
	}
	return res, nil
}
