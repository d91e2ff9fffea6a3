package ports

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// CommandSpec describes a single external command invocation.
type CommandSpec struct {
	Path  string
	Args  []string
	Dir   string
	Env   []string // appended to the inherited environment
	Stdin string
}

// CommandResult carries the captured outcome of a finished command.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// LineHandler receives one output line without its trailing newline.
type LineHandler func(line string)

// CommandRunner runs external CLI commands. A nonzero exit is not an
// error at this layer; callers inspect ExitCode.
type CommandRunner interface {
	Run(ctx context.Context, spec CommandSpec) (CommandResult, error)
	RunStreaming(ctx context.Context, spec CommandSpec, onStdout, onStderr LineHandler) (CommandResult, error)
}

// ExecRunner implements CommandRunner on os/exec. Child processes get
// their own process group so cancellation kills the whole tree.
type ExecRunner struct{}

// Exec returns the real command runner.
func Exec() CommandRunner { return ExecRunner{} }

func (ExecRunner) Run(ctx context.Context, spec CommandSpec) (CommandResult, error) {
	return runCommand(ctx, spec, nil, nil)
}

func (ExecRunner) RunStreaming(ctx context.Context, spec CommandSpec, onStdout, onStderr LineHandler) (CommandResult, error) {
	return runCommand(ctx, spec, onStdout, onStderr)
}

func runCommand(ctx context.Context, spec CommandSpec, onStdout, onStderr LineHandler) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	if spec.Stdin != "" {
		cmd.Stdin = strings.NewReader(spec.Stdin)
	}
	configureProcessGroup(cmd)
	cmd.Cancel = func() error { return terminateProcessGroup(cmd) }
	cmd.WaitDelay = 5 * time.Second

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return CommandResult{ExitCode: -1}, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return CommandResult{ExitCode: -1}, err
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return CommandResult{ExitCode: -1}, err
	}

	var stdout, stderr strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdoutPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			stdout.WriteString(line)
			stdout.WriteByte('\n')
			if onStdout != nil {
				onStdout(line)
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderrPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			stderr.WriteString(line)
			stderr.WriteByte('\n')
			if onStderr != nil {
				onStderr(line)
			}
		}
	}()
	wg.Wait()

	waitErr := cmd.Wait()
	result := CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
		Duration: time.Since(start),
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			// Context death takes precedence over the exit status.
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			return result, nil
		}
		result.ExitCode = -1
		return result, waitErr
	}
	return result, nil
}
