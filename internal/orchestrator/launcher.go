package orchestrator

import (
	"bufio"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"agent-deck/internal/config"
)

// agentDevPort is exported to agent processes via PORT so dev servers they
// start never collide with the dashboard's own listener.
const agentDevPort = "4583"

// LaunchSpec describes one agent process launch.
type LaunchSpec struct {
	Profile     config.ProviderProfile
	Prompt      string
	ProjectPath string
}

// Callbacks receive process I/O and the single terminal event. OnStdout and
// OnStderr are invoked per chunk in per-stream arrival order; exactly one of
// OnExit or OnError fires once both streams are drained.
type Callbacks struct {
	OnStdout func(chunk string)
	OnStderr func(chunk string)
	OnExit   func(exitCode int)
	OnError  func(err error)
}

// ProcessHandle is the supervisor's grip on a live agent process.
type ProcessHandle interface {
	Kill() error
}

// Launcher spawns agent processes and reports their lifecycle events.
type Launcher interface {
	Launch(spec LaunchSpec, cb Callbacks) (ProcessHandle, error)
}

// ExecLauncher runs agent processes via os/exec.
type ExecLauncher struct{}

// NewExecLauncher constructs the production launcher.
func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{}
}

// execHandle wraps the started command for termination signalling.
type execHandle struct {
	cmd *exec.Cmd
}

// Kill sends a termination signal without waiting for exit.
func (h *execHandle) Kill() error {
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}

// Launch starts the provider command in the project directory with the
// prompt delivered per the profile. It returns once the process is spawned;
// the process itself runs to completion asynchronously.
func (l *ExecLauncher) Launch(spec LaunchSpec, cb Callbacks) (ProcessHandle, error) {
	args := BuildArgs(spec.Profile, spec.Prompt)
	cmd := exec.Command(spec.Profile.Command, args...)
	cmd.Dir = spec.ProjectPath
	cmd.Env = append(os.Environ(), "PORT="+agentDevPort)

	var stdin io.WriteCloser
	if !spec.Profile.UsesPromptArg() {
		pipe, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		stdin = pipe
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	if stdin != nil {
		go func() {
			_, _ = io.WriteString(stdin, spec.Prompt)
			_ = stdin.Close()
		}()
	}

	var streams sync.WaitGroup
	streams.Add(2)
	go scanStream(stdout, cb.OnStdout, &streams)
	go scanStream(stderr, cb.OnStderr, &streams)

	go func() {
		streams.Wait()
		err := cmd.Wait()
		if err == nil {
			cb.OnExit(0)
			return
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// ExitCode is -1 when the process was killed by a signal.
			cb.OnExit(exitErr.ExitCode())
			return
		}
		cb.OnError(err)
	}()

	return &execHandle{cmd: cmd}, nil
}

// scanStream forwards one output stream line by line in arrival order.
// Lines have no length cap: agent CLIs emit very long single lines
// (minified diffs, JSON), and an undrained pipe would block the child
// forever. The reader runs until EOF so the exit path always fires.
func scanStream(r io.Reader, emit func(chunk string), wg *sync.WaitGroup) {
	defer wg.Done()

	reader := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if line != "" && emit != nil {
			emit(line)
		}
		if err != nil {
			return
		}
	}
}

// BuildArgs resolves the profile argument vector, substituting the prompt
// placeholder where present.
func BuildArgs(profile config.ProviderProfile, prompt string) []string {
	args := make([]string, 0, len(profile.Args))
	for _, arg := range profile.Args {
		args = append(args, strings.ReplaceAll(arg, config.PromptPlaceholder, prompt))
	}
	return args
}
