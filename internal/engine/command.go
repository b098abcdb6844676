package engine

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// CommandEngine runs an external decision process and captures its stdout as
// the raw decision text. The user prompt is piped to the process on stdin;
// engines that build their own context simply ignore it.
type CommandEngine struct {
	name    string
	path    string
	args    []string
	dir     string
	env     []string
	timeout time.Duration
}

type CommandOptions struct {
	Name    string
	Path    string
	Args    []string
	Dir     string
	Env     []string // extra KEY=VALUE entries appended to the inherited env
	Timeout time.Duration
}

func NewCommandEngine(opts CommandOptions) *CommandEngine {
	name := opts.Name
	if name == "" {
		name = "command"
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 3 * time.Minute
	}
	return &CommandEngine{
		name:    name,
		path:    opts.Path,
		args:    opts.Args,
		dir:     opts.Dir,
		env:     opts.Env,
		timeout: timeout,
	}
}

func (e *CommandEngine) Name() string { return e.name }

func (e *CommandEngine) Invoke(ctx context.Context, p Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.path, e.args...)
	cmd.Dir = e.dir
	if len(e.env) > 0 {
		cmd.Env = append(cmd.Environ(), e.env...)
	}
	if p.User != "" {
		cmd.Stdin = strings.NewReader(p.User)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		ierr := &InvokeError{
			Engine:   e.name,
			ExitCode: -1,
			Stderr:   stderrExcerpt(stderr.Bytes()),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			ierr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			ierr.Err = ctxErr
		}
		return "", ierr
	}
	return stdout.String(), nil
}
