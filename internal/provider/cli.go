package provider

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"strings"
	"sync"
	"time"

	"tldr/internal/apperr"
	"tldr/internal/config"
	"tldr/internal/domain"
)

const (
	stderrTailBytes = 2048
	cliWaitDelay    = 2 * time.Second
)

type cliSpec struct {
	binary      string
	args        func(model string) []string
	installHint string
}

var cliSpecs = map[Name]cliSpec{
	ClaudeCode: {
		binary: "claude",
		args: func(model string) []string {
			args := []string{"-p", "--output-format", "text"}
			if model != "" {
				args = append(args, "--model", model)
			}
			return args
		},
		installHint: "install it with `npm install -g @anthropic-ai/claude-code`",
	},
	Codex: {
		binary: "codex",
		args: func(model string) []string {
			args := []string{"exec", "--skip-git-repo-check"}
			if model != "" {
				args = append(args, "--model", model)
			}
			return append(args, "-")
		},
		installHint: "install it with `npm install -g @openai/codex`",
	},
}

// cliBackend runs an agent CLI with the prompt on stdin and streams its
// stdout line by line.
type cliBackend struct {
	name    Name
	binary  string
	args    []string
	hint    string
	timeout time.Duration
}

func newCLI(name Name, cfg config.Provider, o options) *cliBackend {
	spec := cliSpecs[name]

	return &cliBackend{
		name:    name,
		binary:  cmp.Or(o.binary, spec.binary),
		args:    spec.args(cfg.Model),
		hint:    spec.installHint,
		timeout: cmp.Or(cfg.Timeout, config.DefaultCLITimeout),
	}
}

func (b *cliBackend) stream(ctx context.Context, req *request, emit func(string)) error {
	source := string(b.name)

	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, b.binary, b.args...) //nolint:gosec
	cmd.Stdin = strings.NewReader(cliPrompt(req))
	cmd.WaitDelay = cliWaitDelay

	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr

	// Stdout goes through an io.Pipe so that Wait, bounded by WaitDelay,
	// ends the read loop even when a grandchild keeps the OS pipe open.
	stdout, stdoutW := io.Pipe()
	cmd.Stdout = stdoutW

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return apperr.Wrap(source, apperr.CodeNotFound,
				fmt.Sprintf("%s CLI not found, %s", b.binary, b.hint), err)
		}
		return apperr.Wrap(source, apperr.CodeUnknown, fmt.Sprintf("start %s", b.binary), err)
	}

	waitDone := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = stdoutW.Close()
		waitDone <- err
	}()

	var readErr error
	reader := bufio.NewReader(stdout)
	for {
		line, err := reader.ReadString('\n')
		emit(line)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
	}

	waitErr := <-waitDone

	switch {
	case ctx.Err() != nil:
		return apperr.Aborted(ctx.Err())
	case runCtx.Err() != nil:
		return apperr.New(source, apperr.CodeTimeout,
			fmt.Sprintf("%s did not finish within %s", b.binary, b.timeout))
	case waitErr != nil:
		return apperr.Wrap(source, apperr.CodeUnknown, exitMessage(b.binary, waitErr, stderr.String()), waitErr)
	case readErr != nil:
		return apperr.Wrap(source, apperr.CodeUnknown, fmt.Sprintf("read %s output", b.binary), readErr)
	}

	return nil
}

func exitMessage(binary string, err error, stderr string) string {
	msg := fmt.Sprintf("%s failed: %v", binary, err)

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg = fmt.Sprintf("%s exited with status %d", binary, exitErr.ExitCode())
	}

	if tail := strings.TrimSpace(stderr); tail != "" {
		msg += ": " + tail
	}

	return msg
}

// cliPrompt flattens the conversation into one prompt. CLIs read images from
// disk, so only the path is passed.
func cliPrompt(req *request) string {
	var sb strings.Builder

	if req.system != "" {
		sb.WriteString(req.system)
		sb.WriteString("\n\n")
	}

	if req.image != nil && req.image.FilePath != "" {
		fmt.Fprintf(&sb, "Read the image at %s and use it as the content to work on.\n\n", req.image.FilePath)
	}

	if len(req.messages) == 1 {
		sb.WriteString(req.messages[0].Content)
		return sb.String()
	}

	for i, msg := range req.messages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		role := "User"
		if msg.Role == domain.RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&sb, "%s: %s", role, msg.Content)
	}

	return sb.String()
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}

	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return string(t.buf)
}
