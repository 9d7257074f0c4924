package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Compile-time interface check.
var _ Session = (*LocalShell)(nil)

// LocalShell is a persistent shell process (normally su) that executes one
// command at a time. Command output is framed by a per-command end marker
// written to both stdout and stderr, so the process is reused for the
// lifetime of the server instead of spawning su for every read.
type LocalShell struct {
	binary string
	args   []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *bufio.Reader
	seq    uint64
	closed bool
}

// NewLocalShell starts binary with args and returns a LocalShell bound to
// it. On a rooted device binary is "su"; "sh" is accepted for development
// on non-rooted hosts.
func NewLocalShell(binary string, args ...string) (*LocalShell, error) {
	if binary == "" {
		return nil, fmt.Errorf("shell: binary is required")
	}

	cmd := exec.Command(binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("shell: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("shell: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("shell: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("shell: start %s: %w", binary, err)
	}

	return &LocalShell{
		binary: binary,
		args:   args,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		stderr: bufio.NewReader(stderr),
	}, nil
}

// Run writes command to the session and blocks until its end marker has
// been read from both streams. ctx is only checked before dispatch: once a
// command has been written to the shell it runs to completion.
func (s *LocalShell) Run(ctx context.Context, command string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Result{}, ErrShellClosed
	}

	s.seq++
	marker := fmt.Sprintf("__RVK_%d_%d__", os.Getpid(), s.seq)

	// The command runs in a brace group with stdin detached so it cannot
	// consume the framing of later commands.
	script := fmt.Sprintf("{ %s\n} </dev/null; printf '\\n%s %%d\\n' $?; printf '\\n%s\\n' >&2\n",
		command, marker, marker)
	if _, err := io.WriteString(s.stdin, script); err != nil {
		_ = s.closeLocked()
		return Result{}, fmt.Errorf("%w: write: %v", ErrShellClosed, err)
	}

	type stderrResult struct {
		lines []string
		err   error
	}
	errCh := make(chan stderrResult, 1)
	go func() {
		lines, _, err := readUntilMarker(s.stderr, marker)
		errCh <- stderrResult{lines: lines, err: err}
	}()

	stdoutLines, status, outErr := readUntilMarker(s.stdout, marker)
	stderr := <-errCh

	if outErr != nil || stderr.err != nil {
		_ = s.closeLocked()
		if outErr == nil {
			outErr = stderr.err
		}
		return Result{}, fmt.Errorf("%w: read: %v", ErrShellClosed, outErr)
	}

	return Result{
		ExitStatus: status,
		Stdout:     dropFramingLine(stdoutLines),
		Stderr:     dropFramingLine(stderr.lines),
	}, nil
}

// dropFramingLine removes the empty line left by the newline printed before
// each marker when the command's own output already ended with a newline.
func dropFramingLine(lines []string) []string {
	if n := len(lines); n > 0 && lines[n-1] == "" {
		return lines[:n-1]
	}
	return lines
}

// readUntilMarker collects lines from r until a line starting with marker.
// The integer following the marker, if any, is returned as the status.
func readUntilMarker(r *bufio.Reader, marker string) ([]string, int, error) {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return lines, -1, err
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, marker) {
			rest := strings.TrimSpace(strings.TrimPrefix(line, marker))
			if rest == "" {
				return lines, 0, nil
			}
			status, convErr := strconv.Atoi(rest)
			if convErr != nil {
				return lines, -1, fmt.Errorf("malformed status %q", rest)
			}
			return lines, status, nil
		}
		lines = append(lines, line)
	}
}

// IsRoot reports whether the session runs with uid 0.
func (s *LocalShell) IsRoot(ctx context.Context) bool {
	res, err := s.Run(ctx, "id -u")
	if err != nil || !res.Success() {
		return false
	}
	return res.Output() == "0"
}

// Close terminates the shell process. It is safe to call more than once.
func (s *LocalShell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

// closeLocked tears the session down. The caller must hold s.mu.
func (s *LocalShell) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true

	_, _ = io.WriteString(s.stdin, "exit\n")
	_ = s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		// A killed or non-zero exit on teardown is expected.
		if _, ok := err.(*exec.ExitError); !ok {
			return fmt.Errorf("shell: wait %s: %w", s.binary, err)
		}
	}
	return nil
}
