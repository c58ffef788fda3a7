// Package proc runs the external processes of the pipeline: the build
// command and the node executable. Output streams are relayed to the run's
// logger line by line and the last lines of stderr are kept for error
// reports.
package proc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/vk/genesisforge/internal/ctxlog"
)

// TailLines is how many trailing stderr lines a failure report keeps.
const TailLines = 20

// Command describes one process invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env is added on top of the current process environment.
	Env map[string]string
	// CaptureStdout collects stdout into Result.Stdout instead of logging it.
	CaptureStdout bool
}

// Result holds what a finished process produced.
type Result struct {
	Stdout []byte
	// StderrTail holds the last TailLines lines of stderr.
	StderrTail string
}

// Error reports a process that could not start or exited unsuccessfully.
type Error struct {
	Command    string
	Err        error
	StderrTail string
}

func (e *Error) Error() string {
	if e.StderrTail == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v\n%s", e.Command, e.Err, e.StderrTail)
}

func (e *Error) Unwrap() error { return e.Err }

// Run starts the command and waits for it. A non-zero exit, a start
// failure or context cancellation is returned as *Error.
func Run(ctx context.Context, c Command) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("command", c.Path)

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = mergeEnv(os.Environ(), c.Env)

	var stdout bytes.Buffer
	tail := newTail(TailLines)
	stderrW := &lineWriter{logger: logger, stream: "stderr", tail: tail}
	cmd.Stderr = stderrW
	if c.CaptureStdout {
		cmd.Stdout = &stdout
	} else {
		cmd.Stdout = &lineWriter{logger: logger, stream: "stdout"}
	}

	logger.Debug("Starting process.", "args", c.Args, "dir", c.Dir)
	err := cmd.Run()
	stderrW.flush()
	if w, ok := cmd.Stdout.(*lineWriter); ok {
		w.flush()
	}

	res := &Result{Stdout: stdout.Bytes(), StderrTail: tail.String()}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return res, &Error{
			Command:    strings.Join(append([]string{c.Path}, c.Args...), " "),
			Err:        err,
			StderrTail: res.StderrTail,
		}
	}
	logger.Debug("Process finished.", "stdout_bytes", len(res.Stdout))
	return res, nil
}

// mergeEnv returns base with the entries of extra added or replaced, in a
// stable order.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[key]; overridden {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}

// lineWriter relays complete lines to the logger at debug level.
type lineWriter struct {
	mu      sync.Mutex
	logger  *slog.Logger
	stream  string
	tail    *tail
	partial []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.emit(string(w.partial[:i]))
		w.partial = w.partial[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.partial) > 0 {
		w.emit(string(w.partial))
		w.partial = nil
	}
}

func (w *lineWriter) emit(line string) {
	line = strings.TrimRight(line, "\r")
	w.logger.Debug("Process output.", "stream", w.stream, "line", line)
	if w.tail != nil {
		w.tail.add(line)
	}
}

// tail is a fixed-size ring of the most recent lines.
type tail struct {
	lines []string
	max   int
}

func newTail(max int) *tail { return &tail{max: max} }

func (t *tail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tail) String() string {
	return strings.Join(t.lines, "\n")
}

var _ io.Writer = (*lineWriter)(nil)
