// Package local implements the reference executor plugin: long-running
// OS processes launched with os/exec, in the same process as the engine.
// It is the end-to-end exercise of every executor.Executor operation,
// grounded on burstgridgo's internal/localexecutor placeholder and the
// worker-pool loop in internal/dag/executor.go, generalized from
// "run one DAG step synchronously" to "start, then poll independently".
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/relaygrid/relaygridgo/internal/ctxlog"
	"github.com/relaygrid/relaygridgo/internal/executor"
	"github.com/relaygrid/relaygridgo/internal/model"
	"github.com/relaygrid/relaygridgo/internal/planner"
)

var _ executor.Executor = (*Executor)(nil)

// StartParams is the decoded form of a node's Build.RunParameters: what
// command this plugin should launch.
type StartParams struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	Dir     string   `json:"dir,omitempty"`
	Env     []string `json:"env,omitempty"`
}

// bookState is the decoded form of the RunBookkeeping this plugin hands
// back from Start: enough to find the in-memory process record again, and
// enough to survive a round trip through Serialize/Deserialize even
// though the process itself cannot survive an engine restart.
type bookState struct {
	RunID     string    `json:"run_id"`
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	StartedAt time.Time `json:"started_at"`
}

type runRecord struct {
	cmd      *exec.Cmd
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	mu       sync.Mutex
	done     bool
	exitErr  error
	finished time.Time
}

// Executor is the concrete local-process executor.Executor.
type Executor struct {
	mu   sync.Mutex
	runs map[string]*runRecord
}

// New creates an empty local executor.
func New() *Executor {
	return &Executor{runs: make(map[string]*runRecord)}
}

func (e *Executor) record(runID string) (*runRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[runID]
	return r, ok
}

func (e *Executor) Start(ctx context.Context, runParameters []byte) planner.Result {
	logger := ctxlog.FromContext(ctx)

	var p StartParams
	if err := json.Unmarshal(runParameters, &p); err != nil {
		return planner.FatalError(fmt.Sprintf("local executor: invalid run parameters: %v", err), nil)
	}
	if p.Command == "" {
		return planner.FatalError("local executor: empty command", nil)
	}

	cmd := exec.Command(p.Command, p.Args...)
	cmd.Dir = p.Dir
	cmd.Env = p.Env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	rec := &runRecord{cmd: cmd}
	cmd.Stdout = &rec.stdout
	cmd.Stderr = &rec.stderr

	if err := cmd.Start(); err != nil {
		return planner.FatalError(fmt.Sprintf("local executor: failed to start %q: %v", p.Command, err), nil)
	}

	runID := uuid.NewString()
	e.mu.Lock()
	e.runs[runID] = rec
	e.mu.Unlock()

	go func() {
		err := cmd.Wait()
		rec.mu.Lock()
		rec.done = true
		rec.exitErr = err
		rec.finished = time.Now()
		rec.mu.Unlock()
	}()

	logger.Debug("local executor started process.", "runID", runID, "pid", cmd.Process.Pid, "command", p.Command)

	book := bookState{RunID: runID, PID: cmd.Process.Pid, Command: p.Command, StartedAt: time.Now()}
	blob, err := json.Marshal(book)
	if err != nil {
		return planner.FatalError(fmt.Sprintf("local executor: failed to marshal bookkeeping: %v", err), nil)
	}
	return planner.OkBook(&model.RunBookkeeping{PluginName: "local", RunParameters: blob})
}

func (e *Executor) decode(book *model.RunBookkeeping) (bookState, error) {
	var b bookState
	if book == nil {
		return b, fmt.Errorf("local executor: nil bookkeeping")
	}
	err := json.Unmarshal(book.RunParameters, &b)
	return b, err
}

func (e *Executor) Check(ctx context.Context, book *model.RunBookkeeping) planner.Result {
	b, err := e.decode(book)
	if err != nil {
		return planner.FatalError(err.Error(), book)
	}
	rec, ok := e.record(b.RunID)
	if !ok {
		return planner.FatalError(fmt.Sprintf("local executor: unknown run %s (engine restart?)", b.RunID), book)
	}

	rec.mu.Lock()
	done, exitErr := rec.done, rec.exitErr
	rec.mu.Unlock()

	if !done {
		return planner.Result{Severity: planner.OK, StillRunning: true, Book: book}
	}
	if exitErr != nil {
		return planner.FatalError(fmt.Sprintf("local executor: process exited with error: %v", exitErr), book)
	}
	return planner.Result{Severity: planner.OK, StillRunning: false, Book: book}
}

func (e *Executor) Kill(ctx context.Context, book *model.RunBookkeeping) planner.Result {
	logger := ctxlog.FromContext(ctx)

	b, err := e.decode(book)
	if err != nil {
		return planner.FatalError(err.Error(), book)
	}
	rec, ok := e.record(b.RunID)
	if !ok {
		// Already gone — nothing left to kill is a success, not a fatal.
		return planner.OkBook(book)
	}

	rec.mu.Lock()
	done := rec.done
	rec.mu.Unlock()
	if done {
		return planner.OkBook(book)
	}

	logger.Debug("local executor killing process group.", "runID", b.RunID, "pid", b.PID)
	if err := syscall.Kill(-b.PID, syscall.SIGTERM); err != nil {
		return planner.RecoverableError(fmt.Sprintf("local executor: kill signal failed: %v", err), book)
	}
	return planner.OkBook(book)
}

func (e *Executor) Serialize(book *model.RunBookkeeping) ([]byte, error) {
	return json.Marshal(book)
}

func (e *Executor) Deserialize(data []byte) (*model.RunBookkeeping, error) {
	var book model.RunBookkeeping
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("local executor: deserialize bookkeeping: %w", err)
	}
	return &book, nil
}

func (e *Executor) Query(ctx context.Context, book *model.RunBookkeeping, queryName string) (string, error) {
	b, err := e.decode(book)
	if err != nil {
		return "", err
	}
	rec, ok := e.record(b.RunID)
	if !ok {
		return "", fmt.Errorf("local executor: unknown run %s", b.RunID)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	switch queryName {
	case "stdout":
		return rec.stdout.String(), nil
	case "stderr":
		return rec.stderr.String(), nil
	case "pid":
		return fmt.Sprintf("%d", b.PID), nil
	default:
		return "", fmt.Errorf("local executor: unknown query %q", queryName)
	}
}

func (e *Executor) AvailableQueries(book *model.RunBookkeeping) []string {
	return []string{"stdout", "stderr", "pid"}
}
