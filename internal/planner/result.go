// Package planner implements the pure transition function: given a node
// and its current history tag, decide what the engine should do next. The
// planner never calls an executor, never touches the store, and never
// blocks — it returns a description of an action, and the engine is
// responsible for carrying it out and feeding the resulting Result back
// through the matching Apply function. This split is what makes the
// state machine testable without mocks, the way burstgridgo's
// internal/dag.Executor separated "decide what's ready" from "run it".
package planner

import "github.com/relaygrid/relaygridgo/internal/model"

// Severity classifies the outcome of a callback (executor RPC, condition
// evaluation, or dependency check).
type Severity int

const (
	OK Severity = iota
	Recoverable
	Fatal
)

// Result is the tri-valued callback result: ok(v) | recoverable_error(msg[,
// book]) | fatal_error(msg[, book]). Not every field is meaningful for
// every action shape; the field comments below name the apply function
// that reads each one.
type Result struct {
	Severity Severity
	Message  string
	Book     *model.RunBookkeeping

	// Satisfied is read by applyEvalCondition: whether the condition holds.
	Satisfied bool

	// StillRunning is read by applyCheckProcess: true for check()'s
	// still_running(book'), false for successful(book').
	StillRunning bool

	// DepsReady/FailedDepIDs are read by applyCheckDeps.
	DepsReady    bool
	FailedDepIDs []string

	// NoOp is read by applyStartRunning: true when the node's build_process
	// is no_op, so a successful start skips running entirely and lands on
	// successfully-did-nothing instead of started-running.
	NoOp bool
}

// Ok builds a successful Result.
func Ok() Result { return Result{Severity: OK} }

// OkBook builds a successful Result carrying updated bookkeeping.
func OkBook(book *model.RunBookkeeping) Result { return Result{Severity: OK, Book: book} }

// RecoverableError builds a recoverable-error Result: the engine must
// retry the same logical action later.
func RecoverableError(msg string, book *model.RunBookkeeping) Result {
	return Result{Severity: Recoverable, Message: msg, Book: book}
}

// FatalError builds a fatal-error Result: the history advances to the
// matching failure state.
func FatalError(msg string, book *model.RunBookkeeping) Result {
	return Result{Severity: Fatal, Message: msg, Book: book}
}

// Progress reports whether Apply* actually moved the node's history
// forward: changed or unchanged.
type Progress string

const (
	Changed   Progress = "changed"
	Unchanged Progress = "unchanged"
)
