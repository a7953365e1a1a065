// Package condition evaluates the tagged-union Condition the engine
// submits opaquely before a build (deciding already-done vs building)
// and after a successful run (deciding verified-success vs
// did-not-ensure-condition). The engine interprets only the Kind tag;
// this package is the one place that actually knows what volume_exists
// or command_returns means. Grounded on burstgridgo's asset lifecycle
// concept (internal/registry.RegisteredAsset: a CreateFn/DestroyFn pair
// invoked opaquely by the engine) generalized from "create/destroy a
// resource" to "evaluate a condition".
package condition

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/relaygrid/relaygridgo/internal/fsutil"
	"github.com/relaygrid/relaygridgo/internal/model"
	"github.com/relaygrid/relaygridgo/internal/planner"
)

// Evaluator evaluates conditions against the local file system and
// local processes. Volumes and commands naming a non-empty, non-local
// Host are rejected: SSH/remote transport is an explicit non-goal, so
// only Host == "" (or "localhost") is supported.
type Evaluator struct{}

// New creates a local Evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

func isLocalHost(host string) bool {
	return host == "" || host == "localhost"
}

// Evaluate interprets cond and returns the same tri-valued Result shape
// the executor interface uses, with Satisfied set on an OK result. A nil
// condition is the caller's responsibility (the planner treats it as an
// inline tie-break, not a call into this package).
func (e *Evaluator) Evaluate(ctx context.Context, cond *model.Condition) planner.Result {
	if cond == nil {
		return planner.FatalError("condition evaluator: nil condition", nil)
	}
	switch cond.Kind {
	case model.ConditionSatisfied:
		return planner.Result{Severity: planner.OK, Satisfied: true}
	case model.ConditionNever:
		return planner.Result{Severity: planner.OK, Satisfied: false}
	case model.ConditionVolumeExists:
		return e.evalVolumeExists(cond.Volume)
	case model.ConditionVolumeSizeAtLeast:
		return e.evalVolumeSizeAtLeast(cond.Volume, cond.MinBytes)
	case model.ConditionCommandReturns:
		return e.evalCommandReturns(ctx, cond.Command, cond.ExitCode)
	case model.ConditionAndOf:
		return e.evalAndOf(ctx, cond.And)
	default:
		return planner.FatalError(fmt.Sprintf("condition evaluator: unknown kind %q", cond.Kind), nil)
	}
}

func (e *Evaluator) evalVolumeExists(v *model.Volume) planner.Result {
	if v == nil {
		return planner.FatalError("condition evaluator: volume_exists with nil volume", nil)
	}
	if !isLocalHost(v.Host) {
		return planner.FatalError(fmt.Sprintf("condition evaluator: remote host %q not supported", v.Host), nil)
	}
	ok, err := fsutil.Exists(v.Root)
	if err != nil {
		return planner.RecoverableError(fmt.Sprintf("condition evaluator: stat %q: %v", v.Root, err), nil)
	}
	return planner.Result{Severity: planner.OK, Satisfied: ok}
}

func (e *Evaluator) evalVolumeSizeAtLeast(v *model.Volume, minBytes int64) planner.Result {
	if v == nil {
		return planner.FatalError("condition evaluator: volume_size_at_least with nil volume", nil)
	}
	if !isLocalHost(v.Host) {
		return planner.FatalError(fmt.Sprintf("condition evaluator: remote host %q not supported", v.Host), nil)
	}
	size, err := fsutil.TotalSize(v.Root)
	if err != nil {
		return planner.RecoverableError(fmt.Sprintf("condition evaluator: size %q: %v", v.Root, err), nil)
	}
	return planner.Result{Severity: planner.OK, Satisfied: size >= minBytes}
}

func (e *Evaluator) evalCommandReturns(ctx context.Context, c *model.Command, wantExit int) planner.Result {
	if c == nil {
		return planner.FatalError("condition evaluator: command_returns with nil command", nil)
	}
	if !isLocalHost(c.Host) {
		return planner.FatalError(fmt.Sprintf("condition evaluator: remote host %q not supported", c.Host), nil)
	}
	exitCode, err := runProgram(ctx, c.Program)
	if err != nil {
		return planner.RecoverableError(fmt.Sprintf("condition evaluator: run command: %v", err), nil)
	}
	return planner.Result{Severity: planner.OK, Satisfied: exitCode == wantExit}
}

func (e *Evaluator) evalAndOf(ctx context.Context, conds []*model.Condition) planner.Result {
	if len(conds) == 0 {
		return planner.Result{Severity: planner.OK, Satisfied: true}
	}
	for _, c := range conds {
		r := e.Evaluate(ctx, c)
		if r.Severity != planner.OK {
			return r
		}
		if !r.Satisfied {
			return planner.Result{Severity: planner.OK, Satisfied: false}
		}
	}
	return planner.Result{Severity: planner.OK, Satisfied: true}
}

// runProgram runs p to completion and returns its exit code. A sequence
// runs each sub-program in order and returns the first non-zero exit
// code encountered, or the last one if all are zero.
func runProgram(ctx context.Context, p model.Program) (int, error) {
	switch p.Kind {
	case model.ProgramShell:
		return runCmd(exec.CommandContext(ctx, "sh", "-c", p.Shell))
	case model.ProgramExec:
		if len(p.Exec) == 0 {
			return 0, fmt.Errorf("exec program with no argv")
		}
		return runCmd(exec.CommandContext(ctx, p.Exec[0], p.Exec[1:]...))
	case model.ProgramSequence:
		exitCode := 0
		for _, sub := range p.Sequence {
			code, err := runProgram(ctx, sub)
			if err != nil {
				return 0, err
			}
			exitCode = code
			if exitCode != 0 {
				return exitCode, nil
			}
		}
		return exitCode, nil
	default:
		return 0, fmt.Errorf("unknown program kind %q", p.Kind)
	}
}

func runCmd(cmd *exec.Cmd) (int, error) {
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}
