// Package executor defines the plugin boundary the engine dispatches
// build, check, and kill operations through. The engine calls exactly
// these six operations and never inspects run parameters; everything
// plugin-specific stays opaque inside the RunBookkeeping it returns.
package executor

import (
	"context"

	"github.com/relaygrid/relaygridgo/internal/model"
	"github.com/relaygrid/relaygridgo/internal/planner"
)

// Executor is the plugin contract every concrete executor (local process,
// remote RPC, or a future LSF/PBS/YARN adapter) implements.
type Executor interface {
	// Start launches the work described by runParameters and returns the
	// opaque bookkeeping identifying it.
	Start(ctx context.Context, runParameters []byte) planner.Result

	// Check polls a running task. A planner.Result with StillRunning=true
	// means still_running(book'); StillRunning=false means successful(book').
	Check(ctx context.Context, book *model.RunBookkeeping) planner.Result

	// Kill requests termination of a running task.
	Kill(ctx context.Context, book *model.RunBookkeeping) planner.Result

	// Serialize/Deserialize round-trip bookkeeping across engine restarts.
	Serialize(book *model.RunBookkeeping) ([]byte, error)
	Deserialize(data []byte) (*model.RunBookkeeping, error)

	// Query is a reflective accessor used by observation UIs; queryName
	// must be one of AvailableQueries(book).
	Query(ctx context.Context, book *model.RunBookkeeping, queryName string) (string, error)
	AvailableQueries(book *model.RunBookkeeping) []string
}

// Registry maps a plugin name (Node.Build.PluginName) to the Executor
// instance that serves it. Duplicate registration under the same name is
// a programming error and panics at startup, matching burstgridgo's
// registry.RegisterRunner pattern for its handler registry.
type Registry struct {
	byName map[string]Executor
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Executor)}
}

// Register adds an executor under name.
func (r *Registry) Register(name string, e Executor) {
	if _, exists := r.byName[name]; exists {
		panic("executor: plugin already registered: " + name)
	}
	r.byName[name] = e
}

// Lookup returns the executor registered under name, if any.
func (r *Registry) Lookup(name string) (Executor, bool) {
	e, ok := r.byName[name]
	return e, ok
}
