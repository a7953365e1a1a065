// Package remote implements an executor plugin that delegates every
// operation to an HTTP endpoint, standing in for the LSF/PBS/YARN-style
// remote compute plugins that stay out of scope by name but whose shape —
// six operations over a network transport, bounded by a timeout — is
// worth having one concrete instance of. Grounded on burstgridgo's
// own resty usage (kubegems's BamBooUserSyncTool.DoRequest: a single
// shared client, SetResult/SetError, one call per operation).
package remote

import (
	"context"
	"fmt"

	"github.com/relaygrid/relaygridgo/internal/executor"
	"github.com/relaygrid/relaygridgo/internal/model"
	"github.com/relaygrid/relaygridgo/internal/planner"
	"resty.dev/v3"
)

var _ executor.Executor = (*Executor)(nil)

// wireResult is the JSON envelope every remote operation responds with.
type wireResult struct {
	Severity      string `json:"severity"`
	Message       string `json:"message,omitempty"`
	RunParameters []byte `json:"run_parameters,omitempty"`
	StillRunning  bool   `json:"still_running,omitempty"`
	Text          string `json:"text,omitempty"`
	Queries       []string `json:"queries,omitempty"`
}

func (w wireResult) toResult(book *model.RunBookkeeping, pluginName string) planner.Result {
	var newBook *model.RunBookkeeping
	if w.RunParameters != nil {
		newBook = &model.RunBookkeeping{PluginName: pluginName, RunParameters: w.RunParameters}
	} else {
		newBook = book
	}
	switch w.Severity {
	case "ok":
		return planner.Result{Severity: planner.OK, Book: newBook, StillRunning: w.StillRunning}
	case "recoverable_error":
		return planner.RecoverableError(w.Message, newBook)
	default:
		return planner.FatalError(w.Message, newBook)
	}
}

// Executor is a remote executor.Executor backed by a single HTTP service.
type Executor struct {
	pluginName string
	client     *resty.Client
}

// New creates a remote executor calling baseURL, authenticating with
// token as a bearer credential.
func New(pluginName, baseURL, token string) *Executor {
	c := resty.New().SetBaseURL(baseURL)
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Executor{pluginName: pluginName, client: c}
}

func (e *Executor) post(ctx context.Context, path string, body any) (wireResult, error) {
	var out wireResult
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post(path)
	if err != nil {
		return wireResult{}, fmt.Errorf("remote executor: %s: %w", path, err)
	}
	if resp.IsError() {
		return wireResult{}, fmt.Errorf("remote executor: %s: http %d", path, resp.StatusCode())
	}
	return out, nil
}

func (e *Executor) Start(ctx context.Context, runParameters []byte) planner.Result {
	out, err := e.post(ctx, "/start", map[string]any{"run_parameters": runParameters})
	if err != nil {
		return planner.RecoverableError(err.Error(), nil)
	}
	return out.toResult(nil, e.pluginName)
}

func (e *Executor) Check(ctx context.Context, book *model.RunBookkeeping) planner.Result {
	out, err := e.post(ctx, "/check", map[string]any{"run_parameters": book.RunParameters})
	if err != nil {
		return planner.RecoverableError(err.Error(), book)
	}
	return out.toResult(book, e.pluginName)
}

func (e *Executor) Kill(ctx context.Context, book *model.RunBookkeeping) planner.Result {
	out, err := e.post(ctx, "/kill", map[string]any{"run_parameters": book.RunParameters})
	if err != nil {
		return planner.RecoverableError(err.Error(), book)
	}
	return out.toResult(book, e.pluginName)
}

func (e *Executor) Serialize(book *model.RunBookkeeping) ([]byte, error) {
	return book.RunParameters, nil
}

func (e *Executor) Deserialize(data []byte) (*model.RunBookkeeping, error) {
	return &model.RunBookkeeping{PluginName: e.pluginName, RunParameters: data}, nil
}

func (e *Executor) Query(ctx context.Context, book *model.RunBookkeeping, queryName string) (string, error) {
	out, err := e.post(ctx, "/query", map[string]any{"run_parameters": book.RunParameters, "query_name": queryName})
	if err != nil {
		return "", err
	}
	if out.Severity != "ok" {
		return "", fmt.Errorf("remote executor: query %q: %s", queryName, out.Message)
	}
	return out.Text, nil
}

func (e *Executor) AvailableQueries(book *model.RunBookkeeping) []string {
	out, err := e.post(context.Background(), "/available_queries", map[string]any{"run_parameters": book.RunParameters})
	if err != nil || out.Severity != "ok" {
		return nil
	}
	return out.Queries
}
