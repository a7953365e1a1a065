package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/relaygrid/relaygridgo/internal/model"
	"github.com/relaygrid/relaygridgo/internal/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_OKResponseCarriesBookkeeping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/start", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"severity":       "ok",
			"run_parameters": []byte(`{"job_id":"123"}`),
		})
	}))
	defer srv.Close()

	e := New("batch", srv.URL, "tok")
	result := e.Start(context.Background(), []byte(`{"command":"sleep"}`))
	require.Equal(t, planner.OK, result.Severity)
	require.NotNil(t, result.Book)
	assert.Equal(t, "batch", result.Book.PluginName)
}

func TestCheck_StillRunningIsCarriedThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/check", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"severity": "ok", "still_running": true})
	}))
	defer srv.Close()

	e := New("batch", srv.URL, "tok")
	book := &model.RunBookkeeping{PluginName: "batch", RunParameters: []byte(`{}`)}
	result := e.Check(context.Background(), book)
	assert.Equal(t, planner.OK, result.Severity)
	assert.True(t, result.StillRunning)
}

func TestCheck_FatalSeverityIsDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"severity": "permanent_error", "message": "job lost"})
	}))
	defer srv.Close()

	e := New("batch", srv.URL, "tok")
	book := &model.RunBookkeeping{PluginName: "batch", RunParameters: []byte(`{}`)}
	result := e.Check(context.Background(), book)
	assert.Equal(t, planner.Fatal, result.Severity)
	assert.Equal(t, "job lost", result.Message)
}

func TestStart_TransportFailureIsRecoverable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	e := New("batch", srv.URL, "")
	result := e.Start(context.Background(), []byte(`{}`))
	assert.Equal(t, planner.Recoverable, result.Severity)
}

func TestQuery_ReturnsTextOnOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"severity": "ok", "text": "log contents"})
	}))
	defer srv.Close()

	e := New("batch", srv.URL, "")
	book := &model.RunBookkeeping{PluginName: "batch", RunParameters: []byte(`{}`)}
	text, err := e.Query(context.Background(), book, "stdout")
	require.NoError(t, err)
	assert.Equal(t, "log contents", text)
}

func TestSerializeDeserialize_RoundTrip(t *testing.T) {
	e := New("batch", "http://example.invalid", "")
	data, err := e.Serialize(&model.RunBookkeeping{RunParameters: []byte(`{"job_id":"1"}`)})
	require.NoError(t, err)
	book, err := e.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, "batch", book.PluginName)
	assert.Equal(t, []byte(`{"job_id":"1"}`), book.RunParameters)
}
