package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygrid/relaygridgo/internal/model"
)

func TestHandleAddNodes_ValidatesAndQueues(t *testing.T) {
	srv, _ := newTestServer(t)
	r := srv.Router()

	nodes := []*model.Node{
		model.Create("", "root", "", nil, nil, nil, model.NoOpBuild(), nil, model.EquivalenceNone, nil, time.Unix(0, 0)),
	}
	body, err := json.Marshal(nodes)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/add-nodes", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer good-token")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code, rec.Body.String())
	var resp struct {
		IDs []string `json:"ids"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.IDs, 1)
	assert.NotEmpty(t, resp.IDs[0])
}

func TestHandleAddNodes_RejectsUnresolvedDependency(t *testing.T) {
	srv, _ := newTestServer(t)
	r := srv.Router()

	nodes := []*model.Node{
		model.Create("a", "A", "", []string{"does-not-exist"}, nil, nil, model.NoOpBuild(), nil, model.EquivalenceNone, nil, time.Unix(0, 0)),
	}
	body, err := json.Marshal(nodes)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/add-nodes", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer good-token")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestHandleKill_QueuesAndAcks(t *testing.T) {
	srv, _ := newTestServer(t)
	r := srv.Router()

	body, err := json.Marshal([]string{"a", "b"})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/kill", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer good-token")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code, rec.Body.String())
	var resp struct {
		Acknowledged int `json:"acknowledged"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Acknowledged)
}

func TestHandleTarget_ReturnsNodeOrNotFound(t *testing.T) {
	srv, s := newTestServer(t)
	r := srv.Router()

	n := model.Create("a", "A", "", nil, nil, nil, model.NoOpBuild(), nil, model.EquivalenceNone, nil, time.Unix(0, 0))
	require.NoError(t, s.ForceInsertPassive(testContext(), n))

	req := httptest.NewRequest("GET", "/target/a", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	var got model.Node
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "a", got.ID)
	assert.NotNil(t, got.History)

	req2 := httptest.NewRequest("GET", "/target/missing", nil)
	req2.Header.Set("Authorization", "Bearer good-token")
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, req2)
	assert.Equal(t, 404, rec2.Code)
}
