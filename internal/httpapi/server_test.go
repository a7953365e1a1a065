package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygrid/relaygridgo/internal/cache"
	"github.com/relaygrid/relaygridgo/internal/ctxlog"
	"github.com/relaygrid/relaygridgo/internal/store/backup"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestServer(t *testing.T) (*Server, *backup.Store) {
	t.Helper()
	s, err := backup.Open(t.TempDir())
	require.NoError(t, err)
	c := cache.New(s, cache.NewStream(10*time.Millisecond, 50*time.Millisecond, nil))
	require.NoError(t, c.Warm(testContext()))
	return New(s, c, TokenSet{"good-token": "alice"}, make(chan struct{}, 1)), s
}

func TestAuthMiddleware_RejectsMissingHeader(t *testing.T) {
	srv, _ := newTestServer(t)
	r := srv.Router()

	req := httptest.NewRequest("GET", "/target/a", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, 401, rec.Code)
}

func TestAuthMiddleware_RejectsUnknownToken(t *testing.T) {
	srv, _ := newTestServer(t)
	r := srv.Router()

	req := httptest.NewRequest("GET", "/target/a", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, 401, rec.Code)
}

func TestHealthzAndMetrics_NeedNoAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	r := srv.Router()

	for _, path := range []string{"/healthz", "/metrics"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, 200, rec.Code, "path %s", path)
	}
}

func TestLoadTokenFile_SkipsCommentsAndMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens")
	body := "# comment\n\nalice goodtoken123 admin access\nbob\ncarol bad!token\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	tokens, err := LoadTokenFile(slog.New(slog.NewTextHandler(io.Discard, nil)), path)
	require.NoError(t, err)
	assert.Equal(t, TokenSet{"goodtoken123": "alice"}, tokens)
}
