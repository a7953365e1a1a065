// Package httpapi implements the authenticated HTTPS surface external
// clients use to submit workflows, kill nodes, and observe state.
// Grounded on the pack's gin server shape — kubegems-kubegems's
// pkg/msgbus/api.NewGinServer/RunGinServer (gin.Engine plus a
// bearer-token auth middleware, an http.Server wired to a cancellable
// BaseContext) — retargeted from its JWT/database-backed auth to a flat
// token-file scheme.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaygrid/relaygridgo/internal/cache"
	"github.com/relaygrid/relaygridgo/internal/config"
	"github.com/relaygrid/relaygridgo/internal/ctxlog"
	"github.com/relaygrid/relaygridgo/internal/metrics"
	"github.com/relaygrid/relaygridgo/internal/store"
)

// Server holds everything an HTTP handler needs: the store for queueing
// mutations, the cache for reads and the change stream, the loaded token
// set, and a wake channel nudging the engine loop the moment a
// submission or kill lands rather than making it wait out
// block_step_time.
type Server struct {
	Store  store.Store
	Cache  *cache.Cache
	Tokens TokenSet
	Wake   chan struct{}
}

// New builds a Server. wake may be nil if the caller doesn't want
// submissions to nudge an engine loop (e.g. a client-profile process that
// only relays to a remote server).
func New(s store.Store, c *cache.Cache, tokens TokenSet, wake chan struct{}) *Server {
	return &Server{Store: s, Cache: c, Tokens: tokens, Wake: wake}
}

// nudge signals Wake without blocking if nobody is listening yet.
func (srv *Server) nudge() {
	if srv.Wake == nil {
		return
	}
	select {
	case srv.Wake <- struct{}{}:
	default:
	}
}

// authMiddleware matches the request's bearer token against the loaded
// token set. A request with no Authorization header, a malformed one, or
// an unrecognized token is rejected with 401 before any handler runs.
func (srv *Server) authMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed Authorization header"})
		return
	}
	token := header[len(prefix):]
	name, ok := srv.Tokens[token]
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unrecognized token"})
		return
	}
	c.Set("auth_name", name)
	c.Next()
}

// Router builds the gin engine: /healthz and /metrics are unauthenticated
// (a load balancer or scraper carries no token), every other route sits
// behind authMiddleware.
func (srv *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"healthy": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	auth := r.Group("/", srv.authMiddleware)
	auth.POST("/add-nodes", srv.handleAddNodes)
	auth.POST("/kill", srv.handleKill)
	auth.GET("/target/:id", srv.handleTarget)
	auth.GET("/changes", srv.handleChanges)
	return r
}

// Listen builds the net.Listener the server profile's TCP-or-TLS choice
// describes: a bare port is plain TCP, a tls block (with or without an
// explicit port) upgrades it to TLS — the same either/or internal/config
// resolved when it decoded the server block.
func Listen(cfg *config.ServerBlock) (net.Listener, error) {
	port := cfg.Port
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("httpapi: listen on port %d: %w", port, err)
	}
	if cfg.TLS == nil {
		return ln, nil
	}
	cert, err := tlsCertificate(cfg.TLS)
	if err != nil {
		ln.Close()
		return nil, err
	}
	return tlsListener(ln, cert), nil
}

// Serve runs an http.Server over ln until ctx is cancelled, the way the
// teacher pack's RunGinServer threads a cancellable BaseContext through
// every request and closes the listener on shutdown instead of leaking
// it.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	logger := ctxlog.FromContext(ctx)
	srv := &http.Server{
		Handler: handler,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	logger.Info("httpapi: serving.", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: serve: %w", err)
	}
	return nil
}
