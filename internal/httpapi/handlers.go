package httpapi

import (
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/relaygrid/relaygridgo/internal/ctxlog"
	"github.com/relaygrid/relaygridgo/internal/dagcheck"
	"github.com/relaygrid/relaygridgo/internal/model"
)

// handleAddNodes implements POST /add-nodes: body is a JSON array of full
// node shapes. Every node missing an id is assigned a fresh one before
// validation, so dagcheck and the caller's response both see the id the
// store will actually commit. Validation runs before the batch ever
// reaches the queue — a cyclic or unresolved-id batch is rejected inline
// rather than surfacing as a stuck engine later.
func (srv *Server) handleAddNodes(c *gin.Context) {
	var nodes []*model.Node
	if err := c.ShouldBindJSON(&nodes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(nodes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "add-nodes: empty batch"})
		return
	}
	for _, n := range nodes {
		if n.ID == "" {
			n.ID = model.NewID()
		}
	}

	known := func(id string) bool {
		if _, err := srv.Cache.Get(c.Request.Context(), id); err == nil {
			return true
		}
		return false
	}
	if err := dagcheck.ValidateBatch(nodes, known); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch := model.AddBatch{ID: model.NewID(), Nodes: nodes}
	if err := srv.Store.QueueAdds(c.Request.Context(), batch); err != nil {
		ctxlog.FromContext(c.Request.Context()).Error("httpapi: queue adds failed.", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	srv.nudge()

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids})
}

// handleKill implements POST /kill: body is a JSON array of node ids.
func (srv *Server) handleKill(c *gin.Context) {
	var ids []string
	if err := c.ShouldBindJSON(&ids); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kill: empty id list"})
		return
	}

	batch := model.KillBatch{ID: model.NewID(), IDs: ids}
	if err := srv.Store.QueueKills(c.Request.Context(), batch); err != nil {
		ctxlog.FromContext(c.Request.Context()).Error("httpapi: queue kills failed.", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	srv.nudge()
	c.JSON(http.StatusOK, gin.H{"acknowledged": len(ids)})
}

// handleTarget implements GET /target/{id}: the full node, history
// included, as JSON.
func (srv *Server) handleTarget(c *gin.Context) {
	id := c.Param("id")
	n, err := srv.Cache.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, n)
}

// handleChanges implements GET /changes: a server-sent-events stream of
// the C4 coalesced change batches, one subscription per connection, torn
// down the moment the client disconnects (the request context cancels,
// which Cache.Stream.Watch already keys its cleanup off of).
func (srv *Server) handleChanges(c *gin.Context) {
	if srv.Cache.Stream == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "httpapi: change stream not configured"})
		return
	}
	sub := srv.Cache.Stream.Watch(c.Request.Context())
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	for {
		select {
		case events := <-sub.C():
			sse.Encode(c.Writer, sse.Event{Event: "change", Data: events})
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}
