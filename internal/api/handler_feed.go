package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// StreamFeed handles GET /api/feed?run_id=... as a server-sent event stream
// of line changes scoped to one run. The connection stays open until the
// client disconnects.
func (h *Handler) StreamFeed(c *gin.Context) {
	runID := c.Query("run_id")
	if runID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "run_id is required"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.hub.Subscribe(runID)
	defer h.hub.Unsubscribe(ch)

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case msg := <-ch:
			if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", msg.Event, msg.Data); err != nil {
				log.Printf("feed: write error: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
