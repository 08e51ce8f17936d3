package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"picking-tracker-backend/internal/feed"
	"picking-tracker-backend/internal/model"
	"picking-tracker-backend/internal/store"
)

type updateLineRequest struct {
	ID    string          `json:"id"`
	Patch store.LinePatch `json:"patch"`
}

// UpdateLine handles POST /api/update-line.
//
// The primary result is the line update alone. The audit insert afterwards
// is best-effort: its failure is logged and never reported to the caller.
func (h *Handler) UpdateLine(c *gin.Context) {
	var req updateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}
	if req.ID == "" || req.Patch.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: id and a non-empty patch are required"})
		return
	}

	rec, err := h.store.UpdateLine(c.Request.Context(), req.ID, req.Patch)
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "line not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update line"})
		return
	}

	if err := h.store.InsertAudit(c.Request.Context(), rec, h.username(c)); err != nil {
		log.Printf("Warning: audit insert failed for line %s: %v", rec.ID, err)
	}

	h.hub.Broadcast(feed.LineEvent{
		Type:  feed.EventUpdate,
		RunID: rec.RunID,
		New:   &rec,
	})

	if h.pool != nil && rec.Status == model.StatusDone {
		h.pool.Dispatch(rec.ID)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "data": rec})
}
