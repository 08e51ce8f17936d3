package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"picking-tracker-backend/internal/feed"
	"picking-tracker-backend/internal/parse"
)

// GetLines handles GET /api/lines?date=YYYY-MM-DD&weekday=N.
//
// It runs the reconciliation routine: the run for the date is created when
// absent, every (store, metal) pair required by the weekday template gets a
// line, and the full sorted line set is returned joined with store display
// fields. Calling it repeatedly is safe.
func (h *Handler) GetLines(c *gin.Context) {
	runDate, err := parse.RunDate(c.DefaultQuery("date", time.Now().Format(parse.DateLayout)))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	weekday := parse.DefaultWeekday(mustParseDate(runDate))
	if raw := c.Query("weekday"); raw != "" {
		weekday, err = strconv.Atoi(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "weekday must be an integer"})
			return
		}
	}
	if err := parse.Weekday(weekday); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, lines, created, err := h.store.ReconcileLines(c.Request.Context(), runDate, weekday)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load picking lines"})
		return
	}

	// Subscribers already watching this run learn about the new rows the
	// same way they learn about edits.
	for i := range created {
		h.hub.Broadcast(feed.LineEvent{
			Type:  feed.EventInsert,
			RunID: run.ID,
			New:   &created[i],
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"run":   run,
		"title": parse.RunTitle(weekday, runDate),
		"lines": lines,
	})
}

// mustParseDate re-parses a date already validated by parse.RunDate.
func mustParseDate(runDate string) time.Time {
	t, _ := time.Parse(parse.DateLayout, runDate)
	return t
}
