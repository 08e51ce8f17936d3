package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStores handles GET /api/stores: the active store catalog, ordered by
// code. Served from cache; the catalog only changes on upstream sync.
func (h *Handler) GetStores(c *gin.Context) {
	stores, err := h.store.ListStores(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve stores"})
		return
	}
	c.JSON(http.StatusOK, stores)
}
