package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/engine"
)

// CreateConnection handles POST /connections. The body is the connection
// parameters object.
func (h *Handler) CreateConnection(c *gin.Context) {
	var params engine.Params
	if err := c.ShouldBindJSON(&params); err != nil {
		h.respondError(c, "Error creating connection", bindError(err))
		return
	}

	id, err := h.registry.OpenConnection(c.Request.Context(), params)
	if err != nil {
		h.respondError(c, "Error creating connection", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"connection_id": id,
	})
}

// CloseConnection handles DELETE /connections/:id. An unknown handle is not
// an error; success is false.
func (h *Handler) CloseConnection(c *gin.Context) {
	ok := h.registry.CloseConnection(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"success": ok})
}

// CreateCursor handles POST /connections/:id/cursors.
func (h *Handler) CreateCursor(c *gin.Context) {
	id, err := h.registry.OpenCursor(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Error creating cursor", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"cursor_id": id,
	})
}

// ConnectionInfo handles GET /connections/:id/info.
func (h *Handler) ConnectionInfo(c *gin.Context) {
	info, err := h.registry.GetConnectionInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Error getting connection info", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"info":    info,
	})
}
