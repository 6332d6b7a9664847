package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/trinodbc/pkg/errors"
)

// ExecuteRequest is the body of POST /cursors/:id/execute. A missing or
// null parameters field runs the statement without parameters; [] sends an
// empty parameter list.
type ExecuteRequest struct {
	Query      string `json:"query"`
	Parameters []any  `json:"parameters"`
}

// CloseCursor handles DELETE /cursors/:id. An unknown handle is not an
// error; success is false.
func (h *Handler) CloseCursor(c *gin.Context) {
	ok := h.registry.CloseCursor(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"success": ok})
}

// Execute handles POST /cursors/:id/execute.
func (h *Handler) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, "Error executing query", bindError(err))
		return
	}
	if req.Query == "" {
		h.respondError(c, "Error executing query", errors.BadRequest("Query is required"))
		return
	}

	res, err := h.registry.ExecuteQuery(c.Request.Context(), c.Param("id"), req.Query, normalizeParams(req.Parameters))
	if err != nil {
		h.respondError(c, "Error executing query", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"columns":  res.Columns,
		"rowcount": res.RowCount,
	})
}

// Fetch handles GET /cursors/:id/fetch?max_rows=N. A max_rows that is not an
// integer falls back to the default page size; zero or negative is rejected.
func (h *Handler) Fetch(c *gin.Context) {
	maxRows := h.defaultMaxRows
	if n, err := strconv.Atoi(c.Query("max_rows")); err == nil {
		if n < 1 {
			h.respondError(c, "Error fetching results", errors.BadRequest("max_rows must be a positive integer"))
			return
		}
		maxRows = n
	}

	res, err := h.registry.FetchResults(c.Request.Context(), c.Param("id"), maxRows)
	if err != nil {
		h.respondError(c, "Error fetching results", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"rows":     res.Rows,
		"has_more": res.HasMore,
	})
}

// normalizeParams turns JSON numbers into int64 when they are integral and
// float64 otherwise, so drivers bind them with their natural SQL type.
func normalizeParams(params []any) []any {
	if params == nil {
		return nil
	}
	out := make([]any, len(params))
	for i, p := range params {
		if n, ok := p.(json.Number); ok {
			if v, err := n.Int64(); err == nil {
				out[i] = v
			} else if f, err := n.Float64(); err == nil {
				out[i] = f
			} else {
				out[i] = n.String()
			}
			continue
		}
		out[i] = p
	}
	return out
}
