package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/registry"
)

const (
	Name    = "Trino ODBC Driver for Alpine Linux"
	Version = "1.0.0"
)

// StatsFunc reports current registry occupancy.
type StatsFunc func() registry.Stats

// Status is the liveness handler. It performs no checks.
func Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": Version,
		"name":    Name,
	})
}

// Ready reports readiness along with the number of open connections and cursors.
func Ready(stats StatsFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := stats()
		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"connections": s.Connections,
			"cursors":     s.Cursors,
		})
	}
}
