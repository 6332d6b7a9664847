// Package handlers maps the HTTP API onto the session registry. Every
// failure is answered with 400 and {"success": false, "error": "..."}.
package handlers

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/engine"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/registry"
	"github.com/kartikbazzad/bunbase/trinodbc/pkg/errors"
	"github.com/kartikbazzad/bunbase/trinodbc/pkg/logger"
)

// DefaultMaxRows is used by fetch when the request has no max_rows.
const DefaultMaxRows = 1000

func init() {
	// Query parameters keep their JSON number text until normalizeParams
	// picks int64 or float64.
	binding.EnableDecoderUseNumber = true
}

// Registry is the subset of *registry.Registry the handlers use.
type Registry interface {
	OpenConnection(ctx context.Context, params engine.Params) (string, error)
	CloseConnection(ctx context.Context, id string) bool
	OpenCursor(ctx context.Context, connID string) (string, error)
	CloseCursor(ctx context.Context, id string) bool
	ExecuteQuery(ctx context.Context, id, query string, args []any) (*registry.ExecuteResult, error)
	FetchResults(ctx context.Context, id string, maxRows int) (*registry.FetchResult, error)
	GetConnectionInfo(ctx context.Context, id string) (engine.Params, error)
}

// Handler serves the connection and cursor routes.
type Handler struct {
	registry       Registry
	logger         *slog.Logger
	defaultMaxRows int
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithDefaultMaxRows sets the page size used when max_rows is absent.
func WithDefaultMaxRows(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.defaultMaxRows = n
		}
	}
}

// NewHandler creates a Handler backed by reg.
func NewHandler(reg Registry, opts ...Option) *Handler {
	h := &Handler{
		registry:       reg,
		logger:         logger.Get(),
		defaultMaxRows: DefaultMaxRows,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the API routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/connections", h.CreateConnection)
	r.DELETE("/connections/:id", h.CloseConnection)
	r.POST("/connections/:id/cursors", h.CreateCursor)
	r.GET("/connections/:id/info", h.ConnectionInfo)

	r.DELETE("/cursors/:id", h.CloseCursor)
	r.POST("/cursors/:id/execute", h.Execute)
	r.GET("/cursors/:id/fetch", h.Fetch)
}

// bindError turns a ShouldBindJSON failure into a 400.
func bindError(err error) error {
	if stderrors.Is(err, io.EOF) {
		return errors.BadRequest("Request body must be JSON")
	}
	return errors.New(http.StatusBadRequest, "Invalid JSON: "+err.Error(), err)
}

// respondError logs err and writes the failure envelope. Registry errors and
// invalid input both map to 400; anything else keeps its AppError code.
func (h *Handler) respondError(c *gin.Context, msg string, err error) {
	var appErr *errors.AppError
	var regErr *registry.Error
	switch {
	case stderrors.As(err, &regErr):
		appErr = errors.Wrap(http.StatusBadRequest, regErr)
	default:
		appErr = errors.From(err)
	}

	logger.WithTraceID(c.Request.Context(), h.logger).Error(msg, "error", err)
	c.JSON(appErr.Code, gin.H{
		"success": false,
		"error":   appErr.Message,
	})
}
