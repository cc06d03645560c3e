package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/flow"
	"github.com/fleveque/pokemmo-companion/internal/model"
)

// ContainerHandler exposes the per-container orchestrators: the enriched
// view, a live stream of it, manual refresh and PC box selection.
type ContainerHandler struct {
	manager *flow.Manager
	logger  *zap.Logger
}

// NewContainerHandler creates a new ContainerHandler.
func NewContainerHandler(manager *flow.Manager, logger *zap.Logger) *ContainerHandler {
	return &ContainerHandler{manager: manager, logger: logger}
}

// container resolves the :source param, writing a 400 when it is unknown.
func (h *ContainerHandler) container(c *gin.Context) (*flow.Container, bool) {
	ct, err := h.manager.Container(model.ContainerType(c.Param("source")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid source: must be party, daycare, or pc_boxes",
		})
		return nil, false
	}
	return ct, true
}

// Snapshot returns the current enriched view of a container.
// Route: GET /api/v1/containers/:source
func (h *ContainerHandler) Snapshot(c *gin.Context) {
	ct, ok := h.container(c)
	if !ok {
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, ct.Snapshot())
}

// Events streams snapshots as server-sent events, one "snapshot" event per
// change, starting with the current state.
// Route: GET /api/v1/containers/:source/events
func (h *ContainerHandler) Events(c *gin.Context) {
	ct, ok := h.container(c)
	if !ok {
		return
	}

	updates, cancel := ct.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	// Go note: c.Stream calls the func until it returns false, flushing
	// after each call.
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap, open := <-updates:
			if !open {
				return false
			}
			c.SSEvent("snapshot", snap)
			return true
		}
	})
}

// Refresh re-reads the raw snapshot and re-runs enrichment, then returns
// the resulting view. This is also how a container leaves the error state.
// Route: POST /api/v1/containers/:source/refresh
func (h *ContainerHandler) Refresh(c *gin.Context) {
	ct, ok := h.container(c)
	if !ok {
		return
	}
	ct.Refresh(c.Request.Context())
	c.JSON(http.StatusOK, ct.Snapshot())
}

// selectBoxRequest uses a pointer so box 0 is distinguishable from a
// missing field.
type selectBoxRequest struct {
	Box *int `json:"box" binding:"required,min=0"`
}

// SelectBox switches the visible PC box. It returns immediately; the new
// box shows up once its data is available.
// Route: PUT /api/v1/containers/:source/box
func (h *ContainerHandler) SelectBox(c *gin.Context) {
	ct, ok := h.container(c)
	if !ok {
		return
	}

	var req selectBoxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"box\": <index>}"})
		return
	}

	if err := ct.SelectBox(*req.Box); err != nil {
		switch {
		case errors.Is(err, flow.ErrNotBoxed), errors.Is(err, flow.ErrInvalidBox):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("selecting box", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusAccepted, ct.Snapshot())
}
