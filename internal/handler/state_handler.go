package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/service"
)

// maxIngestBytes bounds an ingest payload. A full set of PC boxes is well
// under a megabyte.
const maxIngestBytes = 8 << 20

// StateHandler serves the ingest and state endpoints.
type StateHandler struct {
	states *service.StateService
	logger *zap.Logger
}

// NewStateHandler creates a new StateHandler.
func NewStateHandler(states *service.StateService, logger *zap.Logger) *StateHandler {
	return &StateHandler{states: states, logger: logger}
}

// Ingest stores a snapshot posted by the capture agent.
// Route: POST /api/v1/ingest
func (h *StateHandler) Ingest(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxIngestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}

	env, err := h.states.Ingest(c.Request.Context(), body)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			h.logger.Info("rejected snapshot", zap.Strings("fields", verr.FieldNames()))
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  "validation failed",
				"fields": verr.Fields,
			})
			return
		}
		h.logger.Error("storing snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store snapshot"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"container_type": env.Source.ContainerType,
		"captured_at_ms": env.CapturedAtMs,
		"pokemon":        len(env.Pokemon),
		"boxes":          len(env.Boxes),
	})
}

// State returns the stored snapshot for a source, byte for byte.
// Route: GET /api/v1/state?source=party|daycare|pc_boxes
func (h *StateHandler) State(c *gin.Context) {
	data, err := h.states.State(c.Request.Context(), c.Query("source"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidSource) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid source: must be party, daycare, or pc_boxes",
			})
			return
		}
		h.logger.Error("reading snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read snapshot"})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}
