package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/provider"
	"github.com/fleveque/pokemmo-companion/internal/service"
)

// ResourceHandler proxies species, move and ability lookups through the
// shared caches.
type ResourceHandler struct {
	resources *service.ResourceService
	logger    *zap.Logger
}

// NewResourceHandler creates a new ResourceHandler.
func NewResourceHandler(resources *service.ResourceService, logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{resources: resources, logger: logger}
}

// Species route: GET /api/v1/species/:key
// The key is a species id, an "id-{species}-form-{n}" key or a slug.
func (h *ResourceHandler) Species(c *gin.Context) {
	serve(c, h.logger, "species", strings.ToLower(c.Param("key")), h.resources.Species)
}

// Move route: GET /api/v1/moves/:id
func (h *ResourceHandler) Move(c *gin.Context) {
	serve(c, h.logger, "move", c.Param("id"), h.resources.Move)
}

// Ability route: GET /api/v1/abilities/:id
func (h *ResourceHandler) Ability(c *gin.Context) {
	serve(c, h.logger, "ability", c.Param("id"), h.resources.Ability)
}

// serve writes one resource, or 404 for anything that could not be
// resolved. Clients only learn the lookup failed; the cause goes to the log.
// Resource data is static, so successful responses are cacheable for a day.
func serve[T any](c *gin.Context, logger *zap.Logger, kind, key string, get func(context.Context, string) (T, error)) {
	data, err := get(c.Request.Context(), key)
	if err == nil {
		c.Header("Cache-Control", "public, max-age=86400")
		c.JSON(http.StatusOK, data)
		return
	}

	fields := []zap.Field{zap.String("kind", kind), zap.String("key", key), zap.Error(err)}
	switch {
	case errors.Is(err, service.ErrNotFound):
		logger.Debug("resource not found", fields...)
	case errors.Is(err, provider.ErrUnavailable):
		logger.Warn("resource lookup failed: upstream unavailable", fields...)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("resource lookup failed: deadline exceeded", fields...)
	default:
		logger.Warn("resource lookup failed", fields...)
	}
	c.JSON(http.StatusNotFound, gin.H{"error": kind + " not found"})
}
