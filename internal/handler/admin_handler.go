package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/model"
	"github.com/fleveque/pokemmo-companion/internal/service"
	"github.com/fleveque/pokemmo-companion/internal/storage"
)

// BreakerReporter exposes the upstream circuit breaker state.
type BreakerReporter interface {
	BreakerState() string
}

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	resources *service.ResourceService
	sprites   *service.SpriteService
	fetchLog  storage.FetchLogRepository
	breaker   BreakerReporter
	logger    *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	resources *service.ResourceService,
	sprites *service.SpriteService,
	fetchLog storage.FetchLogRepository,
	breaker BreakerReporter,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		resources: resources,
		sprites:   sprites,
		fetchLog:  fetchLog,
		breaker:   breaker,
		logger:    logger,
	}
}

// Stats returns cache contents, upstream call statistics and the breaker
// state.
// Route: GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	upstream, err := h.fetchLog.StatsByKind(ctx)
	if err != nil {
		h.logger.Error("loading upstream stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"caches":         h.resources.CacheStats(ctx),
		"upstream":       upstream,
		"breaker":        h.breaker.BreakerState(),
		"broken_sprites": h.sprites.BrokenCount(),
	})
}

// RecentFetches lists the latest upstream calls.
// Route: GET /api/v1/admin/fetches?limit=50
func (h *AdminHandler) RecentFetches(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}

	fetches, err := h.fetchLog.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("listing upstream fetches", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fetches": fetches})
}

// ClearCache drops one resource kind from memory and from the persister.
// Route: DELETE /api/v1/admin/cache/:kind
func (h *AdminHandler) ClearCache(c *gin.Context) {
	kind := c.Param("kind")
	if !model.ValidKind(kind) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid kind: must be species, move, or ability",
		})
		return
	}

	if err := h.resources.ClearCache(c.Request.Context(), model.ResourceKind(kind)); err != nil {
		h.logger.Error("clearing cache", zap.String("kind", kind), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear cache"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "kind": kind})
}

// ForgetSprite deletes the resized sprites of a key so they are downloaded
// again on the next request.
// Route: DELETE /api/v1/admin/sprites/:key
func (h *AdminHandler) ForgetSprite(c *gin.Context) {
	key := c.Param("key")
	if err := h.sprites.Forget(key); err != nil {
		h.logger.Error("deleting sprites", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete sprites"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "key": key})
}
