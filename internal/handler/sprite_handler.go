package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/model"
	"github.com/fleveque/pokemmo-companion/internal/service"
)

// SpriteHandler serves resized sprite images.
type SpriteHandler struct {
	sprites *service.SpriteService
	logger  *zap.Logger
}

// NewSpriteHandler creates a new SpriteHandler.
func NewSpriteHandler(sprites *service.SpriteService, logger *zap.Logger) *SpriteHandler {
	return &SpriteHandler{sprites: sprites, logger: logger}
}

// GetSprite serves the sprite for a species key.
// Route: GET /api/v1/sprites/:key?size=m&shiny=true&bg=ffffff
//
// The response is always an image: when no source works a generated
// placeholder is returned, and it is not cached by the browser.
func (h *SpriteHandler) GetSprite(c *gin.Context) {
	key := strings.ToLower(c.Param("key"))

	sizeStr := c.DefaultQuery("size", "m")
	if !model.ValidSize(sizeStr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid size: must be xs, s, m, l, or xl",
		})
		return
	}
	shiny, _ := strconv.ParseBool(c.DefaultQuery("shiny", "false"))

	sprite, err := h.sprites.Sprite(c.Request.Context(), key, shiny, model.SpriteSize(sizeStr))
	if err != nil {
		h.logger.Error("serving sprite", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sprite unavailable"})
		return
	}

	data := sprite.Data
	if bg := c.Query("bg"); bg != "" {
		data, err = service.ApplyBackground(data, bg)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid background color: " + err.Error(),
			})
			return
		}
	}

	if sprite.Source == service.SpriteFromPlaceholder {
		c.Header("Cache-Control", "no-store")
	} else {
		c.Header("Cache-Control", "public, max-age=86400")
	}
	c.Header("X-Sprite-Source", sprite.Source)
	c.Data(http.StatusOK, "image/png", data)
}
