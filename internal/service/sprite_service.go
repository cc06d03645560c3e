package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/cache"
	"github.com/fleveque/pokemmo-companion/internal/enrich"
	"github.com/fleveque/pokemmo-companion/internal/model"
	"github.com/fleveque/pokemmo-companion/internal/provider"
	"github.com/fleveque/pokemmo-companion/internal/storage"
)

// Sprite sources reported alongside the image bytes.
const (
	SpriteFromDisk        = "disk"
	SpriteFromSpecies     = "species"
	SpriteFromTemplate    = "template"
	SpriteFromPlaceholder = "placeholder"
)

// Sprite is a served image plus where it came from.
type Sprite struct {
	Data   []byte
	Source string
}

// SpriteService serves resized sprites. Lookups follow a fallback chain:
//
//	1. Disk: a previously resized PNG
//	2. Species: the static sprite URL from the cached species data
//	3. Template: the deterministic sprite URL built from the pokemon id
//	4. Placeholder: a generated image, never cached
//
// URLs that fail to download are remembered as broken for the life of the
// process. The enrichment merger consults the same set so it stops handing
// out URLs that are known not to load.
type SpriteService struct {
	species    *cache.Fetcher[model.Species]
	images     provider.ImageSource
	fs         *storage.FileSystem
	processor  *ImageProcessor
	spriteBase string
	logger     *zap.Logger

	mu     sync.RWMutex
	broken map[string]struct{}
}

// NewSpriteService creates a SpriteService. species may be nil, in which
// case only numeric keys can be resolved (through the template URL).
func NewSpriteService(
	species *cache.Fetcher[model.Species],
	images provider.ImageSource,
	fs *storage.FileSystem,
	processor *ImageProcessor,
	spriteBase string,
	logger *zap.Logger,
) *SpriteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if spriteBase == "" {
		spriteBase = enrich.DefaultSpriteBaseURL
	}
	return &SpriteService{
		species:    species,
		images:     images,
		fs:         fs,
		processor:  processor,
		spriteBase: spriteBase,
		logger:     logger,
		broken:     make(map[string]struct{}),
	}
}

// IsBroken reports whether url already failed to download.
func (s *SpriteService) IsBroken(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.broken[url]
	return ok
}

// MarkBroken remembers a failed URL.
func (s *SpriteService) MarkBroken(url string) {
	s.mu.Lock()
	s.broken[url] = struct{}{}
	s.mu.Unlock()
}

// BrokenCount returns how many URLs are marked broken.
func (s *SpriteService) BrokenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.broken)
}

func variantName(shiny bool) string {
	if shiny {
		return "shiny"
	}
	return "default"
}

// Sprite returns the PNG for a species key at the requested size. It only
// fails for an unknown size or a broken placeholder encoder; every upstream
// problem degrades to the next step of the chain.
func (s *SpriteService) Sprite(ctx context.Context, key string, shiny bool, size model.SpriteSize) (*Sprite, error) {
	if !model.ValidSize(string(size)) {
		return nil, fmt.Errorf("invalid sprite size %q", size)
	}
	variant := variantName(shiny)

	data, err := s.fs.Read(key, variant, size)
	if err == nil {
		return &Sprite{Data: data, Source: SpriteFromDisk}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("reading cached sprite", zap.String("key", key), zap.Error(err))
	}

	for _, c := range s.candidates(ctx, key, shiny) {
		if s.IsBroken(c.url) {
			continue
		}
		raw, err := s.images.FetchImage(ctx, c.url)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Info("sprite download failed, marking broken",
				zap.String("key", key),
				zap.String("url", c.url),
				zap.Error(err),
			)
			s.MarkBroken(c.url)
			continue
		}

		if _, err := s.processor.ProcessAll(key, variant, raw); err != nil {
			s.logger.Warn("processing sprite", zap.String("key", key), zap.Error(err))
		}
		data, err := s.fs.Read(key, variant, size)
		if err != nil {
			s.logger.Warn("resized sprite missing", zap.String("key", key), zap.Error(err))
			continue
		}
		return &Sprite{Data: data, Source: c.source}, nil
	}

	data, err = Placeholder(size)
	if err != nil {
		return nil, err
	}
	return &Sprite{Data: data, Source: SpriteFromPlaceholder}, nil
}

type spriteCandidate struct {
	url    string
	source string
}

func (s *SpriteService) candidates(ctx context.Context, key string, shiny bool) []spriteCandidate {
	var out []spriteCandidate
	id := 0

	if s.species != nil {
		sp, ok, err := s.species.Fetch(ctx, key)
		switch {
		case ok:
			id = sp.ID
			url := sp.Sprites.Static
			if shiny {
				url = sp.Sprites.ShinyStatic
			}
			if url != "" {
				out = append(out, spriteCandidate{url: url, source: SpriteFromSpecies})
			}
		case err != nil:
			s.logger.Debug("species lookup for sprite failed", zap.String("key", key), zap.Error(err))
		}
	}
	if id == 0 {
		if n, err := strconv.Atoi(key); err == nil && n > 0 {
			id = n
		}
	}
	if id > 0 {
		url := enrich.StaticSpriteURL(s.spriteBase, id, shiny)
		if len(out) == 0 || out[0].url != url {
			out = append(out, spriteCandidate{url: url, source: SpriteFromTemplate})
		}
	}
	return out
}

// Forget drops the resized sprites for a key, so the next request
// downloads them again.
func (s *SpriteService) Forget(key string) error {
	return s.fs.DeleteKey(key)
}
