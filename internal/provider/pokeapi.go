package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/pokemmo-companion/internal/model"
	"github.com/fleveque/pokemmo-companion/internal/storage"
)

// PokeAPIConfig holds the client settings, mapped from config.PokeAPIConfig.
type PokeAPIConfig struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   uint32
	BreakerTimeout    time.Duration
}

// PokeAPI fetches and flattens species, move and ability data.
//
// Every call goes through a token-bucket limiter (PokeAPI asks clients to be
// polite) and a circuit breaker so a dead upstream fails fast instead of
// tying up the batch fetcher's workers until their timeouts fire. A 404 is a
// normal answer and never trips the breaker.
type PokeAPI struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	fetchLog  storage.FetchLogRepository
	logger    *zap.Logger
}

// NewPokeAPI creates the client. fetchLog may be nil to skip call recording.
func NewPokeAPI(cfg PokeAPIConfig, fetchLog storage.FetchLogRepository, logger *zap.Logger) *PokeAPI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://pokeapi.co/api/v2"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "pokemmo-companion/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "pokeapi",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit-breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	})

	return &PokeAPI{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker:   breaker,
		fetchLog:  fetchLog,
		logger:    logger,
	}
}

// BreakerState reports the circuit breaker state for the stats endpoint.
func (p *PokeAPI) BreakerState() string {
	return p.breaker.State().String()
}

var formKeyPattern = regexp.MustCompile(`^id-(\d+)-form-(\d+)$`)

// Species resolves numeric ids, form keys and override slugs.
func (p *PokeAPI) Species(ctx context.Context, key string) (model.Species, error) {
	start := time.Now()
	out, status, err := p.species(ctx, strings.ToLower(strings.TrimSpace(key)))
	p.recordFetch(ctx, model.KindSpecies, key, status, err, time.Since(start))
	if err != nil {
		return model.Species{}, fmt.Errorf("species %s: %w", key, err)
	}
	return out, nil
}

func (p *PokeAPI) species(ctx context.Context, key string) (model.Species, int, error) {
	if key == "" {
		return model.Species{}, 0, ErrNotFound
	}

	// Form keys name the n-th variety of a species, counting the default
	// form as 0.
	if m := formKeyPattern.FindStringSubmatch(key); m != nil {
		form, _ := strconv.Atoi(m[2])
		var sp speciesResponse
		if status, err := p.getJSON(ctx, "/pokemon-species/"+m[1], &sp); err != nil {
			return model.Species{}, status, err
		}
		if form >= len(sp.Varieties) {
			return model.Species{}, http.StatusNotFound, fmt.Errorf("%w: species %s has no form %d", ErrNotFound, m[1], form)
		}
		var pk pokemonResponse
		status, err := p.getJSON(ctx, "/pokemon/"+sp.Varieties[form].Pokemon.Name, &pk)
		if err != nil {
			return model.Species{}, status, err
		}
		return flattenSpecies(&pk, &sp), status, nil
	}

	// Numeric ids and override slugs both resolve a pokemon first, then the
	// species it belongs to.
	var pk pokemonResponse
	if status, err := p.getJSON(ctx, "/pokemon/"+key, &pk); err != nil {
		return model.Species{}, status, err
	}
	speciesRef := pk.Species.Name
	if speciesRef == "" {
		speciesRef = strconv.Itoa(pk.ID)
	}
	var sp speciesResponse
	status, err := p.getJSON(ctx, "/pokemon-species/"+speciesRef, &sp)
	if err != nil {
		return model.Species{}, status, err
	}
	return flattenSpecies(&pk, &sp), status, nil
}

// Move fetches one move by numeric id.
func (p *PokeAPI) Move(ctx context.Context, id string) (model.Move, error) {
	start := time.Now()
	var m moveResponse
	status, err := p.getJSON(ctx, "/move/"+strings.TrimSpace(id), &m)
	p.recordFetch(ctx, model.KindMove, id, status, err, time.Since(start))
	if err != nil {
		return model.Move{}, fmt.Errorf("move %s: %w", id, err)
	}
	return flattenMove(&m), nil
}

// Ability fetches one ability by numeric id.
func (p *PokeAPI) Ability(ctx context.Context, id string) (model.Ability, error) {
	start := time.Now()
	var a abilityResponse
	status, err := p.getJSON(ctx, "/ability/"+strings.TrimSpace(id), &a)
	p.recordFetch(ctx, model.KindAbility, id, status, err, time.Since(start))
	if err != nil {
		return model.Ability{}, fmt.Errorf("ability %s: %w", id, err)
	}
	return flattenAbility(&a), nil
}

// getJSON performs one rate-limited, circuit-broken GET and decodes the
// body into dst. It returns the HTTP status (0 when no response arrived).
func (p *PokeAPI) getJSON(ctx context.Context, path string, dst any) (int, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait: %w", err)
	}

	status := 0
	_, err := p.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", p.userAgent)

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("requesting %s: %w", path, err)
		}
		defer resp.Body.Close()
		status = resp.StatusCode

		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("PokeAPI returned %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(body)))
		}

		// PokeAPI documents are large but bounded; 5MB leaves plenty of room.
		if err := json.NewDecoder(io.LimitReader(resp.Body, 5<<20)).Decode(dst); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return status, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return status, err
}

func (p *PokeAPI) recordFetch(ctx context.Context, kind model.ResourceKind, key string, status int, fetchErr error, d time.Duration) {
	if fetchErr != nil && !errors.Is(fetchErr, ErrNotFound) {
		p.logger.Warn("upstream fetch failed",
			zap.String("kind", string(kind)),
			zap.String("key", key),
			zap.Int("status", status),
			zap.Error(fetchErr),
		)
	}
	if p.fetchLog == nil {
		return
	}
	entry := &model.UpstreamFetch{
		Kind:       kind,
		Key:        key,
		Success:    fetchErr == nil,
		StatusCode: status,
		DurationMs: d.Milliseconds(),
	}
	// The log row is written even when the caller gave up on the request.
	if err := p.fetchLog.Create(context.WithoutCancel(ctx), entry); err != nil {
		p.logger.Error("recording upstream fetch", zap.Error(err))
	}
}

// FetchImage downloads a sprite. Sprite hosts are not PokeAPI, so this
// bypasses the limiter and the breaker.
func (p *PokeAPI) FetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	// Limit read to 10MB to prevent memory issues from unexpectedly large files.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return data, nil
}
