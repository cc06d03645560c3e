// Package service contains the business logic behind the HTTP handlers and
// the CLI: snapshot ingest, resource lookups and the sprite proxy.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/events"
	"github.com/fleveque/pokemmo-companion/internal/model"
	"github.com/fleveque/pokemmo-companion/internal/storage"
)

var (
	// ErrNotFound means a resource could not be resolved upstream.
	ErrNotFound = errors.New("not found")
	// ErrInvalidSource is returned for a source outside party, daycare and pc_boxes.
	ErrInvalidSource = errors.New("invalid source")
)

// StateService stores ingested snapshots and serves them back. Files on
// disk are the only durable state; each ingest overwrites the previous
// snapshot of its container.
type StateService struct {
	dumps  *storage.DumpStore
	bus    events.Bus
	logger *zap.Logger
	now    func() time.Time
}

// NewStateService creates a StateService. bus may be nil when nothing needs
// to hear about new snapshots.
func NewStateService(dumps *storage.DumpStore, bus events.Bus, logger *zap.Logger) *StateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	RegisterValidators()
	return &StateService{dumps: dumps, bus: bus, logger: logger, now: time.Now}
}

// ParseSource maps the source query parameter to a container. Empty means
// party.
func ParseSource(source string) (model.ContainerType, error) {
	if source == "" {
		return model.ContainerParty, nil
	}
	if !model.ValidContainer(source) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
	return model.ContainerType(source), nil
}

// Ingest validates a snapshot and stores the exact bytes received, so the
// state endpoint returns it unchanged. Validation failures come back as
// *ValidationError.
func (s *StateService) Ingest(ctx context.Context, raw []byte) (*model.Envelope, error) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	container := env.Source.ContainerType
	if err := s.dumps.WriteRaw(container, raw); err != nil {
		return nil, fmt.Errorf("storing %s snapshot: %w", container, err)
	}

	s.logger.Info("snapshot ingested",
		zap.String("container", string(container)),
		zap.Int("pokemon", len(env.Pokemon)),
		zap.Int("boxes", len(env.Boxes)),
		zap.Int64("captured_at_ms", env.CapturedAtMs),
	)

	if s.bus != nil {
		if err := s.bus.Publish(ctx, events.NewEvent(container, env.CapturedAtMs)); err != nil {
			// The pollers pick the snapshot up on their next tick anyway.
			s.logger.Warn("publishing ingest event", zap.Error(err))
		}
	}
	return env, nil
}

// State returns the stored snapshot bytes for a source, or a synthesized
// empty envelope when nothing was ingested yet.
func (s *StateService) State(_ context.Context, source string) ([]byte, error) {
	container, err := ParseSource(source)
	if err != nil {
		return nil, err
	}

	data, err := s.dumps.ReadRaw(container)
	if errors.Is(err, storage.ErrNotFound) {
		return json.Marshal(model.EmptyEnvelope(container, s.now().UnixMilli()))
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s snapshot: %w", container, err)
	}
	return data, nil
}

// Load decodes the stored snapshot of a container. The flow orchestrators
// poll through it.
func (s *StateService) Load(_ context.Context, container model.ContainerType) (*model.Envelope, error) {
	env, err := s.dumps.Read(container)
	if errors.Is(err, storage.ErrNotFound) {
		return model.EmptyEnvelope(container, s.now().UnixMilli()), nil
	}
	if err != nil {
		return nil, err
	}
	return env, nil
}

// Records returns every raw record of the given containers, flattening PC
// boxes. The warm command uses it to find the keys worth prefetching.
func (s *StateService) Records(ctx context.Context, containers []model.ContainerType) ([]model.RawRecord, error) {
	var out []model.RawRecord
	for _, c := range containers {
		env, err := s.Load(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, env.Pokemon...)
		for _, box := range env.Boxes {
			out = append(out, box.Pokemon...)
		}
	}
	return out, nil
}
