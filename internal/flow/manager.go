package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/events"
	"github.com/fleveque/pokemmo-companion/internal/model"
)

var (
	// ErrUnknownContainer is returned for container names outside the enum.
	ErrUnknownContainer = errors.New("unknown container")
	// ErrNotBoxed is returned when selecting a box on a container without boxes.
	ErrNotBoxed = errors.New("container has no boxes")
	// ErrInvalidBox is returned for negative box indexes.
	ErrInvalidBox = errors.New("invalid box index")
)

// DefaultPollInterval is how often raw snapshots are re-read.
const DefaultPollInterval = 3 * time.Second

// Manager owns one Container per container type, runs their pollers and
// refreshes a container as soon as an ingest event for it arrives.
type Manager struct {
	containers map[model.ContainerType]*Container
	bus        events.Bus
	interval   time.Duration
	logger     *zap.Logger

	mu          sync.Mutex
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// NewManager creates the three container orchestrators. bus may be nil.
func NewManager(loader Loader, enricher Enricher, bus events.Bus, interval time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	m := &Manager{
		containers: make(map[model.ContainerType]*Container, len(model.AllContainers)),
		bus:        bus,
		interval:   interval,
		logger:     logger,
	}
	for _, kind := range model.AllContainers {
		m.containers[kind] = NewContainer(kind, loader, enricher, logger)
	}
	return m
}

// Container returns the orchestrator for a container type.
func (m *Manager) Container(kind model.ContainerType) (*Container, error) {
	c, ok := m.containers[kind]
	if !ok {
		return nil, ErrUnknownContainer
	}
	return c, nil
}

// Start launches the pollers and the event subscription. It returns once
// they are running; Stop shuts them down.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if m.bus != nil {
		unsubscribe, err := m.bus.Subscribe(func(_ context.Context, ev events.Event) {
			c, ok := m.containers[ev.Container]
			if !ok {
				return
			}
			m.logger.Debug("ingest event, refreshing container",
				zap.String("container", string(ev.Container)),
				zap.String("event_id", ev.ID),
			)
			// Bus handlers must not block the publisher. A publish already in
			// flight when Stop runs must not add to wg once Wait has begun.
			m.mu.Lock()
			if m.cancel == nil || runCtx.Err() != nil {
				m.mu.Unlock()
				return
			}
			m.wg.Add(1)
			m.mu.Unlock()
			go func() {
				defer m.wg.Done()
				c.Poll(runCtx)
			}()
		})
		if err != nil {
			cancel()
			m.cancel = nil
			return err
		}
		m.unsubscribe = unsubscribe
	}

	for _, c := range m.containers {
		m.wg.Add(1)
		go func(c *Container) {
			defer m.wg.Done()
			c.Run(runCtx, m.interval)
		}(c)
	}
	m.logger.Info("container orchestrators started", zap.Duration("poll_interval", m.interval))
	return nil
}

// Stop cancels the pollers and waits for them to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, unsubscribe := m.cancel, m.unsubscribe
	m.cancel, m.unsubscribe = nil, nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}
