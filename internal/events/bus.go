// Package events carries "a new snapshot was ingested" notifications from
// the ingest endpoint to the container orchestrators.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/model"
)

// Event announces a stored snapshot.
type Event struct {
	ID           string              `json:"event_id"`
	Container    model.ContainerType `json:"container_type"`
	CapturedAtMs int64               `json:"captured_at_ms"`
	ReceivedAt   time.Time           `json:"received_at"`
}

// NewEvent stamps a new event for container.
func NewEvent(container model.ContainerType, capturedAtMs int64) Event {
	return Event{
		ID:           uuid.NewString(),
		Container:    container,
		CapturedAtMs: capturedAtMs,
		ReceivedAt:   time.Now().UTC(),
	}
}

// Handler receives events. Handlers run on the bus's delivery goroutine and
// should not block for long.
type Handler func(ctx context.Context, ev Event)

// Bus is the publish/subscribe interface. LocalBus serves a single process;
// NATSBus fans out across processes.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe registers h and returns a function that removes it.
	Subscribe(h Handler) (func(), error)
	Close() error
}

// LocalBus delivers events to in-process subscribers synchronously.
type LocalBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
	logger   *zap.Logger
}

// NewLocalBus creates an in-process bus.
func NewLocalBus(logger *zap.Logger) *LocalBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalBus{handlers: make(map[int]Handler), logger: logger}
}

func (b *LocalBus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	b.logger.Debug("publishing event",
		zap.String("event_id", ev.ID),
		zap.String("container", string(ev.Container)),
		zap.Int("subscribers", len(handlers)),
	)
	for _, h := range handlers {
		h(ctx, ev)
	}
	return nil
}

func (b *LocalBus) Subscribe(h Handler) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}, nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.handlers = make(map[int]Handler)
	b.mu.Unlock()
	return nil
}
