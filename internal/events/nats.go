package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix is used when events.subject_prefix is empty.
const DefaultSubjectPrefix = "pokemmo.ingest"

// NATSBus publishes events on core NATS subjects "{prefix}.{container}".
// Delivery is at-most-once; a missed event only delays the next refresh
// until the poller's next tick.
type NATSBus struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATSBus connects to url. The connection keeps retrying in the
// background if the server is down at startup.
func NewNATSBus(url, prefix string, logger *zap.Logger) (*NATSBus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	nc, err := nats.Connect(url,
		nats.Name("pokemmo-companion"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	logger.Info("NATS event bus initialised", zap.String("prefix", prefix))
	return &NATSBus{nc: nc, prefix: strings.TrimSuffix(prefix, "."), logger: logger}, nil
}

// Subject returns the subject events for container are published on.
func (b *NATSBus) Subject(ev Event) string {
	return b.prefix + "." + string(ev.Container)
}

func (b *NATSBus) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := b.nc.Publish(b.Subject(ev), data); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	b.logger.Debug("NATS event published",
		zap.String("subject", b.Subject(ev)),
		zap.String("event_id", ev.ID),
	)
	return nil
}

func (b *NATSBus) Subscribe(h Handler) (func(), error) {
	sub, err := b.nc.Subscribe(b.prefix+".*", func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			b.logger.Warn("dropping undecodable event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		h(context.Background(), ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s.*: %w", b.prefix, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Debug("unsubscribing", zap.Error(err))
		}
	}, nil
}

// Close drains pending messages and closes the connection.
func (b *NATSBus) Close() error {
	return b.nc.Drain()
}
