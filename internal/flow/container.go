package flow

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/enrich"
	"github.com/fleveque/pokemmo-companion/internal/model"
)

// Loader reads the raw snapshot of a container.
type Loader interface {
	Load(ctx context.Context, container model.ContainerType) (*model.Envelope, error)
}

// Enricher runs the enrichment pipeline. *enrich.Pipeline implements it.
type Enricher interface {
	Run(ctx context.Context, records []model.RawRecord) ([]model.EnrichedRecord, enrich.Report)
	Merge(records []model.RawRecord) []model.EnrichedRecord
}

// BoxSummary describes one PC box without its records.
type BoxSummary struct {
	Index int    `json:"box_index"`
	Name  string `json:"name,omitempty"`
	Count int    `json:"count"`
}

// Snapshot is what observers see of a container at one point in time.
type Snapshot struct {
	Container    model.ContainerType    `json:"container"`
	State        State                  `json:"state"`
	Error        string                 `json:"error,omitempty"`
	CapturedAtMs int64                  `json:"captured_at_ms,omitempty"`
	ActiveBox    *int                   `json:"active_box,omitempty"`
	PendingBox   *int                   `json:"pending_box,omitempty"`
	Boxes        []BoxSummary           `json:"boxes,omitempty"`
	Pokemon      []model.EnrichedRecord `json:"pokemon"`
	Version      uint64                 `json:"version"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

const noBox = -1

// Container orchestrates one container. All exported methods are safe for
// concurrent use.
//
// Each raw fetch gets a generation number and its own cancellable context.
// Starting a new fetch cancels the previous one, and a result whose
// generation is no longer current is dropped without touching state. The
// enrichment pass is superseded the same way.
type Container struct {
	kind     model.ContainerType
	loader   Loader
	enricher Enricher
	logger   *zap.Logger

	mu           sync.Mutex
	base         context.Context
	raw          RawStatus
	enr          EnrichStatus
	env          *model.Envelope
	visible      []model.RawRecord
	records      []model.EnrichedRecord
	activeBox    int
	pendingBox   int
	rawGen       uint64
	cancelRaw    context.CancelFunc
	enrichGen    uint64
	cancelEnrich context.CancelFunc
	version      uint64
	updatedAt    time.Time
	nextSub      int
	subs         map[int]chan Snapshot
}

// NewContainer creates an idle orchestrator. Nothing is loaded until
// Refresh, Poll or Run is called.
func NewContainer(kind model.ContainerType, loader Loader, enricher Enricher, logger *zap.Logger) *Container {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Container{
		kind:       kind,
		loader:     loader,
		enricher:   enricher,
		logger:     logger.With(zap.String("container", string(kind))),
		base:       context.Background(),
		pendingBox: noBox,
		subs:       make(map[int]chan Snapshot),
		updatedAt:  time.Now(),
	}
	return c
}

// Kind returns the container type.
func (c *Container) Kind() model.ContainerType { return c.kind }

// Run polls the raw snapshot every interval until ctx is done. The first
// load happens immediately.
func (c *Container) Run(ctx context.Context, interval time.Duration) {
	c.mu.Lock()
	c.base = ctx
	c.mu.Unlock()

	c.Poll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.stop()
			return
		case <-ticker.C:
			c.Poll(ctx)
		}
	}
}

// Refresh is the manual refresh: it moves the container to loading, refetches
// the raw snapshot and re-runs enrichment. It also recovers from error.
func (c *Container) Refresh(ctx context.Context) {
	c.fetch(ctx, true)
}

// Poll refetches the raw snapshot in the background without changing the
// visible state until the result arrives.
func (c *Container) Poll(ctx context.Context) {
	c.fetch(ctx, false)
}

func (c *Container) fetch(ctx context.Context, manual bool) {
	c.mu.Lock()
	c.rawGen++
	gen := c.rawGen
	if c.cancelRaw != nil {
		c.cancelRaw()
	}
	rctx, cancel := context.WithCancel(ctx)
	c.cancelRaw = cancel
	if manual {
		c.raw.Loading = true
		c.raw.Err = nil
		c.publishLocked()
	}
	c.mu.Unlock()

	env, err := c.loader.Load(rctx, c.kind)
	// Read the context error before our own cancel masks it.
	if ctxErr := rctx.Err(); ctxErr != nil && err == nil {
		err = ctxErr
	}
	cancel()

	visible, start := c.applyRaw(gen, env, err, manual)
	if start {
		c.runEnrichment(ctx, visible)
	}
}

// OnRawDataChanged applies a raw fetch result. It returns the records to
// enrich and whether an enrichment pass should start. Results from a
// superseded generation are discarded.
func (c *Container) OnRawDataChanged(gen uint64, env *model.Envelope, err error) ([]model.RawRecord, bool) {
	return c.applyRaw(gen, env, err, false)
}

// applyRaw is OnRawDataChanged; force restarts enrichment even when the
// visible records did not change.
func (c *Container) applyRaw(gen uint64, env *model.Envelope, err error, force bool) ([]model.RawRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.rawGen {
		c.logger.Debug("discarding superseded raw fetch", zap.Uint64("generation", gen))
		return nil, false
	}
	c.cancelRaw = nil

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// The caller went away; keep whatever state we had.
			c.raw.Loading = false
			c.publishLocked()
			return nil, false
		}
		c.logger.Warn("raw snapshot fetch failed", zap.Error(err))
		c.raw = RawStatus{Loaded: c.raw.Loaded, Err: err}
		c.publishLocked()
		return nil, false
	}

	c.raw = RawStatus{Loaded: true}
	c.env = env

	// A pending box only takes over once the snapshot holds it; until then
	// the current grid stays up.
	switched := false
	if c.kind == model.ContainerPCBoxes && c.pendingBox != noBox && hasBox(env, c.pendingBox) {
		c.activeBox = c.pendingBox
		c.pendingBox = noBox
		switched = true
	}

	visible := c.visibleLocked()
	changed := switched || !reflect.DeepEqual(visible, c.visible)
	c.visible = visible

	start := false
	switch {
	case changed:
		// New records show right away with whatever the caches already hold.
		c.records = c.enricher.Merge(visible)
		start = true
	case force:
		c.records = c.enricher.Merge(visible)
		start = true
	case !c.enr.Running && (c.enr.Err != nil || incomplete(c.records)):
		// Failed keys are retried on the next pass.
		start = true
	}
	if start {
		c.enr = EnrichStatus{Running: true}
	}
	c.publishLocked()
	return visible, start
}

func (c *Container) runEnrichment(ctx context.Context, visible []model.RawRecord) {
	c.mu.Lock()
	c.enrichGen++
	gen := c.enrichGen
	if c.cancelEnrich != nil {
		c.cancelEnrich()
	}
	ectx, cancel := context.WithCancel(ctx)
	c.cancelEnrich = cancel
	c.mu.Unlock()

	records, report := c.enricher.Run(ectx, visible)
	cancelled := ectx.Err() != nil
	cancel()

	if cancelled {
		c.mu.Lock()
		if gen == c.enrichGen {
			c.enr.Running = false
			c.cancelEnrich = nil
			c.publishLocked()
		}
		c.mu.Unlock()
		return
	}
	c.OnEnrichmentChanged(gen, records, report.Err())
}

// OnEnrichmentChanged applies an enrichment result. A pass that was
// superseded by a newer one is discarded.
func (c *Container) OnEnrichmentChanged(gen uint64, records []model.EnrichedRecord, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.enrichGen {
		return
	}
	c.cancelEnrich = nil
	c.records = records
	c.enr = EnrichStatus{Err: err}
	if err != nil {
		c.logger.Warn("enrichment failed", zap.Error(err))
	}
	c.publishLocked()
}

// SelectBox switches the visible PC box. It never blocks: if the stored
// snapshot already holds the box the grid resets to it at once; otherwise
// the current grid stays up (stale) while a fetch runs, and the switch
// happens when that data arrives.
func (c *Container) SelectBox(index int) error {
	if c.kind != model.ContainerPCBoxes {
		return ErrNotBoxed
	}
	if index < 0 {
		return ErrInvalidBox
	}

	c.mu.Lock()
	if index == c.activeBox && c.pendingBox == noBox {
		c.mu.Unlock()
		return nil
	}
	base := c.base

	if c.env != nil && hasBox(c.env, index) {
		c.activeBox = index
		c.pendingBox = noBox
		c.visible = c.visibleLocked()
		c.records = c.enricher.Merge(c.visible)
		c.enr = EnrichStatus{Running: true}
		visible := c.visible
		c.publishLocked()
		c.mu.Unlock()

		go c.runEnrichment(base, visible)
		return nil
	}

	c.pendingBox = index
	c.publishLocked()
	c.mu.Unlock()

	go c.Poll(base)
	return nil
}

// Snapshot returns the current view.
func (c *Container) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel that receives the latest snapshot after every
// change, starting with the current one. A slow reader only misses
// intermediate snapshots, never the newest. Call the returned function to
// unsubscribe.
func (c *Container) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Snapshot, 1)
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Container) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelRaw != nil {
		c.cancelRaw()
	}
	if c.cancelEnrich != nil {
		c.cancelEnrich()
	}
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Container) publishLocked() {
	c.version++
	c.updatedAt = time.Now()
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (c *Container) snapshotLocked() Snapshot {
	snap := Snapshot{
		Container: c.kind,
		State:     Derive(c.raw, c.enr),
		Pokemon:   c.records,
		Version:   c.version,
		UpdatedAt: c.updatedAt,
	}
	if snap.Pokemon == nil {
		snap.Pokemon = []model.EnrichedRecord{}
	}
	switch {
	case c.raw.Err != nil:
		snap.Error = c.raw.Err.Error()
	case c.enr.Err != nil:
		snap.Error = c.enr.Err.Error()
	}
	if c.env != nil {
		snap.CapturedAtMs = c.env.CapturedAtMs
	}
	if c.kind == model.ContainerPCBoxes {
		active := c.activeBox
		snap.ActiveBox = &active
		if c.pendingBox != noBox {
			pending := c.pendingBox
			snap.PendingBox = &pending
		}
		if c.env != nil {
			for _, b := range c.env.Boxes {
				snap.Boxes = append(snap.Boxes, BoxSummary{Index: b.Index, Name: b.Name, Count: len(b.Pokemon)})
			}
		}
	}
	return snap
}

// visibleLocked returns the records of the current view. PC boxes only
// expose the active box.
func (c *Container) visibleLocked() []model.RawRecord {
	if c.env == nil {
		return nil
	}
	if c.kind != model.ContainerPCBoxes {
		return c.env.Pokemon
	}
	if box, ok := c.env.FindBox(c.activeBox); ok {
		return box.Pokemon
	}
	// Flat variant: the snapshot holds a single box identified by container_id.
	if len(c.env.Boxes) == 0 && c.env.Source.ContainerID == c.activeBox {
		return c.env.Pokemon
	}
	return nil
}

func hasBox(env *model.Envelope, index int) bool {
	if _, ok := env.FindBox(index); ok {
		return true
	}
	return len(env.Boxes) == 0 && env.Source.ContainerID == index
}

// incomplete reports whether any record still lacks data a lookup could
// provide.
func incomplete(records []model.EnrichedRecord) bool {
	for i := range records {
		r := &records[i]
		if !r.Enriched() || len(r.MovesData) < len(r.Moves) {
			return true
		}
	}
	return false
}
