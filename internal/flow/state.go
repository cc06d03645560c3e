// Package flow runs one orchestrator per container: it loads the raw
// snapshot, picks the visible records, enriches only those and exposes the
// combined loading state to observers.
package flow

// State is the aggregate loading state of a container.
type State string

const (
	StateLoading   State = "loading"   // raw snapshot outstanding
	StateEnriching State = "enriching" // raw data present, lookups outstanding
	StateReady     State = "ready"
	StateError     State = "error"
)

// RawStatus tracks the raw snapshot fetch. Loaded stays true once any
// snapshot arrived; Loading is only set by a manual refresh, so background
// polls never flash the loading state.
type RawStatus struct {
	Loaded  bool
	Loading bool
	Err     error
}

// EnrichStatus tracks the enrichment pass for the visible records.
type EnrichStatus struct {
	Running bool
	Err     error
}

// Derive computes the container state from the two stage statuses. It is
// recomputed on every change of either; error is not terminal.
func Derive(raw RawStatus, enrich EnrichStatus) State {
	switch {
	case raw.Err != nil:
		return StateError
	case raw.Loading || !raw.Loaded:
		return StateLoading
	case enrich.Err != nil:
		return StateError
	case enrich.Running:
		return StateEnriching
	default:
		return StateReady
	}
}
