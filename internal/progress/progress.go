// Package progress defines the progress-event vocabulary shared by the
// Query Engine's streaming execution (spec §4.10) and the Index
// Pipeline (spec §4.17), so both report advancement through the same
// {phase, processed, total} shape instead of each inventing its own.
package progress

// Phase names one stage of a long-running operation.
type Phase string

const (
	PhaseChunk  Phase = "chunk"
	PhaseHash   Phase = "hash"
	PhaseEmbed  Phase = "embed"
	PhaseUpsert Phase = "upsert"
	PhaseDelete Phase = "delete"
)

// Event reports advancement within one Phase. Total is nil when the
// final count isn't known yet (e.g. streaming a source of unknown
// length).
type Event struct {
	Phase     Phase
	Processed int
	Total     *int
}

// Reporter receives Events. A nil Reporter is valid and simply
// discards every event, so callers never need to nil-check before
// emitting.
type Reporter func(Event)

// Emit calls r if non-nil.
func (r Reporter) Emit(e Event) {
	if r != nil {
		r(e)
	}
}
