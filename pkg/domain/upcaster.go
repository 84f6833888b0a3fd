package domain

// UpcastResultKind discriminates the three shapes an upcast stage can
// produce for a single input event.
type UpcastResultKind int

const (
	// UpcastOne replaces the event with exactly one rewritten event.
	UpcastOne UpcastResultKind = iota
	// UpcastMany splits the event into zero or more rewritten events.
	UpcastMany
	// UpcastDrop retires the event; it does not survive into the next pass.
	UpcastDrop
)

// UpcastResult is the outcome of running one Upcaster against one
// SerializedEvent.
type UpcastResult struct {
	Kind   UpcastResultKind
	Events []SerializedEvent // One element for UpcastOne, N for UpcastMany, ignored for UpcastDrop.
}

// One wraps a single replacement event.
func One(e SerializedEvent) UpcastResult {
	return UpcastResult{Kind: UpcastOne, Events: []SerializedEvent{e}}
}

// Many wraps a split into zero or more replacement events.
func Many(es []SerializedEvent) UpcastResult {
	return UpcastResult{Kind: UpcastMany, Events: es}
}

// Drop retires the event.
func Drop() UpcastResult {
	return UpcastResult{Kind: UpcastDrop}
}

// Upcaster is a stateless predicate+rewriter from one (event_type,
// event_version) to its successor shape.
type Upcaster interface {
	// Applies reports whether this stage should run against an event of
	// the given type and version.
	Applies(eventType string, eventVersion int) bool

	// Upcast rewrites, splits, or drops a single serialized event. Any
	// error aborts the whole batch.
	Upcast(event SerializedEvent) (UpcastResult, error)

	// Name identifies the stage for error reporting.
	Name() string
}

// UpcasterChain owns an ordered list of Upcaster stages and runs them to a
// fixed point. Upcasters must make monotone progress — each rewrite should
// advance event_version or change event_type so that no cycle is possible;
// the chain does not detect non-termination.
type UpcasterChain struct {
	stages []Upcaster
}

// NewUpcasterChain builds a chain from an ordered list of stages.
func NewUpcasterChain(stages ...Upcaster) *UpcasterChain {
	return &UpcasterChain{stages: stages}
}

// UpcastAll loops: in each pass, every event is threaded through every
// stage in order; results are flattened (Many) or omitted (Drop). The loop
// repeats until a pass fires no stage. UpcastAll is idempotent on its own
// output: a pass over already-stable events fires no stage and returns
// immediately.
func (c *UpcasterChain) UpcastAll(events []SerializedEvent) ([]SerializedEvent, error) {
	current := events
	for {
		next, changed, err := c.upcastOnce(current)
		if err != nil {
			return nil, err
		}
		current = next
		if !changed {
			return current, nil
		}
	}
}

// upcastOnce threads every event in turn through every stage in order,
// flattening splits and omitting drops, and reports whether any stage fired.
func (c *UpcasterChain) upcastOnce(events []SerializedEvent) ([]SerializedEvent, bool, error) {
	out := make([]SerializedEvent, 0, len(events))
	anyChanged := false
	for _, event := range events {
		rewritten, eventChanged, err := c.upcastSingleEvent(event)
		if err != nil {
			return nil, false, err
		}
		anyChanged = anyChanged || eventChanged
		out = append(out, rewritten...)
	}
	return out, anyChanged, nil
}

// upcastSingleEvent folds one event through every stage of the chain,
// expanding a Many result into its elements (each continuing through the
// remaining stages independently) and stopping a Drop result cold.
func (c *UpcasterChain) upcastSingleEvent(event SerializedEvent) ([]SerializedEvent, bool, error) {
	pending := []SerializedEvent{event}
	changed := false

	for _, stage := range c.stages {
		next := make([]SerializedEvent, 0, len(pending))
		for _, e := range pending {
			if !stage.Applies(e.EventType, e.EventVersion) {
				next = append(next, e)
				continue
			}

			result, err := stage.Upcast(e)
			if err != nil {
				return nil, false, NewUpcastFailed(e.EventType, e.EventVersion, stage.Name(), err.Error())
			}

			changed = true
			if result.Kind != UpcastDrop {
				next = append(next, result.Events...)
			}
		}
		pending = next
	}

	return pending, changed, nil
}
