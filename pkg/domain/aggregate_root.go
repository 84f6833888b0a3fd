package domain

import "context"

// AggregateRoot orchestrates the load-execute-apply-save pipeline for one
// or more commands issued against a single aggregate id. It holds no state
// of its own beyond the repository it was built with.
type AggregateRoot[A Aggregate[C, E], C any, E Event] struct {
	repo         AggregateRepository[A, C, E]
	newAggregate func(id string, version int) A
}

// NewAggregateRoot builds the orchestrator. newAggregate is the same
// zero-value factory passed to the underlying event-sourced repository,
// used here to create a fresh aggregate when Load reports none exists.
func NewAggregateRoot[A Aggregate[C, E], C any, E Event](
	repo AggregateRepository[A, C, E],
	newAggregate func(id string, version int) A,
) *AggregateRoot[A, C, E] {
	return &AggregateRoot[A, C, E]{repo: repo, newAggregate: newAggregate}
}

// Execute loads the aggregate (or creates a fresh one at version 0 if
// absent), folds each command through Execute+Apply in order so later
// commands in the batch see the state left by earlier ones, then persists
// every produced event with a single Save call. If any Execute fails,
// nothing is persisted and the partially-mutated in-memory aggregate is
// discarded — the framework never retries; the caller decides.
func (r *AggregateRoot[A, C, E]) Execute(ctx context.Context, id string, commands []C, evtCtx EventContext) ([]EventEnvelope[E], error) {
	aggregate, found, err := r.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		aggregate = r.newAggregate(id, 0)
	}

	var produced []E
	for _, command := range commands {
		events, err := aggregate.Execute(command)
		if err != nil {
			return nil, err
		}
		for _, event := range events {
			aggregate.Apply(event)
		}
		produced = append(produced, events...)
	}

	return r.repo.Save(ctx, aggregate, produced, evtCtx)
}

// Load exposes a direct read path (no command execution) for query-side
// consumers that need the current aggregate state.
func (r *AggregateRoot[A, C, E]) Load(ctx context.Context, id string) (A, bool, error) {
	return r.repo.Load(ctx, id)
}
