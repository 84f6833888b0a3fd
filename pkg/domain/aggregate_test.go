package domain

import "testing"

// counterCommand/counterEvent/Counter exercise the Aggregate contract in
// isolation, the same role original_source's Counter test type plays.

type counterCommand struct {
	add    int
	sub    int
	isSub  bool
}

func addCmd(n int) counterCommand { return counterCommand{add: n} }
func subCmd(n int) counterCommand { return counterCommand{sub: n, isSub: true} }

type counterEvent struct {
	ID               string `json:"id"`
	AggVersion       int    `json:"aggregate_version"`
	Amount           int    `json:"amount"`
	Subtract         bool   `json:"subtract,omitempty"`
}

func (e counterEvent) EventID() string      { return e.ID }
func (e counterEvent) EventType() string {
	if e.Subtract {
		return "counter.subtracted"
	}
	return "counter.added"
}
func (e counterEvent) EventVersion() int     { return 1 }
func (e counterEvent) AggregateVersion() int { return e.AggVersion }

type Counter struct {
	BaseEntity
	value int
}

func NewCounter(id string, version int) *Counter {
	c := &Counter{BaseEntity: NewBaseEntity(id, version)}
	return c
}

func (c *Counter) AggregateType() string { return "counter" }

func (c *Counter) Execute(cmd counterCommand) ([]counterEvent, error) {
	if cmd.isSub {
		if cmd.sub <= 0 {
			return nil, NewInvalidCommand("amount must be > 0")
		}
		if c.value < cmd.sub {
			return nil, NewInvalidState("insufficient")
		}
		return []counterEvent{{ID: NewEventID(), AggVersion: c.Version() + 1, Amount: cmd.sub, Subtract: true}}, nil
	}

	if cmd.add <= 0 {
		return nil, NewInvalidCommand("amount must be > 0")
	}
	return []counterEvent{{ID: NewEventID(), AggVersion: c.Version() + 1, Amount: cmd.add}}, nil
}

func (c *Counter) Apply(event counterEvent) {
	if event.Subtract {
		c.value -= event.Amount
	} else {
		c.value += event.Amount
	}
	c.SetVersion(event.AggregateVersion())
}

func TestAggregateLifecycleCreateExecuteApply(t *testing.T) {
	agg := NewCounter("c-1", 0)
	if agg.ID() != "c-1" || agg.Version() != 0 || agg.value != 0 {
		t.Fatalf("unexpected fresh aggregate state: %+v", agg)
	}

	events, err := agg.Execute(addCmd(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].AggregateVersion() != 1 || events[0].Amount != 3 {
		t.Fatalf("unexpected events: %+v", events)
	}

	for _, e := range events {
		agg.Apply(e)
	}
	if agg.Version() != 1 || agg.value != 3 {
		t.Fatalf("expected version 1 value 3, got version %d value %d", agg.Version(), agg.value)
	}

	ev2, err := agg.Execute(addCmd(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range ev2 {
		agg.Apply(e)
	}

	ev3, err := agg.Execute(subCmd(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range ev3 {
		agg.Apply(e)
	}

	if agg.Version() != 3 || agg.value != 4 {
		t.Fatalf("expected version 3 value 4, got version %d value %d", agg.Version(), agg.value)
	}

	envelope := NewEventEnvelope(agg.ID(), agg.AggregateType(), counterEvent{
		ID: NewEventID(), AggVersion: agg.Version() + 1, Amount: 10,
	}, EventContext{})
	if envelope.Payload.AggregateVersion() != agg.Version()+1 {
		t.Fatalf("expected envelope payload aggregate version %d, got %d", agg.Version()+1, envelope.Payload.AggregateVersion())
	}
}

func TestInvalidCommandsShouldError(t *testing.T) {
	agg := NewCounter("c-2", 0)

	_, err := agg.Execute(subCmd(1))
	if KindOf(err) != KindInvalidState {
		t.Fatalf("expected InvalidState, got %v", KindOf(err))
	}

	_, err = agg.Execute(addCmd(0))
	if KindOf(err) != KindInvalidCommand {
		t.Fatalf("expected InvalidCommand, got %v", KindOf(err))
	}
}
