package infrastructure

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/pericarp/es/pkg/domain"
)

// outboxRow is one pending delivery attempt: the event plus whatever
// bookkeeping state the deliverer/reclaimer need to decide what to fetch
// next. id is independent of the event's own EventID, mirroring a real
// outbox table's own surrogate primary key.
type outboxRow struct {
	id            string
	event         domain.SerializedEvent
	delivered     bool
	failed        bool
	failureReason string
	handlerFailed bool
}

// MemoryOutbox is a shared in-memory outbox backing both a
// MemoryEventDeliverer and a MemoryEventReclaimer, standing in for a
// database table the write path appends to transactionally alongside an
// aggregate's event row.
type MemoryOutbox struct {
	mu   sync.Mutex
	rows []*outboxRow
}

// NewMemoryOutbox constructs an empty outbox.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{}
}

// Enqueue adds events to the outbox as pending delivery.
func (o *MemoryOutbox) Enqueue(events ...domain.SerializedEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range events {
		o.rows = append(o.rows, &outboxRow{id: uuid.NewString(), event: e})
	}
}

func (o *MemoryOutbox) findRow(eventID string) *outboxRow {
	for _, r := range o.rows {
		if r.event.EventID == eventID {
			return r
		}
	}
	return nil
}

// MemoryEventDeliverer implements eventing.EventDeliverer over a
// MemoryOutbox: it hands out rows never yet delivered or failed.
type MemoryEventDeliverer struct {
	outbox *MemoryOutbox
}

// NewMemoryEventDeliverer builds a deliverer over the given outbox.
func NewMemoryEventDeliverer(outbox *MemoryOutbox) *MemoryEventDeliverer {
	return &MemoryEventDeliverer{outbox: outbox}
}

// FetchEvents returns every row not yet delivered or marked failed.
func (d *MemoryEventDeliverer) FetchEvents(_ context.Context) ([]domain.SerializedEvent, error) {
	d.outbox.mu.Lock()
	defer d.outbox.mu.Unlock()

	var out []domain.SerializedEvent
	for _, r := range d.outbox.rows {
		if !r.delivered && !r.failed {
			out = append(out, r.event)
		}
	}
	return out, nil
}

// MarkDelivered flags each event's row as delivered so FetchEvents skips it.
func (d *MemoryEventDeliverer) MarkDelivered(_ context.Context, events []domain.SerializedEvent) error {
	d.outbox.mu.Lock()
	defer d.outbox.mu.Unlock()

	for _, e := range events {
		if r := d.outbox.findRow(e.EventID); r != nil {
			r.delivered = true
		}
	}
	return nil
}

// MarkFailed flags each event's row as failed, handing it off to the
// reclaimer's slower retry cadence instead of the deliverer's.
func (d *MemoryEventDeliverer) MarkFailed(_ context.Context, events []domain.SerializedEvent, reason string) error {
	d.outbox.mu.Lock()
	defer d.outbox.mu.Unlock()

	for _, e := range events {
		if r := d.outbox.findRow(e.EventID); r != nil {
			r.failed = true
			r.failureReason = reason
		}
	}
	return nil
}

// MemoryEventReclaimer implements eventing.EventReclaimer over the same
// MemoryOutbox a MemoryEventDeliverer draws from, retrying rows the
// deliverer or a handler marked failed.
type MemoryEventReclaimer struct {
	outbox *MemoryOutbox
}

// NewMemoryEventReclaimer builds a reclaimer over the given outbox.
func NewMemoryEventReclaimer(outbox *MemoryOutbox) *MemoryEventReclaimer {
	return &MemoryEventReclaimer{outbox: outbox}
}

// FetchEvents returns every row marked failed (by publish or by a handler)
// and not yet delivered.
func (r *MemoryEventReclaimer) FetchEvents(_ context.Context) ([]domain.SerializedEvent, error) {
	r.outbox.mu.Lock()
	defer r.outbox.mu.Unlock()

	var out []domain.SerializedEvent
	for _, row := range r.outbox.rows {
		if (row.failed || row.handlerFailed) && !row.delivered {
			out = append(out, row.event)
		}
	}
	return out, nil
}

// MarkReclaimed clears the failed/handlerFailed flags and marks delivered,
// since a successful reclaim publish means the event finally got out.
func (r *MemoryEventReclaimer) MarkReclaimed(_ context.Context, events []domain.SerializedEvent) error {
	r.outbox.mu.Lock()
	defer r.outbox.mu.Unlock()

	for _, e := range events {
		if row := r.outbox.findRow(e.EventID); row != nil {
			row.failed = false
			row.handlerFailed = false
			row.delivered = true
		}
	}
	return nil
}

// MarkFailed re-records a reclaim attempt's failure reason; the row stays
// eligible for the next reclaim pass.
func (r *MemoryEventReclaimer) MarkFailed(_ context.Context, events []domain.SerializedEvent, reason string) error {
	r.outbox.mu.Lock()
	defer r.outbox.mu.Unlock()

	for _, e := range events {
		if row := r.outbox.findRow(e.EventID); row != nil {
			row.failed = true
			row.failureReason = reason
		}
	}
	return nil
}

// MarkHandlerFailed is the hook the subscribe-path dispatcher feeds a
// handler failure into, independent of delivery succeeding: the event
// reached the bus fine, but one handler choked on it, so only that event
// needs a reclaim pass, not a redelivery.
func (r *MemoryEventReclaimer) MarkHandlerFailed(_ context.Context, handlerName string, events []domain.SerializedEvent, reason string) error {
	r.outbox.mu.Lock()
	defer r.outbox.mu.Unlock()

	for _, e := range events {
		if row := r.outbox.findRow(e.EventID); row != nil {
			row.handlerFailed = true
			row.failureReason = handlerName + ": " + reason
		}
	}
	return nil
}
