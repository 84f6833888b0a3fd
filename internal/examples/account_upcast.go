package examples

import (
	"encoding/json"
	"fmt"

	"github.com/pericarp/es/pkg/domain"
)

// AccountCreditUpcasters rebuilds the migration path a real deployment
// would have accumulated for FundsCredited: the payload started as a float
// dollar amount, was fixed to integer cents, grew a "source" tag, and
// finally had its event type renamed from the original "account.credited"
// to "account.funds_credited" to match the aggregate's other event names.
// Feeding a v1 event through AccountCreditUpcasters().UpcastAll reaches the
// v4 shape FundsCredited decodes today.
func AccountCreditUpcasters() *domain.UpcasterChain {
	return domain.NewUpcasterChain(
		creditedDollarsToCents{},
		creditedAddSource{},
		creditedRenameEventType{},
	)
}

// creditedV1Payload is the original wire shape: a float dollar amount.
type creditedV1Payload struct {
	AmountDollars float64 `json:"amount_dollars"`
}

// creditedV2Payload fixed the float-money bug by moving to integer cents.
type creditedV2Payload struct {
	AmountCents int64 `json:"amount_cents"`
}

// creditedV3Payload added a source tag to distinguish deposits from
// interest postings and corrections.
type creditedV3Payload struct {
	AmountCents int64  `json:"amount_cents"`
	Source      string `json:"source"`
}

// creditedDollarsToCents rewrites v1 "account.credited" events (float
// dollars) into v2 (integer cents), rounding to the nearest cent.
type creditedDollarsToCents struct{}

func (creditedDollarsToCents) Name() string { return "credited_dollars_to_cents" }

func (creditedDollarsToCents) Applies(eventType string, eventVersion int) bool {
	return eventType == "account.credited" && eventVersion == 1
}

func (creditedDollarsToCents) Upcast(event domain.SerializedEvent) (domain.UpcastResult, error) {
	var old creditedV1Payload
	if _, err := domain.DecodeTagged(event.Payload, &old); err != nil {
		return domain.UpcastResult{}, fmt.Errorf("decode v1 credited payload: %w", err)
	}

	payload, err := domain.EncodeTagged(event.EventType, creditedV2Payload{
		AmountCents: int64(old.AmountDollars*100 + 0.5),
	})
	if err != nil {
		return domain.UpcastResult{}, err
	}

	event.EventVersion = 2
	event.Payload = payload
	return domain.One(event), nil
}

// creditedAddSource rewrites v2 events into v3, defaulting the new Source
// field to "legacy" for events that predate the field's introduction.
type creditedAddSource struct{}

func (creditedAddSource) Name() string { return "credited_add_source" }

func (creditedAddSource) Applies(eventType string, eventVersion int) bool {
	return eventType == "account.credited" && eventVersion == 2
}

func (creditedAddSource) Upcast(event domain.SerializedEvent) (domain.UpcastResult, error) {
	var old creditedV2Payload
	if _, err := domain.DecodeTagged(event.Payload, &old); err != nil {
		return domain.UpcastResult{}, fmt.Errorf("decode v2 credited payload: %w", err)
	}

	payload, err := domain.EncodeTagged(event.EventType, creditedV3Payload{
		AmountCents: old.AmountCents,
		Source:      "legacy",
	})
	if err != nil {
		return domain.UpcastResult{}, err
	}

	event.EventVersion = 3
	event.Payload = payload
	return domain.One(event), nil
}

// creditedRenameEventType rewrites v3 "account.credited" events to v4
// "account.funds_credited", the name FundsCredited.EventType returns today.
// The field shape is unchanged; only the outer tag and event_type move.
type creditedRenameEventType struct{}

func (creditedRenameEventType) Name() string { return "credited_rename_event_type" }

func (creditedRenameEventType) Applies(eventType string, eventVersion int) bool {
	return eventType == "account.credited" && eventVersion == 3
}

func (creditedRenameEventType) Upcast(event domain.SerializedEvent) (domain.UpcastResult, error) {
	var old creditedV3Payload
	if _, err := domain.DecodeTagged(event.Payload, &old); err != nil {
		return domain.UpcastResult{}, fmt.Errorf("decode v3 credited payload: %w", err)
	}

	const renamed = "account.funds_credited"
	payload, err := domain.EncodeTagged(renamed, creditedV3Payload{
		AmountCents: old.AmountCents,
		Source:      old.Source,
	})
	if err != nil {
		return domain.UpcastResult{}, err
	}

	event.EventType = renamed
	event.EventVersion = 4
	event.Payload = payload
	return domain.One(event), nil
}

// encodeLegacyCreditedV1 builds a SerializedEvent in the original
// "account.credited" v1 shape, for tests exercising the full upcast chain.
func encodeLegacyCreditedV1(eventID, aggregateID string, aggregateVersion int, amountDollars float64) (domain.SerializedEvent, error) {
	payload, err := domain.EncodeTagged("account.credited", creditedV1Payload{AmountDollars: amountDollars})
	if err != nil {
		return domain.SerializedEvent{}, err
	}
	return domain.SerializedEvent{
		EventID:          eventID,
		EventType:        "account.credited",
		EventVersion:     1,
		AggregateID:      aggregateID,
		AggregateType:    AccountAggregateType,
		AggregateVersion: aggregateVersion,
		Payload:          payload,
		Context:          json.RawMessage(`{}`),
	}, nil
}
