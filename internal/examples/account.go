// Package examples shows the framework end to end through one small
// aggregate: a bank account that can be opened, credited and debited. It
// exercises the generic command bus, both aggregate repository variants,
// and the upcaster chain on a schema that actually changed shape across
// versions (see account_upcast.go).
package examples

import (
	"encoding/json"
	"fmt"

	"github.com/pericarp/es/pkg/domain"
)

// AccountAggregateType tags every event this aggregate produces.
const AccountAggregateType = "account"

// AccountCommand is the closed set of commands Account.Execute accepts.
type AccountCommand interface {
	accountCommand()
}

// OpenAccount opens a new account under an owner. Only valid as the first
// command against an id.
type OpenAccount struct {
	AccountID string
	OwnerID   string
}

func (OpenAccount) accountCommand()     {}
func (OpenAccount) CommandType() string { return "OpenAccount" }

// DepositFunds credits an open account.
type DepositFunds struct {
	AccountID   string
	AmountCents int64
}

func (DepositFunds) accountCommand()     {}
func (DepositFunds) CommandType() string { return "DepositFunds" }

// WithdrawFunds debits an open account, rejected if it would overdraw.
type WithdrawFunds struct {
	AccountID   string
	AmountCents int64
}

func (WithdrawFunds) accountCommand()     {}
func (WithdrawFunds) CommandType() string { return "WithdrawFunds" }

// eventBase carries the three fields every SerializedEvent already stores
// out of band (event id, event version, aggregate version). It is excluded
// from the JSON payload via `json:"-"` and restored by decodeAccountEvent
// after DecodeTagged has populated the domain-specific fields.
type eventBase struct {
	ID         string `json:"-"`
	Version    int    `json:"-"`
	AggVersion int    `json:"-"`
}

func (e eventBase) EventID() string      { return e.ID }
func (e eventBase) EventVersion() int    { return e.Version }
func (e eventBase) AggregateVersion() int { return e.AggVersion }

// AccountEvent is the closed set of events Account.Apply folds.
type AccountEvent interface {
	domain.Event
	accountEvent()
}

// AccountOpened records the account's owner at creation.
type AccountOpened struct {
	eventBase
	OwnerID string `json:"owner_id"`
}

func (AccountOpened) EventType() string { return "account.opened" }
func (AccountOpened) accountEvent()     {}

// FundsCredited is the current (v4) shape of a credit to the balance. See
// account_upcast.go for the v1-v3 shapes this replaced.
type FundsCredited struct {
	eventBase
	AmountCents int64  `json:"amount_cents"`
	Source      string `json:"source"`
}

func (FundsCredited) EventType() string { return "account.funds_credited" }
func (FundsCredited) accountEvent()     {}

// FundsDebited records a debit from the balance.
type FundsDebited struct {
	eventBase
	AmountCents int64 `json:"amount_cents"`
}

func (FundsDebited) EventType() string { return "account.debited" }
func (FundsDebited) accountEvent()     {}

// Account is an event-sourced bank account: opened once, then credited and
// debited any number of times. It never goes negative.
type Account struct {
	domain.BaseEntity
	ownerID      string
	balanceCents int64
	opened       bool
}

// NewAccount is the zero-value factory both repository variants use to
// seed Load/replay.
func NewAccount(id string, version int) *Account {
	return &Account{BaseEntity: domain.NewBaseEntity(id, version)}
}

// AggregateType identifies every event this aggregate produces.
func (a *Account) AggregateType() string { return AccountAggregateType }

// OwnerID returns the account's owner, empty until AccountOpened has been
// applied.
func (a *Account) OwnerID() string { return a.ownerID }

// BalanceCents returns the current balance.
func (a *Account) BalanceCents() int64 { return a.balanceCents }

// Execute validates command against the account's current state and
// returns the event it produces. It never mutates the receiver.
func (a *Account) Execute(command AccountCommand) ([]AccountEvent, error) {
	switch cmd := command.(type) {
	case OpenAccount:
		if a.opened {
			return nil, domain.NewInvalidState("account already open")
		}
		if cmd.OwnerID == "" {
			return nil, domain.NewInvalidCommand("owner id is required")
		}
		return []AccountEvent{AccountOpened{
			eventBase: eventBase{ID: domain.NewEventID(), Version: 1, AggVersion: a.Version() + 1},
			OwnerID:   cmd.OwnerID,
		}}, nil

	case DepositFunds:
		if !a.opened {
			return nil, domain.NewInvalidState("account is not open")
		}
		if cmd.AmountCents <= 0 {
			return nil, domain.NewInvalidCommand("deposit amount must be positive")
		}
		return []AccountEvent{FundsCredited{
			eventBase:   eventBase{ID: domain.NewEventID(), Version: 4, AggVersion: a.Version() + 1},
			AmountCents: cmd.AmountCents,
			Source:      "deposit",
		}}, nil

	case WithdrawFunds:
		if !a.opened {
			return nil, domain.NewInvalidState("account is not open")
		}
		if cmd.AmountCents <= 0 {
			return nil, domain.NewInvalidCommand("withdrawal amount must be positive")
		}
		if cmd.AmountCents > a.balanceCents {
			return nil, domain.NewInvalidState("insufficient funds")
		}
		return []AccountEvent{FundsDebited{
			eventBase:   eventBase{ID: domain.NewEventID(), Version: 1, AggVersion: a.Version() + 1},
			AmountCents: cmd.AmountCents,
		}}, nil

	default:
		return nil, domain.NewInvalidCommand(fmt.Sprintf("unrecognized command %T", command))
	}
}

// Apply folds a single event into account state and advances the version.
func (a *Account) Apply(event AccountEvent) {
	switch e := event.(type) {
	case AccountOpened:
		a.ownerID = e.OwnerID
		a.opened = true
	case FundsCredited:
		a.balanceCents += e.AmountCents
	case FundsDebited:
		a.balanceCents -= e.AmountCents
	}
	a.SetVersion(event.AggregateVersion())
}

// decodeAccountEvent turns a (possibly upcasted) SerializedEvent back into
// the typed AccountEvent Apply folds over.
func decodeAccountEvent(se domain.SerializedEvent) (AccountEvent, error) {
	base := eventBase{ID: se.EventID, Version: se.EventVersion, AggVersion: se.AggregateVersion}

	switch se.EventType {
	case "account.opened":
		var e AccountOpened
		if _, err := domain.DecodeTagged(se.Payload, &e); err != nil {
			return nil, err
		}
		e.eventBase = base
		return e, nil

	case "account.funds_credited":
		var e FundsCredited
		if _, err := domain.DecodeTagged(se.Payload, &e); err != nil {
			return nil, err
		}
		e.eventBase = base
		return e, nil

	case "account.debited":
		var e FundsDebited
		if _, err := domain.DecodeTagged(se.Payload, &e); err != nil {
			return nil, err
		}
		e.eventBase = base
		return e, nil

	default:
		return nil, domain.NewInternal("UNKNOWN_ACCOUNT_EVENT",
			fmt.Sprintf("unrecognized account event type %s", se.EventType), nil)
	}
}

// NewAccountEventRepository builds the plain event-sourced repository for
// Account, replaying every event through upcasters on every Load.
func NewAccountEventRepository(
	events domain.EventRepository,
	upcasters *domain.UpcasterChain,
) *domain.EventStoreAggregateRepository[*Account, AccountCommand, AccountEvent] {
	return domain.NewEventStoreAggregateRepository[*Account, AccountCommand, AccountEvent](
		events, upcasters, AccountAggregateType, NewAccount, decodeAccountEvent)
}

// AccountSnapshot is the payload shape encodeAccountSnapshot marshals into
// SerializedSnapshot.Payload.
type AccountSnapshot struct {
	OwnerID      string `json:"owner_id"`
	BalanceCents int64  `json:"balance_cents"`
	Opened       bool   `json:"opened"`
}

// NewAccountSnapshottingRepository builds the snapshot-accelerated
// repository, falling back to eventSourced on a snapshot miss.
func NewAccountSnapshottingRepository(
	eventSourced *domain.EventStoreAggregateRepository[*Account, AccountCommand, AccountEvent],
	snapshots domain.SnapshotRepository,
) *domain.SnapshottingAggregateRepository[*Account, AccountCommand, AccountEvent] {
	return domain.NewSnapshottingAggregateRepository[*Account, AccountCommand, AccountEvent](
		eventSourced, snapshots, AccountAggregateType,
		decodeAccountSnapshot, encodeAccountSnapshot,
	)
}

func encodeAccountSnapshot(a *Account) (domain.SerializedSnapshot, error) {
	payload, err := json.Marshal(AccountSnapshot{
		OwnerID:      a.ownerID,
		BalanceCents: a.balanceCents,
		Opened:       a.opened,
	})
	if err != nil {
		return domain.SerializedSnapshot{}, domain.NewSerializationError(err)
	}
	return domain.SerializedSnapshot{
		AggregateID:      a.ID(),
		AggregateType:    AccountAggregateType,
		AggregateVersion: a.Version(),
		Payload:          payload,
	}, nil
}

func decodeAccountSnapshot(snapshot domain.SerializedSnapshot) (*Account, error) {
	var state AccountSnapshot
	if err := json.Unmarshal(snapshot.Payload, &state); err != nil {
		return nil, domain.NewSerializationError(err)
	}
	account := NewAccount(snapshot.AggregateID, snapshot.AggregateVersion)
	account.ownerID = state.OwnerID
	account.balanceCents = state.BalanceCents
	account.opened = state.Opened
	return account, nil
}
