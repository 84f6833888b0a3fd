package examples

import (
	"context"

	"go.uber.org/fx"

	"github.com/pericarp/es/pkg/application"
	"github.com/pericarp/es/pkg/domain"
	"github.com/pericarp/es/pkg/infrastructure"
)

// AccountRoot is the orchestrator type cmd/demo and tests depend on;
// callers never see which repository variant (plain event-sourced or
// snapshot-accelerated) backs it.
type AccountRoot = domain.AggregateRoot[*Account, AccountCommand, AccountEvent]

// NewAccountRoot builds the orchestrator over repo, whichever variant the
// caller constructed.
func NewAccountRoot(repo domain.AggregateRepository[*Account, AccountCommand, AccountEvent]) *AccountRoot {
	return domain.NewAggregateRoot[*Account, AccountCommand, AccountEvent](repo, NewAccount)
}

// RegisterAccountCommandHandlers binds OpenAccount, DepositFunds and
// WithdrawFunds on bus, each routed through root. Every handler shares the
// same load-execute-apply-save pipeline; only the command type differs.
func RegisterAccountCommandHandlers(bus *application.CommandBus, root *AccountRoot) error {
	if err := application.RegisterCommandHandler(bus, accountCommandHandler[OpenAccount](root)); err != nil {
		return err
	}
	if err := application.RegisterCommandHandler(bus, accountCommandHandler[DepositFunds](root)); err != nil {
		return err
	}
	if err := application.RegisterCommandHandler(bus, accountCommandHandler[WithdrawFunds](root)); err != nil {
		return err
	}
	return nil
}

// accountCommandHandler adapts any AccountCommand-satisfying type C into
// the Handler[C, struct{}] shape RegisterCommandHandler expects: execute
// it against root under its own id and discard the produced envelopes
// (callers that need them call root.Execute directly instead of going
// through the bus).
func accountCommandHandler[C interface {
	AccountCommand
	accountID() string
	CommandType() string
}](root *AccountRoot) application.Handler[C, struct{}] {
	return func(ctx context.Context, log domain.Logger, p application.Payload[C]) (application.Response[struct{}], error) {
		evtCtx := domain.EventContext{CorrelationID: p.TraceID, ActorID: p.UserID}
		_, err := root.Execute(ctx, p.Data.accountID(), []AccountCommand{p.Data}, evtCtx)
		if err != nil {
			log.Debug("account command rejected", "command", p.Data.CommandType(), "error", err)
			return application.Response[struct{}]{}, err
		}
		return application.Response[struct{}]{}, nil
	}
}

func (c OpenAccount) accountID() string   { return c.AccountID }
func (c DepositFunds) accountID() string  { return c.AccountID }
func (c WithdrawFunds) accountID() string { return c.AccountID }

// AccountModule wires a self-contained, in-memory Account demo: its own
// memory event/snapshot repositories, the credited-event upcaster chain,
// the snapshot-accelerated AccountRoot, and the three command handlers
// registered on the shared bus. Use this when nothing else in the fx.App
// provides domain.EventRepository/SnapshotRepository.
var AccountModule = fx.Options(
	fx.Provide(
		accountMemoryEventRepositoryProvider,
		accountMemorySnapshotRepositoryProvider,
		accountUpcasterChainProvider,
		accountRootProvider,
	),
	fx.Invoke(RegisterAccountCommandHandlers),
)

// AccountHandlersModule wires only the upcaster chain, AccountRoot and
// command handlers, for hosts that already provide
// domain.EventRepository/SnapshotRepository themselves — e.g. a binary
// that also includes infrastructure.InfrastructureModule, whose
// GORM-backed repositories this then rides on top of. Combining this with
// AccountModule in the same fx.App double-provides EventRepository and
// panics at startup; pick one.
var AccountHandlersModule = fx.Options(
	fx.Provide(
		accountUpcasterChainProvider,
		accountRootProvider,
	),
	fx.Invoke(RegisterAccountCommandHandlers),
)

func accountUpcasterChainProvider() *domain.UpcasterChain {
	return AccountCreditUpcasters()
}

func accountMemoryEventRepositoryProvider() domain.EventRepository {
	return infrastructure.NewMemoryEventRepository()
}

func accountMemorySnapshotRepositoryProvider() domain.SnapshotRepository {
	return infrastructure.NewMemorySnapshotRepository()
}

// accountRootProvider always builds the snapshot-accelerated repository
// variant; whoever supplies SnapshotRepository (memory- or GORM-backed)
// determines whether that acceleration is durable.
func accountRootProvider(
	events domain.EventRepository,
	snapshots domain.SnapshotRepository,
	upcasters *domain.UpcasterChain,
) *AccountRoot {
	eventSourced := NewAccountEventRepository(events, upcasters)
	snapshotting := NewAccountSnapshottingRepository(eventSourced, snapshots)
	return NewAccountRoot(snapshotting)
}
