package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pericarp/es/pkg/domain"
)

// noopLogger discards everything; the bus itself never inspects what the
// logger does with a call, only that one is threaded through.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{})  {}
func (noopLogger) Info(string, ...interface{})   {}
func (noopLogger) Warn(string, ...interface{})   {}
func (noopLogger) Error(string, ...interface{})  {}
func (noopLogger) Fatal(string, ...interface{})  {}
func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Warnf(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}
func (noopLogger) Fatalf(string, ...interface{}) {}

type pingCommand struct{}

func (pingCommand) CommandType() string { return "ping" }

func okCommandHandler(calls *int64) Handler[pingCommand, struct{}] {
	return func(ctx context.Context, log domain.Logger, p Payload[pingCommand]) (Response[struct{}], error) {
		atomic.AddInt64(calls, 1)
		return Response[struct{}]{}, nil
	}
}

func TestCommandBus_RegisterThenDispatch(t *testing.T) {
	bus := NewCommandBus()
	var calls int64
	if err := RegisterCommandHandler(bus, okCommandHandler(&calls)); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := DispatchCommand(context.Background(), bus, noopLogger{}, pingCommand{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected handler invoked once, got %d", calls)
	}
}

func TestCommandBus_DispatchUnregisteredReturnsHandlerNotFound(t *testing.T) {
	bus := NewCommandBus()
	err := DispatchCommand(context.Background(), bus, noopLogger{}, pingCommand{})
	if err == nil {
		t.Fatal("expected an error for an unregistered command")
	}
	if domain.KindOf(err) != domain.KindInternal {
		t.Fatalf("expected KindInternal, got %v", domain.KindOf(err))
	}
	var derr *domain.Error
	if !asDomainError(err, &derr) || derr.Code != domain.CodeHandlerNotFound {
		t.Fatalf("expected CodeHandlerNotFound, got %v", err)
	}
}

func TestCommandBus_DuplicateRegistrationReturnsHandlerAlreadyRegistered(t *testing.T) {
	bus := NewCommandBus()
	var calls int64
	if err := RegisterCommandHandler(bus, okCommandHandler(&calls)); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := RegisterCommandHandler(bus, okCommandHandler(&calls))
	if err == nil {
		t.Fatal("expected an error registering the same command type twice")
	}
	var derr *domain.Error
	if !asDomainError(err, &derr) || derr.Code != domain.CodeHandlerAlreadyRegistered {
		t.Fatalf("expected CodeHandlerAlreadyRegistered, got %v", err)
	}
}

func TestCommandBus_RegisteredCommands(t *testing.T) {
	bus := NewCommandBus()
	var calls int64
	if err := RegisterCommandHandler(bus, okCommandHandler(&calls)); err != nil {
		t.Fatalf("register: %v", err)
	}
	names := bus.RegisteredCommands()
	if len(names) != 1 || names[0] != "application.pingCommand" {
		t.Fatalf("unexpected registered commands: %v", names)
	}
}

func TestCommandBus_ConcurrentDispatchAllSucceed(t *testing.T) {
	bus := NewCommandBus()
	var calls int64
	if err := RegisterCommandHandler(bus, okCommandHandler(&calls)); err != nil {
		t.Fatalf("register: %v", err)
	}

	const n = 100
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = DispatchCommand(context.Background(), bus, noopLogger{}, pingCommand{})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}
	if calls != n {
		t.Fatalf("expected %d handler invocations, got %d", n, calls)
	}
}

type getAccount struct{ id string }

func (getAccount) QueryType() string { return "getAccount" }

type numDTO struct{ n int }

type nameDTO struct{ name string }

func TestQueryBus_RegisterThenDispatch(t *testing.T) {
	bus := NewQueryBus()
	handler := func(ctx context.Context, log domain.Logger, p Payload[getAccount]) (Response[numDTO], error) {
		return Response[numDTO]{Data: numDTO{n: 1}}, nil
	}
	if err := RegisterQueryHandler(bus, handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := DispatchQuery[getAccount, numDTO](context.Background(), bus, noopLogger{}, getAccount{id: "a1"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.n != 1 {
		t.Fatalf("expected n=1, got %d", result.n)
	}
}

func TestQueryBus_DispatchUnregisteredReturnsHandlerNotFound(t *testing.T) {
	bus := NewQueryBus()
	_, err := DispatchQuery[getAccount, numDTO](context.Background(), bus, noopLogger{}, getAccount{})
	if err == nil {
		t.Fatal("expected an error for an unregistered query")
	}
	var derr *domain.Error
	if !asDomainError(err, &derr) || derr.Code != domain.CodeHandlerNotFound {
		t.Fatalf("expected CodeHandlerNotFound, got %v", err)
	}
}

func TestQueryBus_DuplicateRegistrationSameResultReturnsHandlerAlreadyRegistered(t *testing.T) {
	bus := NewQueryBus()
	handler := func(ctx context.Context, log domain.Logger, p Payload[getAccount]) (Response[numDTO], error) {
		return Response[numDTO]{Data: numDTO{n: 1}}, nil
	}
	if err := RegisterQueryHandler(bus, handler); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := RegisterQueryHandler(bus, handler)
	if err == nil {
		t.Fatal("expected an error registering the same (query, result) pair twice")
	}
	var derr *domain.Error
	if !asDomainError(err, &derr) || derr.Code != domain.CodeHandlerAlreadyRegistered {
		t.Fatalf("expected CodeHandlerAlreadyRegistered, got %v", err)
	}
}

// TestQueryBus_SameQueryDifferentResultTypes is scenario 6: the same query
// type registered with two different result types must not collide.
func TestQueryBus_SameQueryDifferentResultTypes(t *testing.T) {
	bus := NewQueryBus()
	numHandler := func(ctx context.Context, log domain.Logger, p Payload[getAccount]) (Response[numDTO], error) {
		return Response[numDTO]{Data: numDTO{n: 42}}, nil
	}
	nameHandler := func(ctx context.Context, log domain.Logger, p Payload[getAccount]) (Response[nameDTO], error) {
		return Response[nameDTO]{Data: nameDTO{name: "Alice"}}, nil
	}

	if err := RegisterQueryHandler(bus, numHandler); err != nil {
		t.Fatalf("register numHandler: %v", err)
	}
	if err := RegisterQueryHandler(bus, nameHandler); err != nil {
		t.Fatalf("register nameHandler: %v", err)
	}

	num, err := DispatchQuery[getAccount, numDTO](context.Background(), bus, noopLogger{}, getAccount{})
	if err != nil {
		t.Fatalf("dispatch numDTO: %v", err)
	}
	name, err := DispatchQuery[getAccount, nameDTO](context.Background(), bus, noopLogger{}, getAccount{})
	if err != nil {
		t.Fatalf("dispatch nameDTO: %v", err)
	}

	if num.n != 42 {
		t.Fatalf("expected n=42, got %d", num.n)
	}
	if name.name != "Alice" {
		t.Fatalf("expected name=Alice, got %q", name.name)
	}
}

func TestQueryBus_RegisteredQueries(t *testing.T) {
	bus := NewQueryBus()
	numHandler := func(ctx context.Context, log domain.Logger, p Payload[getAccount]) (Response[numDTO], error) {
		return Response[numDTO]{Data: numDTO{n: 1}}, nil
	}
	nameHandler := func(ctx context.Context, log domain.Logger, p Payload[getAccount]) (Response[nameDTO], error) {
		return Response[nameDTO]{Data: nameDTO{name: "Alice"}}, nil
	}
	if err := RegisterQueryHandler(bus, numHandler); err != nil {
		t.Fatalf("register numHandler: %v", err)
	}
	if err := RegisterQueryHandler(bus, nameHandler); err != nil {
		t.Fatalf("register nameHandler: %v", err)
	}

	names := bus.RegisteredQueries()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "application.getAccount" || names[1] != "application.getAccount" {
		t.Fatalf("unexpected registered queries: %v", names)
	}
}

func TestQueryBus_ConcurrentDispatchAllSucceed(t *testing.T) {
	bus := NewQueryBus()
	var calls int64
	handler := func(ctx context.Context, log domain.Logger, p Payload[getAccount]) (Response[numDTO], error) {
		n := atomic.AddInt64(&calls, 1)
		return Response[numDTO]{Data: numDTO{n: int(n)}}, nil
	}
	if err := RegisterQueryHandler(bus, handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	const n = 100
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = DispatchQuery[getAccount, numDTO](context.Background(), bus, noopLogger{}, getAccount{})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}
	if calls != n {
		t.Fatalf("expected %d handler invocations, got %d", n, calls)
	}
}

func TestDispatchBatchQuery_ShortCircuitsOnFirstError(t *testing.T) {
	bus := NewQueryBus()
	handler := func(ctx context.Context, log domain.Logger, p Payload[getAccount]) (Response[numDTO], error) {
		if p.Data.id == "bad" {
			return Response[numDTO]{}, fmt.Errorf("lookup failed for %s", p.Data.id)
		}
		return Response[numDTO]{Data: numDTO{n: len(p.Data.id)}}, nil
	}
	if err := RegisterQueryHandler(bus, handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	queries := []getAccount{{id: "a"}, {id: "bb"}, {id: "bad"}, {id: "ccc"}}
	results, err := DispatchBatchQuery[getAccount, numDTO](context.Background(), bus, noopLogger{}, queries)
	if err == nil {
		t.Fatal("expected the batch to fail on the third query")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results collected before the failure, got %d", len(results))
	}
	if results[0].n != 1 || results[1].n != 2 {
		t.Fatalf("unexpected partial results: %+v", results)
	}
}

func TestDispatchBatchQuery_AllSucceed(t *testing.T) {
	bus := NewQueryBus()
	handler := func(ctx context.Context, log domain.Logger, p Payload[getAccount]) (Response[numDTO], error) {
		return Response[numDTO]{Data: numDTO{n: len(p.Data.id)}}, nil
	}
	if err := RegisterQueryHandler(bus, handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	queries := []getAccount{{id: "a"}, {id: "bb"}, {id: "ccc"}}
	results, err := DispatchBatchQuery[getAccount, numDTO](context.Background(), bus, noopLogger{}, queries)
	if err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}
	if len(results) != 3 || results[0].n != 1 || results[1].n != 2 || results[2].n != 3 {
		t.Fatalf("unexpected results: %+v", results)
	}
}

// asDomainError reports whether err is itself a *domain.Error (a direct type
// assertion; wrapped errors are not unwrapped) and stores it in target.
func asDomainError(err error, target **domain.Error) bool {
	derr, ok := err.(*domain.Error)
	if !ok {
		return false
	}
	*target = derr
	return true
}
