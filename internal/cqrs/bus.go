// Package cqrs routes commands and queries to their registered handlers.
// Commands mutate state and return a result plus any follow-up events the
// caller is responsible for emitting; queries are read-only. Both sides are
// keyed by message name so transports (HTTP, CLI) can dispatch untyped
// payloads without importing every service.
package cqrs

import (
	"context"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/authplane/authplane/internal/apperr"
)

// HandlerFunc handles one message type. msg is the concrete message value
// registered under the name being dispatched.
type HandlerFunc func(ctx context.Context, msg any) (any, error)

// Observer is notified after each dispatch with the handler's outcome and
// duration. telemetry.DispatchMetrics satisfies it.
type Observer interface {
	RecordDispatch(ctx context.Context, kind, name string, durationMs float64, err error)
}

type registration struct {
	prototype func() any
	handle    HandlerFunc
}

// Bus holds the command and query registries. Registration happens once at
// wiring time; Dispatch is safe for concurrent use afterwards.
type Bus struct {
	mu       sync.RWMutex
	commands map[string]registration
	queries  map[string]registration
	observer Observer
}

func NewBus() *Bus {
	return &Bus{
		commands: make(map[string]registration),
		queries:  make(map[string]registration),
	}
}

// SetObserver installs the dispatch observer. Call before serving traffic.
func (b *Bus) SetObserver(o Observer) {
	b.observer = o
}

// RegisterCommand binds a command name to a handler. prototype builds an
// empty message value for raw decoding. Re-registering a name is a wiring
// bug and fails loudly.
func (b *Bus) RegisterCommand(name string, prototype func() any, handle HandlerFunc) error {
	return b.register(b.commands, "command", name, prototype, handle)
}

// RegisterQuery binds a query name to a handler.
func (b *Bus) RegisterQuery(name string, prototype func() any, handle HandlerFunc) error {
	return b.register(b.queries, "query", name, prototype, handle)
}

func (b *Bus) register(table map[string]registration, kind, name string, prototype func() any, handle HandlerFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := table[name]; exists {
		return apperr.Internal("%s already registered: %s", kind, name)
	}
	table[name] = registration{prototype: prototype, handle: handle}
	return nil
}

// DispatchCommand routes a typed command to its handler.
func (b *Bus) DispatchCommand(ctx context.Context, name string, msg any) (any, error) {
	return b.dispatch(ctx, b.commands, "command", name, msg)
}

// DispatchQuery routes a typed query to its handler.
func (b *Bus) DispatchQuery(ctx context.Context, name string, msg any) (any, error) {
	return b.dispatch(ctx, b.queries, "query", name, msg)
}

func (b *Bus) dispatch(ctx context.Context, table map[string]registration, kind, name string, msg any) (any, error) {
	b.mu.RLock()
	reg, ok := table[name]
	b.mu.RUnlock()
	if !ok {
		return nil, apperr.Internal("no handler registered for %s %s", kind, name)
	}
	return b.handle(ctx, reg, kind, name, msg)
}

func (b *Bus) handle(ctx context.Context, reg registration, kind, name string, msg any) (any, error) {
	start := time.Now()
	out, err := reg.handle(ctx, msg)
	if b.observer != nil {
		b.observer.RecordDispatch(ctx, kind, name, float64(time.Since(start).Microseconds())/1000.0, err)
	}
	return out, err
}

// DispatchCommandRaw decodes an untyped payload into the registered command
// type and dispatches it. Decode failures are the caller's fault.
func (b *Bus) DispatchCommandRaw(ctx context.Context, name string, payload map[string]any) (any, error) {
	return b.dispatchRaw(ctx, b.commands, "command", name, payload)
}

// DispatchQueryRaw decodes an untyped payload into the registered query type
// and dispatches it.
func (b *Bus) DispatchQueryRaw(ctx context.Context, name string, payload map[string]any) (any, error) {
	return b.dispatchRaw(ctx, b.queries, "query", name, payload)
}

func (b *Bus) dispatchRaw(ctx context.Context, table map[string]registration, kind, name string, payload map[string]any) (any, error) {
	b.mu.RLock()
	reg, ok := table[name]
	b.mu.RUnlock()
	if !ok {
		return nil, apperr.Internal("no handler registered for %s %s", kind, name)
	}

	msg := reg.prototype()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           msg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, apperr.Internal("build decoder for %s %s: %v", kind, name, err)
	}
	if err := decoder.Decode(payload); err != nil {
		return nil, apperr.BadRequest("decode %s %s: %v", kind, name, err)
	}
	return b.handle(ctx, reg, kind, name, msg)
}
