// Package events delivers run lifecycle notifications to subscribers.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrBusClosed indicates the event bus has been stopped.
	ErrBusClosed = errors.New("event bus is closed")
	// ErrChannelFull indicates the buffer cannot take more events.
	ErrChannelFull = errors.New("event channel is full")
	// ErrNoHandler indicates nothing is subscribed to the event type.
	ErrNoHandler = errors.New("no handlers registered for event type")
)

// Event types published by the convergence engine.
const (
	StageEntered = "stage_entered"
	DecisionMade = "decision_made"
	RunCompleted = "run_completed"
	RunFailed    = "run_failed"

	// AllEvents subscribes a handler to every event type.
	AllEvents = "*"
)

// Event is a notification about one run.
type Event struct {
	Type  string
	RunID uint64
	Stage string
	Data  map[string]interface{}
	At    time.Time
}

// Handler reacts to events.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription identifies a registered handler.
type Subscription uint64

type subscriber struct {
	id      Subscription
	handler Handler
}

// EventBus fans events out to handlers on a background goroutine.
type EventBus struct {
	handlers     map[string][]subscriber
	mu           sync.RWMutex
	nextID       atomic.Uint64
	eventCh      chan Event
	errHandler   func(event Event, err error)
	errHandlerMu sync.RWMutex
	wg           sync.WaitGroup
	closed       bool
	closeMu      sync.RWMutex
	syncTimeout  time.Duration
}

// Option configures an EventBus.
type Option func(*EventBus)

// WithBufferSize sets the event channel capacity.
func WithBufferSize(size int) Option {
	return func(eb *EventBus) {
		eb.eventCh = make(chan Event, size)
	}
}

// WithErrorHandler replaces the handler-error callback.
func WithErrorHandler(handler func(event Event, err error)) Option {
	return func(eb *EventBus) {
		eb.errHandlerMu.Lock()
		defer eb.errHandlerMu.Unlock()
		eb.errHandler = handler
	}
}

// WithSyncTimeout bounds PublishSync.
func WithSyncTimeout(d time.Duration) Option {
	return func(eb *EventBus) {
		eb.syncTimeout = d
	}
}

// NewEventBus starts a bus with a buffer of 100 events. Handler errors are
// logged through zap's global logger unless WithErrorHandler is given.
func NewEventBus(options ...Option) *EventBus {
	eb := &EventBus{
		handlers:    make(map[string][]subscriber),
		eventCh:     make(chan Event, 100),
		errHandler:  defaultErrorHandler,
		syncTimeout: 5 * time.Second,
	}
	for _, option := range options {
		option(eb)
	}

	eb.wg.Add(1)
	go eb.processEvents()

	return eb
}

// Subscribe registers handler for eventType, or for every type with AllEvents.
func (eb *EventBus) Subscribe(eventType string, handler Handler) Subscription {
	id := Subscription(eb.nextID.Add(1))
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], subscriber{id: id, handler: handler})
	return id
}

// SubscribeFunc registers a function handler.
func (eb *EventBus) SubscribeFunc(eventType string, fn func(ctx context.Context, event Event) error) Subscription {
	return eb.Subscribe(eventType, HandlerFunc(fn))
}

// Unsubscribe removes a subscription. It reports whether it was found.
func (eb *EventBus) Unsubscribe(eventType string, id Subscription) bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.handlers[eventType]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		eb.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
		if len(eb.handlers[eventType]) == 0 {
			delete(eb.handlers, eventType)
		}
		return true
	}
	return false
}

// HasSubscribers reports whether anything would receive eventType.
func (eb *EventBus) HasSubscribers(eventType string) bool {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.handlers[eventType]) > 0 || len(eb.handlers[AllEvents]) > 0
}

// Publish queues event for asynchronous delivery.
func (eb *EventBus) Publish(ctx context.Context, event Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	eb.closeMu.RLock()
	defer eb.closeMu.RUnlock()
	if eb.closed {
		return ErrBusClosed
	}
	if !eb.HasSubscribers(event.Type) {
		return ErrNoHandler
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case eb.eventCh <- event:
		return nil
	default:
		return ErrChannelFull
	}
}

// PublishSync delivers event immediately and returns every handler error.
func (eb *EventBus) PublishSync(ctx context.Context, event Event) []error {
	eb.closeMu.RLock()
	closed := eb.closed
	eb.closeMu.RUnlock()
	if closed {
		return []error{ErrBusClosed}
	}

	handlers := eb.handlersFor(event.Type)
	if len(handlers) == 0 {
		return []error{ErrNoHandler}
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, eb.syncTimeout)
	defer cancel()
	return eb.executeHandlers(timeoutCtx, handlers, event)
}

// Stop discards queued events and waits for the processor to exit.
func (eb *EventBus) Stop() {
	eb.closeMu.Lock()
	if !eb.closed {
		eb.closed = true
		for len(eb.eventCh) > 0 {
			<-eb.eventCh
		}
		close(eb.eventCh)
	}
	eb.closeMu.Unlock()

	eb.wg.Wait()
}

func (eb *EventBus) handlersFor(eventType string) []Handler {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	out := make([]Handler, 0, len(eb.handlers[eventType])+len(eb.handlers[AllEvents]))
	for _, s := range eb.handlers[eventType] {
		out = append(out, s.handler)
	}
	if eventType != AllEvents {
		for _, s := range eb.handlers[AllEvents] {
			out = append(out, s.handler)
		}
	}
	return out
}

func (eb *EventBus) processEvents() {
	defer eb.wg.Done()

	for event := range eb.eventCh {
		handlers := eb.handlersFor(event.Type)
		if len(handlers) == 0 {
			continue
		}

		errs := eb.executeHandlers(context.Background(), handlers, event)

		eb.errHandlerMu.RLock()
		onError := eb.errHandler
		eb.errHandlerMu.RUnlock()

		for _, err := range errs {
			onError(event, err)
		}
	}
}

// executeHandlers runs handlers concurrently and collects their errors.
// A panicking handler is reported as an error.
func (eb *EventBus) executeHandlers(ctx context.Context, handlers []Handler, event Event) []error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(handlers))

	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errCh <- &PanicError{Value: r}
				}
			}()
			if err := h.Handle(ctx, event); err != nil {
				errCh <- err
			}
		}(handler)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errs
}

// PanicError wraps a value recovered from a handler.
type PanicError struct {
	Value interface{}
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("event handler panicked: %v", p.Value)
}

func defaultErrorHandler(event Event, err error) {
	zap.L().Error("event handler failed",
		zap.String("type", event.Type),
		zap.Uint64("runId", event.RunID),
		zap.String("stage", event.Stage),
		zap.Error(err),
	)
}
