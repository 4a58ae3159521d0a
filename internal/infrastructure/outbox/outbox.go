package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"go.opentelemetry.io/otel/trace"
)

const componentOutbox = "outbox"

var ErrBusClosed = errors.New("outbox: bus is closed")

// ContextHook prepares the context a handler runs with.
type ContextHook func(ctx context.Context, e domoutbox.Event) context.Context

// envelope carries the publisher's span so handlers join the same trace.
type envelope struct {
	event domoutbox.Event
	span  trace.SpanContext
}

// Bus is an in-memory, non-durable event bus. Events are queued and fanned out to every
// subscriber of the event name with a cap on concurrently running handlers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]domoutbox.Handler
	closed bool

	queue     chan envelope
	startOnce sync.Once
	stopOnce  sync.Once
	loopDone  chan struct{}

	concurrency    int
	handlerTimeout time.Duration
	hook           ContextHook
	log            observability.Logger
}

type Option func(*Bus)

func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan envelope, n)
		}
	}
}

func WithConcurrency(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.handlerTimeout = d
		}
	}
}

func WithContextHook(h ContextHook) Option {
	return func(b *Bus) { b.hook = h }
}

func NewBus(logger observability.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = observability.NopLogger()
	}
	b := &Bus{
		subs:           make(map[string][]domoutbox.Handler),
		queue:          make(chan envelope, 1024),
		loopDone:       make(chan struct{}),
		concurrency:    8,
		handlerTimeout: 30 * time.Second,
		log:            logger.With(observability.F("component", componentOutbox)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		go b.dispatchLoop()
		logctx.FromOr(ctx, b.log).Info("event_bus_started")
	})
}

// Stop refuses new events, drains the queue and waits for running handlers until ctx ends.
func (b *Bus) Stop(ctx context.Context) error {
	var err error
	b.stopOnce.Do(func() {
		// a bus that never started still has to drain its queue
		b.startOnce.Do(func() { go b.dispatchLoop() })

		b.mu.Lock()
		b.closed = true
		close(b.queue)
		b.mu.Unlock()

		select {
		case <-b.loopDone:
			logctx.FromOr(ctx, b.log).Info("event_bus_stopped")
		case <-ctx.Done():
			err = ctx.Err()
			logctx.FromOr(ctx, b.log).Warn("event_bus_stop_timeout", observability.F("error", err))
		}
	})
	return err
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	logger := logctx.FromOr(ctx, b.log).With(observability.F("event", e.EventName()))

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		logger.Warn("event_rejected_bus_closed")
		return ErrBusClosed
	}

	select {
	case b.queue <- envelope{event: e, span: trace.SpanContextFromContext(ctx)}:
		logger.Debug("event_enqueued")
		return nil
	case <-ctx.Done():
		logger.Warn("event_enqueue_aborted", observability.F("error", ctx.Err()))
		return ctx.Err()
	}
}

func (b *Bus) dispatchLoop() {
	defer close(b.loopDone)
	for env := range b.queue {
		b.fanout(env)
	}
}

func (b *Bus) fanout(env envelope) {
	e := env.event
	name := e.EventName()

	b.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	logger := b.log.With(observability.F("event", name), observability.F("aggregate_id", e.AggregateID()))
	if len(handlers) == 0 {
		logger.Debug("event_dropped_no_subscriber")
		return
	}

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, h := range handlers {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("event_handler_panic",
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
				<-sem
				wg.Done()
			}()

			ctx, cancel := context.WithTimeout(context.Background(), b.handlerTimeout)
			defer cancel()
			if env.span.IsValid() {
				ctx = trace.ContextWithRemoteSpanContext(ctx, env.span)
			}
			ctx = logctx.With(ctx, logger)
			if b.hook != nil {
				ctx = b.hook(ctx, e)
			}
			if err := h(ctx, e); err != nil {
				logger.Warn("event_handler_error", observability.F("error", err))
			}
		}()
	}

	wg.Wait()
	logger.Debug("event_fanned_out", observability.F("handlers", len(handlers)))
}
