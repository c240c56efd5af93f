package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gerenciador/internal/amqp"
	"gerenciador/internal/log"
)

// EventConsumer delivers change events until ctx ends.
type EventConsumer interface {
	Consume(ctx context.Context, handler func(context.Context, *amqp.TransactionsChangedMessage) error) error
}

// EventListener runs an EventConsumer in the background and feeds every
// event to LedgerService.HandleChangeEvent.
type EventListener struct {
	consumer EventConsumer
	ledger   *LedgerService
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	lastErr error
}

func NewEventListener(consumer EventConsumer, ledger *LedgerService, logger *log.Logger) *EventListener {
	if logger == nil {
		logger = log.Discard()
	}
	return &EventListener{
		consumer: consumer,
		ledger:   ledger,
		logger:   logger.WithComponent(log.ComponentAMQP),
	}
}

// Start begins consuming. Returns an error if already running.
func (l *EventListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return fmt.Errorf("event listener is already running")
	}
	if l.consumer == nil || l.ledger == nil {
		return fmt.Errorf("event listener not properly initialized")
	}

	ctx, cancel := context.WithCancel(ctx)
	l.running = true
	l.cancel = cancel
	l.doneCh = make(chan struct{})
	l.lastErr = nil

	go l.run(ctx, l.doneCh)

	l.logger.InfoContext(ctx, "Event listener started")
	return nil
}

func (l *EventListener) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	err := l.consumer.Consume(ctx, l.ledger.HandleChangeEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		l.logger.ErrorContext(ctx, "Event listener stopped with error", log.FieldError, err)
	}

	l.mu.Lock()
	l.running = false
	l.lastErr = err
	l.mu.Unlock()
}

// Stop cancels consumption and waits for it to finish or ctx to expire.
func (l *EventListener) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	cancel, done := l.cancel, l.doneCh
	l.mu.Unlock()

	cancel()
	select {
	case <-done:
		l.logger.InfoContext(ctx, "Event listener stopped gracefully")
		return nil
	case <-ctx.Done():
		l.logger.WarnContext(ctx, "Event listener stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the listener is currently consuming.
func (l *EventListener) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Err returns the error the consumer last stopped with, if any.
func (l *EventListener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// WaitStopped blocks until the consumer goroutine exits or timeout passes.
func (l *EventListener) WaitStopped(timeout time.Duration) bool {
	l.mu.Lock()
	done := l.doneCh
	l.mu.Unlock()
	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
