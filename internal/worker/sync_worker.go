// Package worker keeps the yearly summary sheets in step with ledger changes
// made by other processes.
package worker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gerenciador/internal/amqp"
	"gerenciador/internal/log"
	"gerenciador/internal/services"
	"gerenciador/internal/sheets"
)

// Ledger is the part of services.LedgerService the worker needs.
type Ledger interface {
	sheets.Source
	HandleChangeEvent(ctx context.Context, msg *amqp.TransactionsChangedMessage) error
}

var _ Ledger = (*services.LedgerService)(nil)

// SyncWorker collects the years touched by change events and rewrites their
// summary sheets on Flush. A year whose write fails, or that is marked again
// while its write is in flight, stays pending.
type SyncWorker struct {
	ledger Ledger
	writer sheets.SummaryWriter
	logger *log.Logger

	mu      sync.Mutex
	pending map[int]uint64 // year -> sequence of its latest mark
	seq     uint64
	synced  int
}

func NewSyncWorker(ledger Ledger, writer sheets.SummaryWriter, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		ledger:  ledger,
		writer:  writer,
		logger:  logger.WithComponent(log.ComponentSheets),
		pending: map[int]uint64{},
	}
}

// HandleChangeMessage drops the ledger caches for the event and marks its
// years pending. Events without years mark the current year.
func (w *SyncWorker) HandleChangeMessage(ctx context.Context, msg *amqp.TransactionsChangedMessage) error {
	if err := w.ledger.HandleChangeEvent(ctx, msg); err != nil {
		return fmt.Errorf("apply change event: %w", err)
	}
	years := msg.Years
	if len(years) == 0 {
		years = []int{w.ledger.Today().Year()}
	}
	w.mark(years...)
	w.logger.DebugContext(ctx, "Change event queued for sync",
		log.FieldEventOp, msg.Op,
		log.FieldGroupKey, msg.GroupKey,
		"years", years)
	return nil
}

func (w *SyncWorker) mark(years ...int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, y := range years {
		w.seq++
		w.pending[y] = w.seq
	}
}

// Pending returns the years waiting for a write, ascending.
func (w *SyncWorker) Pending() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]int, 0, len(w.pending))
	for y := range w.pending {
		out = append(out, y)
	}
	slices.Sort(out)
	return out
}

// Synced returns how many summary sheets have been written.
func (w *SyncWorker) Synced() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.synced
}

// Flush writes the summary of every pending year and returns how many were
// written.
func (w *SyncWorker) Flush(ctx context.Context) (int, error) {
	w.mu.Lock()
	marks := make(map[int]uint64, len(w.pending))
	for y, seq := range w.pending {
		marks[y] = seq
	}
	w.mu.Unlock()
	if len(marks) == 0 {
		return 0, nil
	}
	years := make([]int, 0, len(marks))
	for y := range marks {
		years = append(years, y)
	}
	slices.Sort(years)

	var errs []error
	written := 0
	for _, y := range years {
		summary, err := w.ledger.AnnualSummary(ctx, y)
		if err == nil {
			_, err = w.writer.WriteAnnualSummary(ctx, summary)
		}
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync annual summary",
				log.FieldYear, y,
				log.FieldError, err)
			errs = append(errs, fmt.Errorf("year %d: %w", y, err))
			continue
		}
		w.mu.Lock()
		if w.pending[y] == marks[y] {
			delete(w.pending, y)
		}
		w.synced++
		w.mu.Unlock()
		written++
	}

	w.logger.InfoContext(ctx, "Summary sync completed",
		log.FieldOperation, log.OpExport,
		"total", len(years),
		"synced", written,
		"errors", len(errs))
	return written, errors.Join(errs...)
}

// StartupSync rewrites every year that has data, catching up on events
// missed while the worker was down.
func (w *SyncWorker) StartupSync(ctx context.Context) error {
	years, err := w.ledger.AvailableYears(ctx, w.ledger.Today())
	if err != nil {
		return fmt.Errorf("available years: %w", err)
	}
	w.mark(years...)
	_, err = w.Flush(ctx)
	return err
}

// Run consumes change events and flushes pending years every interval until
// ctx ends. A final flush runs on the way out.
func (w *SyncWorker) Run(ctx context.Context, consumer services.EventConsumer, interval time.Duration) error {
	if consumer == nil {
		return errors.New("sync worker needs an event consumer")
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer stop()
		err := consumer.Consume(gctx, w.HandleChangeMessage)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := w.Flush(gctx); err != nil {
					w.logger.WarnContext(gctx, "Periodic flush left years pending", log.FieldError, err)
				}
			}
		}
	})
	err := g.Wait()

	final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if _, ferr := w.Flush(final); ferr != nil {
		err = errors.Join(err, ferr)
	}
	return err
}
