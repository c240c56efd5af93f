// Package services orchestrates the store, the aggregation and query
// engines, and change events.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"gerenciador/internal/aggregate"
	"gerenciador/internal/amqp"
	"gerenciador/internal/cache"
	"gerenciador/internal/core"
	"gerenciador/internal/groups"
	"gerenciador/internal/log"
	"gerenciador/internal/query"
	"gerenciador/internal/schedule"
	"gerenciador/internal/store"
)

// EventPublisher broadcasts ledger mutations to other processes.
type EventPublisher interface {
	PublishTransactionsChanged(ctx context.Context, msg *amqp.TransactionsChangedMessage) error
}

// Recurrence asks CreateTransaction to store monthly installments instead
// of a single entry.
type Recurrence struct {
	Mode  schedule.Mode
	Count int
}

// NewTransaction is the validated input of CreateTransaction.
type NewTransaction struct {
	GroupKey    string
	Date        core.Date
	Description string
	Category    *string
	Amount      core.Money
	IsPaid      bool
	Recurrence  *Recurrence
}

// Options tunes a LedgerService. Zero values pick defaults.
type Options struct {
	MaxInstallments int
	SnapshotTTL     time.Duration
	Locale          language.Tag
	Now             func() time.Time
	Logger          *log.Logger
}

// LedgerService is the single entry point the HTTP layer and the commands use.
type LedgerService struct {
	store    store.Store
	registry *groups.Registry
	agg      *aggregate.Aggregator
	engine   *query.Engine
	events   EventPublisher

	groupCache      *cache.LRUCache[[]core.Transaction]
	generation      atomic.Uint64
	maxInstallments int
	now             func() time.Time
	logger          *log.Logger
	txLog           *log.StructuredLogger
}

func NewLedgerService(st store.Store, reg *groups.Registry, events EventPublisher, opts Options) *LedgerService {
	if reg == nil {
		reg = groups.Default()
	}
	if opts.MaxInstallments < 1 {
		opts.MaxInstallments = schedule.MaxInstallments
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &LedgerService{
		store:           st,
		registry:        reg,
		agg:             aggregate.New(reg),
		engine:          query.New(reg, query.Options{Locale: opts.Locale}),
		events:          events,
		groupCache:      cache.NewLRUCache[[]core.Transaction](len(reg.All())+1, opts.SnapshotTTL),
		maxInstallments: opts.MaxInstallments,
		now:             opts.Now,
		logger:          opts.Logger.WithComponent(log.ComponentLedger),
		txLog:           log.NewStructuredLogger(opts.Logger),
	}
}

// Registry returns the group configuration the service works with.
func (s *LedgerService) Registry() *groups.Registry {
	return s.registry
}

// SnapshotCache exposes the per-group cache so a cache.Manager can sweep it.
func (s *LedgerService) SnapshotCache() cache.Cleaner {
	return s.groupCache
}

// MaxInstallments is the largest recurrence count CreateTransaction accepts.
func (s *LedgerService) MaxInstallments() int {
	return s.maxInstallments
}

// Today is the current calendar date in UTC.
func (s *LedgerService) Today() core.Date {
	return core.DateOf(s.now().UTC())
}

// Snapshot loads every active group, concurrently, reusing cached groups.
func (s *LedgerService) Snapshot(ctx context.Context) (core.Snapshot, error) {
	active := s.registry.Active()
	results := make([][]core.Transaction, len(active))

	gen := s.generation.Load()
	g, gctx := errgroup.WithContext(ctx)
	for i, grp := range active {
		if txs, ok := s.groupCache.Get(grp.Key); ok {
			results[i] = txs
			continue
		}
		g.Go(func() error {
			txs, err := s.store.FetchByGroup(gctx, grp.Key)
			if err != nil {
				return fmt.Errorf("fetch group %s: %w", grp.Key, err)
			}
			results[i] = txs
			// A mutation that landed while we were reading must not be
			// shadowed by what we read.
			if s.generation.Load() == gen {
				s.groupCache.Set(grp.Key, txs)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := make(core.Snapshot, len(active))
	for i, grp := range active {
		snap[grp.Key] = results[i]
	}
	return snap, nil
}

func (s *LedgerService) CurrentMonthTotals(ctx context.Context, today core.Date) (aggregate.MonthTotals, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return aggregate.MonthTotals{}, err
	}
	return s.agg.CurrentMonthTotals(snap, today), nil
}

func (s *LedgerService) AnnualSummary(ctx context.Context, year int) (aggregate.AnnualSummary, error) {
	gen := s.agg.Generation()
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return aggregate.AnnualSummary{}, err
	}
	return s.agg.AnnualSummaryAsOf(snap, year, gen), nil
}

func (s *LedgerService) AvailableYears(ctx context.Context, today core.Date) ([]int, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.agg.AvailableYears(snap, today), nil
}

func (s *LedgerService) Query(ctx context.Context, f query.Filter) (query.Result, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return query.Result{}, err
	}
	return s.engine.Execute(snap, f)
}

func (s *LedgerService) AllCategories(ctx context.Context) ([]string, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.AllCategories(snap), nil
}

// Schedule previews installment dates, bounded like CreateTransaction.
func (s *LedgerService) Schedule(start core.Date, count int) ([]core.Date, error) {
	if count > s.maxInstallments {
		return nil, fmt.Errorf("%w: %d (max %d)", core.ErrInvalidCount, count, s.maxInstallments)
	}
	return schedule.Generate(start, count)
}

// InvalidateAnnualCache drops the cached annual summary.
func (s *LedgerService) InvalidateAnnualCache() {
	s.agg.Invalidate()
}

// Refresh drops every cached group and the annual summary so the next read
// goes back to the store. It picks up changes made outside this process.
func (s *LedgerService) Refresh(ctx context.Context) {
	s.generation.Add(1)
	s.groupCache.Clear()
	s.agg.Invalidate()
	s.logger.InfoContext(ctx, "Ledger caches refreshed")
}

// ListGroup returns one group's transactions, newest first.
func (s *LedgerService) ListGroup(ctx context.Context, key string) ([]core.Transaction, error) {
	if _, err := s.registry.Lookup(key); err != nil {
		return nil, err
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap[key], nil
}

// CreateTransaction stores one entry, or only its installments when a
// recurrence is given (the anchor date itself is not stored).
func (s *LedgerService) CreateTransaction(ctx context.Context, in NewTransaction) ([]core.Transaction, error) {
	grp, err := s.registry.Lookup(in.GroupKey)
	if err != nil {
		return nil, err
	}

	tx := core.Transaction{
		GroupKey:    grp.Key,
		Date:        in.Date,
		Description: in.Description,
		Category:    in.Category,
		Amount:      in.Amount,
		IsPaid:      in.IsPaid && grp.Kind == groups.Expense,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	var saved []core.Transaction
	op := amqp.OpInsert
	if in.Recurrence == nil {
		one, err := s.store.InsertOne(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("insert transaction: %w", err)
		}
		saved = []core.Transaction{one}
	} else {
		count, err := in.Recurrence.Mode.Count(in.Recurrence.Count, s.maxInstallments)
		if err != nil {
			return nil, err
		}
		batch, err := schedule.Installments(tx, count)
		if err != nil {
			return nil, err
		}
		saved, err = s.store.InsertMany(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("insert installments: %w", err)
		}
		op = amqp.OpBatch
	}

	s.invalidate(grp.Key)
	for _, t := range saved {
		s.txLog.LogTransactionCreated(ctx, t.ID, t.GroupKey, t.Description, t.Amount.Cents, t.CategoryLabel())
	}
	s.logger.InfoContext(ctx, "Transactions created",
		log.FieldGroupKey, grp.Key,
		log.FieldCount, len(saved))
	s.publish(ctx, op, grp.Key, saved)
	return saved, nil
}

// DeleteTransaction removes id; core.ErrNotFound if it does not exist.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	tx, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: id %d", core.ErrNotFound, id)
	}

	s.invalidate(tx.GroupKey)
	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldTransactionID, id,
		log.FieldGroupKey, tx.GroupKey)
	s.publish(ctx, amqp.OpDelete, tx.GroupKey, []core.Transaction{tx})
	return nil
}

// SetPaid toggles the paid flag of an expense entry. Income entries are
// rejected with core.ErrPaidNotApplicable.
func (s *LedgerService) SetPaid(ctx context.Context, id int64, paid bool) (core.Transaction, error) {
	tx, err := s.store.GetByID(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if s.registry.IsIncome(tx.GroupKey) {
		return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrPaidNotApplicable, id)
	}
	ok, err := s.store.SetPaid(ctx, id, paid)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("set paid: %w", err)
	}
	if !ok {
		return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrNotFound, id)
	}
	tx.IsPaid = paid

	// Paid status never moves totals, so the annual summary stays valid.
	s.generation.Add(1)
	s.groupCache.Delete(tx.GroupKey)
	s.publish(ctx, amqp.OpSetPaid, tx.GroupKey, []core.Transaction{tx})
	return tx, nil
}

// HandleChangeEvent applies a mutation made by another process.
func (s *LedgerService) HandleChangeEvent(ctx context.Context, msg *amqp.TransactionsChangedMessage) error {
	if msg == nil {
		return errors.New("nil change event")
	}
	if _, ok := s.registry.Get(msg.GroupKey); !ok {
		s.logger.WarnContext(ctx, "Change event for unknown group", log.FieldGroupKey, msg.GroupKey)
		return nil
	}
	if msg.Op == amqp.OpSetPaid {
		s.generation.Add(1)
		s.groupCache.Delete(msg.GroupKey)
	} else {
		s.invalidate(msg.GroupKey)
	}
	s.logger.DebugContext(ctx, "Applied remote change event",
		log.FieldEventOp, msg.Op,
		log.FieldGroupKey, msg.GroupKey)
	return nil
}

// Ping reports whether the store is reachable.
func (s *LedgerService) Ping(ctx context.Context) error {
	if hc, ok := s.store.(store.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

func (s *LedgerService) invalidate(groupKey string) {
	s.generation.Add(1)
	s.groupCache.Delete(groupKey)
	s.agg.Invalidate()
}

// publish is best effort: the store already holds the change.
func (s *LedgerService) publish(ctx context.Context, op, groupKey string, txs []core.Transaction) {
	if s.events == nil {
		return
	}
	ids := make([]int64, 0, len(txs))
	var years []int
	for _, t := range txs {
		ids = append(ids, t.ID)
		if !t.Date.IsEmpty() && !slices.Contains(years, t.Date.Year()) {
			years = append(years, t.Date.Year())
		}
	}
	msg := amqp.NewTransactionsChangedMessage(op, groupKey, ids, years)
	if err := s.events.PublishTransactionsChanged(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish change event",
			log.FieldError, err,
			log.FieldEventOp, op,
			log.FieldGroupKey, groupKey)
	}
}
