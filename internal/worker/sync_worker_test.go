package worker

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"gerenciador/internal/aggregate"
	"gerenciador/internal/amqp"
	"gerenciador/internal/core"
	"gerenciador/internal/services"
	sheetsmem "gerenciador/internal/sheets/memory"
	"gerenciador/internal/store/memory"
)

func newLedger(t *testing.T) (*services.LedgerService, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc := services.NewLedgerService(st, nil, nil, services.Options{
		Now: func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) },
	})
	return svc, st
}

func insert(t *testing.T, st *memory.Store, group string, date core.Date, cents int64) {
	t.Helper()
	_, err := st.InsertOne(context.Background(), core.Transaction{
		GroupKey:    group,
		Date:        date,
		Description: "conta",
		Amount:      core.Money{Cents: cents},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func totalExpense(t *testing.T, w *sheetsmem.Writer, name string) float64 {
	t.Helper()
	rows, ok := w.Sheet(name)
	if !ok {
		t.Fatalf("sheet %q not written; have %v", name, w.Names())
	}
	last := rows[len(rows)-1]
	if last[0] != "Total" {
		t.Fatalf("last row = %v", last)
	}
	return last[2].(float64)
}

func TestHandleChangeMessageMarksYears(t *testing.T) {
	svc, st := newLedger(t)
	writer := sheetsmem.New("")
	w := NewSyncWorker(svc, writer, nil)
	ctx := context.Background()

	// Warm the annual cache so the event has something to invalidate.
	if _, err := svc.AnnualSummary(ctx, 2024); err != nil {
		t.Fatal(err)
	}
	insert(t, st, "contas_fixas", core.NewDate(2024, 3, 10), 5000)

	msg := amqp.NewTransactionsChangedMessage(amqp.OpInsert, "contas_fixas", []int64{1}, []int{2024})
	if err := w.HandleChangeMessage(ctx, msg); err != nil {
		t.Fatalf("HandleChangeMessage: %v", err)
	}
	if got := w.Pending(); !slices.Equal(got, []int{2024}) {
		t.Fatalf("Pending = %v", got)
	}

	n, err := w.Flush(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Flush = %d, %v", n, err)
	}
	if got := totalExpense(t, writer, "2024 Resumo"); got != 50 {
		t.Errorf("total expense = %v, want 50", got)
	}
	if len(w.Pending()) != 0 || w.Synced() != 1 {
		t.Errorf("pending %v synced %d", w.Pending(), w.Synced())
	}
}

func TestHandleChangeMessageWithoutYears(t *testing.T) {
	svc, _ := newLedger(t)
	w := NewSyncWorker(svc, sheetsmem.New(""), nil)

	msg := amqp.NewTransactionsChangedMessage(amqp.OpDelete, "contas_fixas", []int64{9}, nil)
	if err := w.HandleChangeMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if got := w.Pending(); !slices.Equal(got, []int{2024}) {
		t.Errorf("Pending = %v, want current year", got)
	}
}

type flakyWriter struct {
	*sheetsmem.Writer
	failYear int
}

func (f *flakyWriter) WriteAnnualSummary(ctx context.Context, s aggregate.AnnualSummary) (string, error) {
	if s.Year == f.failYear {
		return "", errors.New("quota exceeded")
	}
	return f.Writer.WriteAnnualSummary(ctx, s)
}

func TestFlushKeepsFailedYearsPending(t *testing.T) {
	svc, st := newLedger(t)
	insert(t, st, "contas_fixas", core.NewDate(2023, 11, 2), 1000)
	insert(t, st, "contas_fixas", core.NewDate(2024, 1, 5), 2000)

	writer := &flakyWriter{Writer: sheetsmem.New(""), failYear: 2023}
	w := NewSyncWorker(svc, writer, nil)

	err := w.StartupSync(context.Background())
	if err == nil {
		t.Fatal("expected error for the failing year")
	}
	if got := w.Pending(); !slices.Equal(got, []int{2023}) {
		t.Errorf("Pending = %v, want [2023]", got)
	}
	if got := totalExpense(t, writer.Writer, "2024 Resumo"); got != 20 {
		t.Errorf("2024 total expense = %v", got)
	}

	writer.failYear = 0
	if n, err := w.Flush(context.Background()); err != nil || n != 1 {
		t.Fatalf("retry Flush = %d, %v", n, err)
	}
	if got := totalExpense(t, writer.Writer, "2023 Resumo"); got != 10 {
		t.Errorf("2023 total expense = %v", got)
	}
}

// sliceConsumer delivers its messages and returns.
type sliceConsumer struct {
	msgs []*amqp.TransactionsChangedMessage
}

func (c sliceConsumer) Consume(ctx context.Context, handler func(context.Context, *amqp.TransactionsChangedMessage) error) error {
	for _, m := range c.msgs {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func TestRunFlushesOnExit(t *testing.T) {
	svc, st := newLedger(t)
	insert(t, st, "receitas", core.NewDate(2022, 7, 1), 300000)
	writer := sheetsmem.New("%d Balanço")
	w := NewSyncWorker(svc, writer, nil)

	consumer := sliceConsumer{msgs: []*amqp.TransactionsChangedMessage{
		amqp.NewTransactionsChangedMessage(amqp.OpInsert, "receitas", []int64{1}, []int{2022}),
	}}
	if err := w.Run(context.Background(), consumer, time.Hour); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if names := writer.Names(); !slices.Equal(names, []string{"2022 Balanço"}) {
		t.Fatalf("sheets = %v", names)
	}
	if w.Synced() != 1 {
		t.Errorf("Synced = %d", w.Synced())
	}
}

func TestRunRequiresConsumer(t *testing.T) {
	svc, _ := newLedger(t)
	w := NewSyncWorker(svc, sheetsmem.New(""), nil)
	if err := w.Run(context.Background(), nil, time.Second); err == nil {
		t.Error("expected error without consumer")
	}
}

// remarkingWriter delivers a change event for the year being written, as a
// consumer running alongside Flush would.
type remarkingWriter struct {
	*sheetsmem.Writer
	w    *SyncWorker
	once bool
}

func (r *remarkingWriter) WriteAnnualSummary(ctx context.Context, s aggregate.AnnualSummary) (string, error) {
	if !r.once {
		r.once = true
		msg := amqp.NewTransactionsChangedMessage(amqp.OpInsert, "contas_fixas", []int64{2}, []int{s.Year})
		if err := r.w.HandleChangeMessage(ctx, msg); err != nil {
			return "", err
		}
	}
	return r.Writer.WriteAnnualSummary(ctx, s)
}

func TestFlushKeepsYearMarkedDuringWrite(t *testing.T) {
	svc, _ := newLedger(t)
	writer := &remarkingWriter{Writer: sheetsmem.New("")}
	w := NewSyncWorker(svc, writer, nil)
	writer.w = w
	ctx := context.Background()

	w.mark(2024)
	if n, err := w.Flush(ctx); err != nil || n != 1 {
		t.Fatalf("Flush = %d, %v", n, err)
	}
	if got := w.Pending(); !slices.Equal(got, []int{2024}) {
		t.Fatalf("pending after flush = %v, want [2024]", got)
	}

	if n, err := w.Flush(ctx); err != nil || n != 1 {
		t.Fatalf("second Flush = %d, %v", n, err)
	}
	if got := w.Pending(); len(got) != 0 {
		t.Errorf("pending after second flush = %v", got)
	}
}
