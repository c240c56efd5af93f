// Package sqlite is the SQLite-backed transaction store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gerenciador/internal/core"
	"gerenciador/internal/log"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

const selectColumns = `SELECT id, group_key, date, description, category, amount_cents, is_paid, created_at FROM transactions`

// Repository implements store.Store over a single SQLite file.
type Repository struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

// NewRepository opens (creating if needed) the database at dbPath and
// migrates it to the latest schema.
func NewRepository(dbPath string, logger *log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	if err := RunMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
		now:    time.Now,
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements store.HealthChecker.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) FetchByGroup(ctx context.Context, groupKey string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		selectColumns+` WHERE group_key = ? ORDER BY date IS NULL, date DESC, id DESC`, groupKey)
	if err != nil {
		return nil, fmt.Errorf("query group %s: %w", groupKey, err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group %s: %w", groupKey, err)
	}
	return out, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrNotFound, id)
	}
	return tx, err
}

func (r *Repository) InsertOne(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	saved, err := r.InsertMany(ctx, []core.Transaction{tx})
	if err != nil {
		return core.Transaction{}, err
	}
	return saved[0], nil
}

// InsertMany writes every transaction inside one SQL transaction.
func (r *Repository) InsertMany(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	stmt, err := dbtx.PrepareContext(ctx, `INSERT INTO transactions
		(group_key, date, description, category, amount_cents, is_paid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	created := r.now().UTC()
	out := make([]core.Transaction, len(txs))
	for i, tx := range txs {
		res, err := stmt.ExecContext(ctx,
			tx.GroupKey,
			nullableDate(tx.Date),
			tx.Description,
			nullableString(tx.Category),
			tx.Amount.Cents,
			tx.IsPaid,
			created.Format(time.RFC3339Nano),
		)
		if err != nil {
			return nil, fmt.Errorf("insert transaction %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		tx.ID = id
		tx.CreatedAt = created
		out[i] = tx
	}

	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	r.logger.DebugContext(ctx, "Transactions saved to SQLite", log.FieldCount, len(out))
	return out, nil
}

func (r *Repository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) SetPaid(ctx context.Context, id int64, paid bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET is_paid = ? WHERE id = ?`, paid, id)
	if err != nil {
		return false, fmt.Errorf("set paid on %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx       core.Transaction
		date     sql.NullString
		category sql.NullString
		created  string
	)
	if err := s.Scan(&tx.ID, &tx.GroupKey, &date, &tx.Description, &category, &tx.Amount.Cents, &tx.IsPaid, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	if date.Valid && date.String != "" {
		d, err := core.ParseDate(date.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("transaction %d: %w", tx.ID, err)
		}
		tx.Date = d
	}
	if category.Valid {
		tx.Category = core.CategoryOf(category.String)
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		tx.CreatedAt = t
	}
	return tx, nil
}

func nullableDate(d core.Date) any {
	if d.IsEmpty() {
		return nil
	}
	return d.Format(dateLayout)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
