// Package memory is an in-process transaction store for development and tests.
package memory

import (
	"cmp"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"gerenciador/internal/core"
)

// SeedFile is the file NewFromFiles looks for inside the seed directory.
const SeedFile = "seed_transactions.csv"

type Store struct {
	mu     sync.Mutex
	nextID int64
	items  []core.Transaction
	now    func() time.Time
}

func New() *Store {
	return &Store{nextID: 1, now: time.Now}
}

// NewFromFiles returns a store seeded from base/seed_transactions.csv. A
// missing file yields an empty store; a malformed one is an error.
func NewFromFiles(base string) (*Store, error) {
	s := New()
	if base == "" {
		return s, nil
	}
	f, err := os.Open(filepath.Join(base, SeedFile))
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	txs, err := readSeed(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SeedFile, err)
	}
	if _, err := s.InsertMany(context.Background(), txs); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return s, nil
}

func (s *Store) FetchByGroup(_ context.Context, groupKey string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []core.Transaction{}
	for _, tx := range s.items {
		if tx.GroupKey == groupKey {
			out = append(out, clone(tx))
		}
	}
	slices.SortFunc(out, func(a, b core.Transaction) int {
		if c := compareDatesDesc(a.Date, b.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) GetByID(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return clone(s.items[i]), nil
	}
	return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrNotFound, id)
}

func (s *Store) InsertOne(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	saved, err := s.InsertMany(ctx, []core.Transaction{tx})
	if err != nil {
		return core.Transaction{}, err
	}
	return saved[0], nil
}

// InsertMany validates the whole batch before storing any of it.
func (s *Store) InsertMany(_ context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := s.now().UTC()
	out := make([]core.Transaction, len(txs))
	for i, tx := range txs {
		tx = clone(tx)
		tx.ID = s.nextID
		tx.CreatedAt = created
		s.nextID++
		s.items = append(s.items, tx)
		out[i] = clone(tx)
	}
	return out, nil
}

func (s *Store) DeleteByID(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	s.items = slices.Delete(s.items, i, i+1)
	return true, nil
}

func (s *Store) SetPaid(_ context.Context, id int64, paid bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	s.items[i].IsPaid = paid
	return true, nil
}

// Ping implements store.HealthChecker; memory is always ready.
func (s *Store) Ping(context.Context) error { return nil }

// Len returns how many transactions are stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) indexOf(id int64) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func clone(tx core.Transaction) core.Transaction {
	if tx.Category != nil {
		tx.Category = core.CategoryOf(*tx.Category)
	}
	return tx
}

func compareDatesDesc(a, b core.Date) int {
	switch {
	case a.IsEmpty() && b.IsEmpty():
		return 0
	case a.IsEmpty():
		return 1
	case b.IsEmpty():
		return -1
	}
	return b.Compare(a)
}

// readSeed parses rows of
// group_key,date,description,category,amount,is_paid
// with an optional header row. An empty category column means uncategorized.
func readSeed(r io.Reader) ([]core.Transaction, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []core.Transaction
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "group_key") {
			continue
		}
		if len(rec) < 5 {
			return nil, fmt.Errorf("line %d: expected at least 5 fields, got %d", line, len(rec))
		}
		date, err := core.ParseDate(rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		amount, err := core.ParseAmount(rec[4])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		tx := core.Transaction{
			GroupKey:    strings.TrimSpace(rec[0]),
			Date:        date,
			Description: strings.TrimSpace(rec[2]),
			Amount:      amount,
		}
		if c := strings.TrimSpace(rec[3]); c != "" {
			tx.Category = core.CategoryOf(c)
		}
		if len(rec) > 5 && strings.TrimSpace(rec[5]) != "" {
			paid, err := strconv.ParseBool(strings.TrimSpace(rec[5]))
			if err != nil {
				return nil, fmt.Errorf("line %d: is_paid: %w", line, err)
			}
			tx.IsPaid = paid
		}
		out = append(out, tx)
	}
	return out, nil
}
