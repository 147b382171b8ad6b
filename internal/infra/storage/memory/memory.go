package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vietddude/weatherload/internal/loader"
)

// Op names a transaction step, used to inject faults.
type Op string

const (
	OpBegin         Op = "begin"
	OpCreateStaging Op = "create_staging"
	OpCopyKeys      Op = "copy_keys"
	OpDelete        Op = "delete"
	OpCopyRows      Op = "copy_rows"
	OpCommit        Op = "commit"
)

var errTxDone = errors.New("transaction already completed")

type table struct {
	columns []string
	rows    [][]loader.Value
}

func (t *table) clone() *table {
	rows := make([][]loader.Value, len(t.rows))
	for i, r := range t.rows {
		rows[i] = append([]loader.Value(nil), r...)
	}
	return &table{columns: append([]string(nil), t.columns...), rows: rows}
}

func (t *table) index(col string) int {
	for i, c := range t.columns {
		if c == col {
			return i
		}
	}
	return -1
}

type fault struct {
	err       error
	remaining int
}

// MemoryStorage is an in-process implementation of loader.Connector. Each
// transaction works on a private copy of the tables it touches and publishes
// them on commit, so rolled back work is never visible. Transactions run one
// at a time.
type MemoryStorage struct {
	mu      sync.RWMutex
	txSlot  chan struct{}
	tables  map[string]*table
	faults  map[Op]*fault
	calls   map[Op]int
	open    int
	commits int
	rolls   int
}

// NewMemoryStorage creates an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tables: make(map[string]*table),
		txSlot: make(chan struct{}, 1),
		faults: make(map[Op]*fault),
		calls:  make(map[Op]int),
	}
}

// CreateTable registers a table. Existing tables are replaced.
func (s *MemoryStorage) CreateTable(name string, columns ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = &table{columns: append([]string(nil), columns...)}
}

// Insert appends rows outside of any load, e.g. to seed fixtures.
func (s *MemoryStorage) Insert(name string, records ...loader.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("relation %q does not exist", name)
	}
	for _, rec := range records {
		row := make([]loader.Value, len(t.columns))
		for i, c := range t.columns {
			row[i] = rec[c]
		}
		t.rows = append(t.rows, row)
	}
	return nil
}

// Rows returns a snapshot of the committed rows of a table.
func (s *MemoryStorage) Rows(name string) []loader.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	out := make([]loader.Record, len(t.rows))
	for i, row := range t.rows {
		rec := make(loader.Record, len(t.columns))
		for j, c := range t.columns {
			rec[c] = row[j]
		}
		out[i] = rec
	}
	return out
}

// InjectFault makes the next times calls of op fail with err.
func (s *MemoryStorage) InjectFault(op Op, err error, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = &fault{err: err, remaining: times}
}

// Calls returns how many times op was invoked.
func (s *MemoryStorage) Calls(op Op) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// Stats reports open transactions, commits and rollbacks.
func (s *MemoryStorage) Stats() (open, commits, rollbacks int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open, s.commits, s.rolls
}

func (s *MemoryStorage) hit(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	f, ok := s.faults[op]
	if !ok || f.remaining == 0 {
		return nil
	}
	f.remaining--
	return f.err
}

func (s *MemoryStorage) release() { <-s.txSlot }

// Begin starts a transaction.
func (s *MemoryStorage) Begin(ctx context.Context) (loader.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.hit(OpBegin); err != nil {
		return nil, err
	}
	select {
	case s.txSlot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	s.open++
	s.mu.Unlock()
	return &memTx{store: s, working: make(map[string]*table), staging: make(map[string]*table)}, nil
}

type memTx struct {
	store   *MemoryStorage
	working map[string]*table
	staging map[string]*table
	done    bool
}

// lookup returns the transaction's copy of a committed table.
func (tx *memTx) lookup(name string) (*table, error) {
	if t, ok := tx.working[name]; ok {
		return t, nil
	}
	tx.store.mu.RLock()
	t, ok := tx.store.tables[name]
	tx.store.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("relation %q does not exist", name)
	}
	c := t.clone()
	tx.working[name] = c
	return c, nil
}

func (tx *memTx) CreateStaging(ctx context.Context, staging string, keys loader.KeyColumnSpec) error {
	if tx.done {
		return errTxDone
	}
	if err := tx.store.hit(OpCreateStaging); err != nil {
		return err
	}
	if _, exists := tx.staging[staging]; exists {
		return fmt.Errorf("relation %q already exists", staging)
	}
	tx.staging[staging] = &table{columns: keys.Names()}
	return nil
}

func (tx *memTx) CopyKeys(ctx context.Context, staging string, keys loader.KeyColumnSpec, tuples []loader.KeyTuple) (int64, error) {
	if tx.done {
		return 0, errTxDone
	}
	if err := tx.store.hit(OpCopyKeys); err != nil {
		return 0, err
	}
	t, ok := tx.staging[staging]
	if !ok {
		return 0, fmt.Errorf("relation %q does not exist", staging)
	}
	for _, tup := range tuples {
		t.rows = append(t.rows, append([]loader.Value(nil), tup...))
	}
	return int64(len(tuples)), nil
}

func (tx *memTx) DeleteMatching(ctx context.Context, target loader.Identifier, staging string, keys loader.KeyColumnSpec) (int64, error) {
	if tx.done {
		return 0, errTxDone
	}
	if err := tx.store.hit(OpDelete); err != nil {
		return 0, err
	}
	st, ok := tx.staging[staging]
	if !ok {
		return 0, fmt.Errorf("relation %q does not exist", staging)
	}
	t, err := tx.lookup(target.String())
	if err != nil {
		return 0, err
	}
	idx := make([]int, len(keys))
	for i, k := range keys {
		if idx[i] = t.index(k.Name); idx[i] < 0 {
			return 0, fmt.Errorf("column %q does not exist", k.Name)
		}
	}

	staged := make(map[string]struct{}, len(st.rows))
	for _, row := range st.rows {
		staged[loader.KeyTuple(row).Key()] = struct{}{}
	}

	kept := t.rows[:0]
	var deleted int64
	for _, row := range t.rows {
		tup := make(loader.KeyTuple, len(idx))
		for i, j := range idx {
			tup[i] = row[j]
		}
		if _, match := staged[tup.Key()]; match {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	t.rows = kept
	return deleted, nil
}

func (tx *memTx) CopyRows(ctx context.Context, target loader.Identifier, columns []string, rows [][]loader.Value) (int64, error) {
	if tx.done {
		return 0, errTxDone
	}
	if err := tx.store.hit(OpCopyRows); err != nil {
		return 0, err
	}
	t, err := tx.lookup(target.String())
	if err != nil {
		return 0, err
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		if idx[i] = t.index(c); idx[i] < 0 {
			return 0, fmt.Errorf("column %q of relation %q does not exist", c, target)
		}
	}
	for _, src := range rows {
		row := make([]loader.Value, len(t.columns))
		for i, j := range idx {
			row[j] = src[i]
		}
		t.rows = append(t.rows, row)
	}
	return int64(len(rows)), nil
}

func (tx *memTx) Commit(ctx context.Context) error {
	if tx.done {
		return errTxDone
	}
	// A failed commit still ends the transaction.
	tx.done = true
	err := tx.store.hit(OpCommit)

	defer tx.store.release()
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	tx.store.open--
	if err != nil {
		tx.store.rolls++
		return err
	}
	for name, t := range tx.working {
		tx.store.tables[name] = t
	}
	tx.store.commits++
	return nil
}

func (tx *memTx) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	defer tx.store.release()
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	tx.store.open--
	tx.store.rolls++
	return nil
}
