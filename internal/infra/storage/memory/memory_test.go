package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/weatherload/internal/loader"
)

var keys = loader.KeyColumnSpec{{Name: "city_id", Type: "int"}}

func TestRollbackDiscardsWork(t *testing.T) {
	s := NewMemoryStorage()
	s.CreateTable("t", "city_id", "temperature")
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := tx.CopyRows(ctx, "t", []string{"city_id"}, [][]loader.Value{{loader.Int(1)}}); err != nil {
		t.Fatalf("CopyRows failed: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if n := len(s.Rows("t")); n != 0 {
		t.Errorf("expected no rows after rollback, got %d", n)
	}
	if open, commits, rollbacks := s.Stats(); open != 0 || commits != 0 || rollbacks != 1 {
		t.Errorf("unexpected stats open=%d commits=%d rollbacks=%d", open, commits, rollbacks)
	}
}

func TestDeleteMatchingUsesStagedTuples(t *testing.T) {
	s := NewMemoryStorage()
	s.CreateTable("t", "city_id", "temperature")
	_ = s.Insert("t",
		loader.Record{"city_id": loader.Int(1), "temperature": loader.Float(1)},
		loader.Record{"city_id": loader.Int(2), "temperature": loader.Float(2)},
	)
	ctx := context.Background()

	tx, _ := s.Begin(ctx)
	if err := tx.CreateStaging(ctx, "stg", keys); err != nil {
		t.Fatalf("CreateStaging failed: %v", err)
	}
	if _, err := tx.CopyKeys(ctx, "stg", keys, []loader.KeyTuple{{loader.Int(2)}}); err != nil {
		t.Fatalf("CopyKeys failed: %v", err)
	}
	n, err := tx.DeleteMatching(ctx, "t", "stg", keys)
	if err != nil || n != 1 {
		t.Fatalf("DeleteMatching = %d, %v; want 1, nil", n, err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	rows := s.Rows("t")
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if id, _ := rows[0]["city_id"].Int64(); id != 1 {
		t.Errorf("expected city 1 to remain, got %d", id)
	}
}

func TestInjectFault(t *testing.T) {
	s := NewMemoryStorage()
	boom := errors.New("boom")
	s.InjectFault(OpBegin, boom, 1)

	if _, err := s.Begin(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected injected fault, got %v", err)
	}
	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("expected fault to be spent, got %v", err)
	}
	_ = tx.Rollback(context.Background())
	if s.Calls(OpBegin) != 2 {
		t.Errorf("expected 2 begin calls, got %d", s.Calls(OpBegin))
	}
}

func TestTransactionsRunOneAtATime(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := s.Begin(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected second Begin to wait, got %v", err)
	}

	_ = tx.Commit(ctx)
	tx2, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin after commit failed: %v", err)
	}
	_ = tx2.Rollback(ctx)
}

func TestMissingTable(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	tx, _ := s.Begin(ctx)
	defer tx.Rollback(ctx)

	if _, err := tx.CopyRows(ctx, "missing", []string{"a"}, nil); err == nil {
		t.Fatal("expected error for missing relation")
	}
}
