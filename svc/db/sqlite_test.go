package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"codebin/pkg/domain"

	"github.com/pkg/errors"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", time.Now().UnixNano())
	s, err := NewSQLiteWithConfig(dsn, 4, 4, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	in := &domain.Paste{ID: "abc2345", Title: "T", Content: "C", PinHash: "deadbeef", CreatedAt: created}
	if err := s.Create(ctx, in); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	got, err := s.Get(ctx, "abc2345")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != in.ID || got.Title != in.Title || got.Content != in.Content || got.PinHash != in.PinHash {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, in)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
}

func TestGetWithoutPinHash(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	if err := s.Create(ctx, &domain.Paste{ID: "open234", Content: "x", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "open234")
	if err != nil {
		t.Fatal(err)
	}
	if got.PinHash != "" || got.Protected() {
		t.Errorf("expected unprotected paste, got pin hash %q", got.PinHash)
	}
	var stored interface{}
	if err := s.DB().QueryRow(`SELECT pin_hash FROM pastes WHERE id = ?`, "open234").Scan(&stored); err != nil {
		t.Fatal(err)
	}
	if stored != nil {
		t.Errorf("pin_hash column should be NULL, got %v", stored)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.Get(context.Background(), "nothere")
	if !errors.Is(err, domain.ErrPasteNotFound) {
		t.Fatalf("expected ErrPasteNotFound, got %v", err)
	}
}

func TestCreateDuplicateIsCollision(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	p := &domain.Paste{ID: "dup2345", Content: "first", CreatedAt: time.Now()}
	if err := s.Create(ctx, p); err != nil {
		t.Fatal(err)
	}
	err := s.Create(ctx, &domain.Paste{ID: "dup2345", Content: "second", CreatedAt: time.Now()})
	if !errors.Is(err, domain.ErrIDCollision) {
		t.Fatalf("expected ErrIDCollision, got %v", err)
	}
	if domain.KindOf(err) != domain.KindStorage {
		t.Fatalf("collision should classify as storage, got %v", domain.KindOf(err))
	}
	got, _ := s.Get(ctx, "dup2345")
	if got.Content != "first" {
		t.Fatalf("original record was overwritten: %q", got.Content)
	}
	if s.failures != 0 {
		t.Fatalf("collision counted as breaker failure: %d", s.failures)
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	s := newTestSQLite(t)
	for i := 0; i < maxFailures; i++ {
		s.recordError(errors.New("disk I/O error"))
	}
	_, err := s.Get(context.Background(), "abc2345")
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if domain.KindOf(err) != domain.KindStorage {
		t.Fatalf("open circuit should surface as storage error")
	}
	s.recordError(nil)
	if _, err := s.Get(context.Background(), "abc2345"); !errors.Is(err, domain.ErrPasteNotFound) {
		t.Fatalf("expected closed circuit after success, got %v", err)
	}
}

func TestCheckpointOnFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("wal%04d", i)
		if err := s.Create(ctx, &domain.Paste{ID: id, Content: "x", CreatedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Checkpoint(ctx); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestRunWALMaintenanceStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunWALMaintenance(ctx, 10*time.Millisecond) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("maintenance loop did not stop")
	}
}
