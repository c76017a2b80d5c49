package storage

import (
	"context"
	"errors"
	"testing"

	"fundamentals-merge/internal/series"
)

func TestStoreWithoutPool(t *testing.T) {
	var s *Store
	ctx := context.Background()

	if err := s.EnsureSchema(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("EnsureSchema: want ErrNotConfigured, got %v", err)
	}
	if err := s.ReplaceTable(ctx, "AAPL", series.New("Close Price")); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("ReplaceTable: want ErrNotConfigured, got %v", err)
	}
	if _, err := s.LoadTable(ctx, "AAPL"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("LoadTable: want ErrNotConfigured, got %v", err)
	}
	if _, err := s.RecordRun(ctx, RunRecord{Symbol: "AAPL"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("RecordRun: want ErrNotConfigured, got %v", err)
	}
	if _, _, err := s.TryAdvisoryLock(ctx, 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("TryAdvisoryLock: want ErrNotConfigured, got %v", err)
	}
	s.Close()
}
