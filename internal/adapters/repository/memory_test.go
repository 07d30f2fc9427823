package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kvetinski/bank/internal/adapters/repository"
	"github.com/kvetinski/bank/internal/domain"
	"github.com/kvetinski/bank/internal/telemetry"
)

func TestMemoryAssignsIncreasingIDs(t *testing.T) {
	repo := repository.NewMemory(nil)
	ctx := context.Background()

	first, err := repo.Save(ctx, domain.Account{Name: "First account"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := repo.Save(ctx, domain.Account{Name: "Second account"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}

	if err = repo.DeleteByID(ctx, second.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	third, err := repo.Save(ctx, domain.Account{Name: "Third account"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.ID != 3 {
		t.Fatalf("expected deleted id not to be reused, got %d", third.ID)
	}
}

func TestMemoryFindAllOrderedByID(t *testing.T) {
	repo := repository.NewMemory(nil)
	ctx := context.Background()

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if all == nil || len(all) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", all)
	}

	for range 5 {
		if _, err = repo.Save(ctx, domain.Account{Name: "Account"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	all, err = repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, acc := range all {
		if acc.ID != int64(i+1) {
			t.Fatalf("expected id %d at position %d, got %d", i+1, i, acc.ID)
		}
	}
}

func TestMemoryMissesReportNotFound(t *testing.T) {
	repo := repository.NewMemory(nil)
	ctx := context.Background()

	if _, err := repo.FindByID(ctx, 7); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("FindByID: expected ErrAccountNotFound, got %v", err)
	}
	if _, err := repo.Save(ctx, domain.Account{ID: 7, Name: "Testing"}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("Save: expected ErrAccountNotFound, got %v", err)
	}
	if err := repo.DeleteByID(ctx, 7); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("DeleteByID: expected ErrAccountNotFound, got %v", err)
	}
}

func TestMemoryRecordsDBMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	repo := repository.NewMemory(telemetry.NewMetrics(reg))
	ctx := context.Background()

	if _, err := repo.Save(ctx, domain.Account{Name: "Testing"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _ = repo.FindByID(ctx, 1)
	_, _ = repo.FindByID(ctx, 99)

	count, err := testutil.GatherAndCount(reg, "bank_db_queries_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	// insert/ok, find_by_id/ok, find_by_id/not_found
	if count != 3 {
		t.Fatalf("expected 3 series, got %d", count)
	}
}
