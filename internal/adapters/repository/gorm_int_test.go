//go:build integration

package repository_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kvetinski/bank/internal/adapters/repository"
	"github.com/kvetinski/bank/internal/domain"
)

func newGormRepo(t *testing.T) *repository.Gorm {
	t.Helper()

	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		dsn = "bank:bank@tcp(localhost:3306)/bank?parseTime=true"
	}

	db, err := repository.OpenMySQL(dsn)
	if err != nil {
		t.Fatalf("open mysql (%s): %v", dsn, err)
	}
	if err = db.Exec("DROP TABLE IF EXISTS accounts").Error; err != nil {
		t.Fatalf("drop table: %v", err)
	}

	repo := repository.NewGorm(db, nil)
	t.Cleanup(func() { _ = repo.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = repo.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return repo
}

func TestIntegrationGormLifecycle(t *testing.T) {
	repo := newGormRepo(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	created, err := repo.Save(ctx, domain.Account{Name: "Testing", Document: "12345678910", Phone: "+55 41 91234-1234"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected id to be assigned")
	}

	// saving unchanged values must not be reported as a miss
	if _, err = repo.Save(ctx, created); err != nil {
		t.Fatalf("Save (unchanged) failed: %v", err)
	}

	changed := created
	changed.Phone = "+55 41 99999-0000"
	if _, err = repo.Save(ctx, changed); err != nil {
		t.Fatalf("Save (update) failed: %v", err)
	}

	got, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got != changed {
		t.Fatalf("expected %+v, got %+v", changed, got)
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 account, got %d", len(all))
	}

	if err = repo.DeleteByID(ctx, created.ID); err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}
	if err = repo.DeleteByID(ctx, created.ID); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound on second delete, got %v", err)
	}

	_, err = repo.Save(ctx, changed)
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound updating deleted account, got %v", err)
	}
}

func TestIntegrationGormLongName(t *testing.T) {
	repo := newGormRepo(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := strings.Repeat("n", 1000)
	created, err := repo.Save(ctx, domain.Account{Name: name, Document: "12345678910", Phone: "+55 41 91234-1234"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.Name != name {
		t.Fatalf("expected %d-char name, got %d chars", len(name), len(got.Name))
	}
}
