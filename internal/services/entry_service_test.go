package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"kharcha/internal/core"
	"kharcha/internal/storage"
)

func newTestEntryService(t *testing.T) (*EntryService, *storage.SQLiteRepository) {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return NewEntryService(repo, 5, 100), repo
}

func seedUser(t *testing.T, repo *storage.SQLiteRepository, email, mobile string) core.User {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), "Test User", email, mobile, "hash")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func money(cents int64) *core.Money {
	return &core.Money{Cents: cents}
}

func TestCreateRequiresIncome(t *testing.T) {
	svc, repo := newTestEntryService(t)
	user := seedUser(t, repo, "a@b.com", "9876543210")

	_, err := svc.Create(context.Background(), user.ID, nil, nil, "")
	if !errors.Is(err, core.ErrMissingIncome) {
		t.Fatalf("Create without income = %v, want ErrMissingIncome", err)
	}
}

func TestCreateValidatesExpenses(t *testing.T) {
	svc, repo := newTestEntryService(t)
	user := seedUser(t, repo, "a@b.com", "9876543210")
	ctx := context.Background()

	_, err := svc.Create(ctx, user.ID, money(100), []core.ExpenseItem{
		{Amount: core.Money{Cents: 10}, Description: ""},
	}, "")
	if !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("Create with blank description = %v, want ErrEmptyDescription", err)
	}

	_, err = svc.Create(ctx, user.ID, money(100), []core.ExpenseItem{
		{Amount: core.Money{Cents: -10}, Description: "x"},
	}, "")
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("Create with negative expense = %v, want ErrInvalidAmount", err)
	}
}

func TestHistoryPagingCoercion(t *testing.T) {
	svc, repo := newTestEntryService(t)
	user := seedUser(t, repo, "a@b.com", "9876543210")
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if _, err := svc.Create(ctx, user.ID, money(int64(i+1)*100), nil, ""); err != nil {
			t.Fatalf("seed entry %d: %v", i, err)
		}
	}

	// Out-of-range paging parameters fall back to defaults instead of erroring.
	entries, totalPages, err := svc.History(ctx, user.ID, -3, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("len(entries) = %d, want default page size 5", len(entries))
	}
	if totalPages != 2 {
		t.Fatalf("totalPages = %d, want 2", totalPages)
	}

	// The limit is capped, not rejected.
	entries, totalPages, err = svc.History(ctx, user.ID, 1, 100000)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 7 {
		t.Fatalf("len(entries) = %d, want 7", len(entries))
	}
	if totalPages != 1 {
		t.Fatalf("totalPages = %d, want 1", totalPages)
	}
}

func TestHistoryEmptyOwner(t *testing.T) {
	svc, repo := newTestEntryService(t)
	user := seedUser(t, repo, "a@b.com", "9876543210")

	entries, totalPages, err := svc.History(context.Background(), user.ID, 1, 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 0 || totalPages != 0 {
		t.Fatalf("History of empty owner = %d entries, %d pages; want 0, 0", len(entries), totalPages)
	}
}

func TestUpdateAndDeleteOwnership(t *testing.T) {
	svc, repo := newTestEntryService(t)
	owner := seedUser(t, repo, "owner@b.com", "1111111111")
	intruder := seedUser(t, repo, "intruder@b.com", "2222222222")
	ctx := context.Background()

	created, err := svc.Create(ctx, owner.ID, money(1000), nil, "mine")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Update(ctx, created.ID, intruder.ID, money(1), nil, ""); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign update = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, created.ID, intruder.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign delete = %v, want ErrNotFound", err)
	}

	updated, err := svc.Update(ctx, created.ID, owner.ID, money(2000), []core.ExpenseItem{
		{Amount: core.Money{Cents: 500}, Description: "rent"},
	}, "updated")
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Income.Cents != 2000 || updated.Note != "updated" {
		t.Fatalf("update not applied: %+v", updated)
	}

	if err := svc.Delete(ctx, created.ID, owner.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if err := svc.Delete(ctx, created.ID, owner.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("repeat delete = %v, want ErrNotFound", err)
	}
}
