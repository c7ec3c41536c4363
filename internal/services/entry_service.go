package services

import (
	"context"
	"errors"
	"fmt"

	"kharcha/internal/core"
	applog "kharcha/internal/log"
	"kharcha/internal/storage"
)

// EntryService is the thin orchestration layer over the ledger store. Every
// operation takes the caller's user id as resolved by the HTTP guard; the
// service never widens a query beyond that owner.
type EntryService struct {
	repo            *storage.SQLiteRepository
	defaultPageSize int
	maxPageSize     int
	logger          *applog.Logger
}

func NewEntryService(repo *storage.SQLiteRepository, defaultPageSize, maxPageSize int) *EntryService {
	return &EntryService{
		repo:            repo,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		logger:          applog.Component(applog.ComponentEntry),
	}
}

// Create validates and persists a new entry for the caller. Income must be
// present; the store re-validates amounts independently.
func (s *EntryService) Create(ctx context.Context, userID int64, income *core.Money, expenses []core.ExpenseItem, note string) (core.Entry, error) {
	if income == nil {
		return core.Entry{}, core.ErrMissingIncome
	}
	candidate := core.Entry{Income: *income, Expenses: expenses}
	if err := candidate.Validate(); err != nil {
		return core.Entry{}, err
	}

	entry, err := s.repo.CreateEntry(ctx, userID, *income, expenses, note)
	if err != nil {
		return core.Entry{}, fmt.Errorf("create entry: %w", err)
	}
	return entry, nil
}

// History returns one page of the caller's entries, newest first, and the
// total page count at the requested page size. Out-of-range paging
// parameters are coerced to defaults rather than rejected.
func (s *EntryService) History(ctx context.Context, userID int64, page, limit int) ([]core.Entry, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	entries, total, err := s.repo.ListEntriesByOwner(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))

	s.logger.DebugContext(ctx, "History page served",
		applog.FieldOperation, applog.OpList,
		applog.FieldUserID, userID,
		applog.FieldPage, page,
		applog.FieldPageSize, limit,
		"total", total)

	return entries, totalPages, nil
}

// Update replaces income, expenses and note of one of the caller's entries.
// A missing entry and a foreign-owned entry report the same core.ErrNotFound.
func (s *EntryService) Update(ctx context.Context, entryID, userID int64, income *core.Money, expenses []core.ExpenseItem, note string) (core.Entry, error) {
	if income == nil {
		return core.Entry{}, core.ErrMissingIncome
	}
	candidate := core.Entry{Income: *income, Expenses: expenses}
	if err := candidate.Validate(); err != nil {
		return core.Entry{}, err
	}

	entry, err := s.repo.UpdateOwnedEntry(ctx, entryID, userID, *income, expenses, note)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Entry{}, core.ErrNotFound
		}
		return core.Entry{}, fmt.Errorf("update entry: %w", err)
	}
	return entry, nil
}

// Delete removes one of the caller's entries, with the same not-found
// semantics as Update.
func (s *EntryService) Delete(ctx context.Context, entryID, userID int64) error {
	deleted, err := s.repo.DeleteOwnedEntry(ctx, entryID, userID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if !deleted {
		return core.ErrNotFound
	}
	return nil
}
