// Package storage persists users and ledger entries in SQLite. It is the
// single arbiter of consistency: uniqueness lives in unique indexes, and
// every mutation of an entry is one statement filtered on both entry id and
// owner id.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"kharcha/internal/core"
	applog "kharcha/internal/log"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type SQLiteRepository struct {
	db     *sql.DB
	logger *applog.Logger
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := applyMigrations(migrationsFS, dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: applog.Component(applog.ComponentStorage),
	}, nil
}

// applyMigrations brings the schema up to date from the migration files in
// src. The migrate driver takes ownership of the connection it is given and
// closes it, so it gets a dedicated one instead of the repository's handle.
func applyMigrations(src fs.FS, dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}

	source, err := iofs.New(src, "migrations")
	if err != nil {
		db.Close()
		return fmt.Errorf("read migration files: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("wrap migration connection: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("build migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser inserts a new identity. A collision on email or mobile hits the
// unique indexes and surfaces as core.ErrDuplicateIdentifier regardless of
// any pre-check the caller may have done.
func (r *SQLiteRepository) CreateUser(ctx context.Context, name, email, mobile, passwordHash string) (core.User, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, email, mobile, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		name, email, mobile, passwordHash, now.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.ErrDuplicateIdentifier
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user insert id: %w", err)
	}

	r.logger.InfoContext(ctx, "User created", applog.FieldUserID, id)

	return core.User{
		ID:           id,
		Name:         name,
		Email:        email,
		Mobile:       mobile,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

// GetUserByIdentifier resolves a user by email or mobile. Emails are stored
// lowercased, so the email arm compares against the normalized form.
func (r *SQLiteRepository) GetUserByIdentifier(ctx context.Context, identifier string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, mobile, password_hash, created_at FROM users WHERE email = ? OR mobile = ?`,
		core.NormalizeEmail(identifier), strings.TrimSpace(identifier),
	)

	var u core.User
	var createdAt int64
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Mobile, &u.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, core.ErrNotFound
		}
		return core.User{}, fmt.Errorf("query user by identifier: %w", err)
	}
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	return u, nil
}

// CreateEntry persists a new ledger entry owned by userID. The creation
// timestamp is server-assigned and immutable.
func (r *SQLiteRepository) CreateEntry(ctx context.Context, userID int64, income core.Money, expenses []core.ExpenseItem, note string) (core.Entry, error) {
	if expenses == nil {
		expenses = []core.ExpenseItem{}
	}
	entry := core.Entry{
		UserID:    userID,
		Income:    income,
		Expenses:  expenses,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return core.Entry{}, err
	}

	expensesJSON, err := json.Marshal(expenses)
	if err != nil {
		return core.Entry{}, fmt.Errorf("marshal expenses: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO entries (user_id, income_cents, expenses, note, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, income.Cents, string(expensesJSON), note, entry.CreatedAt.UnixNano(),
	)
	if err != nil {
		return core.Entry{}, fmt.Errorf("insert entry: %w", err)
	}

	entry.ID, err = res.LastInsertId()
	if err != nil {
		return core.Entry{}, fmt.Errorf("entry insert id: %w", err)
	}

	r.logger.InfoContext(ctx, "Entry saved",
		applog.FieldEntryID, entry.ID,
		applog.FieldUserID, userID,
		"income_cents", income.Cents,
		"expense_lines", len(expenses))

	return entry, nil
}

// ListEntriesByOwner returns one page of the owner's entries, newest first,
// plus the total count of the owner's entries. Offset pagination means a
// concurrent insert or delete can shift an item across a page boundary
// between calls; that drift is accepted for this workload.
func (r *SQLiteRepository) ListEntriesByOwner(ctx context.Context, userID int64, page, pageSize int) ([]core.Entry, int64, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, income_cents, expenses, note, created_at
		 FROM entries WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID, pageSize, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []core.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate entries: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE user_id = ?`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	return entries, total, nil
}

// UpdateOwnedEntry replaces income, expenses and note of an entry in a
// single statement filtered on both entry id and owner id. An entry that
// does not exist and an entry owned by someone else are indistinguishable:
// both report core.ErrNotFound with no effect.
func (r *SQLiteRepository) UpdateOwnedEntry(ctx context.Context, entryID, userID int64, income core.Money, expenses []core.ExpenseItem, note string) (core.Entry, error) {
	if expenses == nil {
		expenses = []core.ExpenseItem{}
	}
	entry := core.Entry{
		ID:       entryID,
		UserID:   userID,
		Income:   income,
		Expenses: expenses,
		Note:     note,
	}
	if err := entry.Validate(); err != nil {
		return core.Entry{}, err
	}

	expensesJSON, err := json.Marshal(expenses)
	if err != nil {
		return core.Entry{}, fmt.Errorf("marshal expenses: %w", err)
	}

	// RETURNING keeps this a single statement: the ownership check, the
	// mutation and the created_at read happen atomically, so a concurrent
	// delete can only make the whole update a not-found.
	var createdAt int64
	err = r.db.QueryRowContext(ctx,
		`UPDATE entries SET income_cents = ?, expenses = ?, note = ?
		 WHERE id = ? AND user_id = ?
		 RETURNING created_at`,
		income.Cents, string(expensesJSON), note, entryID, userID,
	).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, core.ErrNotFound
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("update entry: %w", err)
	}
	entry.CreatedAt = time.Unix(0, createdAt).UTC()

	r.logger.InfoContext(ctx, "Entry updated", applog.FieldEntryID, entryID, applog.FieldUserID, userID)

	return entry, nil
}

// DeleteOwnedEntry removes an entry in a single statement filtered on both
// entry id and owner id, and reports whether anything was deleted.
func (r *SQLiteRepository) DeleteOwnedEntry(ctx context.Context, entryID, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM entries WHERE id = ? AND user_id = ?`, entryID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete entry rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	r.logger.InfoContext(ctx, "Entry deleted", applog.FieldEntryID, entryID, applog.FieldUserID, userID)
	return true, nil
}

func scanEntry(rows *sql.Rows) (core.Entry, error) {
	var entry core.Entry
	var expensesJSON string
	var createdAt int64
	if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Income.Cents, &expensesJSON, &entry.Note, &createdAt); err != nil {
		return core.Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	if err := json.Unmarshal([]byte(expensesJSON), &entry.Expenses); err != nil {
		return core.Entry{}, fmt.Errorf("unmarshal expenses: %w", err)
	}
	if entry.Expenses == nil {
		entry.Expenses = []core.ExpenseItem{}
	}
	entry.CreatedAt = time.Unix(0, createdAt).UTC()
	return entry, nil
}

// isUniqueViolation matches the driver's unique-constraint error. The
// sqlite error text is stable ("UNIQUE constraint failed: ..."), so matching
// on it avoids depending on driver-internal error codes.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
