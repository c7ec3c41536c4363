package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	// Failures surfaced to callers through the HTTP layer.
	ErrDuplicateIdentifier = errors.New("email or mobile already registered")
	ErrNotFound            = errors.New("entry not found")
	ErrInvalidCredentials  = errors.New("invalid identifier or password")
	ErrInvalidToken        = errors.New("invalid token")

	// Validation failures.
	ErrEmptyName        = errors.New("name is required")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrInvalidMobile    = errors.New("mobile must be exactly 10 digits")
	ErrEmptyPassword    = errors.New("password is required")
	ErrMissingIncome    = errors.New("income is required")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty expense description")
)

var (
	emailRx  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobileRx = regexp.MustCompile(`^[0-9]{10}$`)
)

type (
	// User is a registered account. PasswordHash never leaves the server.
	User struct {
		ID           int64     `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		Mobile       string    `json:"mobile"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"created_at"`
	}

	// ExpenseItem is one line of an entry's expense list.
	ExpenseItem struct {
		Amount      Money  `json:"amount"`
		Description string `json:"description"`
	}

	// Entry is one day's recorded income and expenses, owned by exactly
	// one user. The owner is set at creation and never reassigned.
	Entry struct {
		ID        int64         `json:"id"`
		UserID    int64         `json:"user_id"`
		Income    Money         `json:"income"`
		Expenses  []ExpenseItem `json:"expenses"`
		Note      string        `json:"note,omitempty"`
		CreatedAt time.Time     `json:"created_at"`
	}
)

// NormalizeEmail lowercases and trims an email so uniqueness and lookups
// are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateRegistration checks signup input before any hashing or storage work.
func ValidateRegistration(name, email, mobile, password string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if !emailRx.MatchString(NormalizeEmail(email)) {
		return ErrInvalidEmail
	}
	if !mobileRx.MatchString(strings.TrimSpace(mobile)) {
		return ErrInvalidMobile
	}
	if password == "" {
		return ErrEmptyPassword
	}
	return nil
}

// Validate checks that every amount is non-negative and every expense line
// has a description. The storage layer calls this again before persisting.
func (e Entry) Validate() error {
	if e.Income.Cents < 0 {
		return ErrInvalidAmount
	}
	for _, item := range e.Expenses {
		if item.Amount.Cents < 0 {
			return ErrInvalidAmount
		}
		if strings.TrimSpace(item.Description) == "" {
			return ErrEmptyDescription
		}
	}
	return nil
}

// Saving is income minus the sum of expense amounts. It is always derived,
// never stored, so it cannot drift from its inputs.
func (e Entry) Saving() Money {
	cents := e.Income.Cents
	for _, item := range e.Expenses {
		cents -= item.Amount.Cents
	}
	return Money{Cents: cents}
}
