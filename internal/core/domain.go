package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	Paid    Status = "paid"
	Pending Status = "pending"
)

type (
	// Kind distinguishes money coming in from money going out.
	Kind string

	// Status tracks whether an expense has been settled. It carries no
	// meaning for income transactions.
	Status string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single income or expense record owned by a user.
	// ID and OwnerID are assigned at creation time and never change.
	Transaction struct {
		ID          string
		OwnerID     string
		Description string
		Amount      Money
		OccursAt    Date
		Category    string
		Kind        Kind
		Status      Status // expenses only
		CreatedAt   time.Time
	}

	// TransactionPatch carries a partial update. Nil fields are left
	// untouched; ID and OwnerID cannot be patched.
	TransactionPatch struct {
		Description *string
		AmountCents *int64
		OccursAt    *Date
		Category    *string
		Kind        *Kind
		Status      *Status
	}

	// User is an authenticated account holder.
	User struct {
		ID            string
		Email         string
		DisplayName   string
		CPF           string
		Provider      string // "password", "google" or "github"
		EmailVerified bool
		CreatedAt     time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidKind      = errors.New("invalid transaction kind")
	ErrInvalidStatus    = errors.New("invalid expense status")
	ErrMissingStatus    = errors.New("expense requires a status")
	ErrInvalidCPF       = errors.New("invalid CPF")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// NewDate creates a new Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date.
func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// Calendar strips the time-of-day component, so two dates on the same
// day compare equal regardless of clock time.
func (d Date) Calendar() time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether both dates fall on the same calendar day.
func (d Date) SameDay(other Date) bool {
	return d.Calendar().Equal(other.Calendar())
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Calendar().AddDate(0, 0, n)}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (k Kind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	}
	return ErrInvalidKind
}

// Validate checks the invariants that must hold before a transaction is
// persisted: positive amount, non-empty description and category, a valid
// kind, and a status if and only if the record is an expense.
func (t Transaction) Validate() error {
	if err := t.OccursAt.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if t.Kind == Expense {
		switch t.Status {
		case Paid, Pending:
		case "":
			return ErrMissingStatus
		default:
			return ErrInvalidStatus
		}
	}
	return nil
}

// Validate checks every field the patch actually sets. Cross-field rules
// involving unchanged columns are enforced by the store.
func (p TransactionPatch) Validate() error {
	if p.Description != nil {
		if strings.TrimSpace(*p.Description) == "" {
			return ErrEmptyDescription
		}
		if len(*p.Description) > 200 {
			return errors.New("description too long (max 200 characters)")
		}
	}
	if p.AmountCents != nil && *p.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	if p.OccursAt != nil {
		if err := p.OccursAt.Validate(); err != nil {
			return err
		}
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		return ErrEmptyCategory
	}
	if p.Kind != nil {
		if err := p.Kind.Validate(); err != nil {
			return err
		}
	}
	if p.Status != nil {
		switch *p.Status {
		case Paid, Pending:
		default:
			return ErrInvalidStatus
		}
	}
	return nil
}
