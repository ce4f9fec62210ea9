package core

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Expense CategoryType = "expense"
	Income  CategoryType = "income"
)

const (
	// System category names used by transfers.
	TransferOutCategory = "Transfer out"
	TransferInCategory  = "Transfer in"

	maxNameLength        = 100
	maxDescriptionLength = 500
	dateLayout           = "2006-01-02"
)

type (
	// UserID identifies the owner of every ledger row. It is opaque to the core.
	UserID int64

	CategoryType string

	Date struct {
		time.Time
	}

	Category struct {
		ID        int64        `json:"id"`
		UserID    UserID       `json:"user_id"`
		Name      string       `json:"name"`
		Type      CategoryType `json:"type"`
		CreatedAt time.Time    `json:"created_at"`
	}

	Wallet struct {
		ID             int64     `json:"id"`
		UserID         UserID    `json:"user_id"`
		Name           string    `json:"name"`
		Balance        Money     `json:"balance"`
		OpeningBalance Money     `json:"opening_balance"`
		CreatedAt      time.Time `json:"created_at"`
		UpdatedAt      time.Time `json:"updated_at"`
	}

	Transaction struct {
		ID          int64  `json:"id"`
		UserID      UserID `json:"user_id"`
		WalletID    int64  `json:"wallet_id"`
		CategoryID  int64  `json:"category_id"`
		Amount      Money  `json:"amount"`
		Date        Date   `json:"date"`
		Description string `json:"description,omitempty"`
		// CategoryType is filled on reads for convenience; the stored delta
		// sign is always derived from the category row.
		CategoryType CategoryType `json:"category_type,omitempty"`
		CreatedAt    time.Time    `json:"created_at"`
		UpdatedAt    time.Time    `json:"updated_at"`
	}

	Budget struct {
		ID         int64     `json:"id"`
		UserID     UserID    `json:"user_id"`
		CategoryID int64     `json:"category_id"`
		Amount     Money     `json:"amount"`
		Month      int       `json:"month"`
		Year       int       `json:"year"`
		CreatedAt  time.Time `json:"created_at"`
		UpdatedAt  time.Time `json:"updated_at"`
	}
)

var (
	ErrEmptyName          = Validation("", "name cannot be empty")
	ErrNameTooLong        = Validation("", "name too long (max 100 characters)")
	ErrInvalidType        = Validation("", "category type must be 'expense' or 'income'")
	ErrInvalidDate        = Validation("", "date is required")
	ErrDescriptionTooLong = Validation("", "description too long (max 500 characters)")
	ErrInvalidMonth       = Validation("", "month must be between 1 and 12")
	ErrInvalidYear        = Validation("", "year must be between 2000 and 2100")
)

func (t CategoryType) Valid() bool {
	return t == Expense || t == Income
}

// Delta returns the signed effect of amount on a wallet balance.
func Delta(amount Money, t CategoryType) Money {
	if t == Income {
		return amount
	}
	return amount.Neg()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NormalizeName trims surrounding whitespace.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

func (c Category) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (w Wallet) Validate() error {
	if err := validateName(w.Name); err != nil {
		return err
	}
	// Opening balances may be negative (an overdrawn account being tracked).
	if err := w.OpeningBalance.ValidateScale(); err != nil {
		return err
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Amount.ValidateAmount(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if utf8.RuneCountInString(t.Description) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// Delta is the signed effect of t on its wallet. CategoryType must be set.
func (t Transaction) Delta() Money {
	return Delta(t.Amount, t.CategoryType)
}

func (b Budget) Validate() error {
	if err := b.Amount.ValidateAmount(); err != nil {
		return err
	}
	if b.Month < 1 || b.Month > 12 {
		return ErrInvalidMonth
	}
	if b.Year < 2000 || b.Year > 2100 {
		return ErrInvalidYear
	}
	return nil
}
