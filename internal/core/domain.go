package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MaxTextLength bounds the description, source and category name of a
// transaction, in runes.
const MaxTextLength = 500

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentOnline   PaymentMethod = "online"
	PaymentOther    PaymentMethod = "other"
)

const (
	StatusReceived  TransactionStatus = "received"
	StatusPending   TransactionStatus = "pending"
	StatusCancelled TransactionStatus = "cancelled"
)

const (
	Daily     Recurrence = "daily"
	Weekly    Recurrence = "weekly"
	Biweekly  Recurrence = "biweekly"
	Monthly   Recurrence = "monthly"
	Quarterly Recurrence = "quarterly"
	Yearly    Recurrence = "yearly"
)

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalCancelled GoalStatus = "cancelled"
)

const (
	GoalMonthly GoalType = "monthly"
	GoalYearly  GoalType = "yearly"
	GoalCustom  GoalType = "custom"
)

type (
	Kind              string
	PaymentMethod     string
	TransactionStatus string
	Recurrence        string
	GoalStatus        string
	GoalType          string

	Date struct {
		time.Time
	}

	// Transaction is a single income or expense record. ExchangeRate holds the
	// base-currency units per one unit of Currency as captured when the
	// transaction was recorded; the base amount is derived from it on read.
	Transaction struct {
		ID            string
		UserID        int64
		Kind          Kind
		Amount        decimal.Decimal
		Currency      Currency
		ExchangeRate  decimal.Decimal
		CategoryID    int64 // 0 means uncategorized
		CategoryName  string
		Date          Date
		PaymentMethod PaymentMethod
		Tags          []string
		Status        TransactionStatus
		Source        string
		Description   string
		IsTaxable     bool
		TaxAmount     decimal.Decimal
		CreatedAt     time.Time
	}

	Budget struct {
		ID             int64
		UserID         int64
		CategoryID     int64
		Name           string
		Amount         decimal.Decimal
		Currency       Currency
		Period         Recurrence
		StartDate      Date
		EndDate        Date // zero means open-ended
		AlertThreshold decimal.Decimal
		IsActive       bool
	}

	Goal struct {
		ID           int64
		UserID       int64
		Name         string
		GoalType     GoalType
		TargetAmount decimal.Decimal
		Currency     Currency
		StartDate    Date
		EndDate      Date
		CategoryIDs  []int64
		Status       GoalStatus
		UpdatedAt    time.Time
	}

	// RecurringIncome produces a new income from Template every time NextDate is reached.
	RecurringIncome struct {
		ID         int64
		UserID     int64
		Template   Transaction
		Recurrence Recurrence
		Interval   int
		// StartDate anchors the schedule. Occurrence k falls k intervals
		// after it, so a day clamped in a short month is restored later.
		StartDate  Date
		NextDate   Date
		EndDate    Date
		IsActive   bool
	}
)

// Anchor is StartDate, or NextDate for schedules saved without one.
func (ri RecurringIncome) Anchor() Date {
	if ri.StartDate.IsZero() {
		return ri.NextDate
	}
	return ri.StartDate
}

var (
	ErrInvalidDay          = errors.New("invalid day")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidKind         = errors.New("invalid transaction kind")
	ErrInvalidStatus       = errors.New("invalid transaction status")
	ErrInvalidPayment      = errors.New("invalid payment method")
	ErrInvalidTax          = errors.New("tax amount must be lower than amount")
	ErrMissingCategory     = errors.New("income requires a category")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrInvalidThreshold    = errors.New("alert threshold must be between 0 and 100")
	ErrInvalidRecurrence   = errors.New("invalid recurrence")
	ErrTextTooLong         = fmt.Errorf("text longer than %d characters", MaxTextLength)
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentOnline, PaymentOther:
		return true
	}
	return false
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusReceived, StatusPending, StatusCancelled:
		return true
	}
	return false
}

func (r Recurrence) Valid() bool {
	switch r {
	case Daily, Weekly, Biweekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

// IsTerminal reports whether the status can no longer change.
func (s GoalStatus) IsTerminal() bool {
	return s == GoalCompleted || s == GoalCancelled
}

// BaseAmount returns the amount in base currency units using the rate captured
// at write time. ok is false when no rate was captured.
func (t Transaction) BaseAmount() (amount decimal.Decimal, ok bool) {
	if !t.ExchangeRate.IsPositive() {
		return decimal.Zero, false
	}
	return t.Amount.Mul(t.ExchangeRate), true
}

// NetAmount is the amount after tax.
func (t Transaction) NetAmount() decimal.Decimal {
	return t.Amount.Sub(t.TaxAmount)
}

// HasTag reports whether the transaction carries tag (case-insensitive).
func (t Transaction) HasTag(tag string) bool {
	for _, own := range t.Tags {
		if strings.EqualFold(own, tag) {
			return true
		}
	}
	return false
}

// Counts reports whether the transaction contributes to totals. Pending and
// cancelled incomes are excluded.
func (t Transaction) Counts() bool {
	return t.Kind == Expense || t.Status == "" || t.Status == StatusReceived
}

func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.Currency.IsSupported() {
		return ErrUnsupportedCurrency
	}
	if t.PaymentMethod != "" && !t.PaymentMethod.Valid() {
		return ErrInvalidPayment
	}
	if t.Status != "" && !t.Status.Valid() {
		return ErrInvalidStatus
	}
	if t.Kind == Income && t.CategoryID == 0 {
		return ErrMissingCategory
	}
	if t.TaxAmount.IsNegative() {
		return ErrInvalidTax
	}
	if t.IsTaxable && t.TaxAmount.GreaterThanOrEqual(t.Amount) {
		return ErrInvalidTax
	}
	for _, s := range []string{t.Description, t.Source, t.CategoryName} {
		if utf8.RuneCountInString(s) > MaxTextLength {
			return ErrTextTooLong
		}
	}
	return nil
}

func (b Budget) Validate() error {
	if !b.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !b.Currency.IsSupported() {
		return ErrUnsupportedCurrency
	}
	if b.AlertThreshold.IsNegative() || b.AlertThreshold.GreaterThan(decimal.NewFromInt(100)) {
		return ErrInvalidThreshold
	}
	if err := b.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if !b.EndDate.IsZero() && b.EndDate.Before(b.StartDate.Time) {
		return errors.New("end date must be after start date")
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return errors.New("empty goal name")
	}
	if !g.TargetAmount.IsPositive() {
		return ErrInvalidAmount
	}
	if !g.Currency.IsSupported() {
		return ErrUnsupportedCurrency
	}
	if err := g.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if err := g.EndDate.Validate(); err != nil {
		return errors.New("invalid end date: " + err.Error())
	}
	if g.EndDate.Before(g.StartDate.Time) {
		return errors.New("end date must be after start date")
	}
	return nil
}

// MatchesCategory reports whether an income in categoryID counts towards the goal.
func (g Goal) MatchesCategory(categoryID int64) bool {
	if len(g.CategoryIDs) == 0 {
		return true
	}
	for _, id := range g.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

func (ri RecurringIncome) Validate() error {
	if !ri.Recurrence.Valid() {
		return ErrInvalidRecurrence
	}
	if ri.Interval < 1 {
		return errors.New("interval must be at least 1")
	}
	if err := ri.NextDate.Validate(); err != nil {
		return errors.New("invalid next date: " + err.Error())
	}
	return ri.Template.Validate()
}
