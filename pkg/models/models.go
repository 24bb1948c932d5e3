package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendlog/pkg/interest"
	"github.com/shopspring/decimal"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Contact struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"` // Owner of the contact
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Relation  string    `json:"relation,omitempty"` // e.g. "Friend", "Family", "Business"
	CreatedAt time.Time `json:"created_at"`
}

// TransactionType is the direction money moved.
type TransactionType string

const (
	TransactionTypeGiven TransactionType = "GIVEN" // lent to the contact
	TransactionTypeTaken TransactionType = "TAKEN" // borrowed from the contact
)

func (t TransactionType) Valid() bool {
	return t == TransactionTypeGiven || t == TransactionTypeTaken
}

const (
	StatusActive  = "ACTIVE"
	StatusSettled = "SETTLED"
)

type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	ContactID     uuid.UUID       `json:"contact_id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	InterestRate  decimal.Decimal `json:"interest_rate"` // Percent per year
	InterestType  interest.Model  `json:"interest_type"`
	StartDate     Date            `json:"start_date"`
	DueDate       *Date           `json:"due_date,omitempty"`
	Status        string          `json:"status"`
	Description   string          `json:"description,omitempty"`
	ScreenshotURL string          `json:"screenshot_url,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Terms returns the fields interest accrual is computed from.
func (t *Transaction) Terms() interest.Terms {
	return interest.Terms{
		Principal:         t.Amount,
		AnnualRatePercent: t.InterestRate,
		Model:             t.InterestType,
		StartDate:         t.StartDate.Time,
	}
}

func (t *Transaction) IsActive() bool {
	return t.Status == StatusActive
}

// MaySettle returns true if the transaction can move to SETTLED.
func (t *Transaction) MaySettle() bool {
	return t.Status == StatusActive
}

type Payment struct {
	ID            uuid.UUID       `json:"id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Date          Date            `json:"date"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PaymentAmounts extracts the amounts of payments.
func PaymentAmounts(payments []*Payment) []decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(payments))
	for _, p := range payments {
		amounts = append(amounts, p.Amount)
	}
	return amounts
}

type TransactionWithContact struct {
	*Transaction
	Contact *Contact `json:"contact"`
}

// TransactionDetail is a transaction with its contact, payments and a
// balance summary computed for a given date.
type TransactionDetail struct {
	*Transaction
	Contact  *Contact         `json:"contact"`
	Payments []*Payment       `json:"payments"`
	Summary  interest.Summary `json:"summary"`
	Display  DisplaySummary   `json:"display"`
}

// DisplaySummary carries the summary amounts preformatted as currency.
type DisplaySummary struct {
	Principal       string `json:"principal"`
	AccruedInterest string `json:"accrued_interest"`
	TotalPaid       string `json:"total_paid"`
	Outstanding     string `json:"outstanding"`
}

func NewDisplaySummary(s interest.Summary) DisplaySummary {
	return DisplaySummary{
		Principal:       interest.FormatCurrency(s.Principal),
		AccruedInterest: interest.FormatCurrency(s.AccruedInterest),
		TotalPaid:       interest.FormatCurrency(s.TotalPaid),
		Outstanding:     interest.FormatCurrency(s.Outstanding),
	}
}

type DashboardStats struct {
	TotalGiven          decimal.Decimal `json:"total_given"`
	TotalTaken          decimal.Decimal `json:"total_taken"`
	TotalInterestGiven  decimal.Decimal `json:"total_interest_given"`
	TotalInterestTaken  decimal.Decimal `json:"total_interest_taken"`
	PendingTransactions int             `json:"pending_transactions"`
	AsOf                Date            `json:"as_of"`
}
