package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendlog/pkg/auth"
	"github.com/mcclellann/lendlog/pkg/interest"
	"github.com/mcclellann/lendlog/pkg/logger"
	"github.com/mcclellann/lendlog/pkg/models"
	"github.com/mcclellann/lendlog/pkg/store"
	"github.com/shopspring/decimal"
)

const minPasswordLength = 8

// maxInterestRate is the highest annual rate, in percent, a transaction may carry.
var maxInterestRate = decimal.NewFromInt(1000)

// Ledger handles the business logic for contacts, transactions and payments.
// Every operation is scoped to the user that owns the records.
type Ledger struct {
	storage store.Storage
	tokens  *auth.Issuer
	now     func() time.Time
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, tokens *auth.Issuer) *Ledger {
	return &Ledger{
		storage: s,
		tokens:  tokens,
		now:     time.Now,
	}
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates an account and signs the user in.
func (l *Ledger) Register(ctx context.Context, email, password, firstName, lastName string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, invalid("email", "a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		PasswordHash: hash,
		CreatedAt:    l.now(),
	}
	if err := l.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to store user: %w", err)
	}
	logger.FromContext(ctx).Info("user registered", "user_id", user.ID)

	return l.signIn(user)
}

// Login verifies credentials and returns a fresh token.
func (l *Ledger) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := l.storage.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrUnauthorized
	}
	return l.signIn(user)
}

func (l *Ledger) signIn(user *models.User) (*AuthResult, error) {
	token, err := l.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

// GetUser retrieves the signed-in user's account.
func (l *Ledger) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return l.storage.GetUser(ctx, userID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ContactInput holds the writable fields of a contact.
type ContactInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Relation string `json:"relation"`
}

// ContactUpdate is a partial ContactInput; nil fields are left unchanged.
type ContactUpdate struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Relation *string `json:"relation"`
}

func validateContact(c *models.Contact) error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", "name is required")
	}
	return nil
}

// ListContacts returns the user's contacts.
func (l *Ledger) ListContacts(ctx context.Context, userID uuid.UUID) ([]*models.Contact, error) {
	return l.storage.ListContacts(ctx, userID)
}

// GetContact returns one of the user's contacts.
func (l *Ledger) GetContact(ctx context.Context, userID, id uuid.UUID) (*models.Contact, error) {
	return l.storage.GetContact(ctx, userID, id)
}

// CreateContact adds a contact owned by userID.
func (l *Ledger) CreateContact(ctx context.Context, userID uuid.UUID, in ContactInput) (*models.Contact, error) {
	contact := &models.Contact{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Relation:  strings.TrimSpace(in.Relation),
		CreatedAt: l.now(),
	}
	if err := validateContact(contact); err != nil {
		return nil, err
	}
	if err := l.storage.CreateContact(ctx, contact); err != nil {
		return nil, fmt.Errorf("failed to store contact: %w", err)
	}
	return contact, nil
}

// UpdateContact applies a partial update to one of the user's contacts.
func (l *Ledger) UpdateContact(ctx context.Context, userID, id uuid.UUID, in ContactUpdate) (*models.Contact, error) {
	contact, err := l.storage.GetContact(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		contact.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		contact.Email = strings.TrimSpace(*in.Email)
	}
	if in.Phone != nil {
		contact.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Relation != nil {
		contact.Relation = strings.TrimSpace(*in.Relation)
	}
	if err := validateContact(contact); err != nil {
		return nil, err
	}

	if err := l.storage.UpdateContact(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// DeleteContact removes a contact that no transaction refers to.
func (l *Ledger) DeleteContact(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := l.storage.GetContact(ctx, userID, id); err != nil {
		return err
	}
	n, err := l.storage.CountTransactionsForContact(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d transaction(s) still reference it", ErrContactInUse, n)
	}
	return l.storage.DeleteContact(ctx, userID, id)
}

// TransactionInput holds the writable fields of a new transaction.
type TransactionInput struct {
	ContactID     uuid.UUID              `json:"contact_id"`
	Type          models.TransactionType `json:"type"`
	Amount        decimal.Decimal        `json:"amount"`
	InterestRate  decimal.Decimal        `json:"interest_rate"`
	InterestType  interest.Model         `json:"interest_type"`
	StartDate     models.Date            `json:"start_date"`
	DueDate       *models.Date           `json:"due_date"`
	Description   string                 `json:"description"`
	ScreenshotURL string                 `json:"screenshot_url"`
}

// TransactionUpdate is a partial update; nil fields are left unchanged.
// Status may only move ACTIVE → SETTLED. Once settled, only the description
// and screenshot may change.
type TransactionUpdate struct {
	ContactID     *uuid.UUID              `json:"contact_id"`
	Type          *models.TransactionType `json:"type"`
	Amount        *decimal.Decimal        `json:"amount"`
	InterestRate  *decimal.Decimal        `json:"interest_rate"`
	InterestType  *interest.Model         `json:"interest_type"`
	StartDate     *models.Date            `json:"start_date"`
	DueDate       *models.Date            `json:"due_date"`
	Description   *string                 `json:"description"`
	ScreenshotURL *string                 `json:"screenshot_url"`
	Status        *string                 `json:"status"`
	ClearDueDate  bool                    `json:"clear_due_date"`
}

func (u TransactionUpdate) changesTerms() bool {
	return u.ContactID != nil || u.Type != nil || u.Amount != nil ||
		u.InterestRate != nil || u.InterestType != nil || u.StartDate != nil ||
		u.DueDate != nil || u.ClearDueDate
}

// validateTransaction is the boundary that keeps out-of-range terms away
// from the interest engine.
func validateTransaction(t *models.Transaction) error {
	switch {
	case t.ContactID == uuid.Nil:
		return invalid("contact_id", "contact is required")
	case !t.Type.Valid():
		return invalid("type", fmt.Sprintf("must be %s or %s", models.TransactionTypeGiven, models.TransactionTypeTaken))
	case !t.Amount.IsPositive():
		return invalid("amount", "amount must be positive")
	case t.InterestRate.IsNegative():
		return invalid("interest_rate", "interest rate cannot be negative")
	case t.InterestRate.GreaterThan(maxInterestRate):
		return invalid("interest_rate", fmt.Sprintf("interest rate cannot exceed %s%%", maxInterestRate))
	case !t.InterestType.Valid():
		return invalid("interest_type", fmt.Sprintf("must be %s or %s", interest.Simple, interest.Compound))
	case t.StartDate.IsZero():
		return invalid("start_date", "start date is required")
	case t.DueDate != nil && t.DueDate.Before(t.StartDate.Time):
		return invalid("due_date", "due date cannot be before start date")
	}
	return nil
}

// ListTransactions returns the user's transactions with their contacts.
func (l *Ledger) ListTransactions(ctx context.Context, userID uuid.UUID) ([]*models.TransactionWithContact, error) {
	return l.storage.ListTransactions(ctx, userID)
}

// GetTransaction returns a transaction with its contact, payments and
// balance summary as of asOf.
func (l *Ledger) GetTransaction(ctx context.Context, userID, id uuid.UUID, asOf time.Time) (*models.TransactionDetail, error) {
	snap, err := l.storage.GetTransactionSnapshot(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	summary := interest.Summarize(snap.Transaction.Terms(), models.PaymentAmounts(snap.Payments), asOf)
	return &models.TransactionDetail{
		Transaction: snap.Transaction,
		Contact:     snap.Contact,
		Payments:    snap.Payments,
		Summary:     summary,
		Display:     models.NewDisplaySummary(summary),
	}, nil
}

// CreateTransaction records money lent to or borrowed from one of the
// user's contacts. New transactions start ACTIVE.
func (l *Ledger) CreateTransaction(ctx context.Context, userID uuid.UUID, in TransactionInput) (*models.Transaction, error) {
	tx := &models.Transaction{
		ID:            uuid.New(),
		UserID:        userID,
		ContactID:     in.ContactID,
		Type:          in.Type,
		Amount:        in.Amount,
		InterestRate:  in.InterestRate,
		InterestType:  in.InterestType,
		StartDate:     in.StartDate,
		DueDate:       in.DueDate,
		Status:        models.StatusActive,
		Description:   strings.TrimSpace(in.Description),
		ScreenshotURL: strings.TrimSpace(in.ScreenshotURL),
		CreatedAt:     l.now(),
	}
	if err := validateTransaction(tx); err != nil {
		return nil, err
	}
	if err := l.requireContact(ctx, userID, tx.ContactID); err != nil {
		return nil, err
	}

	if err := l.storage.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to store transaction: %w", err)
	}
	logger.FromContext(ctx).Info("transaction created", "transaction_id", tx.ID, "type", tx.Type, "amount", tx.Amount.StringFixed(2))
	return tx, nil
}

func (l *Ledger) requireContact(ctx context.Context, userID, contactID uuid.UUID) error {
	if _, err := l.storage.GetContact(ctx, userID, contactID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalid("contact_id", "contact does not exist")
		}
		return err
	}
	return nil
}

// UpdateTransaction applies a partial update to one of the user's transactions.
func (l *Ledger) UpdateTransaction(ctx context.Context, userID, id uuid.UUID, in TransactionUpdate) (*models.Transaction, error) {
	tx, err := l.storage.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !tx.IsActive() && in.changesTerms() {
		return nil, fmt.Errorf("%w: terms of a %s transaction cannot change", ErrInvalidState, tx.Status)
	}

	if in.ContactID != nil && *in.ContactID != tx.ContactID {
		if err := l.requireContact(ctx, userID, *in.ContactID); err != nil {
			return nil, err
		}
		tx.ContactID = *in.ContactID
	}
	if in.Type != nil {
		tx.Type = *in.Type
	}
	if in.Amount != nil {
		tx.Amount = *in.Amount
	}
	if in.InterestRate != nil {
		tx.InterestRate = *in.InterestRate
	}
	if in.InterestType != nil {
		tx.InterestType = *in.InterestType
	}
	if in.StartDate != nil {
		tx.StartDate = *in.StartDate
	}
	switch {
	case in.ClearDueDate:
		tx.DueDate = nil
	case in.DueDate != nil:
		tx.DueDate = in.DueDate
	}
	if in.Description != nil {
		tx.Description = strings.TrimSpace(*in.Description)
	}
	if in.ScreenshotURL != nil {
		tx.ScreenshotURL = strings.TrimSpace(*in.ScreenshotURL)
	}
	if err := validateTransaction(tx); err != nil {
		return nil, err
	}

	if in.Status != nil {
		if err := newStatusMachine(tx).transitionTo(ctx, *in.Status); err != nil {
			return nil, err
		}
	}

	if err := l.storage.UpdateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// SettleTransaction marks an ACTIVE transaction as SETTLED.
func (l *Ledger) SettleTransaction(ctx context.Context, userID, id uuid.UUID) (*models.Transaction, error) {
	tx, err := l.storage.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := newStatusMachine(tx).Settle(ctx); err != nil {
		return nil, err
	}
	if err := l.storage.UpdateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("transaction settled", "transaction_id", tx.ID)
	return tx, nil
}

// DeleteTransaction removes a transaction and all of its payments.
func (l *Ledger) DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error {
	return l.storage.DeleteTransaction(ctx, userID, id)
}

// PaymentInput holds the fields of a new payment.
type PaymentInput struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Date          models.Date     `json:"date"`
	Note          string          `json:"note"`
}

// RecordPayment logs a partial or full payment against an ACTIVE transaction.
func (l *Ledger) RecordPayment(ctx context.Context, userID uuid.UUID, in PaymentInput) (*models.Payment, error) {
	switch {
	case in.TransactionID == uuid.Nil:
		return nil, invalid("transaction_id", "transaction is required")
	case !in.Amount.IsPositive():
		return nil, invalid("amount", "amount must be positive")
	case in.Date.IsZero():
		return nil, invalid("date", "date is required")
	}

	tx, err := l.storage.GetTransaction(ctx, userID, in.TransactionID)
	if err != nil {
		return nil, err
	}
	if !tx.IsActive() {
		return nil, fmt.Errorf("%w: transaction %s is %s", ErrInvalidState, tx.ID, tx.Status)
	}

	payment := &models.Payment{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		Amount:        in.Amount,
		Date:          in.Date,
		Note:          strings.TrimSpace(in.Note),
		CreatedAt:     l.now(),
	}
	if err := l.storage.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to store payment: %w", err)
	}
	logger.FromContext(ctx).Info("payment recorded", "transaction_id", tx.ID, "amount", payment.Amount.StringFixed(2))
	return payment, nil
}

// DeletePayment removes a payment from one of the user's transactions.
func (l *Ledger) DeletePayment(ctx context.Context, userID, id uuid.UUID) error {
	payment, err := l.storage.GetPayment(ctx, id)
	if err != nil {
		return err
	}
	if _, err := l.storage.GetTransaction(ctx, userID, payment.TransactionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("payment %s: %w", id, ErrNotFound)
		}
		return err
	}
	return l.storage.DeletePayment(ctx, id)
}

// DashboardStats aggregates the user's ACTIVE transactions: principal and
// interest accrued as of asOf, split by direction, and how many are pending.
func (l *Ledger) DashboardStats(ctx context.Context, userID uuid.UUID, asOf time.Time) (*models.DashboardStats, error) {
	list, err := l.storage.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &models.DashboardStats{
		TotalGiven:         decimal.Zero,
		TotalTaken:         decimal.Zero,
		TotalInterestGiven: decimal.Zero,
		TotalInterestTaken: decimal.Zero,
		AsOf:               models.DateOf(asOf),
	}
	for _, item := range list {
		tx := item.Transaction
		if !tx.IsActive() {
			continue
		}
		stats.PendingTransactions++

		accrued := tx.Terms().Accrued(asOf)
		if tx.Type == models.TransactionTypeGiven {
			stats.TotalGiven = stats.TotalGiven.Add(tx.Amount)
			stats.TotalInterestGiven = stats.TotalInterestGiven.Add(accrued)
		} else {
			stats.TotalTaken = stats.TotalTaken.Add(tx.Amount)
			stats.TotalInterestTaken = stats.TotalInterestTaken.Add(accrued)
		}
	}
	return stats, nil
}
