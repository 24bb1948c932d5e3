package store

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendlog/pkg/interest"
	"github.com/mcclellann/lendlog/pkg/logger"
	"github.com/mcclellann/lendlog/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, email string) *models.User {
	t.Helper()
	u := &models.User{ID: uuid.New(), Email: email, PasswordHash: "hash", CreatedAt: time.Now()}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func seedContact(t *testing.T, s *SQLiteStore, userID uuid.UUID, name string) *models.Contact {
	t.Helper()
	c := &models.Contact{ID: uuid.New(), UserID: userID, Name: name, Relation: "Friend", CreatedAt: time.Now()}
	require.NoError(t, s.CreateContact(context.Background(), c))
	return c
}

func seedTransaction(t *testing.T, s *SQLiteStore, userID, contactID uuid.UUID) *models.Transaction {
	t.Helper()
	due := models.NewDate(2024, time.June, 30)
	tx := &models.Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		ContactID:    contactID,
		Type:         models.TransactionTypeGiven,
		Amount:       decimal.RequireFromString("1000.10"),
		InterestRate: decimal.RequireFromString("5.25"),
		InterestType: interest.Compound,
		StartDate:    models.NewDate(2023, time.January, 1),
		DueDate:      &due,
		Status:       models.StatusActive,
		Description:  "rent help",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, s.CreateTransaction(context.Background(), tx))
	return tx
}

func TestSQLiteStore_Users(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "ana@example.com")

	fetched, err := s.GetUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, fetched.ID)
	assert.Equal(t, "hash", fetched.PasswordHash)

	byID, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, byID.Email)

	dup := &models.User{ID: uuid.New(), Email: "ana@example.com", PasswordHash: "x", CreatedAt: time.Now()}
	assert.ErrorIs(t, s.CreateUser(ctx, dup), ErrDuplicate)

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ContactsAreOwnerScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s, "owner@example.com")
	other := seedUser(t, s, "other@example.com")

	bob := seedContact(t, s, owner.ID, "Bob")
	seedContact(t, s, owner.ID, "Alice")
	seedContact(t, s, other.ID, "Carol")

	list, err := s.ListContacts(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alice", list[0].Name)
	assert.Equal(t, "Bob", list[1].Name)

	_, err = s.GetContact(ctx, other.ID, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	bob.Phone = "555-0100"
	require.NoError(t, s.UpdateContact(ctx, bob))
	fetched, err := s.GetContact(ctx, owner.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", fetched.Phone)

	assert.ErrorIs(t, s.DeleteContact(ctx, other.ID, bob.ID), ErrNotFound)
	require.NoError(t, s.DeleteContact(ctx, owner.ID, bob.ID))
	_, err = s.GetContact(ctx, owner.ID, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_TransactionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "ana@example.com")
	c := seedContact(t, s, u.ID, "Bob")
	tx := seedTransaction(t, s, u.ID, c.ID)

	fetched, err := s.GetTransaction(ctx, u.ID, tx.ID)
	require.NoError(t, err)
	assert.True(t, tx.Amount.Equal(fetched.Amount), "amount %s", fetched.Amount)
	assert.True(t, tx.InterestRate.Equal(fetched.InterestRate))
	assert.Equal(t, interest.Compound, fetched.InterestType)
	assert.Equal(t, models.TransactionTypeGiven, fetched.Type)
	assert.Equal(t, "2023-01-01", fetched.StartDate.String())
	require.NotNil(t, fetched.DueDate)
	assert.Equal(t, "2024-06-30", fetched.DueDate.String())

	fetched.DueDate = nil
	fetched.Status = models.StatusSettled
	require.NoError(t, s.UpdateTransaction(ctx, fetched))

	again, err := s.GetTransaction(ctx, u.ID, tx.ID)
	require.NoError(t, err)
	assert.Nil(t, again.DueDate)
	assert.Equal(t, models.StatusSettled, again.Status)

	n, err := s.CountTransactionsForContact(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := s.ListTransactions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Bob", list[0].Contact.Name)
	assert.Equal(t, tx.ID, list[0].ID)
}

func TestSQLiteStore_PaymentsAndSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "ana@example.com")
	c := seedContact(t, s, u.ID, "Bob")
	tx := seedTransaction(t, s, u.ID, c.ID)

	for i, amount := range []string{"250.50", "100"} {
		p := &models.Payment{
			ID:            uuid.New(),
			TransactionID: tx.ID,
			Amount:        decimal.RequireFromString(amount),
			Date:          models.NewDate(2023, time.March, 1+i),
			CreatedAt:     time.Now(),
		}
		require.NoError(t, s.CreatePayment(ctx, p))
	}

	snap, err := s.GetTransactionSnapshot(ctx, u.ID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, snap.Contact.ID)
	require.Len(t, snap.Payments, 2)
	assert.Equal(t, "2023-03-01", snap.Payments[0].Date.String())
	assert.True(t, interest.TotalPaid(models.PaymentAmounts(snap.Payments)).Equal(decimal.RequireFromString("350.50")))

	require.NoError(t, s.DeletePayment(ctx, snap.Payments[0].ID))
	_, err = s.GetPayment(ctx, snap.Payments[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	other := seedUser(t, s, "other@example.com")
	_, err = s.GetTransactionSnapshot(ctx, other.ID, tx.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_DeleteTransactionCascadesPayments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "ana@example.com")
	c := seedContact(t, s, u.ID, "Bob")
	tx := seedTransaction(t, s, u.ID, c.ID)

	p := &models.Payment{ID: uuid.New(), TransactionID: tx.ID, Amount: decimal.NewFromInt(10), Date: tx.StartDate, CreatedAt: time.Now()}
	require.NoError(t, s.CreatePayment(ctx, p))

	other := seedUser(t, s, "other@example.com")
	assert.ErrorIs(t, s.DeleteTransaction(ctx, other.ID, tx.ID), ErrNotFound)

	require.NoError(t, s.DeleteTransaction(ctx, u.ID, tx.ID))

	_, err := s.GetTransaction(ctx, u.ID, tx.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetPayment(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ForeignKeysEnforced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "ana@example.com")
	c := seedContact(t, s, u.ID, "Bob")
	seedTransaction(t, s, u.ID, c.ID)

	assert.Error(t, s.DeleteContact(ctx, u.ID, c.ID))
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	u := &models.User{ID: uuid.New(), Email: "mem@example.com", PasswordHash: "h", CreatedAt: time.Now()}
	require.NoError(t, s.CreateUser(context.Background(), u))
	_, err = s.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
}

func TestNewSQLiteStore_LogsThroughLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.SetupWriter("development", &buf)
	t.Cleanup(func() { logger.SetupWriter("development", io.Discard) })

	newTestStore(t)
	assert.Contains(t, buf.String(), "schema initialized")
}
