package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mcclellann/lendlog/pkg/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Snapshot is a transaction read together with its contact and payments.
type Snapshot struct {
	Transaction *models.Transaction
	Contact     *models.Contact
	Payments    []*models.Payment
}

// Storage defines the interface for database operations on users, contacts,
// transactions and payments. Reads of user-owned records are scoped by the
// owner's id; a record owned by someone else is reported as ErrNotFound.
type Storage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateContact(ctx context.Context, contact *models.Contact) error
	GetContact(ctx context.Context, userID, id uuid.UUID) (*models.Contact, error)
	ListContacts(ctx context.Context, userID uuid.UUID) ([]*models.Contact, error)
	UpdateContact(ctx context.Context, contact *models.Contact) error
	DeleteContact(ctx context.Context, userID, id uuid.UUID) error
	CountTransactionsForContact(ctx context.Context, contactID uuid.UUID) (int, error)

	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, userID, id uuid.UUID) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID) ([]*models.TransactionWithContact, error)
	UpdateTransaction(ctx context.Context, tx *models.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error
	GetTransactionSnapshot(ctx context.Context, userID, id uuid.UUID) (*Snapshot, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListPaymentsForTransaction(ctx context.Context, transactionID uuid.UUID) ([]*models.Payment, error)
	DeletePayment(ctx context.Context, id uuid.UUID) error

	Close() error
}
