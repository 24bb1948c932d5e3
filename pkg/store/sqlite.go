package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/mcclellann/lendlog/pkg/logger"
	"github.com/mcclellann/lendlog/pkg/models"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	// Foreign keys are a per-connection setting, so request them in the DSN
	// where every pooled connection picks them up.
	sep := "?"
	if strings.Contains(dataSourceName, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dataSourceName+sep+"_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if strings.HasPrefix(dataSourceName, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	logger.Debug("database connection established and schema initialized", "dsn", dataSourceName)
	return s, nil
}

// initSchema creates the tables if they don't already exist.
// Decimal fields are TEXT so no precision is lost; calendar dates are TEXT
// in YYYY-MM-DD form.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		relation TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);
	CREATE INDEX IF NOT EXISTS idx_contacts_user ON contacts(user_id);
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		contact_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		interest_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		due_date TEXT,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		description TEXT NOT NULL DEFAULT '',
		screenshot_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id),
		FOREIGN KEY(contact_id) REFERENCES contacts(id)
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_contact ON transactions(contact_id);
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY(transaction_id) REFERENCES transactions(id)
	);
	CREATE INDEX IF NOT EXISTS idx_payments_transaction ON payments(transaction_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateUser inserts a new user. An email already in use yields ErrDuplicate.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, first_name, last_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.FirstName, user.LastName, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const userColumns = `id, email, first_name, last_name, password_hash, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser retrieves a user by its ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// CreateContact inserts a new contact.
func (s *SQLiteStore) CreateContact(ctx context.Context, c *models.Contact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, user_id, name, email, phone, relation, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Email, c.Phone, c.Relation, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

const contactColumns = `id, user_id, name, email, phone, relation, created_at`

func scanContact(row rowScanner) (*models.Contact, error) {
	var c models.Contact
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Relation, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetContact retrieves a contact owned by userID.
func (s *SQLiteStore) GetContact(ctx context.Context, userID, id uuid.UUID) (*models.Contact, error) {
	c, err := scanContact(s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contact %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return c, nil
}

// ListContacts retrieves all contacts owned by userID, by name.
func (s *SQLiteStore) ListContacts(ctx context.Context, userID uuid.UUID) ([]*models.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE user_id = ? ORDER BY name ASC, created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []*models.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact row: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return contacts, nil
}

// UpdateContact updates an existing contact owned by contact.UserID.
func (s *SQLiteStore) UpdateContact(ctx context.Context, c *models.Contact) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET name = ?, email = ?, phone = ?, relation = ? WHERE id = ? AND user_id = ?`,
		c.Name, c.Email, c.Phone, c.Relation, c.ID, c.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	return expectOneRow(result, "contact", c.ID)
}

// DeleteContact removes a contact owned by userID.
func (s *SQLiteStore) DeleteContact(ctx context.Context, userID, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return expectOneRow(result, "contact", id)
}

// CountTransactionsForContact reports how many transactions reference a contact.
func (s *SQLiteStore) CountTransactionsForContact(ctx context.Context, contactID uuid.UUID) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE contact_id = ?`, contactID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count transactions for contact %s: %w", contactID, err)
	}
	return n, nil
}

func expectOneRow(result sql.Result, kind string, id uuid.UUID) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

// CreateTransaction inserts a new transaction.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, contact_id, type, amount, interest_rate, interest_type, start_date, due_date, status, description, screenshot_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.ContactID, string(t.Type), t.Amount, t.InterestRate, string(t.InterestType), t.StartDate, t.DueDate, t.Status, t.Description, t.ScreenshotURL, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

const transactionColumns = `t.id, t.user_id, t.contact_id, t.type, t.amount, t.interest_rate, t.interest_type, t.start_date, t.due_date, t.status, t.description, t.screenshot_url, t.created_at`

func transactionDest(t *models.Transaction, due *sql.Null[models.Date]) []any {
	return []any{&t.ID, &t.UserID, &t.ContactID, &t.Type, &t.Amount, &t.InterestRate, &t.InterestType, &t.StartDate, due, &t.Status, &t.Description, &t.ScreenshotURL, &t.CreatedAt}
}

func finishTransaction(t *models.Transaction, due sql.Null[models.Date]) *models.Transaction {
	if due.Valid {
		d := due.V
		t.DueDate = &d
	}
	return t
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var due sql.Null[models.Date]
	if err := row.Scan(transactionDest(&t, &due)...); err != nil {
		return nil, err
	}
	return finishTransaction(&t, due), nil
}

// GetTransaction retrieves a transaction owned by userID.
func (s *SQLiteStore) GetTransaction(ctx context.Context, userID, id uuid.UUID) (*models.Transaction, error) {
	return getTransaction(ctx, s.db, userID, id)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTransaction(ctx context.Context, q queryer, userID, id uuid.UUID) (*models.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions t WHERE t.id = ? AND t.user_id = ?`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions retrieves all transactions owned by userID joined with
// their contacts, newest start date first.
func (s *SQLiteStore) ListTransactions(ctx context.Context, userID uuid.UUID) ([]*models.TransactionWithContact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+`, c.id, c.user_id, c.name, c.email, c.phone, c.relation, c.created_at
		FROM transactions t
		INNER JOIN contacts c ON c.id = t.contact_id
		WHERE t.user_id = ?
		ORDER BY t.start_date DESC, t.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	list := []*models.TransactionWithContact{}
	for rows.Next() {
		var t models.Transaction
		var c models.Contact
		var due sql.Null[models.Date]
		dest := append(transactionDest(&t, &due), &c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Relation, &c.CreatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		list = append(list, &models.TransactionWithContact{Transaction: finishTransaction(&t, due), Contact: &c})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return list, nil
}

// UpdateTransaction updates an existing transaction owned by t.UserID.
func (s *SQLiteStore) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET contact_id = ?, type = ?, amount = ?, interest_rate = ?, interest_type = ?, start_date = ?, due_date = ?, status = ?, description = ?, screenshot_url = ?
		WHERE id = ? AND user_id = ?`,
		t.ContactID, string(t.Type), t.Amount, t.InterestRate, string(t.InterestType), t.StartDate, t.DueDate, t.Status, t.Description, t.ScreenshotURL, t.ID, t.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return expectOneRow(result, "transaction", t.ID)
}

// DeleteTransaction removes a transaction and its payments within a transaction.
func (s *SQLiteStore) DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getTransaction(ctx, tx, userID, id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE transaction_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete associated payments: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if err := expectOneRow(result, "transaction", id); err != nil {
		return err
	}

	return tx.Commit()
}

// GetTransactionSnapshot reads a transaction, its contact and its payments
// inside one database transaction so the three are mutually consistent.
func (s *SQLiteStore) GetTransactionSnapshot(ctx context.Context, userID, id uuid.UUID) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := getTransaction(ctx, tx, userID, id)
	if err != nil {
		return nil, err
	}

	c, err := scanContact(tx.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, t.ContactID))
	if err != nil {
		return nil, fmt.Errorf("failed to get contact for transaction %s: %w", id, err)
	}

	payments, err := listPayments(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit read: %w", err)
	}
	return &Snapshot{Transaction: t, Contact: c, Payments: payments}, nil
}

// CreatePayment inserts a new payment.
func (s *SQLiteStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (id, transaction_id, amount, date, note, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.TransactionID, p.Amount, p.Date, p.Note, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

const paymentColumns = `id, transaction_id, amount, date, note, created_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	if err := row.Scan(&p.ID, &p.TransactionID, &p.Amount, &p.Date, &p.Note, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPayment retrieves a payment by its ID.
func (s *SQLiteStore) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := scanPayment(s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// ListPaymentsForTransaction retrieves all payments for a transaction by date.
func (s *SQLiteStore) ListPaymentsForTransaction(ctx context.Context, transactionID uuid.UUID) ([]*models.Payment, error) {
	return listPayments(ctx, s.db, transactionID)
}

func listPayments(ctx context.Context, q queryer, transactionID uuid.UUID) ([]*models.Payment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE transaction_id = ? ORDER BY date ASC, created_at ASC`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for transaction %s: %w", transactionID, err)
	}
	defer rows.Close()

	payments := []*models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for payments: %w", err)
	}
	return payments, nil
}

// DeletePayment removes a payment.
func (s *SQLiteStore) DeletePayment(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return expectOneRow(result, "payment", id)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
