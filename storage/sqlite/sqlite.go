// Package sqlite implements the storage interfaces over SQLite using
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jmcleod/glassbank/bank"
	"github.com/jmcleod/glassbank/security"
)

// Store implements the bank storage interfaces and
// security.SettingStore over one SQLite database.
type Store struct {
	db *sql.DB
}

var (
	_ bank.UserStore        = (*Store)(nil)
	_ bank.AccountStore     = (*Store)(nil)
	_ bank.TransactionStore = (*Store)(nil)
	_ security.SettingStore = (*Store)(nil)
	_ security.UserStore    = (*Store)(nil)
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'user',
		status        TEXT NOT NULL DEFAULT 'active',
		created_at    TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS accounts (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		number     TEXT NOT NULL UNIQUE,
		balance    INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS transactions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		type       TEXT NOT NULL,
		amount     INTEGER NOT NULL,
		reference  TEXT NOT NULL,
		memo       TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts(user_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions(account_id);
	CREATE TABLE IF NOT EXISTS security_levels (
		vulnerability_id TEXT PRIMARY KEY,
		level            TEXT NOT NULL,
		updated_by       INTEGER NOT NULL DEFAULT 0,
		updated_at       TEXT NOT NULL
	);
`

// Open opens (or creates) the database at path and bootstraps the
// schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent (each new
	// pool connection would otherwise see its own empty database) and
	// sidesteps SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle. The SQL-injection demo queries it
// directly; nothing else should.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

const userColumns = "id, username, email, password_hash, role, status, created_at"

func scanUser(row interface{ Scan(...any) error }) (*bank.User, error) {
	var u bank.User
	var createdAt string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Status, &createdAt)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *bank.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, role, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, string(u.Role), u.Status, fmtTime(u.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("username %q: %w", u.Username, bank.ErrDuplicate)
		}
		return fmt.Errorf("storage: create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("storage: create user id: %w", err)
	}
	u.ID = id
	return nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (*bank.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, bank.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: user by id: %w", err)
	}
	return u, nil
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*bank.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, bank.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: user by username: %w", err)
	}
	return u, nil
}

func (s *Store) Users(ctx context.Context, search string, limit, offset int) ([]bank.User, error) {
	query := "SELECT " + userColumns + " FROM users"
	var args []any
	if search != "" {
		query += " WHERE username LIKE ? OR email LIKE ?"
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list users: %w", err)
	}
	defer rows.Close()

	var users []bank.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate users: %w", err)
	}
	return users, nil
}

func (s *Store) CountUsers(ctx context.Context, search string) (int, error) {
	query := "SELECT COUNT(*) FROM users"
	var args []any
	if search != "" {
		query += " WHERE username LIKE ? OR email LIKE ?"
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count users: %w", err)
	}
	return n, nil
}

func (s *Store) UpdateUserStatus(ctx context.Context, id int64, status string) error {
	return s.updateUserField(ctx, id, "status", status)
}

func (s *Store) UpdateUserRole(ctx context.Context, id int64, role bank.Role) error {
	return s.updateUserField(ctx, id, "role", string(role))
}

func (s *Store) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return s.updateUserField(ctx, id, "password_hash", passwordHash)
}

func (s *Store) updateUserField(ctx context.Context, id int64, column, value string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET "+column+" = ? WHERE id = ?", value, id)
	if err != nil {
		return fmt.Errorf("storage: update user %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: update user %s: %w", column, err)
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, bank.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("storage: delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: delete user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, bank.ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

const accountColumns = "id, user_id, number, balance, created_at"

func scanAccount(row interface{ Scan(...any) error }) (*bank.Account, error) {
	var a bank.Account
	var createdAt string
	err := row.Scan(&a.ID, &a.UserID, &a.Number, &a.Balance, &createdAt)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *bank.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, number, balance, created_at)
		 VALUES (?, ?, ?, ?)`,
		a.UserID, a.Number, a.Balance, fmtTime(a.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("account %q: %w", a.Number, bank.ErrDuplicate)
		}
		return fmt.Errorf("storage: create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("storage: create account id: %w", err)
	}
	a.ID = id
	return nil
}

func (s *Store) AccountByID(ctx context.Context, id int64) (*bank.Account, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %d: %w", id, bank.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: account by id: %w", err)
	}
	return a, nil
}

func (s *Store) AccountByNumber(ctx context.Context, number string) (*bank.Account, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE number = ?", number)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %q: %w", number, bank.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: account by number: %w", err)
	}
	return a, nil
}

func (s *Store) AccountsByUser(ctx context.Context, userID int64) ([]bank.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("storage: accounts by user: %w", err)
	}
	defer rows.Close()

	var accounts []bank.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate accounts: %w", err)
	}
	return accounts, nil
}

func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count accounts: %w", err)
	}
	return n, nil
}

// insertTransaction records one ledger entry inside tx.
func insertTransaction(ctx context.Context, tx *sql.Tx, accountID int64, txType string, amount int64, reference, memo string, at time.Time) (bank.Transaction, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (account_id, type, amount, reference, memo, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		accountID, txType, amount, reference, memo, fmtTime(at))
	if err != nil {
		return bank.Transaction{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return bank.Transaction{}, err
	}
	return bank.Transaction{
		ID:        id,
		AccountID: accountID,
		Type:      txType,
		Amount:    amount,
		Reference: reference,
		Memo:      memo,
		CreatedAt: at,
	}, nil
}

// debit subtracts amount from the account inside tx, failing with
// ErrInsufficientFunds when the balance would go negative and
// ErrNotFound when the account does not exist.
func debit(ctx context.Context, tx *sql.Tx, accountID, amount int64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE accounts SET balance = balance - ? WHERE id = ? AND balance >= ?",
		amount, accountID, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts WHERE id = ?", accountID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("account %d: %w", accountID, bank.ErrNotFound)
	}
	return bank.ErrInsufficientFunds
}

func credit(ctx context.Context, tx *sql.Tx, accountID, amount int64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE accounts SET balance = balance + ? WHERE id = ?", amount, accountID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %d: %w", accountID, bank.ErrNotFound)
	}
	return nil
}

func (s *Store) Deposit(ctx context.Context, accountID, amount int64, reference, memo string) (bank.Transaction, error) {
	var txn bank.Transaction
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := credit(ctx, tx, accountID, amount); err != nil {
			return err
		}
		var err error
		txn, err = insertTransaction(ctx, tx, accountID, bank.TxDeposit, amount, reference, memo, time.Now().UTC())
		return err
	})
	if err != nil {
		return bank.Transaction{}, fmt.Errorf("storage: deposit: %w", err)
	}
	return txn, nil
}

func (s *Store) Withdraw(ctx context.Context, accountID, amount int64, reference, memo string) (bank.Transaction, error) {
	var txn bank.Transaction
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := debit(ctx, tx, accountID, amount); err != nil {
			return err
		}
		var err error
		txn, err = insertTransaction(ctx, tx, accountID, bank.TxWithdrawal, amount, reference, memo, time.Now().UTC())
		return err
	})
	if err != nil {
		return bank.Transaction{}, fmt.Errorf("storage: withdraw: %w", err)
	}
	return txn, nil
}

func (s *Store) Transfer(ctx context.Context, fromID, toID, amount int64, reference, memo string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := debit(ctx, tx, fromID, amount); err != nil {
			return err
		}
		if err := credit(ctx, tx, toID, amount); err != nil {
			return err
		}
		at := time.Now().UTC()
		if _, err := insertTransaction(ctx, tx, fromID, bank.TxTransferOut, amount, reference, memo, at); err != nil {
			return err
		}
		_, err := insertTransaction(ctx, tx, toID, bank.TxTransferIn, amount, reference, memo, at)
		return err
	})
	if err != nil {
		return fmt.Errorf("storage: transfer: %w", err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

const txColumns = "id, account_id, type, amount, reference, memo, created_at"

func scanTransaction(row interface{ Scan(...any) error }) (*bank.Transaction, error) {
	var t bank.Transaction
	var createdAt string
	err := row.Scan(&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.Reference, &t.Memo, &createdAt)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}

func (s *Store) TransactionsByAccount(ctx context.Context, accountID int64, limit, offset int) ([]bank.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE account_id = ? ORDER BY id DESC LIMIT ? OFFSET ?",
		accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("storage: transactions by account: %w", err)
	}
	return collectTransactions(rows)
}

func (s *Store) CountTransactionsByAccount(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE account_id = ?", accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count transactions by account: %w", err)
	}
	return n, nil
}

func (s *Store) Transactions(ctx context.Context, typeFilter string, limit, offset int) ([]bank.Transaction, error) {
	query := "SELECT " + txColumns + " FROM transactions"
	var args []any
	if typeFilter != "" {
		query += " WHERE type = ?"
		args = append(args, typeFilter)
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (s *Store) CountTransactions(ctx context.Context, typeFilter string) (int, error) {
	query := "SELECT COUNT(*) FROM transactions"
	var args []any
	if typeFilter != "" {
		query += " WHERE type = ?"
		args = append(args, typeFilter)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count transactions: %w", err)
	}
	return n, nil
}

func collectTransactions(rows *sql.Rows) ([]bank.Transaction, error) {
	defer rows.Close()
	var txns []bank.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate transactions: %w", err)
	}
	return txns, nil
}

// ---------------------------------------------------------------------------
// Security level settings
// ---------------------------------------------------------------------------

func (s *Store) Setting(ctx context.Context, vulnerabilityID string) (security.LevelSetting, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT vulnerability_id, level, updated_by, updated_at FROM security_levels WHERE vulnerability_id = ?",
		vulnerabilityID)
	var setting security.LevelSetting
	var level, updatedAt string
	err := row.Scan(&setting.VulnerabilityID, &level, &setting.UpdatedBy, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return security.LevelSetting{}, false, nil
	}
	if err != nil {
		return security.LevelSetting{}, false, fmt.Errorf("storage: read setting: %w", err)
	}
	setting.Level = security.Level(level)
	setting.UpdatedAt = parseTime(updatedAt)
	return setting, true, nil
}

func (s *Store) UpsertSetting(ctx context.Context, setting security.LevelSetting) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO security_levels (vulnerability_id, level, updated_by, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(vulnerability_id) DO UPDATE SET
			level      = excluded.level,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		setting.VulnerabilityID, string(setting.Level), setting.UpdatedBy, fmtTime(setting.UpdatedAt))
	if err != nil {
		return fmt.Errorf("storage: upsert setting: %w", err)
	}
	return nil
}

func (s *Store) Settings(ctx context.Context) ([]security.LevelSetting, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT vulnerability_id, level, updated_by, updated_at FROM security_levels ORDER BY vulnerability_id")
	if err != nil {
		return nil, fmt.Errorf("storage: list settings: %w", err)
	}
	defer rows.Close()

	var settings []security.LevelSetting
	for rows.Next() {
		var setting security.LevelSetting
		var level, updatedAt string
		if err := rows.Scan(&setting.VulnerabilityID, &level, &setting.UpdatedBy, &updatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan setting: %w", err)
		}
		setting.Level = security.Level(level)
		setting.UpdatedAt = parseTime(updatedAt)
		settings = append(settings, setting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate settings: %w", err)
	}
	return settings, nil
}
