package bank

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique constraint (username, account
// number) would be violated.
var ErrDuplicate = errors.New("record already exists")

// ErrInsufficientFunds is returned when a withdrawal or transfer would
// take an account balance below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	UserByID(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	// Users returns a page of users, optionally filtered by a substring
	// match on username or email.
	Users(ctx context.Context, search string, limit, offset int) ([]User, error)
	CountUsers(ctx context.Context, search string) (int, error)
	UpdateUserStatus(ctx context.Context, id int64, status string) error
	UpdateUserRole(ctx context.Context, id int64, role Role) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	DeleteUser(ctx context.Context, id int64) error
}

// AccountStore persists accounts and applies balance mutations. The
// money-moving operations run inside a single database transaction so a
// balance check and its update are never split.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *Account) error
	AccountByID(ctx context.Context, id int64) (*Account, error)
	AccountByNumber(ctx context.Context, number string) (*Account, error)
	AccountsByUser(ctx context.Context, userID int64) ([]Account, error)
	CountAccounts(ctx context.Context) (int, error)
	Deposit(ctx context.Context, accountID, amount int64, reference, memo string) (Transaction, error)
	Withdraw(ctx context.Context, accountID, amount int64, reference, memo string) (Transaction, error)
	Transfer(ctx context.Context, fromID, toID, amount int64, reference, memo string) error
}

// TransactionStore reads the ledger.
type TransactionStore interface {
	TransactionsByAccount(ctx context.Context, accountID int64, limit, offset int) ([]Transaction, error)
	CountTransactionsByAccount(ctx context.Context, accountID int64) (int, error)
	// Transactions returns a page across all accounts, optionally
	// filtered by transaction type.
	Transactions(ctx context.Context, typeFilter string, limit, offset int) ([]Transaction, error)
	CountTransactions(ctx context.Context, typeFilter string) (int, error)
}
