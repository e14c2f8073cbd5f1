package bank

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmcleod/glassbank/internal/util"
	"github.com/jmcleod/glassbank/internal/uuid"
)

// Service-level validation errors.
var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrNotOwner      = errors.New("account does not belong to user")
	ErrSameAccount   = errors.New("cannot transfer to the same account")
)

// Service implements the banking operations on top of the storage
// layer. Authorization is ownership-based: a user may only operate on
// accounts they own (admins read everything through the admin surface,
// not through this service).
type Service struct {
	users    UserStore
	accounts AccountStore
	txns     TransactionStore
}

// NewService creates a banking service.
func NewService(users UserStore, accounts AccountStore, txns TransactionStore) *Service {
	return &Service{users: users, accounts: accounts, txns: txns}
}

// NewAccountNumber generates a 10-digit account number.
func NewAccountNumber() (string, error) {
	var digits [10]byte
	for i := range digits {
		n, err := util.RandomIntn(10)
		if err != nil {
			return "", fmt.Errorf("generating account number: %w", err)
		}
		digits[i] = byte('0' + n)
	}
	return string(digits[:]), nil
}

// Register creates a user with the given (already hashed) password and
// opens their initial account.
func (s *Service) Register(ctx context.Context, username, email, passwordHash string) (*User, *Account, error) {
	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		Status:       StatusActive,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, nil, err
	}
	number, err := NewAccountNumber()
	if err != nil {
		return nil, nil, err
	}
	account := &Account{UserID: user.ID, Number: number}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		return nil, nil, err
	}
	return user, account, nil
}

// Accounts lists the user's accounts.
func (s *Service) Accounts(ctx context.Context, userID int64) ([]Account, error) {
	return s.accounts.AccountsByUser(ctx, userID)
}

// Account returns one account, enforcing ownership.
func (s *Service) Account(ctx context.Context, accountID, userID int64) (*Account, error) {
	a, err := s.accounts.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrNotOwner
	}
	return a, nil
}

// Deposit credits amount cents to the user's account.
func (s *Service) Deposit(ctx context.Context, accountID, userID, amount int64, memo string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if _, err := s.Account(ctx, accountID, userID); err != nil {
		return Transaction{}, err
	}
	return s.accounts.Deposit(ctx, accountID, amount, uuid.New(), memo)
}

// Withdraw debits amount cents from the user's account, failing with
// ErrInsufficientFunds when the balance would go negative.
func (s *Service) Withdraw(ctx context.Context, accountID, userID, amount int64, memo string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if _, err := s.Account(ctx, accountID, userID); err != nil {
		return Transaction{}, err
	}
	return s.accounts.Withdraw(ctx, accountID, amount, uuid.New(), memo)
}

// Transfer moves amount cents from the user's account to the account
// with the given number. Both ledger entries share one reference.
func (s *Service) Transfer(ctx context.Context, fromAccountID, userID, amount int64, toNumber, memo string) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	if _, err := s.Account(ctx, fromAccountID, userID); err != nil {
		return "", err
	}
	to, err := s.accounts.AccountByNumber(ctx, toNumber)
	if err != nil {
		return "", err
	}
	if to.ID == fromAccountID {
		return "", ErrSameAccount
	}
	ref := uuid.New()
	if err := s.accounts.Transfer(ctx, fromAccountID, to.ID, amount, ref, memo); err != nil {
		return "", err
	}
	return ref, nil
}

// Transactions lists a page of the user's account ledger.
func (s *Service) Transactions(ctx context.Context, accountID, userID int64, limit, offset int) ([]Transaction, error) {
	if _, err := s.Account(ctx, accountID, userID); err != nil {
		return nil, err
	}
	return s.txns.TransactionsByAccount(ctx, accountID, limit, offset)
}
