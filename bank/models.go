// Package bank holds the banking domain model: users, accounts, and the
// transactions recorded against them. Amounts are integer cents to avoid
// floating-point drift.
package bank

import "time"

// Role is a user's access role. Roles are flat; there is no hierarchy,
// an admin check never passes for a plain user and vice versa.
type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ValidRole reports whether r is one of the recognized roles a stored
// user may carry (guest is session-only, never persisted).
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleAdmin
}

// User account statuses.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// User is a registered user of the banking application.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account is a bank account owned by a user. Balance is in cents.
type Account struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Number    string    `json:"number"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// Transaction types.
const (
	TxDeposit     = "deposit"
	TxWithdrawal  = "withdrawal"
	TxTransferIn  = "transfer_in"
	TxTransferOut = "transfer_out"
)

// Transaction is a single ledger entry against an account. Amount is in
// cents and always positive; Type carries the direction.
type Transaction struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Type      string    `json:"type"`
	Amount    int64     `json:"amount"`
	Reference string    `json:"reference"`
	Memo      string    `json:"memo,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
