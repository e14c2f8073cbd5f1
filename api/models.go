package api

import "time"

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse is returned from POST /auth/register.
type RegisterResponse struct {
	UserID        int64  `json:"user_id"`
	Username      string `json:"username"`
	AccountNumber string `json:"account_number"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned from POST /auth/login.
type LoginResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// MeResponse is returned from GET /auth/me.
type MeResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// CSRFTokenResponse is returned from GET /auth/csrf.
type CSRFTokenResponse struct {
	Token string `json:"csrf_token"`
}

// FlashResponse is returned from GET /flash. Reading consumes the
// message; a second read comes back empty.
type FlashResponse struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// AccountSummary describes one account in list and detail responses.
// Amounts are integer cents; the display string is formatted for humans.
type AccountSummary struct {
	AccountID      int64     `json:"account_id"`
	Number         string    `json:"number"`
	BalanceCents   int64     `json:"balance_cents"`
	BalanceDisplay string    `json:"balance_display"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListAccountsResponse is returned from GET /accounts.
type ListAccountsResponse struct {
	Accounts []AccountSummary `json:"accounts"`
}

// MoneyRequest is the JSON body for deposits and withdrawals.
type MoneyRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Memo        string `json:"memo,omitempty"`
}

// TransferRequest is the JSON body for POST /accounts/{id}/transfer.
type TransferRequest struct {
	ToNumber    string `json:"to_number"`
	AmountCents int64  `json:"amount_cents"`
	Memo        string `json:"memo,omitempty"`
}

// TransactionSummary describes one ledger entry.
type TransactionSummary struct {
	TransactionID int64     `json:"transaction_id"`
	AccountID     int64     `json:"account_id"`
	Type          string    `json:"type"`
	AmountCents   int64     `json:"amount_cents"`
	AmountDisplay string    `json:"amount_display"`
	Reference     string    `json:"reference"`
	Memo          string    `json:"memo,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// MoneyResponse is returned from deposits and withdrawals.
type MoneyResponse struct {
	Transaction TransactionSummary `json:"transaction"`
	Account     AccountSummary     `json:"account"`
}

// TransferResponse is returned from POST /accounts/{id}/transfer.
type TransferResponse struct {
	Reference string         `json:"reference"`
	Account   AccountSummary `json:"account"`
}

// ListTransactionsResponse is returned from transaction listings.
type ListTransactionsResponse struct {
	Transactions []TransactionSummary `json:"transactions"`
	Pagination   PaginationMeta       `json:"pagination"`
}

// UserSummary describes one user in the admin listing.
type UserSummary struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ListUsersResponse is returned from GET /admin/users.
type ListUsersResponse struct {
	Users      []UserSummary  `json:"users"`
	Pagination PaginationMeta `json:"pagination"`
}

// UpdateUserStatusRequest is the JSON body for PUT /admin/users/{id}/status.
type UpdateUserStatusRequest struct {
	Status string `json:"status"`
}

// UpdateUserRoleRequest is the JSON body for PUT /admin/users/{id}/role.
type UpdateUserRoleRequest struct {
	Role string `json:"role"`
}

// DashboardResponse is returned from GET /admin/dashboard.
type DashboardResponse struct {
	UserCount        int               `json:"user_count"`
	AccountCount     int               `json:"account_count"`
	TransactionCount int               `json:"transaction_count"`
	Levels           map[string]string `json:"levels"`
}

// SettingsResponse is returned from GET /admin/settings.
type SettingsResponse struct {
	Default string            `json:"default"`
	Known   []string          `json:"known"`
	Levels  map[string]string `json:"levels"`
}

// UpdateSettingRequest is the JSON body for PUT /admin/settings/{id}.
type UpdateSettingRequest struct {
	Level string `json:"level"`
}

// DemoSummary describes one vulnerability demo and its active level.
type DemoSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Level string `json:"level"`
}

// ListDemosResponse is returned from GET /demos.
type ListDemosResponse struct {
	Demos []DemoSummary `json:"demos"`
}
