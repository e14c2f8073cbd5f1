package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func paramInt64(r *http.Request, name string) (int64, bool) {
	n, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return n, err == nil && n > 0
}

// ListAccounts handles GET /accounts.
func (a *API) ListAccounts(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principalFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	accounts, err := a.bank.Accounts(r.Context(), p.UserID)
	if err != nil {
		mapError(w, err)
		return
	}
	resp := ListAccountsResponse{Accounts: make([]AccountSummary, 0, len(accounts))}
	for _, acc := range accounts {
		resp.Accounts = append(resp.Accounts, a.accountSummary(acc))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetAccount handles GET /accounts/{accountID}. Ownership is enforced;
// another user's account answers 403, not 404.
func (a *API) GetAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principalFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	accountID, ok := paramInt64(r, "accountID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	acc, err := a.bank.Account(r.Context(), accountID, p.UserID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.accountSummary(*acc))
}

// Deposit handles POST /accounts/{accountID}/deposit.
func (a *API) Deposit(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principalFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	accountID, ok := paramInt64(r, "accountID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	req, ok := decodeJSON[MoneyRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	txn, err := a.bank.Deposit(r.Context(), accountID, p.UserID, req.AmountCents, req.Memo)
	if err != nil {
		mapError(w, err)
		return
	}
	acc, err := a.bank.Account(r.Context(), accountID, p.UserID)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditDeposit, r, p.UserID,
		slog.Int64("account_id", accountID),
		slog.Int64("amount_cents", req.AmountCents))
	writeJSON(w, http.StatusOK, MoneyResponse{
		Transaction: a.transactionSummary(txn),
		Account:     a.accountSummary(*acc),
	})
}

// Withdraw handles POST /accounts/{accountID}/withdraw. Overdrafts are
// rejected; the balance never goes negative.
func (a *API) Withdraw(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principalFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	accountID, ok := paramInt64(r, "accountID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	req, ok := decodeJSON[MoneyRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	txn, err := a.bank.Withdraw(r.Context(), accountID, p.UserID, req.AmountCents, req.Memo)
	if err != nil {
		mapError(w, err)
		return
	}
	acc, err := a.bank.Account(r.Context(), accountID, p.UserID)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditWithdrawal, r, p.UserID,
		slog.Int64("account_id", accountID),
		slog.Int64("amount_cents", req.AmountCents))
	writeJSON(w, http.StatusOK, MoneyResponse{
		Transaction: a.transactionSummary(txn),
		Account:     a.accountSummary(*acc),
	})
}

// Transfer handles POST /accounts/{accountID}/transfer. The destination
// is named by account number, so users can pay accounts they cannot see.
func (a *API) Transfer(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principalFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	accountID, ok := paramInt64(r, "accountID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	req, ok := decodeJSON[TransferRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	if req.ToNumber == "" {
		writeError(w, http.StatusBadRequest, "to_number is required")
		return
	}
	ref, err := a.bank.Transfer(r.Context(), accountID, p.UserID, req.AmountCents, req.ToNumber, req.Memo)
	if err != nil {
		mapError(w, err)
		return
	}
	acc, err := a.bank.Account(r.Context(), accountID, p.UserID)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditTransfer, r, p.UserID,
		slog.Int64("account_id", accountID),
		slog.String("to_number", req.ToNumber),
		slog.Int64("amount_cents", req.AmountCents),
		slog.String("reference", ref))
	writeJSON(w, http.StatusOK, TransferResponse{
		Reference: ref,
		Account:   a.accountSummary(*acc),
	})
}

// ListTransactions handles GET /accounts/{accountID}/transactions.
func (a *API) ListTransactions(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principalFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	accountID, ok := paramInt64(r, "accountID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	limit, offset := parsePagination(r)
	txns, err := a.bank.Transactions(r.Context(), accountID, p.UserID, limit, offset)
	if err != nil {
		mapError(w, err)
		return
	}
	total, err := a.store.CountTransactionsByAccount(r.Context(), accountID)
	if err != nil {
		mapError(w, err)
		return
	}
	resp := ListTransactionsResponse{
		Transactions: make([]TransactionSummary, 0, len(txns)),
		Pagination:   pageMeta(total, limit, offset, len(txns)),
	}
	for _, t := range txns {
		resp.Transactions = append(resp.Transactions, a.transactionSummary(t))
	}
	writeJSON(w, http.StatusOK, resp)
}
