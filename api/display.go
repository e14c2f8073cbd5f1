package api

import "github.com/jmcleod/glassbank/bank"

// formatCents renders integer cents as a grouped dollar string, e.g.
// 123456789 -> "$1,234,567.89". Negative amounts keep the sign ahead of
// the currency symbol.
func (a *API) formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return a.printer.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func (a *API) accountSummary(acc bank.Account) AccountSummary {
	return AccountSummary{
		AccountID:      acc.ID,
		Number:         acc.Number,
		BalanceCents:   acc.Balance,
		BalanceDisplay: a.formatCents(acc.Balance),
		CreatedAt:      acc.CreatedAt,
	}
}

func (a *API) transactionSummary(t bank.Transaction) TransactionSummary {
	return TransactionSummary{
		TransactionID: t.ID,
		AccountID:     t.AccountID,
		Type:          t.Type,
		AmountCents:   t.Amount,
		AmountDisplay: a.formatCents(t.Amount),
		Reference:     t.Reference,
		Memo:          t.Memo,
		CreatedAt:     t.CreatedAt,
	}
}

func userSummary(u bank.User) UserSummary {
	return UserSummary{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}
