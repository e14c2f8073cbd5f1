package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/glassbank/bank"
	"github.com/jmcleod/glassbank/security"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedAccount(t *testing.T, store *Store, username, number string, balance int64) (*bank.User, *bank.Account) {
	t.Helper()
	ctx := context.Background()
	u := &bank.User{Username: username, Email: username + "@test", PasswordHash: "x", Role: bank.RoleUser, Status: bank.StatusActive}
	require.NoError(t, store.CreateUser(ctx, u))
	a := &bank.Account{UserID: u.ID, Number: number, Balance: balance}
	require.NoError(t, store.CreateAccount(ctx, a))
	return u, a
}

func TestUserLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	u := &bank.User{Username: "alice", Email: "alice@test", PasswordHash: "h", Role: bank.RoleUser, Status: bank.StatusActive}
	require.NoError(t, store.CreateUser(ctx, u))
	require.NotZero(t, u.ID)

	got, err := store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "h", got.PasswordHash)

	dup := &bank.User{Username: "alice", PasswordHash: "h2", Role: bank.RoleUser, Status: bank.StatusActive}
	assert.ErrorIs(t, store.CreateUser(ctx, dup), bank.ErrDuplicate)

	require.NoError(t, store.UpdateUserStatus(ctx, u.ID, bank.StatusSuspended))
	require.NoError(t, store.UpdateUserRole(ctx, u.ID, bank.RoleAdmin))
	require.NoError(t, store.UpdatePassword(ctx, u.ID, "h3"))
	got, err = store.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, bank.StatusSuspended, got.Status)
	assert.Equal(t, bank.RoleAdmin, got.Role)
	assert.Equal(t, "h3", got.PasswordHash)

	assert.ErrorIs(t, store.UpdateUserStatus(ctx, 999, bank.StatusActive), bank.ErrNotFound)

	require.NoError(t, store.DeleteUser(ctx, u.ID))
	_, err = store.UserByID(ctx, u.ID)
	assert.ErrorIs(t, err, bank.ErrNotFound)
	assert.ErrorIs(t, store.DeleteUser(ctx, u.ID), bank.ErrNotFound)
}

func TestUserSearchAndCount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "alicia", "bob"} {
		require.NoError(t, store.CreateUser(ctx, &bank.User{
			Username: name, Email: name + "@test", PasswordHash: "h",
			Role: bank.RoleUser, Status: bank.StatusActive,
		}))
	}

	users, err := store.Users(ctx, "alic", 10, 0)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	n, err := store.CountUsers(ctx, "alic")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.CountUsers(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDepositAndWithdraw(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, acc := seedAccount(t, store, "alice", "1000000001", 0)

	txn, err := store.Deposit(ctx, acc.ID, 5000, "ref-1", "payday")
	require.NoError(t, err)
	assert.Equal(t, bank.TxDeposit, txn.Type)
	assert.Equal(t, int64(5000), txn.Amount)

	got, err := store.AccountByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.Balance)

	_, err = store.Withdraw(ctx, acc.ID, 2000, "ref-2", "")
	require.NoError(t, err)
	got, _ = store.AccountByID(ctx, acc.ID)
	assert.Equal(t, int64(3000), got.Balance)

	// An overdraft fails and leaves no partial state behind.
	_, err = store.Withdraw(ctx, acc.ID, 9000, "ref-3", "")
	assert.ErrorIs(t, err, bank.ErrInsufficientFunds)
	got, _ = store.AccountByID(ctx, acc.ID)
	assert.Equal(t, int64(3000), got.Balance)

	n, err := store.CountTransactionsByAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "the failed withdrawal wrote no ledger entry")
}

func TestTransferAtomicity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, from := seedAccount(t, store, "alice", "1000000001", 10_000)
	_, to := seedAccount(t, store, "bob", "1000000002", 0)

	require.NoError(t, store.Transfer(ctx, from.ID, to.ID, 4000, "ref-t", "rent"))

	fromAcc, _ := store.AccountByID(ctx, from.ID)
	toAcc, _ := store.AccountByID(ctx, to.ID)
	assert.Equal(t, int64(6000), fromAcc.Balance)
	assert.Equal(t, int64(4000), toAcc.Balance)

	// Both legs share the reference.
	outTxns, err := store.TransactionsByAccount(ctx, from.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, outTxns, 1)
	assert.Equal(t, bank.TxTransferOut, outTxns[0].Type)

	inTxns, err := store.TransactionsByAccount(ctx, to.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, inTxns, 1)
	assert.Equal(t, bank.TxTransferIn, inTxns[0].Type)
	assert.Equal(t, outTxns[0].Reference, inTxns[0].Reference)

	// Insufficient funds rolls the whole transfer back.
	err = store.Transfer(ctx, from.ID, to.ID, 99_999, "ref-t2", "")
	assert.ErrorIs(t, err, bank.ErrInsufficientFunds)
	fromAcc, _ = store.AccountByID(ctx, from.ID)
	toAcc, _ = store.AccountByID(ctx, to.ID)
	assert.Equal(t, int64(6000), fromAcc.Balance)
	assert.Equal(t, int64(4000), toAcc.Balance)
}

func TestTransactionTypeFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, acc := seedAccount(t, store, "alice", "1000000001", 0)

	_, err := store.Deposit(ctx, acc.ID, 100, "r1", "")
	require.NoError(t, err)
	_, err = store.Deposit(ctx, acc.ID, 200, "r2", "")
	require.NoError(t, err)
	_, err = store.Withdraw(ctx, acc.ID, 50, "r3", "")
	require.NoError(t, err)

	deposits, err := store.Transactions(ctx, bank.TxDeposit, 10, 0)
	require.NoError(t, err)
	assert.Len(t, deposits, 2)

	n, err := store.CountTransactions(ctx, bank.TxWithdrawal)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeleteUserCascades(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	u, acc := seedAccount(t, store, "alice", "1000000001", 0)
	_, err := store.Deposit(ctx, acc.ID, 100, "r1", "")
	require.NoError(t, err)

	require.NoError(t, store.DeleteUser(ctx, u.ID))

	_, err = store.AccountByID(ctx, acc.ID)
	assert.ErrorIs(t, err, bank.ErrNotFound)
	n, err := store.CountTransactionsByAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSettingsUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Setting(ctx, "sql_injection")
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.UpsertSetting(ctx, security.LevelSetting{
		VulnerabilityID: "sql_injection", Level: security.LevelLow, UpdatedBy: 1, UpdatedAt: now,
	}))

	got, ok, err := store.Setting(ctx, "sql_injection")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, security.LevelLow, got.Level)
	assert.Equal(t, int64(1), got.UpdatedBy)
	assert.True(t, got.UpdatedAt.Equal(now))

	// Upsert overwrites in place.
	require.NoError(t, store.UpsertSetting(ctx, security.LevelSetting{
		VulnerabilityID: "sql_injection", Level: security.LevelHigh, UpdatedBy: 2, UpdatedAt: now,
	}))
	got, _, err = store.Setting(ctx, "sql_injection")
	require.NoError(t, err)
	assert.Equal(t, security.LevelHigh, got.Level)

	settings, err := store.Settings(ctx)
	require.NoError(t, err)
	assert.Len(t, settings, 1)
}
