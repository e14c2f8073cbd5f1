package bank_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/glassbank/bank"
	"github.com/jmcleod/glassbank/storage/sqlite"
)

func newService(t *testing.T) (*bank.Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return bank.NewService(store, store, store), store
}

func register(t *testing.T, svc *bank.Service, username string) (*bank.User, *bank.Account) {
	t.Helper()
	user, account, err := svc.Register(context.Background(), username, username+"@test", "hash")
	require.NoError(t, err)
	return user, account
}

func TestNewAccountNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		n, err := bank.NewAccountNumber()
		require.NoError(t, err)
		assert.Len(t, n, 10)
		for _, c := range n {
			assert.True(t, c >= '0' && c <= '9')
		}
		seen[n] = true
	}
	assert.Greater(t, len(seen), 1, "numbers should not repeat constantly")
}

func TestRegisterCreatesUserAndAccount(t *testing.T) {
	svc, _ := newService(t)
	user, account := register(t, svc, "alice")

	assert.Equal(t, bank.RoleUser, user.Role)
	assert.Equal(t, bank.StatusActive, user.Status)
	assert.Equal(t, user.ID, account.UserID)
	assert.Zero(t, account.Balance)

	_, _, err := svc.Register(context.Background(), "alice", "other@test", "hash")
	assert.ErrorIs(t, err, bank.ErrDuplicate)
}

func TestDepositWithdrawOwnership(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	alice, aliceAcc := register(t, svc, "alice")
	bob, _ := register(t, svc, "bob")

	txn, err := svc.Deposit(ctx, aliceAcc.ID, alice.ID, 2500, "lunch money")
	require.NoError(t, err)
	assert.Equal(t, bank.TxDeposit, txn.Type)
	assert.NotEmpty(t, txn.Reference)

	// Someone else's account is off limits even for deposits.
	_, err = svc.Deposit(ctx, aliceAcc.ID, bob.ID, 100, "")
	assert.ErrorIs(t, err, bank.ErrNotOwner)

	_, err = svc.Withdraw(ctx, aliceAcc.ID, alice.ID, 0, "")
	assert.ErrorIs(t, err, bank.ErrInvalidAmount)
	_, err = svc.Withdraw(ctx, aliceAcc.ID, alice.ID, -5, "")
	assert.ErrorIs(t, err, bank.ErrInvalidAmount)

	_, err = svc.Withdraw(ctx, aliceAcc.ID, alice.ID, 9999, "")
	assert.ErrorIs(t, err, bank.ErrInsufficientFunds)

	_, err = svc.Withdraw(ctx, aliceAcc.ID, alice.ID, 2500, "all of it")
	require.NoError(t, err)

	acc, err := svc.Account(ctx, aliceAcc.ID, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, acc.Balance)
}

func TestTransfer(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	alice, aliceAcc := register(t, svc, "alice")
	_, bobAcc := register(t, svc, "bob")

	_, err := svc.Deposit(ctx, aliceAcc.ID, alice.ID, 10_000, "")
	require.NoError(t, err)

	ref, err := svc.Transfer(ctx, aliceAcc.ID, alice.ID, 4000, bobAcc.Number, "rent")
	require.NoError(t, err)
	assert.NotEmpty(t, ref)

	acc, _ := svc.Account(ctx, aliceAcc.ID, alice.ID)
	assert.Equal(t, int64(6000), acc.Balance)

	_, err = svc.Transfer(ctx, aliceAcc.ID, alice.ID, 100, aliceAcc.Number, "")
	assert.ErrorIs(t, err, bank.ErrSameAccount)

	_, err = svc.Transfer(ctx, aliceAcc.ID, alice.ID, 100, "0000000000", "")
	assert.ErrorIs(t, err, bank.ErrNotFound)

	_, err = svc.Transfer(ctx, aliceAcc.ID, alice.ID, -1, bobAcc.Number, "")
	assert.ErrorIs(t, err, bank.ErrInvalidAmount)
}

func TestTransactionsOwnership(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	alice, aliceAcc := register(t, svc, "alice")
	bob, _ := register(t, svc, "bob")

	_, err := svc.Deposit(ctx, aliceAcc.ID, alice.ID, 100, "")
	require.NoError(t, err)

	txns, err := svc.Transactions(ctx, aliceAcc.ID, alice.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 1)

	_, err = svc.Transactions(ctx, aliceAcc.ID, bob.ID, 10, 0)
	assert.ErrorIs(t, err, bank.ErrNotOwner)
}
