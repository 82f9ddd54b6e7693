package balance

import (
	"context"
	"testing"

	"kaffa-backend/internal/domain"
	"kaffa-backend/internal/pkg/apperr"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupBalanceTest(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.FarmerBalance{}))
	return &Service{DB: db}
}

func TestGet_CreatesZeroedRowOnFirstAccess(t *testing.T) {
	svc := setupBalanceTest(t)
	ctx := context.Background()

	b, err := svc.Get(ctx, "0.0.1001")
	require.NoError(t, err)
	assert.Equal(t, "0.0.1001", b.FarmerAddress)
	assert.Equal(t, int64(0), b.AvailableBalance)
	assert.Equal(t, int64(0), b.TotalEarned)
	assert.Nil(t, b.LastWithdrawalAt)

	// Second access must not fail or duplicate
	b, err = svc.Get(ctx, "0.0.1001")
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.AvailableBalance)

	var count int64
	svc.DB.Model(&domain.FarmerBalance{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCredit_AccumulatesAvailableAndEarned(t *testing.T) {
	svc := setupBalanceTest(t)
	ctx := context.Background()

	require.NoError(t, svc.Credit(ctx, "0.0.1001", 60000))
	require.NoError(t, svc.Credit(ctx, "0.0.1001", 40000))

	b, err := svc.Get(ctx, "0.0.1001")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), b.AvailableBalance)
	assert.Equal(t, int64(100000), b.TotalEarned)
	assert.Equal(t, int64(0), b.TotalWithdrawn)
}

func TestCredit_RejectsNonPositive(t *testing.T) {
	svc := setupBalanceTest(t)

	err := svc.Credit(context.Background(), "0.0.1001", 0)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	err = svc.Credit(context.Background(), "0.0.1001", -5)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestDebit_MovesAvailableToWithdrawn(t *testing.T) {
	svc := setupBalanceTest(t)
	ctx := context.Background()
	require.NoError(t, svc.Credit(ctx, "0.0.1001", 100000))

	require.NoError(t, svc.Debit(ctx, "0.0.1001", 30000))

	b, err := svc.Get(ctx, "0.0.1001")
	require.NoError(t, err)
	assert.Equal(t, int64(70000), b.AvailableBalance)
	assert.Equal(t, int64(30000), b.TotalWithdrawn)
	assert.Equal(t, int64(100000), b.TotalEarned)
	assert.NotNil(t, b.LastWithdrawalAt)
}

func TestDebit_RefusesOverdraw(t *testing.T) {
	svc := setupBalanceTest(t)
	ctx := context.Background()
	require.NoError(t, svc.Credit(ctx, "0.0.1001", 100))

	err := svc.Debit(ctx, "0.0.1001", 101)
	assert.Equal(t, apperr.InsufficientFunds, apperr.KindOf(err))

	b, _ := svc.Get(ctx, "0.0.1001")
	assert.Equal(t, int64(100), b.AvailableBalance)
	assert.Equal(t, int64(0), b.TotalWithdrawn)
}

func TestMaxWithdrawable_FlooredThirtyPercent(t *testing.T) {
	assert.Equal(t, int64(30000), MaxWithdrawable(100000))
	assert.Equal(t, int64(30), MaxWithdrawable(101))
	assert.Equal(t, int64(0), MaxWithdrawable(3))
	assert.Equal(t, int64(0), MaxWithdrawable(0))
}
