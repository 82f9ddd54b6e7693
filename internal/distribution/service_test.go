package distribution

import (
	"context"
	"testing"
	"time"

	"kaffa-backend/internal/balance"
	"kaffa-backend/internal/domain"
	"kaffa-backend/internal/pkg/apperr"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDistributionTest(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.CoffeeGrove{}, &domain.HarvestRecord{}, &domain.TokenHolding{},
		&domain.RevenueDistribution{}, &domain.FarmerBalance{}, &domain.LedgerEvent{},
	))
	return &Service{DB: db, Balances: &balance.Service{DB: db}}
}

func seedHarvest(t *testing.T, db *gorm.DB, totalRevenue int64) (*domain.CoffeeGrove, *domain.HarvestRecord) {
	grove := &domain.CoffeeGrove{
		GroveName:          "Finca Aurora",
		FarmerAddress:      "0.0.1001",
		TreeCount:          100,
		TotalTokensIssued:  1000,
		VerificationStatus: "verified",
	}
	require.NoError(t, db.Create(grove).Error)

	farmerShare := totalRevenue * 30 / 100
	harvest := &domain.HarvestRecord{
		GroveID:        grove.ID,
		HarvestDate:    time.Now().Add(-72 * time.Hour),
		YieldKg:        500,
		QualityGrade:   85,
		SalePricePerKg: totalRevenue / 500,
		TotalRevenue:   totalRevenue,
		FarmerShare:    farmerShare,
		InvestorShare:  totalRevenue - farmerShare,
	}
	require.NoError(t, db.Create(harvest).Error)
	return grove, harvest
}

func seedHolding(t *testing.T, db *gorm.DB, groveID int64, address string, tokens int64, active bool) {
	require.NoError(t, db.Create(&domain.TokenHolding{
		HolderAddress: address,
		GroveID:       groveID,
		TokenAmount:   tokens,
		PurchasePrice: tokens * 100,
		PurchaseDate:  time.Now().Add(-30 * 24 * time.Hour),
		IsActive:      active,
	}).Error)
}

func TestCompute_ProportionalShares(t *testing.T) {
	svc := setupDistributionTest(t)
	grove, harvest := seedHarvest(t, svc.DB, 200000) // investor share 140000
	seedHolding(t, svc.DB, grove.ID, "0.0.3001", 700, true)
	seedHolding(t, svc.DB, grove.ID, "0.0.3002", 300, true)

	calc, err := svc.Compute(context.Background(), harvest.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(140000), calc.InvestorShare)
	assert.Equal(t, int64(1000), calc.TotalTokens)
	require.Len(t, calc.Distributions, 2)

	byAddr := map[string]HolderShare{}
	for _, d := range calc.Distributions {
		byAddr[d.HolderAddress] = d
	}
	assert.Equal(t, int64(98000), byAddr["0.0.3001"].RevenueShare)
	assert.Equal(t, int64(42000), byAddr["0.0.3002"].RevenueShare)
}

func TestCompute_SmallHarvestExactSplit(t *testing.T) {
	svc := setupDistributionTest(t)
	grove, harvest := seedHarvest(t, svc.DB, 2000) // farmer 600, investors 1400
	seedHolding(t, svc.DB, grove.ID, "0.0.3001", 700, true)
	seedHolding(t, svc.DB, grove.ID, "0.0.3002", 300, true)

	calc, err := svc.Compute(context.Background(), harvest.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), calc.FarmerShare)

	byAddr := map[string]int64{}
	for _, d := range calc.Distributions {
		byAddr[d.HolderAddress] = d.RevenueShare
	}
	assert.Equal(t, int64(980), byAddr["0.0.3001"])
	assert.Equal(t, int64(420), byAddr["0.0.3002"])
}

func TestCompute_RemainderGoesToLargestHolder(t *testing.T) {
	svc := setupDistributionTest(t)
	grove, harvest := seedHarvest(t, svc.DB, 1000) // investor share 700
	// 700 over 3 equal-ish holders: floor leaves a remainder
	seedHolding(t, svc.DB, grove.ID, "0.0.3001", 5, true)
	seedHolding(t, svc.DB, grove.ID, "0.0.3002", 2, true)
	seedHolding(t, svc.DB, grove.ID, "0.0.3003", 2, true)

	calc, err := svc.Compute(context.Background(), harvest.ID)
	require.NoError(t, err)

	var sum int64
	byAddr := map[string]int64{}
	for _, d := range calc.Distributions {
		sum += d.RevenueShare
		byAddr[d.HolderAddress] = d.RevenueShare
	}
	// floor(700*5/9)=388, floor(700*2/9)=155 each, remainder 2 to the 5-token holder
	assert.Equal(t, int64(700), sum)
	assert.Equal(t, int64(390), byAddr["0.0.3001"])
	assert.Equal(t, int64(155), byAddr["0.0.3002"])
	assert.Equal(t, int64(155), byAddr["0.0.3003"])
}

func TestCompute_IgnoresInactiveHoldings(t *testing.T) {
	svc := setupDistributionTest(t)
	grove, harvest := seedHarvest(t, svc.DB, 200000)
	seedHolding(t, svc.DB, grove.ID, "0.0.3001", 700, true)
	seedHolding(t, svc.DB, grove.ID, "0.0.3002", 300, false)

	calc, err := svc.Compute(context.Background(), harvest.ID)
	require.NoError(t, err)
	require.Len(t, calc.Distributions, 1)
	assert.Equal(t, int64(140000), calc.Distributions[0].RevenueShare)
}

func TestCompute_NoHolders(t *testing.T) {
	svc := setupDistributionTest(t)
	_, harvest := seedHarvest(t, svc.DB, 200000)

	_, err := svc.Compute(context.Background(), harvest.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestCompute_AlreadyDistributed(t *testing.T) {
	svc := setupDistributionTest(t)
	grove, harvest := seedHarvest(t, svc.DB, 200000)
	seedHolding(t, svc.DB, grove.ID, "0.0.3001", 700, true)
	require.NoError(t, svc.DB.Model(harvest).Update("revenue_distributed", true).Error)

	_, err := svc.Compute(context.Background(), harvest.ID)
	assert.Equal(t, apperr.AlreadyProcessed, apperr.KindOf(err))
}

func TestCompute_UnknownHarvest(t *testing.T) {
	svc := setupDistributionTest(t)

	_, err := svc.Compute(context.Background(), 999)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestValidate_AcceptsComputedCalculation(t *testing.T) {
	svc := setupDistributionTest(t)
	grove, harvest := seedHarvest(t, svc.DB, 200000)
	seedHolding(t, svc.DB, grove.ID, "0.0.3001", 700, true)
	seedHolding(t, svc.DB, grove.ID, "0.0.3002", 300, true)

	calc, err := svc.Compute(context.Background(), harvest.ID)
	require.NoError(t, err)

	result, err := svc.Validate(context.Background(), calc)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidate_RejectsShareSumMismatch(t *testing.T) {
	svc := setupDistributionTest(t)
	grove, harvest := seedHarvest(t, svc.DB, 200000)
	seedHolding(t, svc.DB, grove.ID, "0.0.3001", 700, true)
	seedHolding(t, svc.DB, grove.ID, "0.0.3002", 300, true)

	calc, err := svc.Compute(context.Background(), harvest.ID)
	require.NoError(t, err)
	calc.Distributions[0].RevenueShare += 1

	result, err := svc.Validate(context.Background(), calc)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidate_RejectsDuplicateHolders(t *testing.T) {
	svc := setupDistributionTest(t)
	grove, harvest := seedHarvest(t, svc.DB, 200000)
	seedHolding(t, svc.DB, grove.ID, "0.0.3001", 700, true)
	seedHolding(t, svc.DB, grove.ID, "0.0.3002", 300, true)

	calc, err := svc.Compute(context.Background(), harvest.ID)
	require.NoError(t, err)
	calc.Distributions[1].HolderAddress = calc.Distributions[0].HolderAddress

	result, err := svc.Validate(context.Background(), calc)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestValidate_WarnsOnZeroShares(t *testing.T) {
	svc := setupDistributionTest(t)
	// investor share 7 over 1000 tokens: small holders floor to zero
	grove, harvest := seedHarvest(t, svc.DB, 10)
	seedHolding(t, svc.DB, grove.ID, "0.0.3001", 999, true)
	seedHolding(t, svc.DB, grove.ID, "0.0.3002", 1, true)

	calc, err := svc.Compute(context.Background(), harvest.ID)
	require.NoError(t, err)

	result, err := svc.Validate(context.Background(), calc)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.NotEmpty(t, result.Warnings)
}

func TestRecord_PersistsRowsAndFlipsFlag(t *testing.T) {
	svc := setupDistributionTest(t)
	grove, harvest := seedHarvest(t, svc.DB, 200000)
	seedHolding(t, svc.DB, grove.ID, "0.0.3001", 700, true)
	seedHolding(t, svc.DB, grove.ID, "0.0.3002", 300, true)

	calc, err := svc.Compute(context.Background(), harvest.ID)
	require.NoError(t, err)

	ref := "0.0.5005@1756600000.123"
	require.NoError(t, svc.Record(context.Background(), harvest.ID, calc.Distributions, &ref))

	var reloaded domain.HarvestRecord
	require.NoError(t, svc.DB.First(&reloaded, harvest.ID).Error)
	assert.True(t, reloaded.RevenueDistributed)
	require.NotNil(t, reloaded.TransactionHash)
	assert.Equal(t, ref, *reloaded.TransactionHash)

	var rows []domain.RevenueDistribution
	require.NoError(t, svc.DB.Where("harvest_id = ?", harvest.ID).Find(&rows).Error)
	assert.Len(t, rows, 2)

	var events int64
	svc.DB.Model(&domain.LedgerEvent{}).
		Where("event_type = ?", domain.EventDistributionRecorded).
		Count(&events)
	assert.Equal(t, int64(1), events)
}

func TestRecord_SecondCallLosesAtMostOnceGuard(t *testing.T) {
	svc := setupDistributionTest(t)
	grove, harvest := seedHarvest(t, svc.DB, 200000)
	seedHolding(t, svc.DB, grove.ID, "0.0.3001", 700, true)
	seedHolding(t, svc.DB, grove.ID, "0.0.3002", 300, true)

	calc, err := svc.Compute(context.Background(), harvest.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Record(context.Background(), harvest.ID, calc.Distributions, nil))

	err = svc.Record(context.Background(), harvest.ID, calc.Distributions, nil)
	assert.Equal(t, apperr.AlreadyProcessed, apperr.KindOf(err))

	// The losing call must not have duplicated payout rows
	var rows int64
	svc.DB.Model(&domain.RevenueDistribution{}).Where("harvest_id = ?", harvest.ID).Count(&rows)
	assert.Equal(t, int64(2), rows)
}

func TestRecord_UnknownHarvest(t *testing.T) {
	svc := setupDistributionTest(t)

	err := svc.Record(context.Background(), 999, []HolderShare{{HolderAddress: "0.0.3001", TokenAmount: 1, RevenueShare: 1}}, nil)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestDistribute_CreditsFarmerShare(t *testing.T) {
	svc := setupDistributionTest(t)
	grove, harvest := seedHarvest(t, svc.DB, 200000)
	seedHolding(t, svc.DB, grove.ID, "0.0.3001", 700, true)
	seedHolding(t, svc.DB, grove.ID, "0.0.3002", 300, true)

	calc, err := svc.Distribute(context.Background(), harvest.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), calc.FarmerShare)

	bal, err := svc.Balances.Get(context.Background(), grove.FarmerAddress)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), bal.AvailableBalance)
	assert.Equal(t, int64(60000), bal.TotalEarned)

	// Second distribute attempt is refused and must not double-credit
	_, err = svc.Distribute(context.Background(), harvest.ID, nil)
	assert.Equal(t, apperr.AlreadyProcessed, apperr.KindOf(err))

	bal, _ = svc.Balances.Get(context.Background(), grove.FarmerAddress)
	assert.Equal(t, int64(60000), bal.AvailableBalance)
}

func TestPending_ListsUndistributedWithAge(t *testing.T) {
	svc := setupDistributionTest(t)
	grove, harvest := seedHarvest(t, svc.DB, 200000)
	seedHolding(t, svc.DB, grove.ID, "0.0.3001", 1000, true)

	rows, err := svc.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, harvest.ID, rows[0].HarvestID)
	assert.Equal(t, "Finca Aurora", rows[0].GroveName)
	assert.Equal(t, 3, rows[0].DaysSinceHarvest)

	_, err = svc.Distribute(context.Background(), harvest.ID, nil)
	require.NoError(t, err)

	rows, err = svc.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGetSummary_ReflectsPersistedRows(t *testing.T) {
	svc := setupDistributionTest(t)
	grove, harvest := seedHarvest(t, svc.DB, 200000)
	seedHolding(t, svc.DB, grove.ID, "0.0.3001", 700, true)
	seedHolding(t, svc.DB, grove.ID, "0.0.3002", 300, true)

	summary, err := svc.GetSummary(context.Background(), harvest.ID)
	require.NoError(t, err)
	assert.False(t, summary.IsDistributed)
	assert.Equal(t, 0, summary.TotalHolders)

	_, err = svc.Distribute(context.Background(), harvest.ID, nil)
	require.NoError(t, err)

	summary, err = svc.GetSummary(context.Background(), harvest.ID)
	require.NoError(t, err)
	assert.True(t, summary.IsDistributed)
	assert.Equal(t, 2, summary.TotalHolders)
	var sum int64
	for _, d := range summary.Distributions {
		sum += d.RevenueShare
	}
	assert.Equal(t, summary.InvestorShare, sum)
}

func TestHolderHistoryAndEarnings(t *testing.T) {
	svc := setupDistributionTest(t)
	grove, harvest := seedHarvest(t, svc.DB, 200000)
	seedHolding(t, svc.DB, grove.ID, "0.0.3001", 700, true)
	seedHolding(t, svc.DB, grove.ID, "0.0.3002", 300, true)
	_, err := svc.Distribute(context.Background(), harvest.ID, nil)
	require.NoError(t, err)

	history, err := svc.HolderHistory(context.Background(), "0.0.3001")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, harvest.ID, history[0].HarvestID)
	assert.Equal(t, "Finca Aurora", history[0].GroveName)
	assert.Equal(t, int64(98000), history[0].RevenueShare)

	earnings, err := svc.HolderEarnings(context.Background(), "0.0.3001")
	require.NoError(t, err)
	assert.Equal(t, int64(98000), earnings.TotalEarnings)
	assert.Equal(t, int64(1), earnings.TotalDistributions)
	require.Len(t, earnings.Groves, 1)
	assert.Equal(t, "Finca Aurora", earnings.Groves[0].GroveName)

	// Unknown holder gets empty history, zero earnings
	history, err = svc.HolderHistory(context.Background(), "0.0.9999")
	require.NoError(t, err)
	assert.Empty(t, history)

	earnings, err = svc.HolderEarnings(context.Background(), "0.0.9999")
	require.NoError(t, err)
	assert.Equal(t, int64(0), earnings.TotalEarnings)
	assert.Equal(t, int64(0), earnings.TotalDistributions)
}
