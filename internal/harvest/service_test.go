package harvest

import (
	"context"
	"testing"
	"time"

	"kaffa-backend/internal/domain"
	"kaffa-backend/internal/pkg/apperr"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupHarvestTest(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.CoffeeGrove{}, &domain.HarvestRecord{}))
	return &Service{DB: db}
}

func seedGrove(t *testing.T, db *gorm.DB, name, farmer, status string) *domain.CoffeeGrove {
	grove := &domain.CoffeeGrove{
		GroveName:            name,
		FarmerAddress:        farmer,
		TreeCount:            100,
		ExpectedYieldPerTree: 10,
		TotalTokensIssued:    1000,
		VerificationStatus:   status,
	}
	require.NoError(t, db.Create(grove).Error)
	return grove
}

func TestCalculateRevenueSplit(t *testing.T) {
	total, farmer, investor, err := CalculateRevenueSplit(500, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), total)
	assert.Equal(t, int64(600), farmer)
	assert.Equal(t, int64(1400), investor)
}

func TestCalculateRevenueSplit_RemainderGoesToInvestors(t *testing.T) {
	// 101 cents: floor(101*0.3)=30 to the farmer, 71 to investors
	total, farmer, investor, err := CalculateRevenueSplit(101, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(101), total)
	assert.Equal(t, int64(30), farmer)
	assert.Equal(t, int64(71), investor)
	assert.Equal(t, total, farmer+investor)
}

func TestCalculateRevenueSplit_RejectsNonPositive(t *testing.T) {
	_, _, _, err := CalculateRevenueSplit(0, 4)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	_, _, _, err = CalculateRevenueSplit(500, 0)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	_, _, _, err = CalculateRevenueSplit(-10, 4)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestReport_PersistsUndistributedRecord(t *testing.T) {
	svc := setupHarvestTest(t)
	seedGrove(t, svc.DB, "Finca Aurora", "0.0.1001", "verified")

	record, err := svc.Report(context.Background(), ReportRequest{
		GroveName:      "Finca Aurora",
		FarmerAddress:  "0.0.1001",
		YieldKg:        500,
		QualityGrade:   85,
		SalePricePerKg: 400,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(200000), record.TotalRevenue)
	assert.Equal(t, int64(60000), record.FarmerShare)
	assert.Equal(t, int64(140000), record.InvestorShare)
	assert.False(t, record.RevenueDistributed)
	assert.Nil(t, record.TransactionHash)
}

func TestReport_UnknownGrove(t *testing.T) {
	svc := setupHarvestTest(t)

	_, err := svc.Report(context.Background(), ReportRequest{
		GroveName:      "Nowhere",
		FarmerAddress:  "0.0.1001",
		YieldKg:        500,
		QualityGrade:   85,
		SalePricePerKg: 400,
	})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestReport_WrongFarmer(t *testing.T) {
	svc := setupHarvestTest(t)
	seedGrove(t, svc.DB, "Finca Aurora", "0.0.1001", "verified")

	_, err := svc.Report(context.Background(), ReportRequest{
		GroveName:      "Finca Aurora",
		FarmerAddress:  "0.0.2002",
		YieldKg:        500,
		QualityGrade:   85,
		SalePricePerKg: 400,
	})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestReport_UnverifiedGrove(t *testing.T) {
	svc := setupHarvestTest(t)
	seedGrove(t, svc.DB, "Finca Aurora", "0.0.1001", "pending")

	_, err := svc.Report(context.Background(), ReportRequest{
		GroveName:      "Finca Aurora",
		FarmerAddress:  "0.0.1001",
		YieldKg:        500,
		QualityGrade:   85,
		SalePricePerKg: 400,
	})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestReport_InvalidInputs(t *testing.T) {
	svc := setupHarvestTest(t)
	seedGrove(t, svc.DB, "Finca Aurora", "0.0.1001", "verified")

	cases := []ReportRequest{
		{GroveName: "Finca Aurora", FarmerAddress: "not-an-address", YieldKg: 500, QualityGrade: 85, SalePricePerKg: 400},
		{GroveName: "Finca Aurora", FarmerAddress: "0.0.1001", YieldKg: 500, QualityGrade: 0, SalePricePerKg: 400},
		{GroveName: "Finca Aurora", FarmerAddress: "0.0.1001", YieldKg: 500, QualityGrade: 101, SalePricePerKg: 400},
		{GroveName: "Finca Aurora", FarmerAddress: "0.0.1001", YieldKg: 0, QualityGrade: 85, SalePricePerKg: 400},
		{GroveName: "Finca Aurora", FarmerAddress: "0.0.1001", YieldKg: 500, QualityGrade: 85, SalePricePerKg: -1},
	}
	for _, req := range cases {
		_, err := svc.Report(context.Background(), req)
		assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
	}
}

func TestReport_ImplausibleYield(t *testing.T) {
	svc := setupHarvestTest(t)
	// 100 trees * 10kg * 1.5 = 1500kg cap
	seedGrove(t, svc.DB, "Finca Aurora", "0.0.1001", "verified")

	_, err := svc.Report(context.Background(), ReportRequest{
		GroveName:      "Finca Aurora",
		FarmerAddress:  "0.0.1001",
		YieldKg:        1501,
		QualityGrade:   85,
		SalePricePerKg: 400,
	})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestReport_TooSoonAfterPrevious(t *testing.T) {
	svc := setupHarvestTest(t)
	grove := seedGrove(t, svc.DB, "Finca Aurora", "0.0.1001", "verified")
	require.NoError(t, svc.DB.Create(&domain.HarvestRecord{
		GroveID:        grove.ID,
		HarvestDate:    time.Now().Add(-48 * time.Hour),
		YieldKg:        400,
		QualityGrade:   80,
		SalePricePerKg: 350,
		TotalRevenue:   140000,
		FarmerShare:    42000,
		InvestorShare:  98000,
	}).Error)

	_, err := svc.Report(context.Background(), ReportRequest{
		GroveName:      "Finca Aurora",
		FarmerAddress:  "0.0.1001",
		YieldKg:        500,
		QualityGrade:   85,
		SalePricePerKg: 400,
	})
	assert.Equal(t, apperr.AlreadyProcessed, apperr.KindOf(err))
}

func TestHistory_FiltersByGroveAndDistributed(t *testing.T) {
	svc := setupHarvestTest(t)
	groveA := seedGrove(t, svc.DB, "Finca Aurora", "0.0.1001", "verified")
	groveB := seedGrove(t, svc.DB, "Finca Bosque", "0.0.2002", "verified")

	for i, g := range []*domain.CoffeeGrove{groveA, groveA, groveB} {
		require.NoError(t, svc.DB.Create(&domain.HarvestRecord{
			GroveID:            g.ID,
			HarvestDate:        time.Now().Add(-time.Duration(i*30*24) * time.Hour),
			YieldKg:            100,
			QualityGrade:       80,
			SalePricePerKg:     300,
			TotalRevenue:       30000,
			FarmerShare:        9000,
			InvestorShare:      21000,
			RevenueDistributed: i == 0,
		}).Error)
	}

	entries, err := svc.History(context.Background(), HistoryFilter{GroveName: "Finca Aurora"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "Finca Aurora", e.GroveName)
	}

	undistributed := false
	entries, err = svc.History(context.Background(), HistoryFilter{FarmerAddress: "0.0.1001", Distributed: &undistributed})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.False(t, entries[0].RevenueDistributed)
}

func TestGetStats(t *testing.T) {
	svc := setupHarvestTest(t)
	grove := seedGrove(t, svc.DB, "Finca Aurora", "0.0.1001", "verified")
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.DB.Create(&domain.HarvestRecord{
			GroveID:            grove.ID,
			HarvestDate:        time.Now().Add(-time.Duration(i*30*24) * time.Hour),
			YieldKg:            100,
			QualityGrade:       70 + i*10,
			SalePricePerKg:     300,
			TotalRevenue:       30000,
			FarmerShare:        9000,
			InvestorShare:      21000,
			RevenueDistributed: i == 0,
		}).Error)
	}

	stats, err := svc.GetStats(context.Background(), "Finca Aurora", "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalHarvests)
	assert.Equal(t, int64(300), stats.TotalYieldKg)
	assert.Equal(t, int64(90000), stats.TotalRevenue)
	assert.InDelta(t, 80.0, stats.AverageQuality, 0.01)
	assert.Equal(t, int64(2), stats.PendingDistributions)
	assert.Equal(t, int64(1), stats.DistributedHarvests)
}

func TestGetStats_UnknownGrove(t *testing.T) {
	svc := setupHarvestTest(t)

	_, err := svc.GetStats(context.Background(), "Nowhere", "")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
