package harvest

import (
	"context"
	"errors"
	"time"

	"kaffa-backend/internal/domain"
	"kaffa-backend/internal/pkg/apperr"
	"kaffa-backend/internal/pkg/validation"

	"gorm.io/gorm"
)

// farmerSharePercent is the farmer's cut of harvest revenue; the remainder
// goes to token holders.
const farmerSharePercent = 30

// Reported yields above expected capacity times this factor (x100) are
// rejected as implausible.
const yieldTolerancePercent = 150

// minHarvestInterval is the spam guard between harvest reports per grove.
const minHarvestInterval = 7 * 24 * time.Hour

// CalculateRevenueSplit derives the farmer/investor split from a harvest
// sale. The farmer share is floored, and the investor share takes the
// remainder, so the two always sum exactly to the total.
func CalculateRevenueSplit(yieldKg, salePricePerKg int64) (total, farmerShare, investorShare int64, err error) {
	if yieldKg <= 0 {
		return 0, 0, 0, apperr.New(apperr.InvalidInput, "yield must be positive")
	}
	if salePricePerKg <= 0 {
		return 0, 0, 0, apperr.New(apperr.InvalidInput, "sale price must be positive")
	}
	total = yieldKg * salePricePerKg
	farmerShare = total * farmerSharePercent / 100
	investorShare = total - farmerShare
	return total, farmerShare, investorShare, nil
}

// Service handles harvest reporting and reads.
type Service struct {
	DB *gorm.DB
}

// ReportRequest is a farmer's harvest sale report. SalePricePerKg is in
// integer cents.
type ReportRequest struct {
	GroveName      string `json:"grove_name"`
	FarmerAddress  string `json:"farmer_address"`
	YieldKg        int64  `json:"yield_kg"`
	QualityGrade   int    `json:"quality_grade"`
	SalePricePerKg int64  `json:"sale_price_per_kg"`
}

// Report validates and persists a harvest report with its computed revenue
// split. The record starts undistributed.
func (s *Service) Report(ctx context.Context, req ReportRequest) (*domain.HarvestRecord, error) {
	if !validation.IsValidAddress(req.FarmerAddress) {
		return nil, apperr.New(apperr.InvalidInput, "invalid farmer address format")
	}
	if !validation.IsValidQualityGrade(req.QualityGrade) {
		return nil, apperr.New(apperr.InvalidInput, "quality grade must be between 1 and 100")
	}

	total, farmerShare, investorShare, err := CalculateRevenueSplit(req.YieldKg, req.SalePricePerKg)
	if err != nil {
		return nil, err
	}

	var grove domain.CoffeeGrove
	err = s.DB.WithContext(ctx).
		Where("grove_name = ? AND farmer_address = ?", req.GroveName, req.FarmerAddress).
		First(&grove).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "grove not found or farmer does not own this grove")
		}
		return nil, err
	}

	if grove.VerificationStatus != "verified" {
		return nil, apperr.New(apperr.InvalidInput, "grove must be verified before reporting harvests")
	}

	if grove.ExpectedYieldPerTree > 0 && grove.TreeCount > 0 {
		maxReasonable := int64(grove.TreeCount) * grove.ExpectedYieldPerTree * yieldTolerancePercent / 100
		if req.YieldKg > maxReasonable {
			return nil, apperr.New(apperr.InvalidInput,
				"yield (%dkg) exceeds reasonable maximum for grove size (%dkg)", req.YieldKg, maxReasonable)
		}
	}

	var recent domain.HarvestRecord
	err = s.DB.WithContext(ctx).
		Where("grove_id = ? AND harvest_date > ?", grove.ID, time.Now().Add(-minHarvestInterval)).
		Order("harvest_date DESC").
		First(&recent).Error
	if err == nil {
		return nil, apperr.New(apperr.AlreadyProcessed, "cannot report harvest within 7 days of previous harvest")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	record := domain.HarvestRecord{
		GroveID:            grove.ID,
		HarvestDate:        time.Now(),
		YieldKg:            req.YieldKg,
		QualityGrade:       req.QualityGrade,
		SalePricePerKg:     req.SalePricePerKg,
		TotalRevenue:       total,
		FarmerShare:        farmerShare,
		InvestorShare:      investorShare,
		RevenueDistributed: false,
	}
	if err := s.DB.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// HistoryEntry is a harvest record annotated with its grove name.
type HistoryEntry struct {
	domain.HarvestRecord
	GroveName string `json:"grove_name"`
}

// HistoryFilter narrows History to one grove or one farmer's groves, and
// optionally to distributed or undistributed harvests.
type HistoryFilter struct {
	GroveName     string
	FarmerAddress string
	Distributed   *bool
	Limit         int
}

// History returns harvest records newest first.
func (s *Service) History(ctx context.Context, f HistoryFilter) ([]HistoryEntry, error) {
	q := s.DB.WithContext(ctx).
		Table("harvest_records").
		Select("harvest_records.*, coffee_groves.grove_name").
		Joins("INNER JOIN coffee_groves ON coffee_groves.id = harvest_records.grove_id").
		Order("harvest_records.harvest_date DESC")

	if f.GroveName != "" {
		q = q.Where("coffee_groves.grove_name = ?", f.GroveName)
	}
	if f.FarmerAddress != "" {
		q = q.Where("coffee_groves.farmer_address = ?", f.FarmerAddress)
	}
	if f.Distributed != nil {
		q = q.Where("harvest_records.revenue_distributed = ?", *f.Distributed)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var entries []HistoryEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Stats aggregates harvests for a grove or a farmer's groves.
type Stats struct {
	TotalHarvests        int64   `json:"total_harvests"`
	TotalYieldKg         int64   `json:"total_yield_kg"`
	TotalRevenue         int64   `json:"total_revenue"`
	AverageQuality       float64 `json:"average_quality"`
	PendingDistributions int64   `json:"pending_distributions"`
	DistributedHarvests  int64   `json:"distributed_harvests"`
}

// GetStats computes harvest statistics, scoped by grove name or farmer
// address when provided.
func (s *Service) GetStats(ctx context.Context, groveName, farmerAddress string) (*Stats, error) {
	groveIDs, err := s.resolveGroveIDs(ctx, groveName, farmerAddress)
	if err != nil {
		return nil, err
	}
	if groveIDs != nil && len(groveIDs) == 0 {
		return &Stats{}, nil
	}

	q := s.DB.WithContext(ctx).Table("harvest_records").
		Select(`count(*) as total_harvests,
			coalesce(sum(yield_kg), 0) as total_yield_kg,
			coalesce(sum(total_revenue), 0) as total_revenue,
			coalesce(avg(quality_grade), 0) as average_quality,
			coalesce(sum(case when revenue_distributed then 0 else 1 end), 0) as pending_distributions,
			coalesce(sum(case when revenue_distributed then 1 else 0 end), 0) as distributed_harvests`)
	if groveIDs != nil {
		q = q.Where("grove_id IN ?", groveIDs)
	}

	var stats Stats
	if err := q.Scan(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// resolveGroveIDs returns nil for an unscoped query, or the (possibly empty)
// grove id set matching the filter.
func (s *Service) resolveGroveIDs(ctx context.Context, groveName, farmerAddress string) ([]int64, error) {
	if groveName == "" && farmerAddress == "" {
		return nil, nil
	}

	q := s.DB.WithContext(ctx).Model(&domain.CoffeeGrove{})
	if groveName != "" {
		q = q.Where("grove_name = ?", groveName)
	} else {
		q = q.Where("farmer_address = ?", farmerAddress)
	}

	ids := []int64{}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if groveName != "" && len(ids) == 0 {
		return nil, apperr.New(apperr.NotFound, "grove not found")
	}
	return ids, nil
}
