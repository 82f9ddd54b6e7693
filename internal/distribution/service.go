package distribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"kaffa-backend/internal/balance"
	"kaffa-backend/internal/domain"
	"kaffa-backend/internal/pkg/apperr"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service turns a harvest's investor share into per-holder payouts and
// records them exactly once.
type Service struct {
	DB       *gorm.DB
	Balances *balance.Service
}

// HolderShare is one holder's computed payout for a harvest.
type HolderShare struct {
	HolderAddress   string  `json:"holder_address"`
	TokenAmount     int64   `json:"token_amount"`
	SharePercentage float64 `json:"share_percentage"`
	RevenueShare    int64   `json:"revenue_share"`
}

// Calculation is the pure output of Compute: nothing is persisted until
// Record runs.
type Calculation struct {
	HarvestID     int64         `json:"harvest_id"`
	GroveName     string        `json:"grove_name"`
	FarmerAddress string        `json:"farmer_address"`
	TotalRevenue  int64         `json:"total_revenue"`
	FarmerShare   int64         `json:"farmer_share"`
	InvestorShare int64         `json:"investor_share"`
	TotalTokens   int64         `json:"total_tokens"`
	Distributions []HolderShare `json:"distributions"`
}

// Compute loads the harvest and active holdings and calculates each holder's
// proportional share of the investor revenue. Shares are floored in integer
// math; the cumulative rounding remainder is assigned to the largest holder,
// so the shares always sum exactly to the investor share.
func (s *Service) Compute(ctx context.Context, harvestID int64) (*Calculation, error) {
	harvest, grove, err := s.loadHarvestWithGrove(ctx, harvestID)
	if err != nil {
		return nil, err
	}
	if harvest.RevenueDistributed {
		return nil, apperr.New(apperr.AlreadyProcessed, "revenue already distributed for harvest %d", harvestID)
	}

	var holders []domain.TokenHolding
	if err := s.DB.WithContext(ctx).
		Where("grove_id = ? AND is_active = ?", grove.ID, true).
		Find(&holders).Error; err != nil {
		return nil, err
	}
	if len(holders) == 0 {
		return nil, apperr.New(apperr.NotFound, "no active token holders found for grove %s", grove.GroveName)
	}

	var totalTokens int64
	for _, h := range holders {
		totalTokens += h.TokenAmount
	}
	if totalTokens == 0 {
		return nil, apperr.New(apperr.InvalidInput, "no tokens in circulation for grove %s", grove.GroveName)
	}

	shares := make([]HolderShare, len(holders))
	var distributed int64
	largest := 0
	for i, h := range holders {
		share := harvest.InvestorShare * h.TokenAmount / totalTokens
		distributed += share
		shares[i] = HolderShare{
			HolderAddress:   h.HolderAddress,
			TokenAmount:     h.TokenAmount,
			SharePercentage: float64(h.TokenAmount) / float64(totalTokens) * 100,
			RevenueShare:    share,
		}
		if h.TokenAmount > holders[largest].TokenAmount {
			largest = i
		}
	}

	// Floor can only lose fractional units; give the remainder to the
	// largest holder so the sum reconciles exactly.
	if remainder := harvest.InvestorShare - distributed; remainder > 0 {
		shares[largest].RevenueShare += remainder
	}

	return &Calculation{
		HarvestID:     harvest.ID,
		GroveName:     grove.GroveName,
		FarmerAddress: grove.FarmerAddress,
		TotalRevenue:  harvest.TotalRevenue,
		FarmerShare:   harvest.FarmerShare,
		InvestorShare: harvest.InvestorShare,
		TotalTokens:   totalTokens,
		Distributions: shares,
	}, nil
}

// ValidationResult is the reconciliation report for a calculation. Errors
// block commit; warnings are operator signals only.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate reconciles a calculation against the stored harvest before
// commit. A sum that does not exactly match the investor share is an error,
// not a tolerance: Compute disposes of the rounding remainder explicitly.
func (s *Service) Validate(ctx context.Context, calc *Calculation) (*ValidationResult, error) {
	result := &ValidationResult{Errors: []string{}, Warnings: []string{}}

	var harvest domain.HarvestRecord
	if err := s.DB.WithContext(ctx).Where("id = ?", calc.HarvestID).First(&harvest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result.Errors = append(result.Errors, fmt.Sprintf("harvest %d not found", calc.HarvestID))
			return result, nil
		}
		return nil, err
	}

	if harvest.RevenueDistributed {
		result.Errors = append(result.Errors, fmt.Sprintf("revenue already distributed for harvest %d", calc.HarvestID))
	}
	if calc.TotalRevenue != harvest.TotalRevenue {
		result.Errors = append(result.Errors,
			fmt.Sprintf("total revenue mismatch: expected %d, got %d", harvest.TotalRevenue, calc.TotalRevenue))
	}
	if calc.InvestorShare != harvest.InvestorShare {
		result.Errors = append(result.Errors,
			fmt.Sprintf("investor share mismatch: expected %d, got %d", harvest.InvestorShare, calc.InvestorShare))
	}

	var totalDistributed int64
	seen := make(map[string]bool, len(calc.Distributions))
	var distributionTokens int64
	zeroShares := false
	var maxShare, minShare int64
	for i, d := range calc.Distributions {
		totalDistributed += d.RevenueShare
		distributionTokens += d.TokenAmount
		if seen[d.HolderAddress] {
			result.Errors = append(result.Errors, "duplicate holder addresses in distribution")
		}
		seen[d.HolderAddress] = true
		if d.RevenueShare == 0 {
			zeroShares = true
		}
		if i == 0 || d.RevenueShare > maxShare {
			maxShare = d.RevenueShare
		}
		if i == 0 || d.RevenueShare < minShare {
			minShare = d.RevenueShare
		}
	}

	if totalDistributed != calc.InvestorShare {
		result.Errors = append(result.Errors,
			fmt.Sprintf("distribution total (%d) does not match investor share (%d)", totalDistributed, calc.InvestorShare))
	}
	if distributionTokens != calc.TotalTokens {
		result.Errors = append(result.Errors,
			fmt.Sprintf("token amount mismatch: holders have %d, distributions have %d", calc.TotalTokens, distributionTokens))
	}

	if len(calc.Distributions) == 0 {
		result.Warnings = append(result.Warnings, "no distributions calculated")
	}
	if zeroShares {
		result.Warnings = append(result.Warnings, "some holders will receive zero revenue")
	}
	if len(calc.Distributions) > 1 && maxShare > minShare*100 {
		result.Warnings = append(result.Warnings, "large disparity in revenue shares between holders")
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}

// Record persists the distribution set for a harvest in one transaction. The
// conditional flag flip is the at-most-once guard: a concurrent caller loses
// with AlreadyProcessed, and any row failure rolls the whole batch back.
func (s *Service) Record(ctx context.Context, harvestID int64, shares []HolderShare, settlementRef *string) error {
	if len(shares) == 0 {
		return apperr.New(apperr.InvalidInput, "no distributions to record")
	}
	now := time.Now()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		patch := map[string]interface{}{"revenue_distributed": true}
		if settlementRef != nil {
			patch["transaction_hash"] = *settlementRef
		}
		res := tx.Model(&domain.HarvestRecord{}).
			Where("id = ? AND revenue_distributed = ?", harvestID, false).
			Updates(patch)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&domain.HarvestRecord{}).Where("id = ?", harvestID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return apperr.New(apperr.NotFound, "harvest %d not found", harvestID)
			}
			return apperr.New(apperr.AlreadyProcessed, "revenue already distributed for harvest %d", harvestID)
		}

		rows := make([]domain.RevenueDistribution, len(shares))
		for i, sh := range shares {
			rows[i] = domain.RevenueDistribution{
				HarvestID:        harvestID,
				HolderAddress:    sh.HolderAddress,
				TokenAmount:      sh.TokenAmount,
				RevenueShare:     sh.RevenueShare,
				DistributionDate: now,
				TransactionHash:  settlementRef,
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"holder_count":      len(rows),
			"settlement_ref":    settlementRef,
			"distribution_date": now,
		})
		return tx.Create(&domain.LedgerEvent{
			EventType: domain.EventDistributionRecorded,
			Subject:   fmt.Sprintf("harvest:%d", harvestID),
			EventData: datatypes.JSON(payload),
		}).Error
	})
}

// Distribute orchestrates a full distribution: compute, validate, record,
// then credit the farmer's share to the balance ledger. A credit failure
// after the distribution has committed cannot be rolled back and is surfaced
// as Inconsistent for manual reconciliation.
func (s *Service) Distribute(ctx context.Context, harvestID int64, settlementRef *string) (*Calculation, error) {
	calc, err := s.Compute(ctx, harvestID)
	if err != nil {
		return nil, err
	}

	validation, err := s.Validate(ctx, calc)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, apperr.New(apperr.RoundingMismatch,
			"distribution validation failed: %s", strings.Join(validation.Errors, "; "))
	}
	for _, w := range validation.Warnings {
		log.Warn().Int64("harvest_id", harvestID).Msg(w)
	}

	if err := s.Record(ctx, harvestID, calc.Distributions, settlementRef); err != nil {
		return nil, err
	}

	if err := s.Balances.Credit(ctx, calc.FarmerAddress, calc.FarmerShare); err != nil {
		log.Error().Err(err).
			Int64("harvest_id", harvestID).
			Str("farmer", calc.FarmerAddress).
			Int64("farmer_share", calc.FarmerShare).
			Msg("distribution recorded but farmer balance credit failed")
		return calc, apperr.Wrap(apperr.Inconsistent, err,
			"distribution recorded but farmer balance credit failed for harvest %d", harvestID)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"harvest_id": harvestID,
		"amount":     calc.FarmerShare,
	})
	if err := s.DB.WithContext(ctx).Create(&domain.LedgerEvent{
		EventType: domain.EventBalanceCredited,
		Subject:   calc.FarmerAddress,
		EventData: datatypes.JSON(payload),
	}).Error; err != nil {
		log.Warn().Err(err).Int64("harvest_id", harvestID).Msg("balance credit audit event not written")
	}

	return calc, nil
}

// PendingHarvest is an undistributed harvest annotated with its age.
type PendingHarvest struct {
	HarvestID        int64     `json:"harvest_id"`
	GroveName        string    `json:"grove_name"`
	FarmerAddress    string    `json:"farmer_address"`
	TotalRevenue     int64     `json:"total_revenue"`
	HarvestDate      time.Time `json:"harvest_date"`
	DaysSinceHarvest int       `json:"days_since_harvest"`
}

// Pending lists all harvests awaiting distribution.
func (s *Service) Pending(ctx context.Context) ([]PendingHarvest, error) {
	var rows []PendingHarvest
	err := s.DB.WithContext(ctx).
		Table("harvest_records").
		Select(`harvest_records.id as harvest_id, coffee_groves.grove_name,
			coffee_groves.farmer_address, harvest_records.total_revenue,
			harvest_records.harvest_date`).
		Joins("INNER JOIN coffee_groves ON coffee_groves.id = harvest_records.grove_id").
		Where("harvest_records.revenue_distributed = ?", false).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range rows {
		rows[i].DaysSinceHarvest = int(now.Sub(rows[i].HarvestDate).Hours() / 24)
	}
	return rows, nil
}

// Summary is the per-harvest distribution report built from persisted rows.
type Summary struct {
	HarvestID        int64         `json:"harvest_id"`
	GroveName        string        `json:"grove_name"`
	FarmerAddress    string        `json:"farmer_address"`
	TotalRevenue     int64         `json:"total_revenue"`
	FarmerShare      int64         `json:"farmer_share"`
	InvestorShare    int64         `json:"investor_share"`
	TotalHolders     int           `json:"total_holders"`
	DistributionDate *time.Time    `json:"distribution_date"`
	IsDistributed    bool          `json:"is_distributed"`
	Distributions    []HolderShare `json:"distributions"`
}

// GetSummary reports a harvest's persisted distribution state.
func (s *Service) GetSummary(ctx context.Context, harvestID int64) (*Summary, error) {
	harvest, grove, err := s.loadHarvestWithGrove(ctx, harvestID)
	if err != nil {
		return nil, err
	}

	var rows []domain.RevenueDistribution
	if err := s.DB.WithContext(ctx).Where("harvest_id = ?", harvestID).Find(&rows).Error; err != nil {
		return nil, err
	}

	var totalTokens int64
	for _, r := range rows {
		totalTokens += r.TokenAmount
	}

	summary := &Summary{
		HarvestID:     harvest.ID,
		GroveName:     grove.GroveName,
		FarmerAddress: grove.FarmerAddress,
		TotalRevenue:  harvest.TotalRevenue,
		FarmerShare:   harvest.FarmerShare,
		InvestorShare: harvest.InvestorShare,
		TotalHolders:  len(rows),
		IsDistributed: harvest.RevenueDistributed,
		Distributions: make([]HolderShare, len(rows)),
	}
	if len(rows) > 0 {
		summary.DistributionDate = &rows[0].DistributionDate
	}
	for i, r := range rows {
		pct := 0.0
		if totalTokens > 0 {
			pct = float64(r.TokenAmount) / float64(totalTokens) * 100
		}
		summary.Distributions[i] = HolderShare{
			HolderAddress:   r.HolderAddress,
			TokenAmount:     r.TokenAmount,
			SharePercentage: pct,
			RevenueShare:    r.RevenueShare,
		}
	}
	return summary, nil
}

// HolderHistoryEntry is one past payout for a holder.
type HolderHistoryEntry struct {
	HarvestID        int64     `json:"harvest_id"`
	GroveName        string    `json:"grove_name"`
	TokenAmount      int64     `json:"token_amount"`
	RevenueShare     int64     `json:"revenue_share"`
	DistributionDate time.Time `json:"distribution_date"`
	TransactionHash  *string   `json:"transaction_hash"`
}

// HolderHistory returns a holder's payouts, newest first.
func (s *Service) HolderHistory(ctx context.Context, holderAddress string) ([]HolderHistoryEntry, error) {
	var rows []HolderHistoryEntry
	err := s.DB.WithContext(ctx).
		Table("revenue_distributions").
		Select(`revenue_distributions.harvest_id, coffee_groves.grove_name,
			revenue_distributions.token_amount, revenue_distributions.revenue_share,
			revenue_distributions.distribution_date, revenue_distributions.transaction_hash`).
		Joins("INNER JOIN harvest_records ON harvest_records.id = revenue_distributions.harvest_id").
		Joins("INNER JOIN coffee_groves ON coffee_groves.id = harvest_records.grove_id").
		Where("revenue_distributions.holder_address = ?", holderAddress).
		Order("revenue_distributions.distribution_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GroveEarnings aggregates a holder's payouts for one grove.
type GroveEarnings struct {
	GroveName         string `json:"grove_name"`
	TotalEarnings     int64  `json:"total_earnings"`
	DistributionCount int64  `json:"distribution_count"`
}

// Earnings is a holder's lifetime payout summary.
type Earnings struct {
	TotalEarnings                  int64           `json:"total_earnings"`
	TotalDistributions             int64           `json:"total_distributions"`
	AverageEarningsPerDistribution float64         `json:"average_earnings_per_distribution"`
	Groves                         []GroveEarnings `json:"groves"`
}

// HolderEarnings sums a holder's payouts overall and per grove.
func (s *Service) HolderEarnings(ctx context.Context, holderAddress string) (*Earnings, error) {
	var totals struct {
		TotalEarnings      int64
		TotalDistributions int64
	}
	err := s.DB.WithContext(ctx).
		Table("revenue_distributions").
		Select("coalesce(sum(revenue_share), 0) as total_earnings, count(*) as total_distributions").
		Where("holder_address = ?", holderAddress).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	var groves []GroveEarnings
	err = s.DB.WithContext(ctx).
		Table("revenue_distributions").
		Select("coffee_groves.grove_name, coalesce(sum(revenue_distributions.revenue_share), 0) as total_earnings, count(*) as distribution_count").
		Joins("INNER JOIN harvest_records ON harvest_records.id = revenue_distributions.harvest_id").
		Joins("INNER JOIN coffee_groves ON coffee_groves.id = harvest_records.grove_id").
		Where("revenue_distributions.holder_address = ?", holderAddress).
		Group("coffee_groves.grove_name").
		Find(&groves).Error
	if err != nil {
		return nil, err
	}

	earnings := &Earnings{
		TotalEarnings:      totals.TotalEarnings,
		TotalDistributions: totals.TotalDistributions,
		Groves:             groves,
	}
	if totals.TotalDistributions > 0 {
		earnings.AverageEarningsPerDistribution = float64(totals.TotalEarnings) / float64(totals.TotalDistributions)
	}
	return earnings, nil
}

func (s *Service) loadHarvestWithGrove(ctx context.Context, harvestID int64) (*domain.HarvestRecord, *domain.CoffeeGrove, error) {
	var harvest domain.HarvestRecord
	if err := s.DB.WithContext(ctx).Where("id = ?", harvestID).First(&harvest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.New(apperr.NotFound, "harvest %d not found", harvestID)
		}
		return nil, nil, err
	}

	var grove domain.CoffeeGrove
	if err := s.DB.WithContext(ctx).Where("id = ?", harvest.GroveID).First(&grove).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.New(apperr.NotFound, "grove %d not found", harvest.GroveID)
		}
		return nil, nil, err
	}
	return &harvest, &grove, nil
}
