package balance

import (
	"context"
	"sync"
	"time"

	"kaffa-backend/internal/domain"
	"kaffa-backend/internal/pkg/apperr"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// withdrawalCapPercent is the 30% rule: a single farmer withdrawal may debit
// at most 30% of the available balance measured at request time.
const withdrawalCapPercent = 30

// Service maintains the per-farmer running ledger.
type Service struct {
	DB *gorm.DB

	locks sync.Map // farmer address -> *sync.Mutex
}

// Balance is the read shape returned to callers, the stored row plus the
// derived withdrawal cap.
type Balance struct {
	FarmerAddress    string     `json:"farmer_address"`
	AvailableBalance int64      `json:"available_balance"`
	PendingBalance   int64      `json:"pending_balance"`
	TotalEarned      int64      `json:"total_earned"`
	TotalWithdrawn   int64      `json:"total_withdrawn"`
	LastWithdrawalAt *time.Time `json:"last_withdrawal_at"`
	MaxWithdrawable  int64      `json:"max_withdrawable"`
}

// MaxWithdrawable computes the 30% cap in integer cents.
func MaxWithdrawable(available int64) int64 {
	return available * withdrawalCapPercent / 100
}

// Lock serializes withdrawal processing per farmer address. The returned
// function releases the lock. Check, settlement and debit for one farmer must
// all happen under the same hold, otherwise two concurrent requests can both
// pass the cap check against the same starting balance.
func (s *Service) Lock(farmerAddress string) func() {
	v, _ := s.locks.LoadOrStore(farmerAddress, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Get returns the farmer's balance, creating a zeroed row on first access.
// Safe to call repeatedly and concurrently; the insert is on-conflict-do-nothing
// keyed by address, so a racing first access never fails or duplicates.
func (s *Service) Get(ctx context.Context, farmerAddress string) (*Balance, error) {
	if err := s.ensureRow(ctx, farmerAddress); err != nil {
		return nil, err
	}

	var row domain.FarmerBalance
	if err := s.DB.WithContext(ctx).Where("farmer_address = ?", farmerAddress).First(&row).Error; err != nil {
		return nil, err
	}

	return &Balance{
		FarmerAddress:    row.FarmerAddress,
		AvailableBalance: row.AvailableBalance,
		PendingBalance:   row.PendingBalance,
		TotalEarned:      row.TotalEarned,
		TotalWithdrawn:   row.TotalWithdrawn,
		LastWithdrawalAt: row.LastWithdrawalAt,
		MaxWithdrawable:  MaxWithdrawable(row.AvailableBalance),
	}, nil
}

// Credit adds harvest revenue to the farmer's available balance.
func (s *Service) Credit(ctx context.Context, farmerAddress string, amount int64) error {
	if amount <= 0 {
		return apperr.New(apperr.InvalidInput, "credit amount must be positive")
	}
	if err := s.ensureRow(ctx, farmerAddress); err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Model(&domain.FarmerBalance{}).
		Where("farmer_address = ?", farmerAddress).
		Updates(map[string]interface{}{
			"available_balance": gorm.Expr("available_balance + ?", amount),
			"total_earned":      gorm.Expr("total_earned + ?", amount),
			"updated_at":        time.Now(),
		}).Error
}

// Debit removes a completed withdrawal from the ledger. The WHERE clause
// re-validates the funds at commit time: if another writer drained the
// balance since the caller's check, zero rows match and the debit is refused.
func (s *Service) Debit(ctx context.Context, farmerAddress string, amount int64) error {
	if amount <= 0 {
		return apperr.New(apperr.InvalidInput, "debit amount must be positive")
	}

	now := time.Now()
	res := s.DB.WithContext(ctx).Model(&domain.FarmerBalance{}).
		Where("farmer_address = ? AND available_balance >= ?", farmerAddress, amount).
		Updates(map[string]interface{}{
			"available_balance":  gorm.Expr("available_balance - ?", amount),
			"total_withdrawn":    gorm.Expr("total_withdrawn + ?", amount),
			"last_withdrawal_at": now,
			"updated_at":         now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.InsufficientFunds, "insufficient balance for debit of %d", amount)
	}
	return nil
}

func (s *Service) ensureRow(ctx context.Context, farmerAddress string) error {
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.FarmerBalance{FarmerAddress: farmerAddress}).Error
}
