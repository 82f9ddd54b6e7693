package withdrawal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kaffa-backend/internal/balance"
	"kaffa-backend/internal/domain"
	"kaffa-backend/internal/pkg/apperr"
	"kaffa-backend/internal/settlement"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service orchestrates farmer and liquidity-provider withdrawals:
// balance/cap check, settlement call, ledger update, failure recovery.
type Service struct {
	DB         *gorm.DB
	Balances   *balance.Service
	Settlement settlement.Backend
	Network    string
	// Timeout bounds each settlement call; a timed-out withdrawal resolves
	// to failed, never stays pending.
	Timeout time.Duration
}

// Result is the caller-visible outcome of a withdrawal request.
type Result struct {
	WithdrawalID    string `json:"withdrawal_id"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	Amount          int64  `json:"amount"`
	USDCReturned    int64  `json:"usdc_returned,omitempty"`
	RewardsEarned   int64  `json:"rewards_earned,omitempty"`
}

// ProcessFarmer runs a farmer withdrawal. The balance and 30% cap are checked
// before any row is persisted, so rejected requests leave no ledger noise;
// the per-farmer lock is held from the check through the debit so concurrent
// requests cannot jointly overdraw.
func (s *Service) ProcessFarmer(ctx context.Context, farmerAddress string, amount int64, groveID *int64) (*Result, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.InvalidInput, "amount must be positive")
	}

	unlock := s.Balances.Lock(farmerAddress)
	defer unlock()

	bal, err := s.Balances.Get(ctx, farmerAddress)
	if err != nil {
		return nil, err
	}
	if bal.AvailableBalance < amount {
		return nil, apperr.New(apperr.InsufficientFunds,
			"insufficient balance. Available: %s", formatCents(bal.AvailableBalance))
	}
	if amount > bal.MaxWithdrawable {
		return nil, apperr.New(apperr.WithdrawalLimitExceeded,
			"withdrawal exceeds 30%% limit. Maximum: %s", formatCents(bal.MaxWithdrawable))
	}

	row := domain.FarmerWithdrawal{
		ID:            "fw_" + uuid.NewString(),
		FarmerAddress: farmerAddress,
		GroveID:       groveID,
		Amount:        amount,
		Status:        domain.WithdrawalPending,
		RequestedAt:   time.Now(),
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	transfer, err := s.Settlement.Transfer(callCtx, amount, farmerAddress)
	if err != nil {
		s.markFarmerFailed(row.ID, err.Error())
		return nil, apperr.Wrap(apperr.SettlementFailure, err, "settlement transfer failed")
	}
	if !transfer.Success {
		s.markFarmerFailed(row.ID, transfer.Error)
		return nil, apperr.New(apperr.SettlementFailure, "settlement transfer failed: %s", transfer.Error)
	}

	// Settlement cannot be rolled back from here on: any ledger failure is
	// an inconsistency to reconcile, not a retryable error.
	now := time.Now()
	explorerURL := settlement.ExplorerURL(s.Network, transfer.TransactionID)
	err = s.DB.Model(&domain.FarmerWithdrawal{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"status":             domain.WithdrawalCompleted,
		"transaction_hash":   transfer.TransactionID,
		"block_explorer_url": explorerURL,
		"completed_at":       now,
	}).Error
	if err != nil {
		return nil, s.markFarmerInconsistent(row.ID, farmerAddress, transfer.TransactionID, err)
	}

	if err := s.Balances.Debit(ctx, farmerAddress, amount); err != nil {
		return nil, s.markFarmerInconsistent(row.ID, farmerAddress, transfer.TransactionID, err)
	}

	s.writeEvent(domain.EventWithdrawalCompleted, row.ID, map[string]interface{}{
		"farmer_address":   farmerAddress,
		"amount":           amount,
		"transaction_hash": transfer.TransactionID,
	})

	return &Result{
		WithdrawalID:    row.ID,
		TransactionHash: transfer.TransactionID,
		Amount:          amount,
	}, nil
}

// ProcessLiquidity runs a liquidity-provider withdrawal. Same state machine
// as the farmer path, no 30% cap; the settlement backend reports the USDC and
// reward amounts after the call.
func (s *Service) ProcessLiquidity(ctx context.Context, providerAddress, assetAddress string, lpTokenAmount int64) (*Result, error) {
	if lpTokenAmount <= 0 {
		return nil, apperr.New(apperr.InvalidInput, "LP token amount must be positive")
	}

	row := domain.LiquidityWithdrawal{
		ID:              "lw_" + uuid.NewString(),
		ProviderAddress: providerAddress,
		AssetAddress:    assetAddress,
		LPTokenAmount:   lpTokenAmount,
		Status:          domain.WithdrawalPending,
		RequestedAt:     time.Now(),
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	res, err := s.Settlement.WithdrawLiquidity(callCtx, assetAddress, lpTokenAmount)
	if err != nil {
		s.markLiquidityFailed(row.ID, err.Error())
		return nil, apperr.Wrap(apperr.SettlementFailure, err, "liquidity withdrawal failed")
	}
	if !res.Success {
		s.markLiquidityFailed(row.ID, res.Error)
		return nil, apperr.New(apperr.SettlementFailure, "liquidity withdrawal failed: %s", res.Error)
	}

	now := time.Now()
	explorerURL := settlement.ExplorerURL(s.Network, res.TransactionID)
	err = s.DB.Model(&domain.LiquidityWithdrawal{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"status":             domain.WithdrawalCompleted,
		"usdc_returned":      res.USDCReturned,
		"rewards_earned":     res.RewardsEarned,
		"transaction_hash":   res.TransactionID,
		"block_explorer_url": explorerURL,
		"completed_at":       now,
	}).Error
	if err != nil {
		log.Error().Err(err).Str("withdrawal_id", row.ID).Str("tx", res.TransactionID).
			Msg("liquidity settled but withdrawal row update failed")
		s.writeEvent(domain.EventWithdrawalInconsistent, row.ID, map[string]interface{}{
			"transaction_hash": res.TransactionID,
			"error":            err.Error(),
		})
		return nil, apperr.Wrap(apperr.Inconsistent, err, "liquidity settled but record update failed")
	}

	s.writeEvent(domain.EventWithdrawalCompleted, row.ID, map[string]interface{}{
		"provider_address": providerAddress,
		"lp_token_amount":  lpTokenAmount,
		"usdc_returned":    res.USDCReturned,
		"transaction_hash": res.TransactionID,
	})

	return &Result{
		WithdrawalID:    row.ID,
		TransactionHash: res.TransactionID,
		Amount:          res.USDCReturned,
		USDCReturned:    res.USDCReturned,
		RewardsEarned:   res.RewardsEarned,
	}, nil
}

// FarmerHistoryEntry is a withdrawal row with the amount converted for
// display.
type FarmerHistoryEntry struct {
	domain.FarmerWithdrawal
	AmountUSD float64 `json:"amount_usd"`
}

// FarmerHistory returns a farmer's withdrawals, most recent first.
func (s *Service) FarmerHistory(ctx context.Context, farmerAddress string, limit int) ([]FarmerHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []domain.FarmerWithdrawal
	err := s.DB.WithContext(ctx).
		Where("farmer_address = ?", farmerAddress).
		Order("requested_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]FarmerHistoryEntry, len(rows))
	for i, r := range rows {
		out[i] = FarmerHistoryEntry{FarmerWithdrawal: r, AmountUSD: float64(r.Amount) / 100}
	}
	return out, nil
}

// LiquidityHistoryEntry is a liquidity withdrawal row with display amounts.
type LiquidityHistoryEntry struct {
	domain.LiquidityWithdrawal
	LPTokenAmountUSD float64 `json:"lp_token_amount_usd"`
	USDCReturnedUSD  float64 `json:"usdc_returned_usd"`
	RewardsEarnedUSD float64 `json:"rewards_earned_usd"`
}

// LiquidityHistory returns a provider's withdrawals, most recent first.
func (s *Service) LiquidityHistory(ctx context.Context, providerAddress string, limit int) ([]LiquidityHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []domain.LiquidityWithdrawal
	err := s.DB.WithContext(ctx).
		Where("provider_address = ?", providerAddress).
		Order("requested_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]LiquidityHistoryEntry, len(rows))
	for i, r := range rows {
		out[i] = LiquidityHistoryEntry{
			LiquidityWithdrawal: r,
			LPTokenAmountUSD:    float64(r.LPTokenAmount) / 100,
			USDCReturnedUSD:     float64(r.USDCReturned) / 100,
			RewardsEarnedUSD:    float64(r.RewardsEarned) / 100,
		}
	}
	return out, nil
}

func (s *Service) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return 30 * time.Second
}

// markFarmerFailed resolves a pending row after a settlement failure. Best
// effort: a failure here is logged, not propagated, so the caller still sees
// the original settlement error.
func (s *Service) markFarmerFailed(id, message string) {
	err := s.DB.Model(&domain.FarmerWithdrawal{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        domain.WithdrawalFailed,
		"error_message": message,
	}).Error
	if err != nil {
		log.Error().Err(err).Str("withdrawal_id", id).Msg("failed to mark withdrawal as failed")
		return
	}
	s.writeEvent(domain.EventWithdrawalFailed, id, map[string]interface{}{"error": message})
}

func (s *Service) markLiquidityFailed(id, message string) {
	err := s.DB.Model(&domain.LiquidityWithdrawal{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        domain.WithdrawalFailed,
		"error_message": message,
	}).Error
	if err != nil {
		log.Error().Err(err).Str("withdrawal_id", id).Msg("failed to mark withdrawal as failed")
		return
	}
	s.writeEvent(domain.EventWithdrawalFailed, id, map[string]interface{}{"error": message})
}

// markFarmerInconsistent records that settlement succeeded but the ledger did
// not follow. The on-chain transfer cannot be rolled back, so this is logged
// loudly and left for manual reconciliation.
func (s *Service) markFarmerInconsistent(id, farmerAddress, txHash string, cause error) error {
	log.Error().Err(cause).
		Str("withdrawal_id", id).
		Str("farmer", farmerAddress).
		Str("tx", txHash).
		Msg("settlement succeeded but ledger update failed")

	err := s.DB.Model(&domain.FarmerWithdrawal{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":           domain.WithdrawalInconsistent,
		"transaction_hash": txHash,
		"error_message":    cause.Error(),
	}).Error
	if err != nil {
		log.Error().Err(err).Str("withdrawal_id", id).Msg("failed to mark withdrawal as inconsistent")
	}
	s.writeEvent(domain.EventWithdrawalInconsistent, id, map[string]interface{}{
		"farmer_address":   farmerAddress,
		"transaction_hash": txHash,
		"error":            cause.Error(),
	})
	return apperr.Wrap(apperr.Inconsistent, cause, "settlement succeeded but ledger update failed for withdrawal %s", id)
}

func (s *Service) writeEvent(eventType, subject string, payload map[string]interface{}) {
	b, _ := json.Marshal(payload)
	err := s.DB.Create(&domain.LedgerEvent{
		EventType: eventType,
		Subject:   subject,
		EventData: datatypes.JSON(b),
	}).Error
	if err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Str("subject", subject).Msg("audit event not written")
	}
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%.2f", float64(cents)/100)
}
