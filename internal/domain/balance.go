package domain

import "time"

// FarmerBalance is the per-farmer running ledger, keyed by address. All
// amounts are integer cents. AvailableBalance never goes negative; the debit
// path enforces this with a conditional update.
type FarmerBalance struct {
	FarmerAddress    string     `gorm:"column:farmer_address;primaryKey" json:"farmer_address"`
	AvailableBalance int64      `gorm:"column:available_balance;not null;default:0" json:"available_balance"`
	PendingBalance   int64      `gorm:"column:pending_balance;not null;default:0" json:"pending_balance"`
	TotalEarned      int64      `gorm:"column:total_earned;not null;default:0" json:"total_earned"`
	TotalWithdrawn   int64      `gorm:"column:total_withdrawn;not null;default:0" json:"total_withdrawn"`
	LastWithdrawalAt *time.Time `gorm:"column:last_withdrawal_at" json:"last_withdrawal_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (FarmerBalance) TableName() string {
	return "farmer_balances"
}
