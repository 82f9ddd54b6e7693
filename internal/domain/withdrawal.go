package domain

import "time"

// Withdrawal statuses. Pending rows exist only while a settlement call is in
// flight; Completed, Failed and Inconsistent are terminal. Inconsistent means
// the settlement succeeded but the ledger debit did not, and the row needs
// manual reconciliation.
const (
	WithdrawalPending      = "pending"
	WithdrawalCompleted    = "completed"
	WithdrawalFailed       = "failed"
	WithdrawalInconsistent = "inconsistent"
)

// FarmerWithdrawal is a requested transfer of farmer-share revenue out of the
// balance ledger. Amount is integer cents.
type FarmerWithdrawal struct {
	ID               string     `gorm:"column:id;primaryKey" json:"id"`
	FarmerAddress    string     `gorm:"column:farmer_address;index;not null" json:"farmer_address"`
	GroveID          *int64     `gorm:"column:grove_id" json:"grove_id"`
	Amount           int64      `gorm:"column:amount;not null" json:"amount"`
	Status           string     `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status"`
	TransactionHash  *string    `gorm:"column:transaction_hash" json:"transaction_hash"`
	BlockExplorerURL *string    `gorm:"column:block_explorer_url" json:"block_explorer_url"`
	ErrorMessage     *string    `gorm:"column:error_message" json:"error_message"`
	RequestedAt      time.Time  `gorm:"column:requested_at;index;not null" json:"requested_at"`
	CompletedAt      *time.Time `gorm:"column:completed_at" json:"completed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (FarmerWithdrawal) TableName() string {
	return "farmer_withdrawals"
}

// LiquidityWithdrawal is a liquidity-provider exit from a lending reserve.
// USDCReturned and RewardsEarned are reported by the settlement backend after
// the call completes.
type LiquidityWithdrawal struct {
	ID               string     `gorm:"column:id;primaryKey" json:"id"`
	ProviderAddress  string     `gorm:"column:provider_address;index;not null" json:"provider_address"`
	AssetAddress     string     `gorm:"column:asset_address;not null" json:"asset_address"`
	LPTokenAmount    int64      `gorm:"column:lp_token_amount;not null" json:"lp_token_amount"`
	USDCReturned     int64      `gorm:"column:usdc_returned;not null;default:0" json:"usdc_returned"`
	RewardsEarned    int64      `gorm:"column:rewards_earned;not null;default:0" json:"rewards_earned"`
	Status           string     `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status"`
	TransactionHash  *string    `gorm:"column:transaction_hash" json:"transaction_hash"`
	BlockExplorerURL *string    `gorm:"column:block_explorer_url" json:"block_explorer_url"`
	ErrorMessage     *string    `gorm:"column:error_message" json:"error_message"`
	RequestedAt      time.Time  `gorm:"column:requested_at;index;not null" json:"requested_at"`
	CompletedAt      *time.Time `gorm:"column:completed_at" json:"completed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (LiquidityWithdrawal) TableName() string {
	return "liquidity_withdrawals"
}
