package settlement

import (
	"context"
	"fmt"
)

// Result is the outcome of a farmer-share transfer. Success false carries the
// backend's error text; TransactionID is set only on success.
type Result struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error"`
}

// LiquidityResult is the outcome of a liquidity withdrawal. Amounts are
// integer cents as reported by the reserve.
type LiquidityResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	USDCReturned  int64  `json:"usdc_returned"`
	RewardsEarned int64  `json:"rewards_earned"`
	Error         string `json:"error"`
}

// Backend executes external transfers. Calls are fallible, slow and outside
// the ledger store's transaction boundary; callers must bound them with a
// context deadline and treat the result as non-rollbackable.
type Backend interface {
	Transfer(ctx context.Context, amountCents int64, destination string) (*Result, error)
	WithdrawLiquidity(ctx context.Context, assetAddress string, lpTokenAmount int64) (*LiquidityResult, error)
}

// ExplorerURL builds the block explorer link for a settled transaction.
func ExplorerURL(network, transactionID string) string {
	if network != "mainnet" {
		network = "testnet"
	}
	return fmt.Sprintf("https://hashscan.io/%s/transaction/%s", network, transactionID)
}
