package domain

import "time"

// RevenueDistribution is one (harvest, holder) payout row. The full set for a
// harvest is inserted in a single transaction and never re-created.
type RevenueDistribution struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	HarvestID        int64     `gorm:"column:harvest_id;index;not null" json:"harvest_id"`
	HolderAddress    string    `gorm:"column:holder_address;index;not null" json:"holder_address"`
	TokenAmount      int64     `gorm:"column:token_amount;not null" json:"token_amount"`
	RevenueShare     int64     `gorm:"column:revenue_share;not null" json:"revenue_share"`
	DistributionDate time.Time `gorm:"column:distribution_date;not null" json:"distribution_date"`
	TransactionHash  *string   `gorm:"column:transaction_hash" json:"transaction_hash"`
}

func (RevenueDistribution) TableName() string {
	return "revenue_distributions"
}
