package domain

import "time"

// HarvestRecord is one reported yield-sale event for a grove. All currency
// columns are integer cents. FarmerShare + InvestorShare always equals
// TotalRevenue; RevenueDistributed flips false->true exactly once.
type HarvestRecord struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	GroveID            int64     `gorm:"column:grove_id;index;not null" json:"grove_id"`
	HarvestDate        time.Time `gorm:"column:harvest_date;index;not null" json:"harvest_date"`
	YieldKg            int64     `gorm:"column:yield_kg;not null" json:"yield_kg"`
	QualityGrade       int       `gorm:"column:quality_grade;not null" json:"quality_grade"`
	SalePricePerKg     int64     `gorm:"column:sale_price_per_kg;not null" json:"sale_price_per_kg"`
	TotalRevenue       int64     `gorm:"column:total_revenue;not null" json:"total_revenue"`
	FarmerShare        int64     `gorm:"column:farmer_share;not null" json:"farmer_share"`
	InvestorShare      int64     `gorm:"column:investor_share;not null" json:"investor_share"`
	RevenueDistributed bool      `gorm:"column:revenue_distributed;index;not null;default:false" json:"revenue_distributed"`
	TransactionHash    *string   `gorm:"column:transaction_hash" json:"transaction_hash"`
	CreatedAt          time.Time `json:"created_at"`
}

func (HarvestRecord) TableName() string {
	return "harvest_records"
}
