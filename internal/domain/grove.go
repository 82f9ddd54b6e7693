package domain

import "time"

// CoffeeGrove is a tokenized plot of coffee trees. Rows are owned by the
// grove registration/tokenization flow; this service reads them for harvest
// validation and distribution joins.
type CoffeeGrove struct {
	ID                   int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	GroveName            string    `gorm:"column:grove_name;uniqueIndex;not null" json:"grove_name"`
	FarmerAddress        string    `gorm:"column:farmer_address;index;not null" json:"farmer_address"`
	TokenAddress         *string   `gorm:"column:token_address" json:"token_address"`
	Location             string    `gorm:"column:location" json:"location"`
	TreeCount            int       `gorm:"column:tree_count;not null" json:"tree_count"`
	CoffeeVariety        string    `gorm:"column:coffee_variety" json:"coffee_variety"`
	ExpectedYieldPerTree int64     `gorm:"column:expected_yield_per_tree" json:"expected_yield_per_tree"`
	TotalTokensIssued    int64     `gorm:"column:total_tokens_issued" json:"total_tokens_issued"`
	VerificationStatus   string    `gorm:"column:verification_status;type:varchar(20);default:'pending'" json:"verification_status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (CoffeeGrove) TableName() string {
	return "coffee_groves"
}
