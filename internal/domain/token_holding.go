package domain

import "time"

// TokenHolding is a holder's current stake in a grove token. Rows are created
// and updated by the purchase/transfer flow; the distribution engine only
// reads active holdings.
type TokenHolding struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	HolderAddress string    `gorm:"column:holder_address;index;not null" json:"holder_address"`
	GroveID       int64     `gorm:"column:grove_id;index;not null" json:"grove_id"`
	TokenAmount   int64     `gorm:"column:token_amount;not null" json:"token_amount"`
	PurchasePrice int64     `gorm:"column:purchase_price;not null" json:"purchase_price"`
	PurchaseDate  time.Time `gorm:"column:purchase_date;not null" json:"purchase_date"`
	IsActive      bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
}

func (TokenHolding) TableName() string {
	return "token_holdings"
}
