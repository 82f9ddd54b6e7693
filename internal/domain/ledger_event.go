package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Ledger event types.
const (
	EventDistributionRecorded   = "DISTRIBUTION_RECORDED"
	EventBalanceCredited        = "BALANCE_CREDITED"
	EventWithdrawalCompleted    = "WITHDRAWAL_COMPLETED"
	EventWithdrawalFailed       = "WITHDRAWAL_FAILED"
	EventWithdrawalInconsistent = "WITHDRAWAL_INCONSISTENT"
)

// LedgerEvent is an append-only audit row written alongside ledger mutations.
// Subject is the harvest id, withdrawal id or farmer address the event is
// about; EventData carries the operation-specific payload as JSON.
type LedgerEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	EventType string         `gorm:"column:event_type;type:varchar(40);index;not null" json:"event_type"`
	Subject   string         `gorm:"column:subject;index;not null" json:"subject"`
	EventData datatypes.JSON `gorm:"column:event_data;type:json" json:"event_data"`
	CreatedAt time.Time      `json:"created_at"`
}

func (LedgerEvent) TableName() string {
	return "ledger_events"
}

func (e *LedgerEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
