package models

import "time"

const (
	WebhookLogStatusReceived  = "received"
	WebhookLogStatusProcessed = "processed"
	WebhookLogStatusIgnored   = "ignored"
	WebhookLogStatusFailed    = "failed"
	WebhookLogStatusRejected  = "rejected"
)

// WebhookLog is a best-effort audit row for every inbound provider delivery,
// including the ones rejected by signature verification.
type WebhookLog struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Source    string    `gorm:"column:origem;type:varchar(20);not null;default:'stripe'" json:"source"`
	EventID   string    `gorm:"column:event_id;type:varchar(191);index" json:"event_id"`
	EventType string    `gorm:"column:event_type;type:varchar(100);index" json:"event_type"`
	Status    string    `gorm:"type:varchar(20);not null;index" json:"status"`
	Error     string    `gorm:"column:erro;type:text" json:"error,omitempty"`
	Payload   string    `gorm:"type:text" json:"payload"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (WebhookLog) TableName() string { return "webhook_logs" }
