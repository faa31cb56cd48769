package models

import "time"

const (
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
	EmailLogStatusSkipped = "skipped"
)

type EmailLog struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CompanyID string    `gorm:"column:empresa_id;type:varchar(36);index" json:"company_id"`
	Recipient string    `gorm:"column:destinatario;type:varchar(200);not null" json:"recipient"`
	Subject   string    `gorm:"column:assunto;type:varchar(200)" json:"subject"`
	Kind      string    `gorm:"column:tipo;type:varchar(50);index" json:"kind"`
	Status    string    `gorm:"type:varchar(20);not null" json:"status"`
	Error     string    `gorm:"column:erro;type:text" json:"error,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (EmailLog) TableName() string { return "email_logs" }
