package models

import "time"

// Company is a tenant (restaurant). The subscription fields are a
// denormalized mirror of assinaturas used by access checks elsewhere.
type Company struct {
	ID                 string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name               string     `gorm:"column:nome;type:varchar(200)" json:"name"`
	SubscriptionStatus *string    `gorm:"column:status_assinatura;type:varchar(32)" json:"subscription_status"`
	BlockedAt          *time.Time `gorm:"column:bloqueado_em;default:null" json:"blocked_at"`
	BlockReason        *string    `gorm:"column:motivo_bloqueio;type:varchar(200)" json:"block_reason"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Company) TableName() string { return "empresas" }
