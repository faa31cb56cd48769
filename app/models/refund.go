package models

import "time"

const (
	RefundStatusPending    = "pendente"
	RefundStatusProcessing = "processando"
	RefundStatusCompleted  = "concluido"
)

// Refund is created by the ordering/cashier flows; the billing webhook only
// completes it once the provider confirms the refunded charge.
type Refund struct {
	ID               string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	SubscriptionID   *string    `gorm:"column:assinatura_id;type:varchar(36);index" json:"subscription_id"`
	OrderID          *string    `gorm:"column:pedido_id;type:varchar(36);index" json:"order_id"`
	CompanyID        string     `gorm:"column:empresa_id;type:varchar(36);index" json:"company_id"`
	Amount           float64    `gorm:"column:valor;default:0" json:"amount"`
	Status           string     `gorm:"type:varchar(20);not null;index" json:"status"`
	ProviderChargeID *string    `gorm:"column:stripe_charge_id;type:varchar(191)" json:"provider_charge_id"`
	ProviderRefundID *string    `gorm:"column:stripe_refund_id;type:varchar(191)" json:"provider_refund_id"`
	ProcessedAt      *time.Time `gorm:"column:processado_em;default:null" json:"processed_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Refund) TableName() string { return "reembolsos" }

// InProgress reports whether the refund still waits for provider confirmation.
func (r *Refund) InProgress() bool {
	return r.Status == RefundStatusPending || r.Status == RefundStatusProcessing
}
