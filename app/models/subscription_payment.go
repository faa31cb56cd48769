package models

import "time"

const (
	PaymentStatusPaid   = "paid"
	PaymentStatusFailed = "failed"
)

// SubscriptionPayment is an append-only ledger row, one per paid or failed
// invoice.
type SubscriptionPayment struct {
	ID                string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	SubscriptionID    string    `gorm:"column:assinatura_id;type:varchar(36);not null;index" json:"subscription_id"`
	CompanyID         string    `gorm:"column:empresa_id;type:varchar(36);index" json:"company_id"`
	ProviderInvoiceID string    `gorm:"column:stripe_invoice_id;type:varchar(191);index" json:"provider_invoice_id"`
	Amount            float64   `gorm:"column:valor;not null;default:0" json:"amount"`
	Currency          string    `gorm:"column:moeda;type:varchar(8)" json:"currency"`
	Status            string    `gorm:"type:varchar(20);not null" json:"status"`
	Metadata          JSONMap   `gorm:"column:metadata" json:"metadata"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SubscriptionPayment) TableName() string { return "pagamentos_assinatura" }
