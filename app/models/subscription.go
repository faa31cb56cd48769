package models

import "time"

const (
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusUnpaid   = "unpaid"
	SubscriptionStatusPaused   = "paused"
)

// Subscription mirrors the provider subscription of a company. There is at
// most one row per company; writers upsert on empresa_id.
type Subscription struct {
	ID                     string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	CompanyID              string     `gorm:"column:empresa_id;type:varchar(36);not null;uniqueIndex:ux_assinaturas_empresa" json:"company_id"`
	PlanID                 *string    `gorm:"column:plano_id;type:varchar(36);index" json:"plan_id"`
	ProviderSubscriptionID string     `gorm:"column:stripe_subscription_id;type:varchar(191);index" json:"provider_subscription_id"`
	ProviderCustomerID     string     `gorm:"column:stripe_customer_id;type:varchar(191)" json:"provider_customer_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	CurrentPeriodStart     *time.Time `gorm:"column:current_period_start;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"column:current_period_end;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool       `gorm:"column:cancel_at_period_end;default:false" json:"cancel_at_period_end"`
	CanceledAt             *time.Time `gorm:"column:canceled_at;default:null" json:"canceled_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Subscription) TableName() string { return "assinaturas" }

// IsBlockingStatus reports whether a subscription status revokes access to
// the company's workspace.
func IsBlockingStatus(status string) bool {
	switch status {
	case SubscriptionStatusCanceled, SubscriptionStatusUnpaid, SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}
