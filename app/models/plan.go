package models

import "time"

// Plan is a billing tier. The Stripe references are optional and get
// backfilled by the plan resolver when a price is first seen.
type Plan struct {
	ID                     string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name                   string    `gorm:"column:nome;type:varchar(120);not null" json:"name"`
	ProviderPriceIDMonthly *string   `gorm:"column:stripe_price_id_mensal;type:varchar(191);index" json:"provider_price_id_monthly"`
	ProviderPriceIDYearly  *string   `gorm:"column:stripe_price_id_anual;type:varchar(191);index" json:"provider_price_id_yearly"`
	ProviderProductID      *string   `gorm:"column:stripe_product_id;type:varchar(191);index" json:"provider_product_id"`
	MonthlyPrice           float64   `gorm:"column:preco_mensal;default:0" json:"monthly_price"`
	YearlyPrice            float64   `gorm:"column:preco_anual;default:0" json:"yearly_price"`
	Active                 bool      `gorm:"column:ativo;default:true" json:"active"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Plan) TableName() string { return "planos" }
