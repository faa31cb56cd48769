package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/comanda/app/models"
)

// PlanRefs are the provider references written back onto a plan. Empty
// fields are left untouched.
type PlanRefs struct {
	PriceIDMonthly string
	PriceIDYearly  string
	ProductID      string
}

// PlanStore is the plan lookup surface used by the resolver. Lookups return
// gorm.ErrRecordNotFound on a miss.
type PlanStore interface {
	FindPlanByMonthlyPrice(ctx context.Context, priceID string) (*models.Plan, error)
	FindPlanByYearlyPrice(ctx context.Context, priceID string) (*models.Plan, error)
	FindPlanByProduct(ctx context.Context, productID string) (*models.Plan, error)
	GetPlan(ctx context.Context, id string) (*models.Plan, error)
	BackfillPlanRefs(ctx context.Context, planID string, refs PlanRefs) error
}

// CompanyMirror is the denormalized subscription state kept on a company.
type CompanyMirror struct {
	Status      string
	BlockedAt   *time.Time
	BlockReason *string
}

// Repository provides DB operations used by the billing service.
type Repository interface {
	PlanStore

	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
	GetSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error)
	GetSubscriptionByCompany(ctx context.Context, companyID string) (*models.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, id, status string) error
	ListSubscriptionsWithoutPlan(ctx context.Context, limit int) ([]models.Subscription, error)

	GetCompany(ctx context.Context, id string) (*models.Company, error)
	UpdateCompanyMirror(ctx context.Context, companyID string, mirror CompanyMirror) error

	CreatePayment(ctx context.Context, payment *models.SubscriptionPayment) error
	FindRefundInProgress(ctx context.Context, subscriptionID, orderID string) (*models.Refund, error)
	CompleteRefund(ctx context.Context, refundID, chargeID, providerRefundID string, at time.Time) error

	CreateWebhookLog(ctx context.Context, entry *models.WebhookLog) error
	ListWebhookLogs(ctx context.Context, status string, limit int) ([]models.WebhookLog, error)
	CreateEmailLog(ctx context.Context, entry *models.EmailLog) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) findPlan(ctx context.Context, column, value string) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).Where(column+" = ?", value).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) FindPlanByMonthlyPrice(ctx context.Context, priceID string) (*models.Plan, error) {
	return r.findPlan(ctx, "stripe_price_id_mensal", priceID)
}

func (r *gormRepository) FindPlanByYearlyPrice(ctx context.Context, priceID string) (*models.Plan, error) {
	return r.findPlan(ctx, "stripe_price_id_anual", priceID)
}

func (r *gormRepository) FindPlanByProduct(ctx context.Context, productID string) (*models.Plan, error) {
	return r.findPlan(ctx, "stripe_product_id", productID)
}

func (r *gormRepository) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	return r.findPlan(ctx, "id", id)
}

func (r *gormRepository) BackfillPlanRefs(ctx context.Context, planID string, refs PlanRefs) error {
	updates := map[string]interface{}{}
	if refs.PriceIDMonthly != "" {
		updates["stripe_price_id_mensal"] = refs.PriceIDMonthly
	}
	if refs.PriceIDYearly != "" {
		updates["stripe_price_id_anual"] = refs.PriceIDYearly
	}
	if refs.ProductID != "" {
		updates["stripe_product_id"] = refs.ProductID
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Plan{}).Where("id = ?", planID).Updates(updates).Error
}

func (r *gormRepository) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "empresa_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plano_id",
			"stripe_subscription_id",
			"stripe_customer_id",
			"status",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"canceled_at",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// On conflict the stored row keeps its own id, so the generated one must
	// not reach the WHERE clause of the re-read.
	var stored models.Subscription
	if err := db.Where("empresa_id = ?", sub.CompanyID).First(&stored).Error; err != nil {
		return err
	}
	*sub = stored
	return nil
}

func (r *gormRepository) GetSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("stripe_subscription_id = ?", providerSubscriptionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscriptionByCompany(ctx context.Context, companyID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("empresa_id = ?", companyID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpdateSubscriptionStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).Model(&models.Subscription{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

func (r *gormRepository) ListSubscriptionsWithoutPlan(ctx context.Context, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).Where("plano_id IS NULL").Order("updated_at DESC").Limit(limit).Find(&subs).Error
	return subs, err
}

func (r *gormRepository) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	var company models.Company
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *gormRepository) UpdateCompanyMirror(ctx context.Context, companyID string, mirror CompanyMirror) error {
	updates := map[string]interface{}{
		"status_assinatura": mirror.Status,
		"bloqueado_em":      mirror.BlockedAt,
		"motivo_bloqueio":   mirror.BlockReason,
	}
	return r.db.WithContext(ctx).Model(&models.Company{}).Where("id = ?", companyID).Updates(updates).Error
}

func (r *gormRepository) CreatePayment(ctx context.Context, payment *models.SubscriptionPayment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormRepository) FindRefundInProgress(ctx context.Context, subscriptionID, orderID string) (*models.Refund, error) {
	q := r.db.WithContext(ctx).Where("status IN ?", []string{models.RefundStatusPending, models.RefundStatusProcessing})
	switch {
	case subscriptionID != "":
		q = q.Where("assinatura_id = ?", subscriptionID)
	case orderID != "":
		q = q.Where("pedido_id = ?", orderID)
	default:
		return nil, gorm.ErrRecordNotFound
	}

	var refund models.Refund
	if err := q.Order("created_at DESC").First(&refund).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *gormRepository) CompleteRefund(ctx context.Context, refundID, chargeID, providerRefundID string, at time.Time) error {
	updates := map[string]interface{}{
		"status":           models.RefundStatusCompleted,
		"stripe_charge_id": chargeID,
		"processado_em":    at,
	}
	if providerRefundID != "" {
		updates["stripe_refund_id"] = providerRefundID
	}
	return r.db.WithContext(ctx).Model(&models.Refund{}).Where("id = ?", refundID).Updates(updates).Error
}

func (r *gormRepository) CreateWebhookLog(ctx context.Context, entry *models.WebhookLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gormRepository) ListWebhookLogs(ctx context.Context, status string, limit int) ([]models.WebhookLog, error) {
	q := r.db.WithContext(ctx).Model(&models.WebhookLog{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var logs []models.WebhookLog
	err := q.Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

func (r *gormRepository) CreateEmailLog(ctx context.Context, entry *models.EmailLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}
