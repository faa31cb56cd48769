// Package billingtest provides in-memory doubles for the billing package.
package billingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/comanda/app/models"
	"github.com/ManuelReschke/comanda/internal/pkg/billing"
)

// MemoryRepository is a billing.Repository kept in maps. Set Fail[method] to
// make that method return an error.
type MemoryRepository struct {
	mu sync.Mutex

	Plans         map[string]*models.Plan
	Companies     map[string]*models.Company
	Subscriptions map[string]*models.Subscription // keyed by company id
	Payments      []models.SubscriptionPayment
	Refunds       map[string]*models.Refund
	WebhookLogs   []models.WebhookLog
	EmailLogs     []models.EmailLog

	Fail   map[string]error
	Writes int
}

var _ billing.Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		Plans:         map[string]*models.Plan{},
		Companies:     map[string]*models.Company{},
		Subscriptions: map[string]*models.Subscription{},
		Refunds:       map[string]*models.Refund{},
		Fail:          map[string]error{},
	}
}

func (r *MemoryRepository) AddPlan(p models.Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Plans[p.ID] = &p
}

func (r *MemoryRepository) AddCompany(c models.Company) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Companies[c.ID] = &c
}

func (r *MemoryRepository) AddRefund(ref models.Refund) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Refunds[ref.ID] = &ref
}

// Plan returns a copy of the stored plan.
func (r *MemoryRepository) Plan(id string) models.Plan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.Plans[id]
}

// Company returns a copy of the stored company.
func (r *MemoryRepository) Company(id string) models.Company {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.Companies[id]
}

// Subscription returns a copy of the company's subscription row and whether
// it exists.
func (r *MemoryRepository) Subscription(companyID string) (models.Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.Subscriptions[companyID]
	if !ok {
		return models.Subscription{}, false
	}
	return *sub, true
}

func (r *MemoryRepository) Refund(id string) models.Refund {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.Refunds[id]
}

func (r *MemoryRepository) SeedSubscription(sub models.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	r.Subscriptions[sub.CompanyID] = &sub
}

func (r *MemoryRepository) fail(method string) error {
	return r.Fail[method]
}

func (r *MemoryRepository) findPlan(method string, match func(*models.Plan) bool) (*models.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(method); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(r.Plans))
	for id := range r.Plans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if p := r.Plans[id]; match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func eq(ref *string, v string) bool {
	return ref != nil && *ref == v
}

func (r *MemoryRepository) FindPlanByMonthlyPrice(_ context.Context, priceID string) (*models.Plan, error) {
	return r.findPlan("FindPlanByMonthlyPrice", func(p *models.Plan) bool { return eq(p.ProviderPriceIDMonthly, priceID) })
}

func (r *MemoryRepository) FindPlanByYearlyPrice(_ context.Context, priceID string) (*models.Plan, error) {
	return r.findPlan("FindPlanByYearlyPrice", func(p *models.Plan) bool { return eq(p.ProviderPriceIDYearly, priceID) })
}

func (r *MemoryRepository) FindPlanByProduct(_ context.Context, productID string) (*models.Plan, error) {
	return r.findPlan("FindPlanByProduct", func(p *models.Plan) bool { return eq(p.ProviderProductID, productID) })
}

func (r *MemoryRepository) GetPlan(_ context.Context, id string) (*models.Plan, error) {
	return r.findPlan("GetPlan", func(p *models.Plan) bool { return p.ID == id })
}

func (r *MemoryRepository) BackfillPlanRefs(_ context.Context, planID string, refs billing.PlanRefs) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("BackfillPlanRefs"); err != nil {
		return err
	}
	p, ok := r.Plans[planID]
	if !ok {
		return nil
	}
	r.Writes++
	if refs.PriceIDMonthly != "" {
		v := refs.PriceIDMonthly
		p.ProviderPriceIDMonthly = &v
	}
	if refs.PriceIDYearly != "" {
		v := refs.PriceIDYearly
		p.ProviderPriceIDYearly = &v
	}
	if refs.ProductID != "" {
		v := refs.ProductID
		p.ProviderProductID = &v
	}
	return nil
}

func (r *MemoryRepository) UpsertSubscription(_ context.Context, sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("UpsertSubscription"); err != nil {
		return err
	}
	r.Writes++
	now := time.Now()
	if existing, ok := r.Subscriptions[sub.CompanyID]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		if sub.ID == "" {
			sub.ID = uuid.NewString()
		}
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	cp := *sub
	r.Subscriptions[sub.CompanyID] = &cp
	return nil
}

func (r *MemoryRepository) GetSubscriptionByProviderID(_ context.Context, providerSubscriptionID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetSubscriptionByProviderID"); err != nil {
		return nil, err
	}
	for _, sub := range r.Subscriptions {
		if sub.ProviderSubscriptionID == providerSubscriptionID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryRepository) GetSubscriptionByCompany(_ context.Context, companyID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetSubscriptionByCompany"); err != nil {
		return nil, err
	}
	sub, ok := r.Subscriptions[companyID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *MemoryRepository) UpdateSubscriptionStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("UpdateSubscriptionStatus"); err != nil {
		return err
	}
	for _, sub := range r.Subscriptions {
		if sub.ID == id {
			r.Writes++
			sub.Status = status
			sub.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (r *MemoryRepository) ListSubscriptionsWithoutPlan(_ context.Context, limit int) ([]models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("ListSubscriptionsWithoutPlan"); err != nil {
		return nil, err
	}
	var out []models.Subscription
	for _, sub := range r.Subscriptions {
		if sub.PlanID == nil {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompanyID < out[j].CompanyID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) GetCompany(_ context.Context, id string) (*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetCompany"); err != nil {
		return nil, err
	}
	c, ok := r.Companies[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

// UpdateCompanyMirror behaves like an UPDATE: an unknown company changes
// nothing and is not an error.
func (r *MemoryRepository) UpdateCompanyMirror(_ context.Context, companyID string, mirror billing.CompanyMirror) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("UpdateCompanyMirror"); err != nil {
		return err
	}
	c, ok := r.Companies[companyID]
	if !ok {
		return nil
	}
	r.Writes++
	status := mirror.Status
	c.SubscriptionStatus = &status
	c.BlockedAt = mirror.BlockedAt
	c.BlockReason = mirror.BlockReason
	return nil
}

func (r *MemoryRepository) CreatePayment(_ context.Context, payment *models.SubscriptionPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("CreatePayment"); err != nil {
		return err
	}
	r.Writes++
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.CreatedAt = time.Now()
	r.Payments = append(r.Payments, *payment)
	return nil
}

func (r *MemoryRepository) FindRefundInProgress(_ context.Context, subscriptionID, orderID string) (*models.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("FindRefundInProgress"); err != nil {
		return nil, err
	}
	for _, ref := range r.Refunds {
		if !ref.InProgress() {
			continue
		}
		if subscriptionID != "" && eq(ref.SubscriptionID, subscriptionID) {
			cp := *ref
			return &cp, nil
		}
		if subscriptionID == "" && orderID != "" && eq(ref.OrderID, orderID) {
			cp := *ref
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryRepository) CompleteRefund(_ context.Context, refundID, chargeID, providerRefundID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("CompleteRefund"); err != nil {
		return err
	}
	ref, ok := r.Refunds[refundID]
	if !ok {
		return nil
	}
	r.Writes++
	ref.Status = models.RefundStatusCompleted
	ref.ProviderChargeID = &chargeID
	if providerRefundID != "" {
		ref.ProviderRefundID = &providerRefundID
	}
	ref.ProcessedAt = &at
	return nil
}

func (r *MemoryRepository) CreateWebhookLog(_ context.Context, entry *models.WebhookLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("CreateWebhookLog"); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now()
	r.WebhookLogs = append(r.WebhookLogs, *entry)
	return nil
}

func (r *MemoryRepository) ListWebhookLogs(_ context.Context, status string, limit int) ([]models.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("ListWebhookLogs"); err != nil {
		return nil, err
	}
	var out []models.WebhookLog
	for i := len(r.WebhookLogs) - 1; i >= 0 && len(out) < limit; i-- {
		if status == "" || r.WebhookLogs[i].Status == status {
			out = append(out, r.WebhookLogs[i])
		}
	}
	return out, nil
}

func (r *MemoryRepository) CreateEmailLog(_ context.Context, entry *models.EmailLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("CreateEmailLog"); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now()
	r.EmailLogs = append(r.EmailLogs, *entry)
	return nil
}

// FakeProvider serves canned provider objects and counts calls.
type FakeProvider struct {
	mu sync.Mutex

	Subscriptions map[string]billing.Subscription
	Prices        map[string]billing.Price
	Emails        map[string]string
	Err           error

	Calls map[string]int
}

var _ billing.Provider = (*FakeProvider)(nil)

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Subscriptions: map[string]billing.Subscription{},
		Prices:        map[string]billing.Price{},
		Emails:        map[string]string{},
		Calls:         map[string]int{},
	}
}

// TotalCalls returns the number of provider calls made so far.
func (p *FakeProvider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Calls {
		n += c
	}
	return n
}

func (p *FakeProvider) GetSubscription(_ context.Context, id string) (*billing.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls["GetSubscription"]++
	if p.Err != nil {
		return nil, p.Err
	}
	sub, ok := p.Subscriptions[id]
	if !ok {
		return nil, billing.ErrResourceMissing
	}
	return &sub, nil
}

func (p *FakeProvider) GetPrice(_ context.Context, id string) (*billing.Price, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls["GetPrice"]++
	if p.Err != nil {
		return nil, p.Err
	}
	price, ok := p.Prices[id]
	if !ok {
		return nil, billing.ErrResourceMissing
	}
	return &price, nil
}

func (p *FakeProvider) GetCustomerEmail(_ context.Context, id string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls["GetCustomerEmail"]++
	if p.Err != nil {
		return "", p.Err
	}
	email, ok := p.Emails[id]
	if !ok {
		return "", billing.ErrResourceMissing
	}
	return email, nil
}

// RecordingMailer stores every welcome message instead of sending it.
type RecordingMailer struct {
	mu      sync.Mutex
	Enabled bool
	Err     error
	Sent    []billing.WelcomeMessage
}

var _ billing.Mailer = (*RecordingMailer)(nil)

func (m *RecordingMailer) Configured() bool { return m.Enabled }

func (m *RecordingMailer) SendWelcome(_ context.Context, msg billing.WelcomeMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}
