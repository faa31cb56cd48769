package billing

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ManuelReschke/comanda/app/models"
	"github.com/ManuelReschke/comanda/internal/pkg/effects"
)

const webhookSource = "stripe"

// Counter tracks webhook outcomes per event type.
type Counter interface {
	Incr(ctx context.Context, eventType, outcome string) error
	Snapshot(ctx context.Context) (map[string]int64, error)
	Drain(ctx context.Context) (map[string]int64, error)
}

// Archive keeps a copy of every accepted raw payload.
type Archive interface {
	Store(ctx context.Context, eventID string, payload []byte, receivedAt time.Time) error
}

// Options wires a Service. Mailer, Counter and Archive are optional.
type Options struct {
	Repository  Repository
	Provider    Provider
	Verifier    *Verifier
	Mailer      Mailer
	Counter     Counter
	Archive     Archive
	FrontendURL string
	Logger      *logrus.Entry
	Now         func() time.Time
}

// Service reconciles provider webhook deliveries with local subscription
// and company state.
type Service struct {
	repo        Repository
	provider    Provider
	verifier    *Verifier
	resolver    *PlanResolver
	mailer      Mailer
	counter     Counter
	archive     Archive
	effects     *effects.Runner
	frontendURL string
	log         *logrus.Entry
	now         func() time.Time
}

func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "billing")

	verifier := opts.Verifier
	if verifier == nil {
		verifier = NewVerifier(nil)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		repo:        opts.Repository,
		provider:    opts.Provider,
		verifier:    verifier,
		resolver:    NewPlanResolver(opts.Repository, opts.Provider, log),
		mailer:      opts.Mailer,
		counter:     opts.Counter,
		archive:     opts.Archive,
		effects:     effects.NewRunner(log),
		frontendURL: opts.FrontendURL,
		log:         log,
		now:         now,
	}
}

// NewServiceFromDB creates a billing service backed by a GORM handle.
func NewServiceFromDB(db *gorm.DB, opts Options) *Service {
	opts.Repository = NewRepository(db)
	return NewService(opts)
}

const (
	OutcomeProcessed = models.WebhookLogStatusProcessed
	OutcomeIgnored   = models.WebhookLogStatusIgnored
)

// Result describes how a delivery was handled.
type Result struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Kind      Kind   `json:"kind"`
	Outcome   string `json:"outcome"`
	Detail    string `json:"detail,omitempty"`
}

// HandleWebhook authenticates, decodes and applies one webhook delivery.
// ErrInvalidSignature and ErrMalformedEvent mark client errors; any other
// error means the delivery should be retried by the provider.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (Result, error) {
	if err := s.verifier.Verify(payload, signature); err != nil {
		s.log.WithError(err).Warn("rejected webhook delivery")
		s.recordWebhook(ctx, EventMeta{}, models.WebhookLogStatusRejected, err.Error(), payload)
		s.count(ctx, "unknown", models.WebhookLogStatusRejected)
		return Result{}, err
	}
	if s.verifier.Unverified() {
		s.log.Warn("webhook signature verification disabled, processing unverified payload")
	}

	event, err := ParseEvent(payload)
	if err != nil {
		s.log.WithError(err).Warn("malformed webhook payload")
		s.recordWebhook(ctx, EventMeta{}, models.WebhookLogStatusFailed, err.Error(), payload)
		s.count(ctx, "unknown", models.WebhookLogStatusFailed)
		return Result{}, err
	}

	meta := event.Meta()
	log := s.log.WithFields(logrus.Fields{"event_id": meta.ID, "event_type": meta.Type})
	s.archivePayload(ctx, meta, payload)

	result, err := s.dispatch(ctx, event)
	if err != nil {
		log.WithError(err).Error("webhook processing failed")
		s.recordWebhook(ctx, meta, models.WebhookLogStatusFailed, err.Error(), payload)
		s.count(ctx, meta.Type, models.WebhookLogStatusFailed)
		return result, err
	}

	log.WithFields(logrus.Fields{"outcome": result.Outcome, "detail": result.Detail}).Info("webhook handled")
	s.recordWebhook(ctx, meta, result.Outcome, result.Detail, payload)
	s.count(ctx, meta.Type, result.Outcome)
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, event Event) (Result, error) {
	switch e := event.(type) {
	case CheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, e)
	case SubscriptionChanged:
		return s.handleSubscriptionChanged(ctx, e)
	case InvoiceSettled:
		return s.handleInvoiceSettled(ctx, e)
	case ChargeRefunded:
		return s.handleChargeRefunded(ctx, e)
	default:
		s.log.WithField("event_type", event.Meta().Type).Info("ignoring unhandled webhook event type")
		return ignored(event.Meta(), "unhandled event type"), nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, e CheckoutCompleted) (Result, error) {
	session := e.Session
	companyID := session.CompanyID()
	if companyID == "" {
		s.log.WithField("session_id", session.ID).Info("checkout session without empresa_id, skipping")
		return ignored(e.EventMeta, "checkout session without empresa_id"), nil
	}

	if session.SubscriptionID == "" {
		s.log.WithField("session_id", session.ID).Info("checkout session without subscription, skipping")
		return ignored(e.EventMeta, "checkout session without subscription"), nil
	}

	sub, err := s.provider.GetSubscription(ctx, session.SubscriptionID)
	if err != nil {
		return Result{}, errors.Wrap(err, "fetch checkout subscription")
	}
	if session.CustomerID != "" {
		sub.CustomerID = session.CustomerID
	}

	plan, err := s.resolver.Resolve(ctx, *sub, session.PlanID())
	if err != nil {
		return Result{}, errors.Wrap(err, "resolve plan")
	}
	if _, err := s.writeState(ctx, companyID, plan, *sub, ""); err != nil {
		return Result{}, err
	}

	s.effects.Run(ctx, "welcome_email", func(ctx context.Context) error {
		return s.sendWelcome(ctx, companyID, session)
	})
	return processed(e.EventMeta), nil
}

func (s *Service) handleSubscriptionChanged(ctx context.Context, e SubscriptionChanged) (Result, error) {
	sub := e.Subscription

	companyID := sub.CompanyID()
	if companyID == "" {
		existing, err := s.repo.GetSubscriptionByProviderID(ctx, sub.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.WithField("subscription_id", sub.ID).Info("subscription without known company, skipping")
			return ignored(e.EventMeta, "subscription without known company"), nil
		}
		if err != nil {
			return Result{}, errors.Wrap(err, "lookup subscription")
		}
		companyID = existing.CompanyID
	}

	statusOverride := ""
	if e.Kind == KindSubscriptionCanceled {
		statusOverride = models.SubscriptionStatusCanceled
		if sub.CanceledAt == nil {
			now := s.now().UTC()
			sub.CanceledAt = &now
		}
	}

	plan, err := s.resolver.Resolve(ctx, sub, "")
	if err != nil {
		return Result{}, errors.Wrap(err, "resolve plan")
	}
	if _, err := s.writeState(ctx, companyID, plan, sub, statusOverride); err != nil {
		return Result{}, err
	}
	return processed(e.EventMeta), nil
}

func (s *Service) handleInvoiceSettled(ctx context.Context, e InvoiceSettled) (Result, error) {
	inv := e.Invoice
	if inv.SubscriptionID == "" {
		return ignored(e.EventMeta, "invoice without subscription"), nil
	}

	local, err := s.repo.GetSubscriptionByProviderID(ctx, inv.SubscriptionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.WithField("subscription_id", inv.SubscriptionID).Info("invoice for unknown subscription, skipping")
		return ignored(e.EventMeta, "invoice for unknown subscription"), nil
	}
	if err != nil {
		return Result{}, errors.Wrap(err, "lookup subscription")
	}

	status, paymentStatus, cents := models.SubscriptionStatusActive, models.PaymentStatusPaid, inv.AmountPaid
	if e.Kind == KindInvoicePaymentFailed {
		status, paymentStatus, cents = models.SubscriptionStatusPastDue, models.PaymentStatusFailed, inv.AmountDue
	}

	if err := s.repo.UpdateSubscriptionStatus(ctx, local.ID, status); err != nil {
		return Result{}, errors.Wrap(err, "update subscription status")
	}
	if err := s.updateCompanyMirror(ctx, local.CompanyID, status); err != nil {
		return Result{}, err
	}

	meta := models.JSONMap{"event_id": e.ID}
	for k, v := range map[string]string{
		"hosted_invoice_url": inv.HostedInvoiceURL,
		"invoice_pdf":        inv.InvoicePDF,
		"billing_reason":     inv.BillingReason,
	} {
		if v != "" {
			meta[k] = v
		}
	}
	payment := &models.SubscriptionPayment{
		SubscriptionID:    local.ID,
		CompanyID:         local.CompanyID,
		ProviderInvoiceID: inv.ID,
		Amount:            float64(cents) / 100,
		Currency:          inv.Currency,
		Status:            paymentStatus,
		Metadata:          meta,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return Result{}, errors.Wrap(err, "create payment")
	}
	return processed(e.EventMeta), nil
}

func (s *Service) handleChargeRefunded(ctx context.Context, e ChargeRefunded) (Result, error) {
	charge := e.Charge
	subRef, orderRef := charge.SubscriptionRef(), charge.OrderRef()
	if subRef == "" && orderRef == "" {
		s.log.WithField("charge_id", charge.ID).Info("refunded charge without correlation id, skipping")
		return ignored(e.EventMeta, "charge without correlation id"), nil
	}

	var refund *models.Refund
	err := gorm.ErrRecordNotFound
	if subRef != "" {
		refund, err = s.repo.FindRefundInProgress(ctx, subRef, "")
	}
	if errors.Is(err, gorm.ErrRecordNotFound) && orderRef != "" {
		refund, err = s.repo.FindRefundInProgress(ctx, "", orderRef)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.WithFields(logrus.Fields{
			"charge_id":       charge.ID,
			"subscription_id": subRef,
			"order_id":        orderRef,
		}).Info("no refund in progress for charge, skipping")
		return ignored(e.EventMeta, "no refund in progress"), nil
	}
	if err != nil {
		return Result{}, errors.Wrap(err, "lookup refund")
	}

	if err := s.repo.CompleteRefund(ctx, refund.ID, charge.ID, charge.LatestRefundID, s.now().UTC()); err != nil {
		return Result{}, errors.Wrap(err, "complete refund")
	}
	return processed(e.EventMeta), nil
}

func processed(meta EventMeta) Result {
	return Result{EventID: meta.ID, EventType: meta.Type, Kind: meta.Kind, Outcome: OutcomeProcessed}
}

func ignored(meta EventMeta, detail string) Result {
	return Result{EventID: meta.ID, EventType: meta.Type, Kind: meta.Kind, Outcome: OutcomeIgnored, Detail: detail}
}
