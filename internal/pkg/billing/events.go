package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v82"
)

// Kind is the provider-independent name of a webhook event.
type Kind string

const (
	KindCheckoutCompleted    Kind = "checkout_completed"
	KindSubscriptionCreated  Kind = "subscription_created"
	KindSubscriptionUpdated  Kind = "subscription_updated"
	KindSubscriptionCanceled Kind = "subscription_canceled"
	KindInvoicePaid          Kind = "invoice_paid"
	KindInvoicePaymentFailed Kind = "invoice_payment_failed"
	KindChargeRefunded       Kind = "charge_refunded"
	KindUnrecognized         Kind = "unrecognized"
)

var providerKinds = map[string]Kind{
	"checkout.session.completed":    KindCheckoutCompleted,
	"customer.subscription.created": KindSubscriptionCreated,
	"customer.subscription.updated": KindSubscriptionUpdated,
	"customer.subscription.deleted": KindSubscriptionCanceled,
	"invoice.paid":                  KindInvoicePaid,
	"invoice.payment_succeeded":     KindInvoicePaid,
	"invoice.payment_failed":        KindInvoicePaymentFailed,
	"charge.refunded":               KindChargeRefunded,
}

// KindOf maps a provider event type to its Kind.
func KindOf(eventType string) Kind {
	if k, ok := providerKinds[eventType]; ok {
		return k
	}
	return KindUnrecognized
}

// EventMeta is the envelope data shared by every event.
type EventMeta struct {
	ID      string
	Type    string
	Kind    Kind
	Created *time.Time
}

func (m EventMeta) Meta() EventMeta { return m }

// Event is one of CheckoutCompleted, SubscriptionChanged, InvoiceSettled,
// ChargeRefunded or Unrecognized.
type Event interface {
	Meta() EventMeta
}

type CheckoutCompleted struct {
	EventMeta
	Session CheckoutSession
}

// SubscriptionChanged covers the created, updated and canceled kinds.
type SubscriptionChanged struct {
	EventMeta
	Subscription Subscription
}

// InvoiceSettled covers the paid and payment failed kinds.
type InvoiceSettled struct {
	EventMeta
	Invoice Invoice
}

type ChargeRefunded struct {
	EventMeta
	Charge Charge
}

type Unrecognized struct {
	EventMeta
}

type CheckoutSession struct {
	ID             string `validate:"required"`
	SubscriptionID string
	CustomerID     string
	CustomerEmail  string
	Metadata       map[string]string
}

// CompanyID returns the tenant id carried in the session metadata.
func (s CheckoutSession) CompanyID() string {
	return metadataValue(s.Metadata, "empresa_id", "company_id")
}

// PlanID returns the plan chosen at checkout, if any.
func (s CheckoutSession) PlanID() string {
	return metadataValue(s.Metadata, "plano_id", "plan_id")
}

// Subscription is the subset of a provider subscription the reconciler reads.
// Price and product come from the first line item.
type Subscription struct {
	ID                 string `validate:"required"`
	CustomerID         string
	Status             string
	PriceID            string
	ProductID          string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	Metadata           map[string]string
}

func (s Subscription) CompanyID() string {
	return metadataValue(s.Metadata, "empresa_id", "company_id")
}

func (s Subscription) PlanID() string {
	return metadataValue(s.Metadata, "plano_id", "plan_id")
}

type Invoice struct {
	ID               string `validate:"required"`
	SubscriptionID   string
	CustomerID       string
	AmountPaid       int64
	AmountDue        int64
	Currency         string
	HostedInvoiceURL string
	InvoicePDF       string
	BillingReason    string
}

type Charge struct {
	ID             string `validate:"required"`
	Amount         int64
	AmountRefunded int64
	LatestRefundID string
	Metadata       map[string]string
}

// SubscriptionRef returns the local subscription id a refund correlates to.
func (c Charge) SubscriptionRef() string {
	return metadataValue(c.Metadata, "assinatura_id", "subscription_id")
}

// OrderRef returns the delivery order id a refund correlates to.
func (c Charge) OrderRef() string {
	return metadataValue(c.Metadata, "pedido_id", "order_id")
}

var validate = validator.New()

// ParseEvent decodes a verified payload into a typed event. Unknown event
// types decode to Unrecognized; broken envelopes or objects return
// ErrMalformedEvent.
func ParseEvent(payload []byte) (Event, error) {
	var envelope stripe.Event
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, errors.Wrap(ErrMalformedEvent, err.Error())
	}
	if strings.TrimSpace(envelope.ID) == "" || strings.TrimSpace(string(envelope.Type)) == "" {
		return nil, errors.Wrap(ErrMalformedEvent, "event id and type are required")
	}

	meta := EventMeta{
		ID:      envelope.ID,
		Type:    string(envelope.Type),
		Kind:    KindOf(string(envelope.Type)),
		Created: epochSeconds(envelope.Created),
	}
	if meta.Kind == KindUnrecognized {
		return Unrecognized{EventMeta: meta}, nil
	}
	if envelope.Data == nil || len(envelope.Data.Raw) == 0 {
		return nil, errors.Wrapf(ErrMalformedEvent, "event %s has no data object", meta.ID)
	}
	raw := envelope.Data.Raw

	var event Event
	var object any
	switch meta.Kind {
	case KindCheckoutCompleted:
		var w wireCheckoutSession
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, malformedObject(meta, err)
		}
		e := CheckoutCompleted{EventMeta: meta, Session: w.narrow()}
		event, object = e, e.Session
	case KindSubscriptionCreated, KindSubscriptionUpdated, KindSubscriptionCanceled:
		var w wireSubscription
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, malformedObject(meta, err)
		}
		e := SubscriptionChanged{EventMeta: meta, Subscription: w.narrow()}
		event, object = e, e.Subscription
	case KindInvoicePaid, KindInvoicePaymentFailed:
		var w wireInvoice
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, malformedObject(meta, err)
		}
		e := InvoiceSettled{EventMeta: meta, Invoice: w.narrow()}
		event, object = e, e.Invoice
	case KindChargeRefunded:
		var w wireCharge
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, malformedObject(meta, err)
		}
		e := ChargeRefunded{EventMeta: meta, Charge: w.narrow()}
		event, object = e, e.Charge
	}

	if err := validate.Struct(object); err != nil {
		return nil, malformedObject(meta, err)
	}
	return event, nil
}

func malformedObject(meta EventMeta, err error) error {
	return errors.Wrapf(ErrMalformedEvent, "%s %s: %v", meta.Type, meta.ID, err)
}

func metadataValue(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

func epochSeconds(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// epoch decodes a unix timestamp that may be a number, a numeric string or
// null. Anything unusable decodes to nil.
type epoch struct {
	t *time.Time
}

func (e *epoch) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 {
		e.t = nil
		return nil
	}
	e.t = epochSeconds(int64(f))
	return nil
}

// expandable decodes a reference that is either an id string or an
// expanded object carrying an id.
type expandable string

func (x *expandable) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*x = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*x = expandable(s)
	case b[0] == '{':
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*x = expandable(obj.ID)
	default:
		return fmt.Errorf("unexpected reference %s", b)
	}
	return nil
}

// metadata accepts non-string scalar values and stores them as strings.
type metadata map[string]string

func (m *metadata) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(metadata, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	*m = out
	return nil
}

type wireCheckoutSession struct {
	ID              string     `json:"id"`
	Subscription    expandable `json:"subscription"`
	Customer        expandable `json:"customer"`
	CustomerEmail   string     `json:"customer_email"`
	CustomerDetails *struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata metadata `json:"metadata"`
}

func (w wireCheckoutSession) narrow() CheckoutSession {
	email := strings.TrimSpace(w.CustomerEmail)
	if w.CustomerDetails != nil && strings.TrimSpace(w.CustomerDetails.Email) != "" {
		email = strings.TrimSpace(w.CustomerDetails.Email)
	}
	return CheckoutSession{
		ID:             w.ID,
		SubscriptionID: string(w.Subscription),
		CustomerID:     string(w.Customer),
		CustomerEmail:  email,
		Metadata:       w.Metadata,
	}
}

type wirePrice struct {
	ID      string     `json:"id"`
	Product expandable `json:"product"`
}

func (p *wirePrice) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		p.Product = ""
		return json.Unmarshal(b, &p.ID)
	}
	type plain wirePrice
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = wirePrice(v)
	return nil
}

type wireSubscription struct {
	ID                 string     `json:"id"`
	Customer           expandable `json:"customer"`
	Status             string     `json:"status"`
	CurrentPeriodStart epoch      `json:"current_period_start"`
	CurrentPeriodEnd   epoch      `json:"current_period_end"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CanceledAt         epoch      `json:"canceled_at"`
	Metadata           metadata   `json:"metadata"`
	Items              struct {
		Data []struct {
			Price              *wirePrice `json:"price"`
			Plan               *wirePrice `json:"plan"`
			CurrentPeriodStart epoch      `json:"current_period_start"`
			CurrentPeriodEnd   epoch      `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

func (w wireSubscription) narrow() Subscription {
	sub := Subscription{
		ID:                 w.ID,
		CustomerID:         string(w.Customer),
		Status:             w.Status,
		CurrentPeriodStart: w.CurrentPeriodStart.t,
		CurrentPeriodEnd:   w.CurrentPeriodEnd.t,
		CancelAtPeriodEnd:  w.CancelAtPeriodEnd,
		CanceledAt:         w.CanceledAt.t,
		Metadata:           w.Metadata,
	}
	if len(w.Items.Data) > 0 {
		item := w.Items.Data[0]
		price := item.Price
		if price == nil {
			price = item.Plan
		}
		if price != nil {
			sub.PriceID = price.ID
			sub.ProductID = string(price.Product)
		}
		// Newer API versions only carry the period on the item.
		if sub.CurrentPeriodStart == nil {
			sub.CurrentPeriodStart = item.CurrentPeriodStart.t
		}
		if sub.CurrentPeriodEnd == nil {
			sub.CurrentPeriodEnd = item.CurrentPeriodEnd.t
		}
	}
	return sub
}

type wireInvoice struct {
	ID           string     `json:"id"`
	Subscription expandable `json:"subscription"`
	Customer     expandable `json:"customer"`
	AmountPaid   int64      `json:"amount_paid"`
	AmountDue    int64      `json:"amount_due"`
	Currency     string     `json:"currency"`
	HostedURL    string     `json:"hosted_invoice_url"`
	PDF          string     `json:"invoice_pdf"`
	Reason       string     `json:"billing_reason"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription expandable `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (w wireInvoice) narrow() Invoice {
	subID := string(w.Subscription)
	if subID == "" && w.Parent != nil && w.Parent.SubscriptionDetails != nil {
		subID = string(w.Parent.SubscriptionDetails.Subscription)
	}
	return Invoice{
		ID:               w.ID,
		SubscriptionID:   subID,
		CustomerID:       string(w.Customer),
		AmountPaid:       w.AmountPaid,
		AmountDue:        w.AmountDue,
		Currency:         strings.ToLower(w.Currency),
		HostedInvoiceURL: w.HostedURL,
		InvoicePDF:       w.PDF,
		BillingReason:    w.Reason,
	}
}

type wireCharge struct {
	ID             string   `json:"id"`
	Amount         int64    `json:"amount"`
	AmountRefunded int64    `json:"amount_refunded"`
	Metadata       metadata `json:"metadata"`
	Refunds        *struct {
		Data []struct {
			ID      string `json:"id"`
			Created int64  `json:"created"`
		} `json:"data"`
	} `json:"refunds"`
}

func (w wireCharge) narrow() Charge {
	c := Charge{
		ID:             w.ID,
		Amount:         w.Amount,
		AmountRefunded: w.AmountRefunded,
		Metadata:       w.Metadata,
	}
	if w.Refunds != nil && len(w.Refunds.Data) > 0 {
		refunds := w.Refunds.Data
		sort.SliceStable(refunds, func(i, j int) bool { return refunds[i].Created > refunds[j].Created })
		c.LatestRefundID = refunds[0].ID
	}
	return c
}
