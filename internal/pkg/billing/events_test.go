package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventCheckoutCompleted(t *testing.T) {
	payload := []byte(`{
		"id": "evt_checkout",
		"object": "event",
		"type": "checkout.session.completed",
		"created": 1700000000,
		"data": {"object": {
			"id": "cs_1",
			"object": "checkout.session",
			"subscription": "sub_1",
			"customer": {"id": "cus_1", "object": "customer"},
			"customer_email": "fallback@example.com",
			"customer_details": {"email": "owner@example.com"},
			"metadata": {"empresa_id": "E1", "plano_id": "P1"}
		}}
	}`)

	event, err := ParseEvent(payload)
	require.NoError(t, err)

	checkout, ok := event.(CheckoutCompleted)
	require.True(t, ok, "got %T", event)
	assert.Equal(t, KindCheckoutCompleted, checkout.Meta().Kind)
	assert.Equal(t, "evt_checkout", checkout.Meta().ID)
	require.NotNil(t, checkout.Meta().Created)
	assert.Equal(t, int64(1700000000), checkout.Meta().Created.Unix())
	assert.Equal(t, "sub_1", checkout.Session.SubscriptionID)
	assert.Equal(t, "cus_1", checkout.Session.CustomerID)
	assert.Equal(t, "owner@example.com", checkout.Session.CustomerEmail)
	assert.Equal(t, "E1", checkout.Session.CompanyID())
	assert.Equal(t, "P1", checkout.Session.PlanID())
}

func TestParseEventMetadataAliases(t *testing.T) {
	payload := []byte(`{"id":"evt_a","type":"checkout.session.completed","data":{"object":{
		"id":"cs_2","metadata":{"company_id":"E2","plan_id":"P2"}}}}`)

	event, err := ParseEvent(payload)
	require.NoError(t, err)
	session := event.(CheckoutCompleted).Session
	assert.Equal(t, "E2", session.CompanyID())
	assert.Equal(t, "P2", session.PlanID())
}

func TestParseEventSubscriptionPeriods(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantStart *int64
		wantEnd   *int64
	}{
		{
			name: "top level periods",
			payload: `{"id":"evt_1","type":"customer.subscription.updated","data":{"object":{
				"id":"sub_1","status":"active","current_period_start":1893000000,"current_period_end":1893456000,
				"items":{"data":[{"price":{"id":"price_1","product":"prod_1"}}]}}}}`,
			wantStart: ptr(int64(1893000000)),
			wantEnd:   ptr(int64(1893456000)),
		},
		{
			name: "item level periods",
			payload: `{"id":"evt_2","type":"customer.subscription.created","data":{"object":{
				"id":"sub_1","status":"active",
				"items":{"data":[{"price":{"id":"price_1","product":{"id":"prod_1"}},"current_period_start":"1893000000","current_period_end":1893456000}]}}}}`,
			wantStart: ptr(int64(1893000000)),
			wantEnd:   ptr(int64(1893456000)),
		},
		{
			name: "missing zero and garbage",
			payload: `{"id":"evt_3","type":"customer.subscription.updated","data":{"object":{
				"id":"sub_1","status":"active","current_period_start":0,"current_period_end":"soon","canceled_at":null}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := ParseEvent([]byte(tt.payload))
			require.NoError(t, err)
			sub := event.(SubscriptionChanged).Subscription

			if tt.wantStart == nil {
				assert.Nil(t, sub.CurrentPeriodStart)
			} else if assert.NotNil(t, sub.CurrentPeriodStart) {
				assert.Equal(t, *tt.wantStart, sub.CurrentPeriodStart.Unix())
			}
			if tt.wantEnd == nil {
				assert.Nil(t, sub.CurrentPeriodEnd)
			} else if assert.NotNil(t, sub.CurrentPeriodEnd) {
				assert.Equal(t, *tt.wantEnd, sub.CurrentPeriodEnd.Unix())
			}
			assert.Nil(t, sub.CanceledAt)
		})
	}
}

func TestParseEventSubscriptionFirstItem(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.deleted","data":{"object":{
		"id":"sub_9","customer":"cus_9","status":"canceled","canceled_at":1893456000,"cancel_at_period_end":true,
		"metadata":{"empresa_id":"E9","plano_id":"P9"},
		"items":{"data":[{"price":{"id":"price_a","product":"prod_a"}},{"price":{"id":"price_b","product":"prod_b"}}]}}}}`)

	event, err := ParseEvent(payload)
	require.NoError(t, err)
	changed := event.(SubscriptionChanged)
	sub := changed.Subscription

	assert.Equal(t, KindSubscriptionCanceled, changed.Kind)
	assert.Equal(t, "price_a", sub.PriceID)
	assert.Equal(t, "prod_a", sub.ProductID)
	assert.Equal(t, "cus_9", sub.CustomerID)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, "E9", sub.CompanyID())
	assert.Equal(t, "P9", sub.PlanID())
	require.NotNil(t, sub.CanceledAt)
	assert.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), *sub.CanceledAt)
}

func TestParseEventInvoice(t *testing.T) {
	payload := []byte(`{"id":"evt_inv","type":"invoice.payment_succeeded","data":{"object":{
		"id":"in_1","amount_paid":4990,"amount_due":4990,"currency":"BRL",
		"hosted_invoice_url":"https://pay.example/in_1","invoice_pdf":"https://pay.example/in_1.pdf",
		"billing_reason":"subscription_cycle",
		"parent":{"subscription_details":{"subscription":"sub_1"}}}}}`)

	event, err := ParseEvent(payload)
	require.NoError(t, err)
	settled := event.(InvoiceSettled)

	assert.Equal(t, KindInvoicePaid, settled.Kind)
	assert.Equal(t, "sub_1", settled.Invoice.SubscriptionID)
	assert.Equal(t, int64(4990), settled.Invoice.AmountPaid)
	assert.Equal(t, "brl", settled.Invoice.Currency)
	assert.Equal(t, "subscription_cycle", settled.Invoice.BillingReason)
}

func TestParseEventChargeRefunded(t *testing.T) {
	payload := []byte(`{"id":"evt_ch","type":"charge.refunded","data":{"object":{
		"id":"ch_1","amount":1000,"amount_refunded":1000,
		"metadata":{"pedido_id":"O1","tentativa":3},
		"refunds":{"data":[{"id":"re_old","created":100},{"id":"re_new","created":200}]}}}}`)

	event, err := ParseEvent(payload)
	require.NoError(t, err)
	charge := event.(ChargeRefunded).Charge

	assert.Equal(t, "re_new", charge.LatestRefundID)
	assert.Equal(t, "", charge.SubscriptionRef())
	assert.Equal(t, "O1", charge.OrderRef())
	assert.Equal(t, "3", charge.Metadata["tentativa"])
}

func TestParseEventUnrecognized(t *testing.T) {
	event, err := ParseEvent([]byte(`{"id":"evt_x","type":"customer.created","data":{"object":{"id":"cus_1"}}}`))
	require.NoError(t, err)

	_, ok := event.(Unrecognized)
	assert.True(t, ok)
	assert.Equal(t, KindUnrecognized, event.Meta().Kind)
	assert.Equal(t, "customer.created", event.Meta().Type)
}

func TestParseEventMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `not json`},
		{name: "missing type", payload: `{"id":"evt_1","data":{"object":{}}}`},
		{name: "missing id", payload: `{"type":"invoice.paid","data":{"object":{"id":"in_1"}}}`},
		{name: "missing data", payload: `{"id":"evt_1","type":"invoice.paid"}`},
		{name: "object without id", payload: `{"id":"evt_1","type":"invoice.paid","data":{"object":{"amount_paid":1}}}`},
		{name: "wrong field type", payload: `{"id":"evt_1","type":"charge.refunded","data":{"object":{"id":"ch_1","amount":"lots"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tt.payload))
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInvoicePaid, KindOf("invoice.paid"))
	assert.Equal(t, KindInvoicePaid, KindOf("invoice.payment_succeeded"))
	assert.Equal(t, KindInvoicePaymentFailed, KindOf("invoice.payment_failed"))
	assert.Equal(t, KindSubscriptionCanceled, KindOf("customer.subscription.deleted"))
	assert.Equal(t, KindUnrecognized, KindOf("payout.paid"))
}

func ptr[T any](v T) *T { return &v }
