package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/comanda/app/models"
	"github.com/ManuelReschke/comanda/internal/pkg/billing"
	"github.com/ManuelReschke/comanda/internal/pkg/billing/billingtest"
)

type stubProcessor struct {
	err       error
	payload   []byte
	signature string
}

func (p *stubProcessor) HandleWebhook(_ context.Context, payload []byte, signature string) (billing.Result, error) {
	p.payload, p.signature = payload, signature
	return billing.Result{}, p.err
}

func postWebhook(t *testing.T, handler fiber.Handler, body, signature string) (int, map[string]any) {
	t.Helper()
	app := fiber.New()
	app.Post("/api/webhooks/stripe", handler)

	req := httptest.NewRequest(fiber.MethodPost, "/api/webhooks/stripe", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(billing.SignatureHeader, signature)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func TestHandleStripeWebhookStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "processed", status: fiber.StatusOK},
		{name: "bad signature", err: errors.Wrap(billing.ErrInvalidSignature, "no match"), status: fiber.StatusBadRequest, code: "invalid_signature"},
		{name: "malformed", err: errors.Wrap(billing.ErrMalformedEvent, "missing id"), status: fiber.StatusBadRequest, code: "invalid_payload"},
		{name: "storage failure", err: errors.New("connection refused"), status: fiber.StatusInternalServerError, code: "processing_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &stubProcessor{err: tt.err}
			status, body := postWebhook(t, NewBillingController(proc).HandleStripeWebhook, `{"id":"evt_1"}`, "t=1,v1=ab")

			assert.Equal(t, tt.status, status)
			assert.Equal(t, `{"id":"evt_1"}`, string(proc.payload))
			assert.Equal(t, "t=1,v1=ab", proc.signature)
			if tt.code == "" {
				assert.Equal(t, true, body["received"])
				return
			}
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestHandleStripeWebhookEndToEnd(t *testing.T) {
	logger, _ := test.NewNullLogger()
	repo := billingtest.NewMemoryRepository()
	repo.AddCompany(models.Company{ID: "E1", Name: "Cantina da Nona"})
	repo.SeedSubscription(models.Subscription{CompanyID: "E1", ProviderSubscriptionID: "sub_1", Status: "active"})
	svc := billing.NewService(billing.Options{
		Repository: repo,
		Provider:   billingtest.NewFakeProvider(),
		Verifier:   billing.NewVerifier([]string{"whsec_test"}),
		Logger:     logrus.NewEntry(logger),
	})
	handler := NewBillingController(svc).HandleStripeWebhook

	payload := `{"id":"evt_1","type":"customer.subscription.updated","data":{"object":{"id":"sub_1","customer":"cus_1","status":"past_due","metadata":{"empresa_id":"E1"}}}}`
	signature := "t=1700000000,v1=" + billing.ComputeSignature("whsec_test", "1700000000", []byte(payload))

	status, body := postWebhook(t, handler, payload, signature)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])
	sub, ok := repo.Subscription("E1")
	require.True(t, ok)
	assert.Equal(t, "past_due", sub.Status)

	status, body = postWebhook(t, handler, payload, "t=1700000000,v1=00")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_signature", body["error"])

	status, _ = postWebhook(t, handler, payload, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}
