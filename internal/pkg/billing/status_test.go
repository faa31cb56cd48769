package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/comanda/app/models"
)

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		known bool
	}{
		{in: "trialing", want: "trialing", known: true},
		{in: "active", want: "active", known: true},
		{in: "past_due", want: "past_due", known: true},
		{in: "canceled", want: "canceled", known: true},
		{in: "unpaid", want: "unpaid", known: true},
		{in: "incomplete", want: "past_due", known: true},
		{in: "incomplete_expired", want: "canceled", known: true},
		{in: "paused", want: "paused", known: true},
		{in: " ACTIVE ", want: "active", known: true},
		{in: "something_new", want: "active", known: false},
		{in: "", want: "active", known: false},
	}

	for _, tt := range tests {
		got, known := MapProviderStatus(tt.in)
		assert.Equal(t, tt.want, got, "status %q", tt.in)
		assert.Equal(t, tt.known, known, "status %q", tt.in)
	}
}

func TestBlockReason(t *testing.T) {
	for _, status := range []string{"canceled", "unpaid", "past_due"} {
		reason := BlockReason(status)
		if assert.NotNil(t, reason, status) {
			assert.NotEmpty(t, *reason)
		}
		assert.True(t, models.IsBlockingStatus(status))
	}
	for _, status := range []string{"active", "trialing", "paused"} {
		assert.Nil(t, BlockReason(status), status)
		assert.False(t, models.IsBlockingStatus(status))
	}
}

func TestNormalizeInterval(t *testing.T) {
	assert.Equal(t, "year", normalizeInterval("year"))
	assert.Equal(t, "year", normalizeInterval(" YEAR"))
	assert.Equal(t, "month", normalizeInterval("month"))
	assert.Equal(t, "month", normalizeInterval("week"))
	assert.Equal(t, "month", normalizeInterval(""))
}
