package billing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedHeader(secret, ts string, payload []byte) string {
	return fmt.Sprintf("t=%s,v1=%s", ts, ComputeSignature(secret, ts, payload))
}

func TestVerifyValidSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	v := NewVerifier([]string{"whsec_current"})

	require.NoError(t, v.Verify(payload, signedHeader("whsec_current", "1700000000", payload)))
}

func TestVerifyAcceptsAnyRotatedSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_2"}`)
	v := NewVerifier([]string{"whsec_old", "whsec_new"})

	assert.NoError(t, v.Verify(payload, signedHeader("whsec_old", "1700000001", payload)))
	assert.NoError(t, v.Verify(payload, signedHeader("whsec_new", "1700000001", payload)))
}

func TestVerifyAcceptsAnyOfSeveralSignatures(t *testing.T) {
	payload := []byte(`{"id":"evt_3"}`)
	v := NewVerifier([]string{"whsec_new"})
	header := fmt.Sprintf("t=1700000002,v1=%s,v1=%s",
		ComputeSignature("whsec_old", "1700000002", payload),
		ComputeSignature("whsec_new", "1700000002", payload))

	assert.NoError(t, v.Verify(payload, header))
}

func TestVerifyRejectsAlteredPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_4","amount":100}`)
	v := NewVerifier([]string{"whsec_current"})
	header := signedHeader("whsec_current", "1700000003", payload)

	for i := range payload {
		altered := append([]byte(nil), payload...)
		altered[i] ^= 0x01
		err := v.Verify(altered, header)
		require.Error(t, err, "byte %d altered", i)
		assert.True(t, errors.Is(err, ErrInvalidSignature))
	}
}

func TestVerifyRejectsAlteredTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_5"}`)
	v := NewVerifier([]string{"whsec_current"})
	sig := ComputeSignature("whsec_current", "1700000004", payload)

	assert.ErrorIs(t, v.Verify(payload, "t=1700000005,v1="+sig), ErrInvalidSignature)
}

func TestVerifyFailsClosed(t *testing.T) {
	payload := []byte(`{"id":"evt_6"}`)
	v := NewVerifier([]string{"whsec_current"})
	sig := ComputeSignature("whsec_current", "1700000006", payload)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "missing timestamp", header: "v1=" + sig},
		{name: "missing v1", header: "t=1700000006,v0=" + sig},
		{name: "not hex", header: "t=1700000006,v1=zz-not-hex"},
		{name: "garbage", header: "nonsense"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, v.Verify(payload, tt.header), ErrInvalidSignature)
		})
	}
}

func TestVerifyUnverifiedModeAcceptsAnything(t *testing.T) {
	v := NewVerifier([]string{"", "  "})

	assert.True(t, v.Unverified())
	assert.NoError(t, v.Verify([]byte("anything"), ""))
	assert.NoError(t, v.Verify([]byte("anything"), "t=1,v1=deadbeef"))
}

func TestParseSignatureHeader(t *testing.T) {
	ts, sigs := ParseSignatureHeader(" t=123 , v1=aa,v0=bb, v1=cc,broken")

	assert.Equal(t, "123", ts)
	assert.Equal(t, []string{"aa", "cc"}, sigs)
}
