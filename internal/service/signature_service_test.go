package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()

	payload := `{"type":"MatchProposed","recipient_ref":"chat-1"}`
	sig := svc.Sign("secret-key", payload)
	require.NotEmpty(t, sig)

	assert.True(t, svc.Verify("secret-key", payload, sig))
}

func TestHMACSignatureService_VerifyRejectsWrongKey(t *testing.T) {
	svc := NewHMACSignatureService()

	payload := "payload"
	sig := svc.Sign("key-a", payload)

	assert.False(t, svc.Verify("key-b", payload, sig))
}

func TestHMACSignatureService_VerifyRejectsTamperedPayload(t *testing.T) {
	svc := NewHMACSignatureService()

	sig := svc.Sign("key", "original")

	assert.False(t, svc.Verify("key", "tampered", sig))
}

func TestHMACSignatureService_Deterministic(t *testing.T) {
	svc := NewHMACSignatureService()

	assert.Equal(t, svc.Sign("key", "payload"), svc.Sign("key", "payload"))
}
