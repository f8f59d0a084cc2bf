package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyAcceptsBareHexSignature(t *testing.T) {
	body := []byte(`{"type":"payment.completed","data":{"paymentId":"pay_1"}}`)
	v := NewVerifier(testSecret)

	event, err := v.Verify(body, map[string]string{
		"tl-signature": sign(testSecret, body),
	})
	require.NoError(t, err)
	assert.Equal(t, "payment.completed", event.Type)
	assert.Equal(t, "pay_1", event.Data["paymentId"])
	assert.JSONEq(t, string(body), string(event.Raw))
}

func TestVerifyAcceptsStructuredSignature(t *testing.T) {
	body := []byte(`{"type":"session.created","data":{}}`)
	v := NewVerifier(testSecret)

	headers := map[string]string{
		"TL-Signature": fmt.Sprintf("t=1712345678,s=%s", sign(testSecret, body)),
	}
	event, err := v.Verify(body, headers)
	require.NoError(t, err)
	assert.Equal(t, "session.created", event.Type)
}

func TestVerifyHeaderVariants(t *testing.T) {
	body := []byte(`{"type":"ping","data":{}}`)
	v := NewVerifier(testSecret)
	signature := sign(testSecret, body)

	for _, name := range []string{
		"TL-Signature",
		"tl-signature",
		"X-TL-Signature",
		"x-tl-signature",
		"X-Webhook-Signature",
		"x-webhook-signature",
		"Signature",
		"SIGNATURE",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(body, map[string]string{name: signature})
			assert.NoError(t, err)
		})
	}
}

func TestVerifyFirstMatchingHeaderWins(t *testing.T) {
	body := []byte(`{"type":"ping","data":{}}`)
	v := NewVerifier(testSecret)
	signature := sign(testSecret, body)

	// A valid signature in a later header does not rescue garbage in an
	// earlier one.
	_, err := v.Verify(body, map[string]string{
		"tl-signature": "deadbeef",
		"signature":    signature,
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// The reverse order verifies fine.
	_, err = v.Verify(body, map[string]string{
		"x-webhook-signature": signature,
		"signature":           "deadbeef",
	})
	assert.NoError(t, err)
}

func TestVerifyMissingSignature(t *testing.T) {
	v := NewVerifier(testSecret)

	_, err := v.Verify([]byte(`{"type":"ping"}`), map[string]string{
		"Content-Type": "application/json",
	})
	assert.ErrorIs(t, err, ErrMissingSignature)

	// An empty value counts as absent, not as a failed comparison.
	_, err = v.Verify([]byte(`{"type":"ping"}`), map[string]string{
		"tl-signature": "",
	})
	assert.ErrorIs(t, err, ErrMissingSignature)
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"type":"payment.completed","data":{"amount":3000}}`)
	v := NewVerifier(testSecret)
	signature := sign(testSecret, body)

	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] ^= 0x01

	_, err := v.Verify(tampered, map[string]string{"tl-signature": signature})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	body := []byte(`{"type":"ping","data":{}}`)
	v := NewVerifier(testSecret)

	signature := []byte(sign(testSecret, body))
	if signature[0] == 'a' {
		signature[0] = 'b'
	} else {
		signature[0] = 'a'
	}

	_, err := v.Verify(body, map[string]string{"tl-signature": string(signature)})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"type":"ping","data":{}}`)
	v := NewVerifier(testSecret)

	_, err := v.Verify(body, map[string]string{
		"tl-signature": sign("whsec_other", body),
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsMalformedSignatureValues(t *testing.T) {
	body := []byte(`{"type":"ping","data":{}}`)
	v := NewVerifier(testSecret)

	for _, value := range []string{
		"not hex at all",
		"t=1712345678,v1=" + sign(testSecret, body), // no s= component
		"t=1712345678",
		"zzzz",
	} {
		t.Run(value, func(t *testing.T) {
			_, err := v.Verify(body, map[string]string{"tl-signature": value})
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestVerifyMalformedPayloadAfterValidSignature(t *testing.T) {
	body := []byte(`{"type": "broken"`)
	v := NewVerifier(testSecret)

	_, err := v.Verify(body, map[string]string{"tl-signature": sign(testSecret, body)})
	require.Error(t, err)

	var payloadErr *PayloadError
	require.ErrorAs(t, err, &payloadErr)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignatureDirect(t *testing.T) {
	body := []byte(`{"type":"ping"}`)
	v := NewVerifier(testSecret)

	assert.NoError(t, v.VerifySignature(body, sign(testSecret, body)))
	assert.ErrorIs(t, v.VerifySignature(body, "deadbeef"), ErrInvalidSignature)
}

func TestSignatureRoundTrip(t *testing.T) {
	body := []byte(`{"type":"subscription.created","data":{"subscriptionId":"sub_9"}}`)
	v := NewVerifier(testSecret)

	event, err := v.Verify(body, map[string]string{"tl-signature": v.Signature(body)})
	require.NoError(t, err)
	assert.Equal(t, "subscription.created", event.Type)
}
