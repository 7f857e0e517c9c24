package phonepe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"phonepe-service/internal/models"
)

// ComputeWebhookSignature derives the X-VERIFY value for a raw webhook body:
// SHA256(base64(body) + "/pg/v1/webhook/" + saltKey + "#" + saltIndex), hex
// encoded.
func ComputeWebhookSignature(rawBody []byte, saltKey string, saltIndex int) string {
	payload := base64.StdEncoding.EncodeToString(rawBody) +
		fmt.Sprintf("/pg/v1/webhook/%s#%d", saltKey, saltIndex)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// VerifyWebhookSignature checks a supplied X-VERIFY header against the raw
// body using a constant-time comparison.
func VerifyWebhookSignature(rawBody []byte, xVerify, saltKey string, saltIndex int) error {
	expected := ComputeWebhookSignature(rawBody, saltKey, saltIndex)
	if !hmac.Equal([]byte(xVerify), []byte(expected)) {
		return &models.SignatureError{Reason: "X-VERIFY signature mismatch"}
	}
	return nil
}
