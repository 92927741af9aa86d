package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/trendmart/payments/internal/payment/domain"
)

// reviewCodes are the gateway result codes that mean neither success nor
// decline: the attempt is held for manual review. The exact set follows the
// gateway's response contract.
var reviewCodes = map[string]bool{
	"FRAUD_HOLD":    true,
	"MANUAL_REVIEW": true,
}

// declineReasons maps common decline codes to customer-safe wording. Unknown
// codes fall back to a generic decline; the raw code is kept on the attempt
// for diagnostics only.
var declineReasons = map[string]string{
	"51": "insufficient funds",
	"54": "card expired",
	"57": "card not permitted for this transaction",
}

// TranslateOutcome is the single point where raw gateway status strings and
// result codes become the closed outcome union.
func TranslateOutcome(status, resultCode string) domain.Outcome {
	switch {
	case status == "review" || reviewCodes[resultCode]:
		return domain.Outcome{Kind: domain.OutcomePendingReview, ResultCode: resultCode}
	case status == "success":
		return domain.Outcome{Kind: domain.OutcomeSuccess, ResultCode: resultCode}
	default:
		reason := declineReasons[resultCode]
		if reason == "" {
			reason = "payment was declined by your bank"
		}
		return domain.Outcome{Kind: domain.OutcomeDeclined, ResultCode: resultCode, Reason: reason}
	}
}

// Signature computes the HMAC-SHA256 the gateway attaches to server-to-server
// callbacks. Handlers compare it against the X-Gateway-Signature header.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature is constant-time.
func VerifySignature(secret string, body []byte, got string) bool {
	want := Signature(secret, body)
	return hmac.Equal([]byte(want), []byte(got))
}
