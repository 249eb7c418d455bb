package payment

import (
	"strconv"

	"github.com/blomoto/garage_backend/models"
	"github.com/shopspring/decimal"
)

// CanonicalStatus is the shared status vocabulary every adapter maps its
// provider's statuses onto. Anything an adapter does not recognize becomes
// StatusUnknown, never StatusSucceeded.
type CanonicalStatus string

const (
	StatusPending   CanonicalStatus = "pending"
	StatusSucceeded CanonicalStatus = "succeeded"
	StatusFailed    CanonicalStatus = "failed"
	StatusUnknown   CanonicalStatus = "unknown"
)

// CorrelationKey travels through the provider as opaque metadata so the
// webhook can recover which document a transaction pays for without a side
// lookup.
type CorrelationKey struct {
	UserId        int
	ReferenceId   int
	ReferenceType models.ReferenceType
}

func (k CorrelationKey) toMetadata() map[string]string {
	return map[string]string{
		"userId":        strconv.Itoa(k.UserId),
		"referenceId":   strconv.Itoa(k.ReferenceId),
		"referenceType": string(k.ReferenceType),
	}
}

// ParseCorrelationKey recovers the key from a provider metadata blob.
// Returns ok=false when referenceId or referenceType are absent or
// malformed; userId is optional.
func ParseCorrelationKey(metadata map[string]string) (CorrelationKey, bool) {
	if metadata == nil {
		return CorrelationKey{}, false
	}
	refId, err := strconv.Atoi(metadata["referenceId"])
	if err != nil || refId <= 0 {
		return CorrelationKey{}, false
	}
	refType := models.ReferenceType(metadata["referenceType"])
	if !models.IsValidReferenceType(refType) {
		return CorrelationKey{}, false
	}
	key := CorrelationKey{ReferenceId: refId, ReferenceType: refType}
	if userId, err := strconv.Atoi(metadata["userId"]); err == nil {
		key.UserId = userId
	}
	return key, true
}

type Customer struct {
	Name  string
	Email string
	Phone string
}

type CreateRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Correlation CorrelationKey
	CallbackURL string
	ReturnURL   string
	CancelURL   string
	Customer    Customer
	Description string
}

type CreateResult struct {
	ExternalTransactionId string
	RedirectURL           string
}

// Transaction is the verified view of a provider transaction, as reported by
// the provider's own API. RawPayload keeps the provider response verbatim for
// the audit mirror.
type Transaction struct {
	ExternalTransactionId string
	Status                CanonicalStatus
	ProviderStatus        string
	Amount                decimal.Decimal
	Currency              string
	Metadata              map[string]string
	RawPayload            string
}
