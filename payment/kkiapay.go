package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/utils"
	"github.com/shopspring/decimal"
)

// kkiapayProvider integrates the mobile-money processor. Amounts are whole
// currency units (XOF has no minor unit).
type kkiapayProvider struct {
	cfg    config.KkiapayConfig
	client httpDoer
}

type kkiapayTransaction struct {
	Id                string                 `json:"id"`
	TransactionId     string                 `json:"transaction_id"`
	Status            string                 `json:"status"`
	TransactionStatus string                 `json:"transaction_status"`
	Amount            json.Number            `json:"amount"`
	TransactionAmount json.Number            `json:"transaction_amount"`
	Currency          string                 `json:"currency"`
	Url               string                 `json:"url"`
	PaymentUrl        string                 `json:"payment_url"`
	Metadata          map[string]interface{} `json:"metadata"`
}

func (t *kkiapayTransaction) externalId() string {
	if t.TransactionId != "" {
		return t.TransactionId
	}
	return t.Id
}

// The documented field sometimes differs between the create and retrieve
// responses, so both are tried.
func (t *kkiapayTransaction) rawStatus() string {
	if t.Status != "" {
		return t.Status
	}
	return t.TransactionStatus
}

func (t *kkiapayTransaction) amount() decimal.Decimal {
	if t.Amount != "" {
		if d, err := decimal.NewFromString(string(t.Amount)); err == nil {
			return d
		}
	}
	if t.TransactionAmount != "" {
		if d, err := decimal.NewFromString(string(t.TransactionAmount)); err == nil {
			return d
		}
	}
	return decimal.Zero
}

func (p *kkiapayProvider) Name() string { return ProviderKkiapay }

func (p *kkiapayProvider) CreateTransaction(ctx context.Context, req *CreateRequest) (*CreateResult, error) {
	if !p.cfg.Configured {
		return nil, utils.NewProviderUnavailableError(p.Name(), "KKIAPAY_SECRET_KEY or KKIAPAY_PUBLIC_KEY is not set")
	}

	payload := map[string]interface{}{
		"amount":         req.Amount.Round(0).IntPart(),
		"currency":       req.Currency,
		"customer_email": req.Customer.Email,
		"customer_phone": req.Customer.Phone,
		"customer_name":  req.Customer.Name,
		"callback_url":   req.CallbackURL,
		"return_url":     req.ReturnURL,
		"cancel_url":     req.CancelURL,
		"metadata":       req.Correlation.toMetadata(),
	}
	body, _ := json.Marshal(payload)

	var txn kkiapayTransaction
	_, err := doJSON(ctx, p.client, p.Name(), "POST", p.cfg.APIBase+"/v1/transactions", p.headers(), bytes.NewReader(body), &txn)
	if err != nil {
		return nil, err
	}
	if txn.externalId() == "" {
		return nil, utils.NewProviderUnavailableError(p.Name(), "create response carried no transaction id")
	}

	redirect := txn.PaymentUrl
	if redirect == "" {
		redirect = txn.Url
	}
	return &CreateResult{ExternalTransactionId: txn.externalId(), RedirectURL: redirect}, nil
}

func (p *kkiapayProvider) RetrieveTransaction(ctx context.Context, externalId string) (*Transaction, error) {
	if !p.cfg.Configured {
		return nil, utils.NewProviderUnavailableError(p.Name(), "KKIAPAY_SECRET_KEY or KKIAPAY_PUBLIC_KEY is not set")
	}

	var txn kkiapayTransaction
	raw, err := doJSON(ctx, p.client, p.Name(), "GET", fmt.Sprintf("%s/v1/transactions/%s", p.cfg.APIBase, externalId), p.headers(), nil, &txn)
	if err != nil {
		return nil, err
	}

	status := txn.rawStatus()
	return &Transaction{
		ExternalTransactionId: externalId,
		Status:                mapKkiapayStatus(status),
		ProviderStatus:        status,
		Amount:                txn.amount(),
		Currency:              txn.Currency,
		Metadata:              stringMetadata(txn.Metadata),
		RawPayload:            raw,
	}, nil
}

func (p *kkiapayProvider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.cfg.SecretKey}
}

// mapKkiapayStatus folds the provider's mixed-case vocabulary into the
// canonical set.
func mapKkiapayStatus(status string) CanonicalStatus {
	switch strings.ToLower(status) {
	case "success", "succeeded":
		return StatusSucceeded
	case "pending", "processing", "initiated":
		return StatusPending
	case "failed", "declined", "canceled", "cancelled", "refused":
		return StatusFailed
	default:
		return StatusUnknown
	}
}
