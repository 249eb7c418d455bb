package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/utils"
	"github.com/shopspring/decimal"
)

// paygateProvider integrates the card-network processor. Amounts travel in
// minor units (cents) and transactions are modelled as payment intents.
type paygateProvider struct {
	cfg    config.PaygateConfig
	client httpDoer
}

type paygateIntent struct {
	Id           string                 `json:"id"`
	Status       string                 `json:"status"`
	Amount       int64                  `json:"amount"`
	Currency     string                 `json:"currency"`
	ClientSecret string                 `json:"client_secret"`
	RedirectURL  string                 `json:"redirect_url"`
	NextAction   *paygateNextAction     `json:"next_action"`
	Metadata     map[string]interface{} `json:"metadata"`
}

type paygateNextAction struct {
	RedirectURL string `json:"redirect_url"`
}

func (p *paygateProvider) Name() string { return ProviderPaygate }

func (p *paygateProvider) CreateTransaction(ctx context.Context, req *CreateRequest) (*CreateResult, error) {
	if !p.cfg.Configured {
		return nil, utils.NewProviderUnavailableError(p.Name(), "PAYGATE_SECRET_KEY is not set")
	}

	payload := map[string]interface{}{
		"amount":        req.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		"currency":      req.Currency,
		"description":   req.Description,
		"metadata":      req.Correlation.toMetadata(),
		"return_url":    req.ReturnURL,
		"cancel_url":    req.CancelURL,
		"webhook_url":   req.CallbackURL,
		"receipt_email": req.Customer.Email,
	}
	body, _ := json.Marshal(payload)

	var intent paygateIntent
	_, err := doJSON(ctx, p.client, p.Name(), "POST", p.cfg.APIBase+"/v1/payment_intents", p.headers(), bytes.NewReader(body), &intent)
	if err != nil {
		return nil, err
	}
	if intent.Id == "" {
		return nil, utils.NewProviderUnavailableError(p.Name(), "create response carried no intent id")
	}

	redirect := intent.RedirectURL
	if redirect == "" && intent.NextAction != nil {
		redirect = intent.NextAction.RedirectURL
	}
	return &CreateResult{ExternalTransactionId: intent.Id, RedirectURL: redirect}, nil
}

func (p *paygateProvider) RetrieveTransaction(ctx context.Context, externalId string) (*Transaction, error) {
	if !p.cfg.Configured {
		return nil, utils.NewProviderUnavailableError(p.Name(), "PAYGATE_SECRET_KEY is not set")
	}

	var intent paygateIntent
	raw, err := doJSON(ctx, p.client, p.Name(), "GET", fmt.Sprintf("%s/v1/payment_intents/%s", p.cfg.APIBase, externalId), p.headers(), nil, &intent)
	if err != nil {
		return nil, err
	}

	return &Transaction{
		ExternalTransactionId: intent.Id,
		Status:                mapPaygateStatus(intent.Status),
		ProviderStatus:        intent.Status,
		Amount:                decimal.NewFromInt(intent.Amount).Div(decimal.NewFromInt(100)),
		Currency:              intent.Currency,
		Metadata:              stringMetadata(intent.Metadata),
		RawPayload:            raw,
	}, nil
}

func (p *paygateProvider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.cfg.SecretKey}
}

// mapPaygateStatus is total over the intent lifecycle; anything outside the
// known set is unknown, never success.
func mapPaygateStatus(status string) CanonicalStatus {
	switch status {
	case "succeeded":
		return StatusSucceeded
	case "processing", "requires_payment_method", "requires_confirmation", "requires_action", "requires_capture":
		return StatusPending
	case "canceled", "payment_failed":
		return StatusFailed
	default:
		return StatusUnknown
	}
}
