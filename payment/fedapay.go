package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/utils"
	"github.com/shopspring/decimal"
)

// fedapayProvider integrates the legacy card processor. Its API nests
// resources under versioned keys ("v1/transaction") and requires a second
// call to mint the hosted-checkout token.
type fedapayProvider struct {
	cfg    config.FedapayConfig
	client httpDoer
}

type fedapayTransaction struct {
	Id          json.Number            `json:"id"`
	Status      string                 `json:"status"`
	State       string                 `json:"state"`
	Amount      json.Number            `json:"amount"`
	TotalAmount json.Number            `json:"total_amount"`
	Currency    *fedapayCurrency       `json:"currency"`
	Metadata    map[string]interface{} `json:"metadata"`
	CustomData  map[string]interface{} `json:"custom_metadata"`
}

type fedapayCurrency struct {
	Iso string `json:"iso"`
}

type fedapayTransactionEnvelope struct {
	Transaction *fedapayTransaction `json:"v1/transaction"`
}

type fedapayCustomerEnvelope struct {
	Customer *struct {
		Id json.Number `json:"id"`
	} `json:"v1/customer"`
}

type fedapayTokenResponse struct {
	Token string `json:"token"`
	Url   string `json:"url"`
}

func (t *fedapayTransaction) rawStatus() string {
	if t.Status != "" {
		return t.Status
	}
	return t.State
}

func (t *fedapayTransaction) amount() decimal.Decimal {
	if t.Amount != "" {
		if d, err := decimal.NewFromString(string(t.Amount)); err == nil {
			return d
		}
	}
	if t.TotalAmount != "" {
		if d, err := decimal.NewFromString(string(t.TotalAmount)); err == nil {
			return d
		}
	}
	return decimal.Zero
}

func (t *fedapayTransaction) metadata() map[string]string {
	if t.Metadata != nil {
		return stringMetadata(t.Metadata)
	}
	return stringMetadata(t.CustomData)
}

func (p *fedapayProvider) Name() string { return ProviderFedapay }

func (p *fedapayProvider) CreateTransaction(ctx context.Context, req *CreateRequest) (*CreateResult, error) {
	if !p.cfg.Configured {
		return nil, utils.NewProviderUnavailableError(p.Name(), "FEDAPAY_API_KEY is not set")
	}

	payload := map[string]interface{}{
		"description":  req.Description,
		"amount":       req.Amount.Round(0).IntPart(),
		"currency":     map[string]string{"iso": req.Currency},
		"callback_url": req.CallbackURL,
		"metadata":     req.Correlation.toMetadata(),
	}
	if req.ReturnURL != "" {
		payload["return_url"] = req.ReturnURL
	}
	if req.CancelURL != "" {
		payload["cancel_url"] = req.CancelURL
	}
	if customerId := p.ensureCustomer(ctx, req.Customer); customerId != "" {
		payload["customer"] = map[string]string{"id": customerId}
	}
	body, _ := json.Marshal(payload)

	var envelope fedapayTransactionEnvelope
	_, err := doJSON(ctx, p.client, p.Name(), "POST", p.cfg.APIBase+"/v1/transactions", p.headers(), bytes.NewReader(body), &envelope)
	if err != nil {
		return nil, err
	}
	if envelope.Transaction == nil || envelope.Transaction.Id == "" {
		return nil, utils.NewProviderUnavailableError(p.Name(), "create response carried no transaction id")
	}
	txnId := string(envelope.Transaction.Id)

	var token fedapayTokenResponse
	_, err = doJSON(ctx, p.client, p.Name(), "POST", fmt.Sprintf("%s/v1/transactions/%s/token", p.cfg.APIBase, txnId), p.headers(), nil, &token)
	if err != nil {
		return nil, err
	}
	redirect := token.Url
	if redirect == "" && token.Token != "" {
		redirect = "https://pay.fedapay.com/" + token.Token
	}
	return &CreateResult{ExternalTransactionId: txnId, RedirectURL: redirect}, nil
}

// ensureCustomer registers the payer ahead of the transaction. Failures are
// tolerated (the email may already exist); the transaction proceeds without
// a customer reference.
func (p *fedapayProvider) ensureCustomer(ctx context.Context, customer Customer) string {
	nameParts := strings.Fields(customer.Name)
	firstname := "Client"
	lastname := "Blomoto"
	if len(nameParts) > 0 {
		firstname = nameParts[0]
	}
	if len(nameParts) > 1 {
		lastname = strings.Join(nameParts[1:], " ")
	}

	payload := map[string]interface{}{
		"firstname": firstname,
		"lastname":  lastname,
		"email":     customer.Email,
	}
	if customer.Phone != "" {
		payload["phone_number"] = map[string]string{
			"number":  utils.NormalizePhoneNumber(customer.Phone, utils.CountryCode),
			"country": utils.CountryCode,
		}
	}
	body, _ := json.Marshal(payload)

	var envelope fedapayCustomerEnvelope
	_, err := doJSON(ctx, p.client, p.Name(), "POST", p.cfg.APIBase+"/v1/customers", p.headers(), bytes.NewReader(body), &envelope)
	if err != nil || envelope.Customer == nil {
		return ""
	}
	return string(envelope.Customer.Id)
}

func (p *fedapayProvider) RetrieveTransaction(ctx context.Context, externalId string) (*Transaction, error) {
	if !p.cfg.Configured {
		return nil, utils.NewProviderUnavailableError(p.Name(), "FEDAPAY_API_KEY is not set")
	}
	if _, err := strconv.Atoi(externalId); err != nil {
		return nil, utils.NewValidationError("fedapay transaction ids are numeric, got %q", externalId)
	}

	var envelope fedapayTransactionEnvelope
	raw, err := doJSON(ctx, p.client, p.Name(), "GET", fmt.Sprintf("%s/v1/transactions/%s", p.cfg.APIBase, externalId), p.headers(), nil, &envelope)
	if err != nil {
		return nil, err
	}
	if envelope.Transaction == nil {
		return nil, utils.NewProviderUnavailableError(p.Name(), "retrieve response carried no transaction")
	}
	txn := envelope.Transaction

	currency := ""
	if txn.Currency != nil {
		currency = txn.Currency.Iso
	}
	status := txn.rawStatus()
	return &Transaction{
		ExternalTransactionId: externalId,
		Status:                mapFedapayStatus(status),
		ProviderStatus:        status,
		Amount:                txn.amount(),
		Currency:              currency,
		Metadata:              txn.metadata(),
		RawPayload:            raw,
	}, nil
}

func (p *fedapayProvider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}
}

// mapFedapayStatus folds the provider's approval vocabulary into the
// canonical set.
func mapFedapayStatus(status string) CanonicalStatus {
	switch strings.ToLower(status) {
	case "approved", "completed", "paid", "transferred":
		return StatusSucceeded
	case "pending", "created", "processing":
		return StatusPending
	case "declined", "canceled", "cancelled", "refused", "failed", "expired":
		return StatusFailed
	default:
		return StatusUnknown
	}
}
