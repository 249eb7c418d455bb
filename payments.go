package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/models"
	"github.com/blomoto/garage_backend/payment"
	"github.com/blomoto/garage_backend/utils"
	"github.com/blomoto/garage_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type paymentAPI struct {
	registry   *payment.Registry
	reconciler *workflow.Reconciler
	cfg        config.PaymentProviderConfig
}

func newPaymentAPI(cfg config.PaymentProviderConfig) *paymentAPI {
	registry := payment.NewRegistry(cfg)
	return &paymentAPI{
		registry:   registry,
		reconciler: workflow.NewReconciler(registry),
		cfg:        cfg,
	}
}

type createPaymentInput struct {
	ReferenceId   int             `json:"reference_id" binding:"required"`
	ReferenceType string          `json:"reference_type" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Currency      string          `json:"currency"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone"`
	CustomerName  string          `json:"customer_name"`
}

// createPaymentHandler starts a provider transaction for an appointment or
// invoice owned by the acting client and returns the hosted-checkout URL.
func (api *paymentAPI) createPaymentHandler(c *gin.Context) {
	ctx := c.Request.Context()
	userId, ok := actingUserId(c)
	if !ok {
		return
	}

	provider, err := api.registry.Get(c.Param("provider"))
	if err != nil {
		writeError(c, err)
		return
	}

	var input createPaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeError(c, utils.NewValidationError("invalid payload: %v", err))
		return
	}
	refType := models.ReferenceType(input.ReferenceType)
	if !models.IsValidReferenceType(refType) {
		writeError(c, utils.NewValidationError("reference_type must be appointment or invoice"))
		return
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		writeError(c, utils.NewValidationError("amount must be positive"))
		return
	}

	var description string
	switch refType {
	case models.ReferenceTypeAppointment:
		appointment, err := models.GetAppointment(ctx, input.ReferenceId)
		if err != nil {
			writeError(c, err)
			return
		}
		if appointment.ClientId != userId {
			writeError(c, utils.NewAuthorizationError("appointment %d belongs to another client", appointment.ID))
			return
		}
		if appointment.PaymentStatus == models.AppointmentPaymentStatusPaid {
			writeError(c, utils.NewInvalidStateError("appointment %d is already paid", appointment.ID))
			return
		}
		description = fmt.Sprintf("Paiement rendez-vous #%d", appointment.ID)
	case models.ReferenceTypeInvoice:
		invoice, err := models.GetInvoice(ctx, input.ReferenceId)
		if err != nil {
			writeError(c, err)
			return
		}
		if invoice.ClientId != userId {
			writeError(c, utils.NewAuthorizationError("invoice %s belongs to another client", invoice.InvoiceNumber))
			return
		}
		if !invoice.Status.Payable() {
			writeError(c, utils.NewInvalidStateError("invoice %s is %s and cannot take a payment", invoice.InvoiceNumber, invoice.Status))
			return
		}
		description = fmt.Sprintf("Paiement facture %s", invoice.InvoiceNumber)
	}

	customer := payment.Customer{
		Name:  input.CustomerName,
		Email: input.CustomerEmail,
		Phone: input.CustomerPhone,
	}
	if user, uerr := models.GetUser(ctx, userId); uerr == nil {
		if customer.Name == "" {
			customer.Name = user.Name
		}
		if customer.Email == "" {
			customer.Email = user.Email
		}
		if customer.Phone == "" {
			customer.Phone = user.Phone
		}
	}

	currency := input.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}

	result, err := provider.CreateTransaction(ctx, &payment.CreateRequest{
		Amount:   input.Amount,
		Currency: currency,
		Correlation: payment.CorrelationKey{
			UserId:        userId,
			ReferenceId:   input.ReferenceId,
			ReferenceType: refType,
		},
		CallbackURL: api.callbackURL(c, provider.Name()),
		ReturnURL:   api.cfg.FrontendURL + "/payment-success",
		CancelURL:   api.cfg.FrontendURL + "/payment-cancel",
		Customer:    customer,
		Description: description,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response := gin.H{
		"success":        true,
		"transaction_id": result.ExternalTransactionId,
		"payment_url":    result.RedirectURL,
	}
	if provider.Name() == payment.ProviderKkiapay {
		response["public_key"] = api.cfg.Kkiapay.PublicKey
	}
	c.JSON(http.StatusOK, response)
}

func (api *paymentAPI) callbackURL(c *gin.Context, providerName string) string {
	base := api.cfg.BackendURL
	if base == "" {
		scheme := "https"
		if c.Request.TLS == nil {
			scheme = "http"
		}
		base = scheme + "://" + c.Request.Host
	}
	return fmt.Sprintf("%s/api/payments/%s/callback", base, providerName)
}

// paymentStatusHandler re-verifies a transaction against the provider. A
// verified success runs through the same reconciliation path as a webhook,
// so polling clients cannot get ahead of the financial state.
func (api *paymentAPI) paymentStatusHandler(c *gin.Context) {
	ctx := c.Request.Context()
	providerName := c.Param("provider")
	transactionId := c.Param("transactionId")
	if transactionId == "" {
		writeError(c, utils.NewValidationError("transactionId is required"))
		return
	}

	provider, err := api.registry.Get(providerName)
	if err != nil {
		writeError(c, err)
		return
	}
	verified, err := provider.RetrieveTransaction(ctx, transactionId)
	if err != nil {
		writeError(c, err)
		return
	}

	if verified.Status == payment.StatusSucceeded {
		api.reconciler.ProcessTransaction(ctx, provider.Name(), transactionId, decimal.Zero, nil)
	}

	response := gin.H{
		"success":         true,
		"status":          verified.Status,
		"provider_status": verified.ProviderStatus,
		"amount":          verified.Amount,
		"currency":        verified.Currency,
	}
	// The mirror carries the last reconciliation outcome and the document the
	// transaction settles, so polling clients see what the webhook saw.
	if mirror, merr := models.GetPaymentTransaction(ctx, provider.Name(), transactionId); merr == nil {
		response["outcome"] = mirror.Outcome
		response["reference_type"] = mirror.ReferenceType
		response["reference_id"] = mirror.ReferenceId
	}
	c.JSON(http.StatusOK, response)
}

// webhookHandler is the public callback endpoint. Contract with providers:
// the raw body is persisted before anything is parsed, a missing transaction
// id is the only 400, and every other branch acknowledges with 200 so the
// provider stops retrying. Outcomes live in the response body and the audit
// trail, never in the HTTP status.
func (api *paymentAPI) webhookHandler(c *gin.Context) {
	ctx := c.Request.Context()
	providerName := c.Param("provider")
	logger := config.GetLogger()

	defer func() {
		if r := recover(); r != nil {
			config.LogError(logger, "payments.go", "webhookHandler", providerName, r, fmt.Errorf("panic in webhook processing"))
			c.JSON(http.StatusOK, gin.H{"received": true, "status": "error"})
		}
	}()

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		config.LogError(logger, "payments.go", "webhookHandler", "readBody", providerName, err)
		c.JSON(http.StatusOK, gin.H{"received": true, "status": "error"})
		return
	}

	logger.WithFields(logrus.Fields{
		"provider":  providerName,
		"source_ip": c.ClientIP(),
		"bytes":     len(raw),
	}).Info("payment callback received")
	models.RecordWebhookEvent(ctx, providerName, c.ClientIP(), string(raw))

	var payload map[string]interface{}
	_ = json.Unmarshal(raw, &payload)

	transactionId := extractTransactionId(payload)
	if transactionId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "transaction_id manquant"})
		return
	}

	assertedAmount := extractAmount(payload)
	callbackMeta := extractMetadata(payload)

	result := api.reconciler.ProcessTransaction(ctx, providerName, transactionId, assertedAmount, callbackMeta)
	c.JSON(http.StatusOK, gin.H{"received": true, "status": result.Outcome.AckStatus()})
}

// extractTransactionId tries the known field spellings, including the event
// envelope used by the card-network provider. Providers are inconsistent, so
// the search is deliberately permissive.
func extractTransactionId(payload map[string]interface{}) string {
	if payload == nil {
		return ""
	}
	for _, key := range []string{"transaction_id", "transactionId"} {
		if id := asString(payload[key]); id != "" {
			return id
		}
	}
	// Event envelopes carry the event's own id at top level; the transaction
	// id lives on the nested object, so that wins over a bare "id".
	if object := eventObject(payload); object != nil {
		if id := asString(object["id"]); id != "" {
			return id
		}
	}
	return asString(payload["id"])
}

func extractAmount(payload map[string]interface{}) decimal.Decimal {
	if payload == nil {
		return decimal.Zero
	}
	if amount, ok := asDecimal(payload["amount"]); ok {
		return amount
	}
	if object := eventObject(payload); object != nil {
		if amount, ok := asDecimal(object["amount"]); ok {
			return amount
		}
	}
	return decimal.Zero
}

func extractMetadata(payload map[string]interface{}) map[string]string {
	if payload == nil {
		return nil
	}
	if meta, ok := payload["metadata"].(map[string]interface{}); ok {
		return payment.NormalizeMetadata(meta)
	}
	if object := eventObject(payload); object != nil {
		if meta, ok := object["metadata"].(map[string]interface{}); ok {
			return payment.NormalizeMetadata(meta)
		}
	}
	return nil
}

// eventObject unwraps {"type": ..., "data": {"object": {...}}} envelopes.
func eventObject(payload map[string]interface{}) map[string]interface{} {
	data, ok := payload["data"].(map[string]interface{})
	if !ok {
		return nil
	}
	object, ok := data["object"].(map[string]interface{})
	if !ok {
		return nil
	}
	return object
}

func asString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return fmt.Sprintf("%.0f", val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

func asDecimal(v interface{}) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), true
	case string:
		if d, err := decimal.NewFromString(val); err == nil {
			return d, true
		}
	case json.Number:
		if d, err := decimal.NewFromString(val.String()); err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}
