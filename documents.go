package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/blomoto/garage_backend/models"
	"github.com/blomoto/garage_backend/utils"
	"github.com/blomoto/garage_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// writeError maps the error taxonomy onto HTTP statuses. Webhook handlers do
// NOT use this: their provider-facing contract is always 200.
func writeError(c *gin.Context, err error) {
	var (
		validation  *utils.ValidationError
		authz       *utils.AuthorizationError
		invalid     *utils.InvalidStateError
		notFound    *utils.NotFoundError
		conflict    *utils.ConflictError
		expired     *utils.ExpiredError
		unavailable *utils.ProviderUnavailableError
		valErrs     validator.ValidationErrors
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Msg})
	case errors.As(err, &valErrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
	case errors.As(err, &authz):
		c.JSON(http.StatusForbidden, gin.H{"error": authz.Msg})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Msg})
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{"error": invalid.Msg})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Msg})
	case errors.As(err, &expired):
		c.JSON(http.StatusGone, gin.H{"error": expired.Msg})
	case errors.As(err, &unavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": unavailable.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func actingGarageId(c *gin.Context) (int, bool) {
	garageId, ok := utils.GetGarageIdFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "no garage profile for this account"})
		return 0, false
	}
	return garageId, true
}

func actingUserId(c *gin.Context) (int, bool) {
	userId, ok := utils.GetUserIdFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return 0, false
	}
	return userId, true
}

// canViewDocument: garages see their own documents, clients their own,
// admins everything.
func canViewDocument(c *gin.Context, garageId, clientId int) bool {
	ctx := c.Request.Context()
	role, _ := utils.GetUserRoleFromContext(ctx)
	if role == string(models.UserRoleAdmin) {
		return true
	}
	if role == string(models.UserRoleGarage) {
		if gid, ok := utils.GetGarageIdFromContext(ctx); ok && gid == garageId {
			return true
		}
		return false
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	return ok && userId == clientId
}

func createQuoteHandler(c *gin.Context) {
	garageId, ok := actingGarageId(c)
	if !ok {
		return
	}
	var input models.NewQuote
	if err := c.ShouldBindJSON(&input); err != nil {
		writeError(c, utils.NewValidationError("invalid payload: %v", err))
		return
	}
	quote, err := models.CreateQuote(c.Request.Context(), garageId, &input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quote)
}

func getQuoteHandler(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	quote, err := models.GetQuote(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !canViewDocument(c, quote.GarageId, quote.ClientId) {
		writeError(c, utils.NewAuthorizationError("not allowed to view this quote"))
		return
	}
	c.JSON(http.StatusOK, quote)
}

func listQuotesHandler(c *gin.Context) {
	ctx := c.Request.Context()
	var statusFilter *models.QuoteStatus
	if s := c.Query("status"); s != "" {
		status := models.QuoteStatus(s)
		statusFilter = &status
	}

	role, _ := utils.GetUserRoleFromContext(ctx)
	var (
		quotes []*models.Quote
		err    error
	)
	switch role {
	case string(models.UserRoleGarage):
		garageId, ok := actingGarageId(c)
		if !ok {
			return
		}
		quotes, err = models.GetQuotesByGarage(ctx, garageId, statusFilter)
	default:
		userId, ok := actingUserId(c)
		if !ok {
			return
		}
		quotes, err = models.GetQuotesByClient(ctx, userId, statusFilter)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotes)
}

func updateQuoteHandler(c *gin.Context) {
	garageId, ok := actingGarageId(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.UpdateQuoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeError(c, utils.NewValidationError("invalid payload: %v", err))
		return
	}
	quote, err := models.UpdateQuote(c.Request.Context(), garageId, id, &input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func sendQuoteHandler(c *gin.Context) {
	garageId, ok := actingGarageId(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	quote, err := workflow.SendQuote(c.Request.Context(), garageId, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func acceptQuoteHandler(c *gin.Context) {
	userId, ok := actingUserId(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	quote, invoice, err := workflow.AcceptQuote(c.Request.Context(), id, userId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": quote, "invoice": invoice})
}

func rejectQuoteHandler(c *gin.Context) {
	userId, ok := actingUserId(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	quote, err := workflow.RejectQuote(c.Request.Context(), id, userId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func createInvoiceHandler(c *gin.Context) {
	garageId, ok := actingGarageId(c)
	if !ok {
		return
	}
	var input models.NewInvoice
	if err := c.ShouldBindJSON(&input); err != nil {
		writeError(c, utils.NewValidationError("invalid payload: %v", err))
		return
	}
	invoice, err := models.CreateInvoice(c.Request.Context(), garageId, &input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

// Manual derivation path, used when the automatic derivation at acceptance
// time failed and support re-runs it.
func invoiceFromQuoteHandler(c *gin.Context) {
	garageId, ok := actingGarageId(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	quote, err := models.GetQuote(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if quote.GarageId != garageId {
		writeError(c, utils.NewAuthorizationError("quote %s belongs to another garage", quote.QuoteNumber))
		return
	}
	invoice, err := models.CreateInvoiceFromQuote(c.Request.Context(), quote)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func getInvoiceHandler(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	invoice, err := models.GetInvoice(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !canViewDocument(c, invoice.GarageId, invoice.ClientId) {
		writeError(c, utils.NewAuthorizationError("not allowed to view this invoice"))
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func listInvoicesHandler(c *gin.Context) {
	ctx := c.Request.Context()
	var statusFilter *models.InvoiceStatus
	if s := c.Query("status"); s != "" {
		status := models.InvoiceStatus(s)
		statusFilter = &status
	}

	role, _ := utils.GetUserRoleFromContext(ctx)
	var (
		invoices []*models.Invoice
		err      error
	)
	switch role {
	case string(models.UserRoleGarage):
		garageId, ok := actingGarageId(c)
		if !ok {
			return
		}
		invoices, err = models.GetInvoicesByGarage(ctx, garageId, statusFilter)
	default:
		userId, ok := actingUserId(c)
		if !ok {
			return
		}
		invoices, err = models.GetInvoicesByClient(ctx, userId, statusFilter)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func updateInvoiceItemsHandler(c *gin.Context) {
	garageId, ok := actingGarageId(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.UpdateInvoiceItemsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeError(c, utils.NewValidationError("invalid payload: %v", err))
		return
	}
	invoice, err := models.UpdateInvoiceItems(c.Request.Context(), garageId, id, &input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func sendInvoiceHandler(c *gin.Context) {
	garageId, ok := actingGarageId(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	invoice, err := models.SendInvoice(c.Request.Context(), garageId, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func cancelInvoiceHandler(c *gin.Context) {
	garageId, ok := actingGarageId(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	invoice, err := models.CancelInvoice(c.Request.Context(), garageId, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func markInvoicePaidHandler(c *gin.Context) {
	garageId, ok := actingGarageId(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input struct {
		PaymentMethod models.PaymentMethod `json:"payment_method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		writeError(c, utils.NewValidationError("invalid payload: %v", err))
		return
	}
	invoice, err := models.MarkInvoicePaid(c.Request.Context(), garageId, id, input.PaymentMethod)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// renderedDocumentHandler serves a short-lived signed URL for the stored PDF
// of a quote or invoice.
func renderedDocumentHandler(kind models.DocumentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()

		var garageId, clientId int
		switch kind {
		case models.DocumentKindQuote:
			quote, err := models.GetQuote(ctx, id)
			if err != nil {
				writeError(c, err)
				return
			}
			garageId, clientId = quote.GarageId, quote.ClientId
		case models.DocumentKindInvoice:
			invoice, err := models.GetInvoice(ctx, id)
			if err != nil {
				writeError(c, err)
				return
			}
			garageId, clientId = invoice.GarageId, invoice.ClientId
		}
		if !canViewDocument(c, garageId, clientId) {
			writeError(c, utils.NewAuthorizationError("not allowed to view this document"))
			return
		}

		url, err := models.GetRenderedDocumentURL(ctx, kind, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": url})
	}
}

// registerRenderedDocumentHandler records the storage object the rendering
// job produced for a document.
func registerRenderedDocumentHandler(kind models.DocumentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		garageId, ok := actingGarageId(c)
		if !ok {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input struct {
			ObjectKey string `json:"object_key" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			writeError(c, utils.NewValidationError("invalid payload: %v", err))
			return
		}
		ctx := c.Request.Context()

		switch kind {
		case models.DocumentKindQuote:
			quote, err := models.GetQuote(ctx, id)
			if err != nil {
				writeError(c, err)
				return
			}
			if quote.GarageId != garageId {
				writeError(c, utils.NewAuthorizationError("quote %s belongs to another garage", quote.QuoteNumber))
				return
			}
		case models.DocumentKindInvoice:
			invoice, err := models.GetInvoice(ctx, id)
			if err != nil {
				writeError(c, err)
				return
			}
			if invoice.GarageId != garageId {
				writeError(c, utils.NewAuthorizationError("invoice %s belongs to another garage", invoice.InvoiceNumber))
				return
			}
		}

		if err := models.SetRenderedDocument(ctx, kind, id, input.ObjectKey); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
