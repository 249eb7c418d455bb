package workflow

import (
	"context"
	"errors"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/models"
	"github.com/blomoto/garage_backend/utils"
)

// AcceptQuote runs the acceptance pipeline: flip the quote to accepted, then
// derive the binding invoice, then notify. The quote transition is the
// authoritative step; invoice derivation and notification run after it and
// their failure does not roll acceptance back (the invoice is re-derivable
// from the accepted quote by support tooling).
func AcceptQuote(ctx context.Context, quoteId, clientId int) (*models.Quote, *models.Invoice, error) {
	quote, err := models.AcceptQuote(ctx, quoteId, clientId)
	if err != nil {
		return nil, nil, err
	}

	invoice, derr := models.CreateInvoiceFromQuote(ctx, quote)
	if derr != nil {
		var conflict *utils.ConflictError
		if errors.As(derr, &conflict) {
			// A previous delivery of this acceptance already derived it.
			invoice, derr = models.GetInvoiceByQuote(ctx, quote.ID)
		}
		if derr != nil {
			config.LogError(config.GetLogger(), "acceptance.go", "AcceptQuote", "deriveInvoice", quote.QuoteNumber, derr)
			invoice = nil
		}
	}

	notifyDocumentEvent(ctx, string(models.DocumentKindQuote), quote.ID, quote.QuoteNumber, "accepted", quote.ClientId, quote.GarageId, quote.Total, models.DefaultCurrency)
	if invoice != nil {
		notifyDocumentEvent(ctx, string(models.DocumentKindInvoice), invoice.ID, invoice.InvoiceNumber, "sent", invoice.ClientId, invoice.GarageId, invoice.Total, models.DefaultCurrency)
	}
	return quote, invoice, nil
}

// RejectQuote flips the quote and notifies the garage side.
func RejectQuote(ctx context.Context, quoteId, clientId int) (*models.Quote, error) {
	quote, err := models.RejectQuote(ctx, quoteId, clientId)
	if err != nil {
		return nil, err
	}
	notifyDocumentEvent(ctx, string(models.DocumentKindQuote), quote.ID, quote.QuoteNumber, "rejected", quote.ClientId, quote.GarageId, quote.Total, models.DefaultCurrency)
	return quote, nil
}

// SendQuote dispatches a draft quote and notifies the client.
func SendQuote(ctx context.Context, garageId, quoteId int) (*models.Quote, error) {
	quote, err := models.SendQuote(ctx, garageId, quoteId)
	if err != nil {
		return nil, err
	}
	notifyDocumentEvent(ctx, string(models.DocumentKindQuote), quote.ID, quote.QuoteNumber, "sent", quote.ClientId, quote.GarageId, quote.Total, models.DefaultCurrency)
	return quote, nil
}
