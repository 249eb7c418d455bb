package models

import (
	"context"
	"time"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/utils"
	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	InvoiceNumber         string          `gorm:"size:50;not null;uniqueIndex" json:"invoice_number"`
	GarageId              int             `gorm:"index;not null" json:"garage_id" binding:"required"`
	ClientId              int             `gorm:"index;not null" json:"client_id" binding:"required"`
	AppointmentId         *int            `gorm:"index;default:null" json:"appointment_id"`
	QuoteId               *int            `gorm:"uniqueIndex;default:null" json:"quote_id"`
	Status                InvoiceStatus   `gorm:"type:enum('draft','sent','paid','overdue','cancelled');not null;default:'sent';index" json:"status"`
	Items                 []InvoiceItem   `gorm:"foreignKey:InvoiceId" json:"items"`
	Subtotal              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	TaxRate               decimal.Decimal `gorm:"type:decimal(8,4);default:0" json:"tax_rate"`
	Tax                   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax"`
	Total                 decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	PaidAmount            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	DueDate               time.Time       `gorm:"not null;index" json:"due_date"`
	PaidAt                *time.Time      `json:"paid_at"`
	PaymentMethod         PaymentMethod   `gorm:"size:50;default:null" json:"payment_method"`
	ExternalTransactionId string          `gorm:"size:255;default:null" json:"external_transaction_id"`
	Notes                 string          `gorm:"type:text;default:null" json:"notes"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type InvoiceItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	InvoiceId   int             `gorm:"index;not null" json:"invoice_id"`
	Description string          `gorm:"size:255;not null" json:"description" binding:"required"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Total       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInvoice struct {
	ClientId      int             `json:"client_id" binding:"required"`
	AppointmentId *int            `json:"appointment_id"`
	Items         []NewLineItem   `json:"items" binding:"required,dive" validate:"required,dive"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Notes         string          `json:"notes"`
	DueDate       *time.Time      `json:"due_date"`
}

const defaultInvoiceDueDays = 30

// CreateInvoice creates an invoice directly (not derived from a quote).
func CreateInvoice(ctx context.Context, garageId int, input *NewInvoice) (*Invoice, error) {
	lines, subtotal, tax, total, err := ComputeLineTotals(input.Items, input.TaxRate)
	if err != nil {
		return nil, err
	}
	if _, err := GetUser(ctx, input.ClientId); err != nil {
		return nil, err
	}

	dueDate := time.Now().UTC().Add(defaultInvoiceDueDays * 24 * time.Hour)
	if input.DueDate != nil {
		dueDate = input.DueDate.UTC()
	}

	invoice := Invoice{
		GarageId:      garageId,
		ClientId:      input.ClientId,
		AppointmentId: input.AppointmentId,
		Status:        InvoiceStatusSent,
		Items:         toInvoiceItems(lines),
		Subtotal:      subtotal,
		TaxRate:       input.TaxRate,
		Tax:           tax,
		Total:         total,
		PaidAmount:    decimal.Zero,
		DueDate:       dueDate,
		Notes:         input.Notes,
	}
	return insertInvoiceWithNumber(ctx, &invoice)
}

// CreateInvoiceFromQuote derives the binding invoice from an accepted quote,
// copying its items and totals verbatim. The unique index on quote_id
// guarantees at most one invoice per quote; a second derivation attempt
// returns ConflictError.
func CreateInvoiceFromQuote(ctx context.Context, quote *Quote) (*Invoice, error) {
	if quote.Status != QuoteStatusAccepted {
		return nil, utils.NewInvalidStateError("quote %s must be accepted before invoicing", quote.QuoteNumber)
	}

	items := make([]InvoiceItem, 0, len(quote.Items))
	for _, item := range quote.Items {
		items = append(items, InvoiceItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
		})
	}

	quoteId := quote.ID
	invoice := Invoice{
		GarageId:      quote.GarageId,
		ClientId:      quote.ClientId,
		AppointmentId: quote.AppointmentId,
		QuoteId:       &quoteId,
		Status:        InvoiceStatusSent,
		Items:         items,
		Subtotal:      quote.Subtotal,
		TaxRate:       quote.TaxRate,
		Tax:           quote.Tax,
		Total:         quote.Total,
		PaidAmount:    decimal.Zero,
		DueDate:       time.Now().UTC().Add(defaultInvoiceDueDays * 24 * time.Hour),
		Notes:         quote.Notes,
	}
	created, err := insertInvoiceWithNumber(ctx, &invoice)
	if err != nil {
		if isDuplicateKeyErr(err) {
			return nil, utils.NewConflictError("an invoice already exists for quote %s", quote.QuoteNumber)
		}
		return nil, err
	}
	return created, nil
}

func insertInvoiceWithNumber(ctx context.Context, invoice *Invoice) (*Invoice, error) {
	db := config.GetDB()
	for attempt := 0; attempt < 2; attempt++ {
		number, err := NextInvoiceNumber(ctx)
		if err != nil {
			return nil, err
		}
		invoice.InvoiceNumber = number
		err = db.WithContext(ctx).Create(invoice).Error
		if err == nil {
			return invoice, nil
		}
		if !isDuplicateKeyErr(err) {
			return nil, err
		}
		// The duplicate may be the quote_id backstop rather than the number;
		// let the caller translate that one.
		var count int64
		if invoice.QuoteId != nil {
			if cerr := db.WithContext(ctx).Model(&Invoice{}).
				Where("quote_id = ?", *invoice.QuoteId).Count(&count).Error; cerr == nil && count > 0 {
				return nil, err
			}
		}
	}
	return nil, utils.NewConflictError("could not reserve a unique invoice number")
}

func toInvoiceItems(lines []QuoteItem) []InvoiceItem {
	items := make([]InvoiceItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, InvoiceItem{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Total:       line.Total,
		})
	}
	return items
}

type UpdateInvoiceItemsInput struct {
	Items   []NewLineItem    `json:"items" binding:"required,dive"`
	TaxRate *decimal.Decimal `json:"tax_rate"`
	Notes   *string          `json:"notes"`
}

// UpdateInvoiceItems replaces line items and recomputes totals. Rejected once
// the invoice reached a terminal status. Any rendered PDF is invalidated.
func UpdateInvoiceItems(ctx context.Context, garageId, invoiceId int, input *UpdateInvoiceItemsInput) (*Invoice, error) {
	invoice, err := GetInvoice(ctx, invoiceId)
	if err != nil {
		return nil, err
	}
	if invoice.GarageId != garageId {
		return nil, utils.NewAuthorizationError("invoice %s belongs to another garage", invoice.InvoiceNumber)
	}
	if invoice.Status.IsTerminal() {
		return nil, utils.NewInvalidStateError("invoice %s is %s and can no longer be edited", invoice.InvoiceNumber, invoice.Status)
	}

	taxRate := invoice.TaxRate
	if input.TaxRate != nil {
		taxRate = *input.TaxRate
	}
	lines, subtotal, tax, total, err := ComputeLineTotals(input.Items, taxRate)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Where("invoice_id = ?", invoice.ID).Delete(&InvoiceItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	items := toInvoiceItems(lines)
	for i := range items {
		items[i].InvoiceId = invoice.ID
	}
	if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	updates := map[string]interface{}{
		"subtotal": subtotal,
		"tax_rate": taxRate,
		"tax":      tax,
		"total":    total,
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	// Guard inside the same statement: a payment applied between the fetch
	// above and this write must not be clobbered.
	result := tx.WithContext(ctx).Model(&Invoice{}).
		Where("id = ? AND status NOT IN ?", invoice.ID, []InvoiceStatus{InvoiceStatusPaid, InvoiceStatusCancelled}).
		Updates(updates)
	if result.Error != nil {
		tx.Rollback()
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, utils.NewInvalidStateError("invoice %s reached a terminal status concurrently", invoice.InvoiceNumber)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := InvalidateRenderedDocument(ctx, DocumentKindInvoice, invoice.ID); err != nil {
		config.LogError(config.GetLogger(), "invoice.go", "UpdateInvoiceItems", "InvalidateRenderedDocument", invoice.ID, err)
	}

	return GetInvoice(ctx, invoiceId)
}

// ApplyPayment is the only sanctioned path to the paid status. The check of
// the current status and the write are one conditional UPDATE, so two
// concurrent applications of the same verified transaction cannot both
// mutate: the loser of the race matches zero rows and reports alreadyPaid.
func ApplyPayment(ctx context.Context, invoiceId int, amountPaid decimal.Decimal, method PaymentMethod, externalRef string) (applied bool, err error) {
	db := config.GetDB()
	now := time.Now().UTC()
	result := db.WithContext(ctx).Model(&Invoice{}).
		Where("id = ? AND status NOT IN ?", invoiceId, []InvoiceStatus{InvoiceStatusPaid, InvoiceStatusCancelled}).
		Updates(map[string]interface{}{
			"status":                  InvoiceStatusPaid,
			"paid_amount":             amountPaid,
			"paid_at":                 &now,
			"payment_method":          method,
			"external_transaction_id": externalRef,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkInvoicePaid records an offline payment (cash, card at the counter,
// bank transfer) taken by the garage itself. Online methods go through the
// reconciliation path instead.
func MarkInvoicePaid(ctx context.Context, garageId, invoiceId int, method PaymentMethod) (*Invoice, error) {
	if !IsValidManualPaymentMethod(method) {
		return nil, utils.NewValidationError("%s is not a manual payment method", method)
	}
	invoice, err := GetInvoice(ctx, invoiceId)
	if err != nil {
		return nil, err
	}
	if invoice.GarageId != garageId {
		return nil, utils.NewAuthorizationError("invoice %s belongs to another garage", invoice.InvoiceNumber)
	}
	if !invoice.Status.Payable() {
		return nil, utils.NewInvalidStateError("invoice %s is %s and cannot take a payment", invoice.InvoiceNumber, invoice.Status)
	}
	applied, err := ApplyPayment(ctx, invoice.ID, invoice.Total, method, "")
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, utils.NewConflictError("invoice %s was already settled", invoice.InvoiceNumber)
	}
	return GetInvoice(ctx, invoiceId)
}

// SendInvoice dispatches a draft invoice to the client.
func SendInvoice(ctx context.Context, garageId, invoiceId int) (*Invoice, error) {
	invoice, err := GetInvoice(ctx, invoiceId)
	if err != nil {
		return nil, err
	}
	if invoice.GarageId != garageId {
		return nil, utils.NewAuthorizationError("invoice %s belongs to another garage", invoice.InvoiceNumber)
	}
	if invoice.Status != InvoiceStatusDraft {
		return nil, utils.NewInvalidStateError("invoice %s is %s, only draft invoices can be sent", invoice.InvoiceNumber, invoice.Status)
	}

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Invoice{}).
		Where("id = ? AND status = ?", invoice.ID, InvoiceStatusDraft).
		Update("status", InvoiceStatusSent)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.NewInvalidStateError("invoice %s was modified concurrently", invoice.InvoiceNumber)
	}
	return GetInvoice(ctx, invoiceId)
}

// CancelInvoice voids an unpaid invoice. Invoices are never deleted.
func CancelInvoice(ctx context.Context, garageId, invoiceId int) (*Invoice, error) {
	invoice, err := GetInvoice(ctx, invoiceId)
	if err != nil {
		return nil, err
	}
	if invoice.GarageId != garageId {
		return nil, utils.NewAuthorizationError("invoice %s belongs to another garage", invoice.InvoiceNumber)
	}
	if invoice.Status.IsTerminal() {
		return nil, utils.NewInvalidStateError("invoice %s is already %s", invoice.InvoiceNumber, invoice.Status)
	}

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Invoice{}).
		Where("id = ? AND status NOT IN ?", invoice.ID, []InvoiceStatus{InvoiceStatusPaid, InvoiceStatusCancelled}).
		Update("status", InvoiceStatusCancelled)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.NewInvalidStateError("invoice %s reached a terminal status concurrently", invoice.InvoiceNumber)
	}
	return GetInvoice(ctx, invoiceId)
}

func GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	invoice, err := utils.FetchSingleModel[Invoice](ctx, id, "Items")
	if err != nil {
		return nil, utils.NewNotFoundError("invoice %d not found", id)
	}
	flagOverdue(ctx, invoice)
	return invoice, nil
}

func GetInvoiceByQuote(ctx context.Context, quoteId int) (*Invoice, error) {
	invoice, err := utils.FetchSingleModelWhere[Invoice](ctx, "quote_id = ?", quoteId)
	if err != nil {
		return nil, utils.NewNotFoundError("no invoice for quote %d", quoteId)
	}
	return invoice, nil
}

func GetInvoicesByGarage(ctx context.Context, garageId int, status *InvoiceStatus) ([]*Invoice, error) {
	return listInvoices(ctx, "garage_id = ?", garageId, status)
}

func GetInvoicesByClient(ctx context.Context, clientId int, status *InvoiceStatus) ([]*Invoice, error) {
	return listInvoices(ctx, "client_id = ?", clientId, status)
}

func listInvoices(ctx context.Context, condition string, id int, status *InvoiceStatus) ([]*Invoice, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where(condition, id)
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	var results []*Invoice
	err := dbCtx.Preload("Items").Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	for _, invoice := range results {
		flagOverdue(ctx, invoice)
	}
	return results, nil
}

// flagOverdue lazily transitions sent invoices past their due date. The
// conditional update keeps it race-free against a concurrent payment.
func flagOverdue(ctx context.Context, invoice *Invoice) {
	if invoice.Status != InvoiceStatusSent || invoice.DueDate.After(time.Now().UTC()) {
		return
	}
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Invoice{}).
		Where("id = ? AND status = ?", invoice.ID, InvoiceStatusSent).
		Update("status", InvoiceStatusOverdue)
	if result.Error == nil && result.RowsAffected > 0 {
		invoice.Status = InvoiceStatusOverdue
	}
}
