package models

import (
	"context"
	"time"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Quote struct {
	ID            int             `gorm:"primary_key" json:"id"`
	QuoteNumber   string          `gorm:"size:50;not null;uniqueIndex" json:"quote_number"`
	GarageId      int             `gorm:"index;not null" json:"garage_id" binding:"required"`
	ClientId      int             `gorm:"index;not null" json:"client_id" binding:"required"`
	AppointmentId *int            `gorm:"index;default:null" json:"appointment_id"`
	Status        QuoteStatus     `gorm:"type:enum('draft','sent','accepted','rejected','expired');not null;default:'draft';index" json:"status"`
	Items         []QuoteItem     `gorm:"foreignKey:QuoteId" json:"items"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	TaxRate       decimal.Decimal `gorm:"type:decimal(8,4);default:0" json:"tax_rate"`
	Tax           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax"`
	Total         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	Notes         string          `gorm:"type:text;default:null" json:"notes"`
	ValidUntil    time.Time       `gorm:"not null" json:"valid_until"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type QuoteItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	QuoteId     int             `gorm:"index;not null" json:"quote_id"`
	Description string          `gorm:"size:255;not null" json:"description" binding:"required"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Total       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewQuote struct {
	ClientId      int             `json:"client_id" binding:"required"`
	AppointmentId *int            `json:"appointment_id"`
	Items         []NewLineItem   `json:"items" binding:"required,dive" validate:"required,dive"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Notes         string          `json:"notes"`
	ValidUntil    *time.Time      `json:"valid_until"`
	Send          bool            `json:"send"`
}

type NewLineItem struct {
	Description string          `json:"description" binding:"required" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"required"`
}

// ComputeLineTotals recomputes every derived amount from the raw line items.
// It is the single place the totals invariants live:
//
//	line total = quantity * unit price
//	subtotal   = sum(line totals)
//	tax        = subtotal * taxRate / 100
//	total      = subtotal + tax
//
// Rejects negative quantities, prices and tax rates with ValidationError.
func ComputeLineTotals(items []NewLineItem, taxRate decimal.Decimal) (lines []QuoteItem, subtotal, tax, total decimal.Decimal, err error) {
	if len(items) == 0 {
		return nil, decimal.Zero, decimal.Zero, decimal.Zero, utils.NewValidationError("at least one line item is required")
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, decimal.Zero, decimal.Zero, decimal.Zero, utils.NewValidationError("tax rate must be between 0 and 100")
	}

	subtotal = decimal.Zero
	for _, item := range items {
		if item.Description == "" {
			return nil, decimal.Zero, decimal.Zero, decimal.Zero, utils.NewValidationError("line item description is required")
		}
		if item.Quantity.IsNegative() || item.UnitPrice.IsNegative() {
			return nil, decimal.Zero, decimal.Zero, decimal.Zero,
				utils.NewValidationError("line item %q has negative quantity or price", item.Description)
		}
		lineTotal := item.Quantity.Mul(item.UnitPrice)
		lines = append(lines, QuoteItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	tax = subtotal.Mul(taxRate).DivRound(decimal.NewFromInt(100), 2)
	total = subtotal.Add(tax)
	return lines, subtotal, tax, total, nil
}

// CreateQuote creates a quote for the acting garage. With input.Send the
// quote starts in sent; otherwise draft.
func CreateQuote(ctx context.Context, garageId int, input *NewQuote) (*Quote, error) {
	lines, subtotal, tax, total, err := ComputeLineTotals(input.Items, input.TaxRate)
	if err != nil {
		return nil, err
	}

	if _, err := GetUser(ctx, input.ClientId); err != nil {
		return nil, err
	}
	if input.AppointmentId != nil {
		if _, err := GetAppointment(ctx, *input.AppointmentId); err != nil {
			return nil, err
		}
	}

	validUntil := time.Now().UTC().Add(30 * 24 * time.Hour)
	if input.ValidUntil != nil {
		validUntil = input.ValidUntil.UTC()
	}

	status := QuoteStatusDraft
	if input.Send {
		status = QuoteStatusSent
	}

	quote := Quote{
		GarageId:      garageId,
		ClientId:      input.ClientId,
		AppointmentId: input.AppointmentId,
		Status:        status,
		Items:         lines,
		Subtotal:      subtotal,
		TaxRate:       input.TaxRate,
		Tax:           tax,
		Total:         total,
		Notes:         input.Notes,
		ValidUntil:    validUntil,
	}

	db := config.GetDB()
	// Two attempts: the second reserves a fresh number if a concurrent
	// creation won the race on the unique number index.
	for attempt := 0; attempt < 2; attempt++ {
		number, err := NextQuoteNumber(ctx)
		if err != nil {
			return nil, err
		}
		quote.QuoteNumber = number
		err = db.WithContext(ctx).Create(&quote).Error
		if err == nil {
			return &quote, nil
		}
		if !isDuplicateKeyErr(err) {
			return nil, err
		}
	}
	return nil, utils.NewConflictError("could not reserve a unique quote number")
}

type UpdateQuoteInput struct {
	Items      []NewLineItem    `json:"items"`
	TaxRate    *decimal.Decimal `json:"tax_rate"`
	Notes      *string          `json:"notes"`
	ValidUntil *time.Time       `json:"valid_until"`
}

// UpdateQuote edits a quote owned by the acting garage. Line items (and the
// tax rate, which feeds the totals) are immutable once the quote has left
// draft; notes and the validity deadline stay editable while sent.
func UpdateQuote(ctx context.Context, garageId, quoteId int, input *UpdateQuoteInput) (*Quote, error) {
	quote, err := GetQuote(ctx, quoteId)
	if err != nil {
		return nil, err
	}
	if quote.GarageId != garageId {
		return nil, utils.NewAuthorizationError("quote %s belongs to another garage", quote.QuoteNumber)
	}
	if quote.Status.IsTerminal() {
		return nil, utils.NewInvalidStateError("quote %s is %s and can no longer be edited", quote.QuoteNumber, quote.Status)
	}

	updates := map[string]interface{}{}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if input.ValidUntil != nil {
		updates["valid_until"] = input.ValidUntil.UTC()
	}

	wantsItemChange := len(input.Items) > 0 || input.TaxRate != nil
	if wantsItemChange && quote.Status != QuoteStatusDraft {
		return nil, utils.NewInvalidStateError("line items of quote %s are frozen once sent", quote.QuoteNumber)
	}

	db := config.GetDB()
	tx := db.Begin()
	if wantsItemChange {
		taxRate := quote.TaxRate
		if input.TaxRate != nil {
			taxRate = *input.TaxRate
		}
		items := input.Items
		if len(items) == 0 {
			items = toNewLineItems(quote.Items)
		}
		lines, subtotal, tax, total, err := ComputeLineTotals(items, taxRate)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.WithContext(ctx).Where("quote_id = ?", quote.ID).Delete(&QuoteItem{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		for i := range lines {
			lines[i].QuoteId = quote.ID
		}
		if err := tx.WithContext(ctx).Create(&lines).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		updates["subtotal"] = subtotal
		updates["tax_rate"] = taxRate
		updates["tax"] = tax
		updates["total"] = total
	}

	if len(updates) > 0 {
		if err := tx.WithContext(ctx).Model(&Quote{}).Where("id = ?", quote.ID).Updates(updates).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if wantsItemChange {
		// Any previously rendered PDF no longer matches the content.
		if err := InvalidateRenderedDocument(ctx, DocumentKindQuote, quote.ID); err != nil {
			config.LogError(config.GetLogger(), "quote.go", "UpdateQuote", "InvalidateRenderedDocument", quote.ID, err)
		}
	}

	return GetQuote(ctx, quoteId)
}

func toNewLineItems(items []QuoteItem) []NewLineItem {
	out := make([]NewLineItem, 0, len(items))
	for _, item := range items {
		out = append(out, NewLineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return out
}

// SendQuote dispatches a draft quote to the client.
func SendQuote(ctx context.Context, garageId, quoteId int) (*Quote, error) {
	quote, err := GetQuote(ctx, quoteId)
	if err != nil {
		return nil, err
	}
	if quote.GarageId != garageId {
		return nil, utils.NewAuthorizationError("quote %s belongs to another garage", quote.QuoteNumber)
	}
	if quote.Status != QuoteStatusDraft {
		return nil, utils.NewInvalidStateError("quote %s is %s, only draft quotes can be sent", quote.QuoteNumber, quote.Status)
	}

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Quote{}).
		Where("id = ? AND status = ?", quote.ID, QuoteStatusDraft).
		Update("status", QuoteStatusSent)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.NewInvalidStateError("quote %s was modified concurrently", quote.QuoteNumber)
	}
	return GetQuote(ctx, quoteId)
}

// acceptOutcome decides the transition for a client acceptance attempt at a
// given instant. When next is non-empty it is persisted even if err is also
// set: lazy expiry both flips the quote to expired and rejects the
// acceptance, and the flip must survive.
func acceptOutcome(quote *Quote, actingClientId int, now time.Time) (next QuoteStatus, err error) {
	if quote.ClientId != actingClientId {
		return "", utils.NewAuthorizationError("quote %s is addressed to another client", quote.QuoteNumber)
	}
	if quote.Status != QuoteStatusSent {
		return "", utils.NewInvalidStateError("quote %s cannot be accepted in status %s", quote.QuoteNumber, quote.Status)
	}
	if quote.ValidUntil.Before(now) {
		return QuoteStatusExpired, utils.NewExpiredError("quote %s expired on %s", quote.QuoteNumber, quote.ValidUntil.Format("2006-01-02"))
	}
	return QuoteStatusAccepted, nil
}

// AcceptQuote is the client's acceptance action. The whole check-and-flip
// runs in one transaction with the quote row locked, so acceptance and the
// lazy expiry check agree on the same "now" and cannot interleave with a
// concurrent acceptance.
func AcceptQuote(ctx context.Context, quoteId, actingClientId int) (*Quote, error) {
	db := config.GetDB()

	var outcomeErr error
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quote Quote
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&quote, quoteId).Error; err != nil {
			return utils.NewNotFoundError("quote %d not found", quoteId)
		}
		next, err := acceptOutcome(&quote, actingClientId, time.Now().UTC())
		if next == "" {
			return err
		}
		// Surfaced only after commit. Returning ExpiredError from the closure
		// would roll the expired transition back and leave the quote sent.
		outcomeErr = err
		return tx.Model(&Quote{}).Where("id = ? AND status = ?", quote.ID, QuoteStatusSent).
			Update("status", next).Error
	})
	if err != nil {
		return nil, err
	}
	if outcomeErr != nil {
		return nil, outcomeErr
	}

	return GetQuote(ctx, quoteId)
}

// RejectQuote is the client's rejection action.
func RejectQuote(ctx context.Context, quoteId, actingClientId int) (*Quote, error) {
	quote, err := GetQuote(ctx, quoteId)
	if err != nil {
		return nil, err
	}
	if quote.ClientId != actingClientId {
		return nil, utils.NewAuthorizationError("quote %s is addressed to another client", quote.QuoteNumber)
	}
	if quote.Status != QuoteStatusSent {
		return nil, utils.NewInvalidStateError("quote %s cannot be rejected in status %s", quote.QuoteNumber, quote.Status)
	}

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Quote{}).
		Where("id = ? AND status = ?", quote.ID, QuoteStatusSent).
		Update("status", QuoteStatusRejected)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.NewInvalidStateError("quote %s was modified concurrently", quote.QuoteNumber)
	}
	return GetQuote(ctx, quoteId)
}

func GetQuote(ctx context.Context, id int) (*Quote, error) {
	quote, err := utils.FetchSingleModel[Quote](ctx, id, "Items")
	if err != nil {
		return nil, utils.NewNotFoundError("quote %d not found", id)
	}
	return quote, nil
}

func GetQuotesByGarage(ctx context.Context, garageId int, status *QuoteStatus) ([]*Quote, error) {
	return listQuotes(ctx, "garage_id = ?", garageId, status)
}

func GetQuotesByClient(ctx context.Context, clientId int, status *QuoteStatus) ([]*Quote, error) {
	return listQuotes(ctx, "client_id = ?", clientId, status)
}

func listQuotes(ctx context.Context, condition string, id int, status *QuoteStatus) ([]*Quote, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where(condition, id)
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	var results []*Quote
	err := dbCtx.Preload("Items").Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
