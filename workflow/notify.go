package workflow

import (
	"context"
	"time"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/utils"
	"github.com/shopspring/decimal"
)

// notifyDocumentEvent publishes a financial-state-changed event. The notify
// stage is best-effort and failure-isolated: a publish error is logged and
// swallowed so it can never be mistaken for a reconciliation failure.
func notifyDocumentEvent(ctx context.Context, kind string, docId int, number, action string, clientId, garageId int, total decimal.Decimal, currency string) {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	msg := config.NotificationMessage{
		DocumentKind:   kind,
		DocumentId:     docId,
		DocumentNumber: number,
		Action:         action,
		ClientId:       clientId,
		GarageId:       garageId,
		TotalAmount:    total.String(),
		Currency:       currency,
		OccurredAt:     time.Now().UTC(),
		CorrelationId:  correlationId,
	}
	if _, err := config.PublishNotification(ctx, msg); err != nil {
		config.LogError(config.GetLogger(), "notify.go", "notifyDocumentEvent", action, msg, err)
	}
}
