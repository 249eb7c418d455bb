package models

import (
	"context"
	"time"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/utils"
	"github.com/shopspring/decimal"
)

// Appointment scheduling is owned by the booking service; this core only
// mirrors the payment surface. payment_status is mutated exclusively by
// verified reconciliation or an explicit garage action.
type Appointment struct {
	ID              int                      `gorm:"primary_key" json:"id"`
	GarageId        int                      `gorm:"index;not null" json:"garage_id" binding:"required"`
	ClientId        int                      `gorm:"index;not null" json:"client_id" binding:"required"`
	ScheduledAt     time.Time                `gorm:"not null" json:"scheduled_at"`
	Price           decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"price"`
	PaymentStatus   AppointmentPaymentStatus `gorm:"type:enum('pending','paid','refunded');not null;default:'pending'" json:"payment_status"`
	PaymentIntentId string                   `gorm:"size:255;default:null" json:"payment_intent_id"`
	PaymentMethod   PaymentMethod            `gorm:"size:50;default:null" json:"payment_method"`
	PaidAt          *time.Time               `json:"paid_at"`
	CreatedAt       time.Time                `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetAppointment(ctx context.Context, id int) (*Appointment, error) {
	appointment, err := utils.FetchSingleModel[Appointment](ctx, id)
	if err != nil {
		return nil, utils.NewNotFoundError("appointment %d not found", id)
	}
	return appointment, nil
}

// MarkAppointmentPaid records a verified payment on the appointment. The
// conditional WHERE makes the write idempotent under duplicate webhook
// deliveries: once paid, re-applying is a no-op.
// Returns true when this call performed the transition.
func MarkAppointmentPaid(ctx context.Context, id int, externalTransactionId string, method PaymentMethod) (bool, error) {
	db := config.GetDB()
	now := time.Now().UTC()
	result := db.WithContext(ctx).Model(&Appointment{}).
		Where("id = ? AND payment_status <> ?", id, AppointmentPaymentStatusPaid).
		Updates(map[string]interface{}{
			"payment_status":    AppointmentPaymentStatusPaid,
			"payment_intent_id": externalTransactionId,
			"payment_method":    method,
			"paid_at":           &now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
