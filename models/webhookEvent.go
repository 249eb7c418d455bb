package models

import (
	"context"
	"time"

	"github.com/blomoto/garage_backend/config"
)

// WebhookEvent is the raw audit trail of every provider callback, captured
// before any parsing so malformed or hostile payloads are still on record.
type WebhookEvent struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Provider  string    `gorm:"size:50;not null;index" json:"provider"`
	SourceIP  string    `gorm:"size:64" json:"source_ip"`
	RawBody   string    `gorm:"type:mediumtext" json:"raw_body"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func RecordWebhookEvent(ctx context.Context, provider, sourceIP, rawBody string) {
	db := config.GetDB()
	event := WebhookEvent{
		Provider: provider,
		SourceIP: sourceIP,
		RawBody:  rawBody,
	}
	if err := db.WithContext(ctx).Create(&event).Error; err != nil {
		// Audit logging must never break the callback path.
		config.LogError(config.GetLogger(), "webhookEvent.go", "RecordWebhookEvent", provider, sourceIP, err)
	}
}
