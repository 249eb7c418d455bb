package models

import (
	"context"
	"time"

	"github.com/blomoto/garage_backend/config"
	"github.com/shopspring/decimal"
)

// PaymentTransaction mirrors the last verified state of a provider
// transaction. It is an audit record, never the source of truth for
// whether a document is paid; that lives on the document row itself.
type PaymentTransaction struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	Provider              string          `gorm:"size:50;not null;uniqueIndex:idx_provider_txn,priority:1" json:"provider"`
	ExternalTransactionId string          `gorm:"size:255;not null;uniqueIndex:idx_provider_txn,priority:2" json:"external_transaction_id"`
	UserId                int             `gorm:"index" json:"user_id"`
	ReferenceType         ReferenceType   `gorm:"size:50" json:"reference_type"`
	ReferenceId           int             `gorm:"index" json:"reference_id"`
	Amount                decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Currency              string          `gorm:"size:10" json:"currency"`
	Status                string          `gorm:"size:50;not null" json:"status"`
	Outcome               string          `gorm:"size:50" json:"outcome"`
	RawPayload            string          `gorm:"type:text" json:"-"`
	VerifiedAt            time.Time       `json:"verified_at"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpsertPaymentTransaction records a verification result, overwriting the
// previous mirror for the same provider transaction. Re-deliveries of the
// same webhook therefore converge on a single row.
func UpsertPaymentTransaction(ctx context.Context, txn *PaymentTransaction) error {
	db := config.GetDB()
	txn.VerifiedAt = time.Now().UTC()

	var existing PaymentTransaction
	err := db.WithContext(ctx).
		Where("provider = ? AND external_transaction_id = ?", txn.Provider, txn.ExternalTransactionId).
		First(&existing).Error
	if err == nil {
		txn.ID = existing.ID
		txn.CreatedAt = existing.CreatedAt
		return db.WithContext(ctx).Save(txn).Error
	}
	err = db.WithContext(ctx).Create(txn).Error
	if err != nil && isDuplicateKeyErr(err) {
		// Lost a race with a concurrent delivery; the other writer's
		// verification result is just as fresh.
		return nil
	}
	return err
}

func GetPaymentTransaction(ctx context.Context, provider, externalId string) (*PaymentTransaction, error) {
	db := config.GetDB()
	var txn PaymentTransaction
	err := db.WithContext(ctx).
		Where("provider = ? AND external_transaction_id = ?", provider, externalId).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
