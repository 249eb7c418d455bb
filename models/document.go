package models

import (
	"context"
	"fmt"
	"time"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/utils"
)

// GeneratedDocument tracks the rendered PDF for a quote or invoice. Rendering
// itself is the renderer collaborator's job; a row here only records where
// the rendered object landed. A document row is removed when the underlying
// items change, so a stale PDF is never served.
type GeneratedDocument struct {
	ID            int          `gorm:"primary_key" json:"id"`
	ReferenceType DocumentKind `gorm:"size:20;not null;index:idx_doc_ref" json:"reference_type"`
	ReferenceId   int          `gorm:"not null;index:idx_doc_ref" json:"reference_id"`
	ObjectKey     string       `gorm:"size:512;not null" json:"object_key"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

// Signed URLs are valid 15 minutes; the cache expires earlier so a URL
// served from cache is never already expired.
const (
	documentURLValidity = 15 * time.Minute
	documentURLCacheTTL = 10 * time.Minute
)

func documentURLCacheKey(kind DocumentKind, referenceId int) string {
	return fmt.Sprintf("document-url:%s:%d", kind, referenceId)
}

func SetRenderedDocument(ctx context.Context, kind DocumentKind, referenceId int, objectKey string) error {
	db := config.GetDB()
	// One rendered document per reference: replace any previous row.
	if err := db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", kind, referenceId).
		Delete(&GeneratedDocument{}).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Create(&GeneratedDocument{
		ReferenceType: kind,
		ReferenceId:   referenceId,
		ObjectKey:     objectKey,
	}).Error; err != nil {
		return err
	}
	if err := config.RemoveRedisKey(documentURLCacheKey(kind, referenceId)); err != nil {
		config.LogError(config.GetLogger(), "document.go", "SetRenderedDocument", "dropCachedURL", referenceId, err)
	}
	return nil
}

// InvalidateRenderedDocument drops the stored PDF reference after an edit.
func InvalidateRenderedDocument(ctx context.Context, kind DocumentKind, referenceId int) error {
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", kind, referenceId).
		Delete(&GeneratedDocument{}).Error; err != nil {
		return err
	}
	if err := config.RemoveRedisKey(documentURLCacheKey(kind, referenceId)); err != nil {
		config.LogError(config.GetLogger(), "document.go", "InvalidateRenderedDocument", "dropCachedURL", referenceId, err)
	}
	return nil
}

// GetRenderedDocumentURL returns a signed URL for the rendered PDF, or
// NotFoundError when no current rendering exists. The URL is cached in Redis
// to avoid re-signing on every fetch; the cache is dropped whenever the
// rendered object changes.
func GetRenderedDocumentURL(ctx context.Context, kind DocumentKind, referenceId int) (string, error) {
	cacheKey := documentURLCacheKey(kind, referenceId)
	if url, ok, err := config.GetRedisValue(cacheKey); err == nil && ok {
		return url, nil
	}

	db := config.GetDB()
	var doc GeneratedDocument
	err := db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", kind, referenceId).
		First(&doc).Error
	if err != nil {
		return "", utils.NewNotFoundError("no rendered document for %s %d", kind, referenceId)
	}

	url, err := utils.SignDocumentURL(doc.ObjectKey, documentURLValidity)
	if err != nil {
		return "", err
	}
	if err := config.SetRedisValue(cacheKey, url, documentURLCacheTTL); err != nil {
		config.LogError(config.GetLogger(), "document.go", "GetRenderedDocumentURL", "cacheURL", referenceId, err)
	}
	return url, nil
}
