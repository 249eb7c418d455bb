package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
)

// Human-readable document numbers: DEV-2025-0001 for quotes, FAC-2025-0001
// for invoices. Year-scoped and monotonically increasing.
const (
	quoteNumberPrefix   = "DEV"
	invoiceNumberPrefix = "FAC"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// nextDocumentNumber reserves the next number through a Redis counter so two
// concurrent creations in the same year can never compute the same value.
// The counter is seeded from the durable count with SETNX the first time a
// year is seen. When Redis is down the fallback is count+1; the unique index
// on the number column is the backstop either way (callers retry once on a
// duplicate-key insert error).
func nextDocumentNumber(ctx context.Context, prefix string, countExisting func(ctx context.Context, pattern string) (int64, error)) (string, error) {
	year := time.Now().UTC().Year()
	counterKey := fmt.Sprintf("docnum:%s:%d", prefix, year)
	pattern := fmt.Sprintf("%s-%d-%%", prefix, year)

	existing, err := countExisting(ctx, pattern)
	if err != nil {
		return "", err
	}

	if _, err := config.SeedRedisCounter(ctx, counterKey, existing); err != nil {
		return "", err
	}
	n, err := config.GetRedisCounter(ctx, counterKey)
	if err != nil {
		return "", err
	}
	if n == 0 {
		// Redis not connected: count+1 fallback, duplicate-safe only through
		// the unique index.
		n = existing + 1
	}

	return fmt.Sprintf("%s-%d-%04d", prefix, year, n), nil
}

func FormatDocumentNumber(prefix string, year int, sequence int64) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, sequence)
}

func NextQuoteNumber(ctx context.Context) (string, error) {
	return nextDocumentNumber(ctx, quoteNumberPrefix, func(ctx context.Context, pattern string) (int64, error) {
		return utils.ResourceCountWhere[Quote](ctx, "quote_number LIKE ?", pattern)
	})
}

func NextInvoiceNumber(ctx context.Context) (string, error) {
	return nextDocumentNumber(ctx, invoiceNumberPrefix, func(ctx context.Context, pattern string) (int64, error) {
		return utils.ResourceCountWhere[Invoice](ctx, "invoice_number LIKE ?", pattern)
	})
}
