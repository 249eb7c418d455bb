package reports

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/blomoto/garage_backend/config"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type InvoiceSummaryRow struct {
	GarageId     int             `json:"GarageId"`
	GarageName   *string         `json:"GarageName,omitempty"`
	InvoiceCount int             `json:"InvoiceCount"`
	PaidCount    int             `json:"PaidCount"`
	TotalBilled  decimal.Decimal `json:"TotalBilled"`
	TotalPaid    decimal.Decimal `json:"TotalPaid"`
}

// GetInvoiceSummaryReport aggregates billed vs collected amounts per garage
// over a date window. Cancelled invoices are excluded from billing totals.
func GetInvoiceSummaryReport(ctx context.Context, fromDate, toDate time.Time) ([]*InvoiceSummaryRow, error) {
	sql := `
SELECT
    inv.garage_id,
    inv.invoice_count,
    inv.paid_count,
    inv.total_billed,
    inv.total_paid,
    garages.name AS garage_name
FROM
    (SELECT
        garage_id,
            COUNT(invoices.id) AS invoice_count,
            SUM(CASE WHEN status = 'paid' THEN 1 ELSE 0 END) AS paid_count,
            SUM(total) AS total_billed,
            SUM(paid_amount) AS total_paid
    FROM
        invoices
    WHERE
        created_at BETWEEN @fromDate AND @toDate
            AND status <> 'cancelled'
    GROUP BY garage_id) AS inv
        LEFT JOIN
    garages ON garages.id = inv.garage_id;
`

	var records []*InvoiceSummaryRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"fromDate": fromDate,
		"toDate":   toDate,
	}).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// WriteInvoiceSummaryExcel renders the report as an xlsx workbook.
func WriteInvoiceSummaryExcel(w io.Writer, data []*InvoiceSummaryRow) error {
	f := excelize.NewFile()
	sheetName := "Sheet1"
	_, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	// Add headers
	f.SetCellValue(sheetName, "A1", "GarageName")
	f.SetCellValue(sheetName, "B1", "InvoiceCount")
	f.SetCellValue(sheetName, "C1", "PaidCount")
	f.SetCellValue(sheetName, "D1", "TotalBilled")
	f.SetCellValue(sheetName, "E1", "TotalPaid")

	// Add data
	for i, d := range data {
		name := ""
		if d.GarageName != nil {
			name = *d.GarageName
		}
		f.SetCellValue(sheetName, "A"+fmt.Sprint(i+2), name)
		f.SetCellValue(sheetName, "B"+fmt.Sprint(i+2), d.InvoiceCount)
		f.SetCellValue(sheetName, "C"+fmt.Sprint(i+2), d.PaidCount)
		f.SetCellValue(sheetName, "D"+fmt.Sprint(i+2), d.TotalBilled)
		f.SetCellValue(sheetName, "E"+fmt.Sprint(i+2), d.TotalPaid)
	}

	return f.Write(w)
}
