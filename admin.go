package main

import (
	"net/http"
	"time"

	"github.com/blomoto/garage_backend/models/reports"
	"github.com/blomoto/garage_backend/utils"
	"github.com/gin-gonic/gin"
)

// invoiceSummaryHandler serves the per-garage billing report to admins, as
// JSON or as an Excel download.
func invoiceSummaryHandler(c *gin.Context) {
	now := time.Now().UTC()
	fromDate := now.AddDate(0, -1, 0)
	toDate := now
	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(c, utils.NewValidationError("from must be YYYY-MM-DD"))
			return
		}
		fromDate = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(c, utils.NewValidationError("to must be YYYY-MM-DD"))
			return
		}
		toDate = parsed.Add(24*time.Hour - time.Second)
	}
	if toDate.Before(fromDate) {
		writeError(c, utils.NewValidationError("to must not precede from"))
		return
	}

	data, err := reports.GetInvoiceSummaryReport(c.Request.Context(), fromDate, toDate)
	if err != nil {
		writeError(c, err)
		return
	}

	if c.Query("format") == "xlsx" {
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=invoice-summary.xlsx")
		if err := reports.WriteInvoiceSummaryExcel(c.Writer, data); err != nil {
			writeError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, data)
}
