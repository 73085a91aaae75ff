package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"camera-inspection-backend/internal/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GetExportXLSX downloads the report range as a spreadsheet.
func (h *Handler) GetExportXLSX(c *gin.Context) {
	q, err := h.reportQuery(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	records, err := h.store.Query(c.Request.Context(), q)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve inspections"})
		return
	}

	var buf bytes.Buffer
	if err := export.Spreadsheet(&buf, records); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to build spreadsheet"})
		return
	}
	c.Header("Content-Disposition", attachment("xlsx", q.From, q.To))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// GetExportPDF downloads the report range as a PDF sheet with thumbnails.
func (h *Handler) GetExportPDF(c *gin.Context) {
	q, err := h.reportQuery(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q.WithImages = true
	records, err := h.store.Query(c.Request.Context(), q)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve inspections"})
		return
	}

	title := fmt.Sprintf("Camera inspections %s to %s", q.From.Format(dateLayout), q.To.Format(dateLayout))
	data, err := export.GeneratePDF(title, records, h.now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to build PDF"})
		return
	}
	c.Header("Content-Disposition", attachment("pdf", q.From, q.To))
	c.Data(http.StatusOK, "application/pdf", data)
}

func attachment(ext string, from, to time.Time) string {
	return fmt.Sprintf(`attachment; filename="inspections_%s_%s.%s"`, from.Format(dateLayout), to.Format(dateLayout), ext)
}
