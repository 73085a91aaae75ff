package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"camera-inspection-backend/internal/capture"
	"camera-inspection-backend/internal/export"
	"camera-inspection-backend/internal/model"
	"camera-inspection-backend/internal/store"
)

const (
	dateLayout        = "2006-01-02"
	defaultReportDays = 7
)

// reportQuery reads from, to and status from the query string. Dates without
// a time cover the whole day; the default range is the last seven days.
func (h *Handler) reportQuery(c *gin.Context) (store.ReportQuery, error) {
	now := h.now()
	todayStart, todayEnd := store.DayBounds(now)
	q := store.ReportQuery{
		From: todayStart.AddDate(0, 0, -defaultReportDays),
		To:   todayEnd,
	}

	if v := c.Query("from"); v != "" {
		from, err := parseBound(v, false, now.Location())
		if err != nil {
			return q, errors.New("invalid 'from': use YYYY-MM-DD or RFC3339")
		}
		q.From = from
	}
	if v := c.Query("to"); v != "" {
		to, err := parseBound(v, true, now.Location())
		if err != nil {
			return q, errors.New("invalid 'to': use YYYY-MM-DD or RFC3339")
		}
		q.To = to
	}
	if q.To.Before(q.From) {
		return q, errors.New("'to' is before 'from'")
	}

	status, err := store.ParseStatusFilter(c.Query("status"))
	if err != nil {
		return q, err
	}
	q.Status = status
	return q, nil
}

func parseBound(v string, endOfDay bool, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation(dateLayout, v, loc)
	if err != nil {
		return time.Time{}, err
	}
	start, end := store.DayBounds(day)
	if endOfDay {
		return end, nil
	}
	return start, nil
}

// GetInspections lists records in the requested range without image bytes.
func (h *Handler) GetInspections(c *gin.Context) {
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
	if records == nil {
		records = []model.InspectionRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// loadRecord resolves the :id path parameter, writing the error response itself.
func (h *Handler) loadRecord(c *gin.Context) (*model.InspectionRecord, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid inspection ID"})
		return nil, false
	}

	rec, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "inspection not found"})
		return nil, false
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve inspection"})
		return nil, false
	}
	return rec, true
}

// GetInspection returns one record without its image.
func (h *Handler) GetInspection(c *gin.Context) {
	if rec, ok := h.loadRecord(c); ok {
		c.JSON(http.StatusOK, rec)
	}
}

// GetInspectionImage returns the stored JPEG of a record.
func (h *Handler) GetInspectionImage(c *gin.Context) {
	if rec, ok := h.loadRecord(c); ok {
		c.Data(http.StatusOK, "image/jpeg", rec.Image)
	}
}

// GetInspectionThumbnail returns a downscaled JPEG of a record.
func (h *Handler) GetInspectionThumbnail(c *gin.Context) {
	rec, ok := h.loadRecord(c)
	if !ok {
		return
	}
	thumb, err := capture.Thumbnail(rec.Image, export.ThumbWidth, export.ThumbHeight)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to render thumbnail"})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", thumb)
}

// GetSummary returns the dashboard totals.
func (h *Handler) GetSummary(c *gin.Context) {
	counts, err := h.store.AggregateCounts(c.Request.Context(), h.now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to count inspections"})
		return
	}
	c.JSON(http.StatusOK, counts)
}
