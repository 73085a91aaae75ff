package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"camera-inspection-backend/internal/session"
)

// GetSession returns the current operator session.
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.View())
}

type employeeRequest struct {
	EmployeeID string `json:"employee_id" binding:"required"`
}

// PostEmployee starts a session for the given employee.
func (h *Handler) PostEmployee(c *gin.Context) {
	var req employeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.session.EnterEmployee(req.EmployeeID); err != nil {
		sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.View())
}

type workOrderRequest struct {
	WorkOrder string `json:"work_order" binding:"required"`
}

// PostWorkOrder sets the work order and starts collecting fields.
func (h *Handler) PostWorkOrder(c *gin.Context) {
	var req workOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.session.EnterWorkOrder(req.WorkOrder); err != nil {
		sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.View())
}

type fieldRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// PostField applies a manual edit of one device field.
func (h *Handler) PostField(c *gin.Context) {
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	field, err := session.ParseField(req.Field)
	if err != nil {
		sessionError(c, err)
		return
	}
	validity, err := h.session.SetField(field, req.Value)
	if err != nil {
		sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"validity": validity, "session": h.session.View()})
}

// PostCapture freezes the current frame and form for confirmation.
func (h *Handler) PostCapture(c *gin.Context) {
	if _, err := h.session.Capture(); err != nil {
		sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.View())
}

type confirmRequest struct {
	Decision string `json:"decision" binding:"required"`
}

// PostConfirm saves the pending capture with the operator's decision.
func (h *Handler) PostConfirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	decision, err := session.ParseDecision(req.Decision)
	if err != nil {
		sessionError(c, err)
		return
	}
	rec, err := h.session.Confirm(c.Request.Context(), decision)
	if err != nil {
		sessionError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// PostNewUser abandons the session and waits for the next employee.
func (h *Handler) PostNewUser(c *gin.Context) {
	h.session.NewUser()
	c.JSON(http.StatusOK, h.session.View())
}

// PostSuspend pauses the device link while the operator screen is left.
func (h *Handler) PostSuspend(c *gin.Context) {
	h.session.Suspend()
	c.JSON(http.StatusOK, h.session.View())
}

// PostReattach resumes the device link when the operator screen is shown again.
func (h *Handler) PostReattach(c *gin.Context) {
	h.session.Reattach()
	c.JSON(http.StatusOK, h.session.View())
}

// GetSnapshot returns the frozen frame awaiting confirmation.
func (h *Handler) GetSnapshot(c *gin.Context) {
	img, ok := h.session.SnapshotImage()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no capture awaiting confirmation"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", img)
}

func sessionError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrEmptyValue),
		errors.Is(err, session.ErrUnknownField),
		errors.Is(err, session.ErrUnknownDecision):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrWrongState),
		errors.Is(err, session.ErrNoSnapshot):
		status = http.StatusConflict
	case errors.Is(err, session.ErrFieldsIncomplete):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNoFrame):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
