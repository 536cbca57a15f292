package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"qrvend-backend/engine"
	"qrvend-backend/models"
	"qrvend-backend/registry"
)

type QRCodeHandler struct {
	registry *registry.Registry
	engine   *engine.Engine
	logger   *zap.Logger
}

func NewQRCodeHandler(reg *registry.Registry, eng *engine.Engine, logger *zap.Logger) *QRCodeHandler {
	return &QRCodeHandler{
		registry: reg,
		engine:   eng,
		logger:   logger,
	}
}

// CreateQRCode handles POST /api/qrdata (admin only).
func (h *QRCodeHandler) CreateQRCode(c *gin.Context) {
	var req models.CreateQRCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code, err := h.registry.Create(c, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, code.ToView())
}

// GetQRCode handles GET /api/qrdata/:qrcode_id (public). An optional
// comma-separated fields parameter restricts the response to the named
// fields plus the identifier.
func (h *QRCodeHandler) GetQRCode(c *gin.Context) {
	id := c.Param("qrcode_id")

	if fieldsParam := c.Query("fields"); fieldsParam != "" {
		fields := strings.Split(fieldsParam, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		projection, err := h.registry.GetFields(c, id, fields)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, projection)
		return
	}

	code, err := h.registry.Get(c, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, code.ToView())
}

// ListQRCodes handles GET /api/qrcodes (authenticated).
func (h *QRCodeHandler) ListQRCodes(c *gin.Context) {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil || skip < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid skip parameter"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}

	codes, err := h.registry.List(c, skip, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	views := make([]models.View, 0, len(codes))
	for i := range codes {
		views = append(views, codes[i].ToView())
	}
	c.JSON(http.StatusOK, views)
}

// ExchangeQRCode handles PUT /api/qrdata/exchange/:qrcode_id. Public:
// physical possession of the code is the credential. The old_value in
// the response is the payout to dispense.
func (h *QRCodeHandler) ExchangeQRCode(c *gin.Context) {
	id := c.Param("qrcode_id")

	result, err := h.engine.Exchange(c, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "QR code exchanged successfully",
		"new_value": result.NewValue,
		"old_value": result.OldValue,
	})
}

// UpdateQRCode handles PUT /api/qrdata/:qrcode_id (admin only).
func (h *QRCodeHandler) UpdateQRCode(c *gin.Context) {
	id := c.Param("qrcode_id")

	var req models.UpdateQRCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code, err := h.registry.Update(c, id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, code.ToView())
}

func (h *QRCodeHandler) respondError(c *gin.Context, err error) {
	var invalidInput *models.InvalidInputError
	var invalidFields *models.InvalidFieldsError
	var notExchangeable *models.NotExchangeableError

	switch {
	case errors.As(err, &invalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidInput.Error()})
	case errors.As(err, &invalidFields):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid fields. Valid fields are: qrcode_id, new_value, old_value, state, creation_date, used_date, qr_image",
		})
	case errors.Is(err, models.ErrImageDecode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to decode QR image"})
	case errors.As(err, &notExchangeable):
		reason := "value_below_minimum"
		if notExchangeable.AlreadyUsed() {
			reason = "already_used"
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     notExchangeable.Error(),
			"reason":    reason,
			"state":     notExchangeable.State,
			"new_value": notExchangeable.NewValue,
		})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "QR code not found"})
	case errors.Is(err, models.ErrStorageUnavailable):
		h.logger.Error("storage unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database unavailable, please retry"})
	default:
		h.logger.Error("unexpected error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
