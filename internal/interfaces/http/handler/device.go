package handler

import (
	"context"
	"net/http"

	"github.com/erp/printdispatch/internal/domain/printing"
	"github.com/erp/printdispatch/internal/infrastructure/logger"
	"github.com/erp/printdispatch/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DeviceLister returns a fresh device snapshot
type DeviceLister interface {
	List(ctx context.Context) ([]printing.Device, error)
}

// DeviceHandler serves the device and format catalogs
type DeviceHandler struct {
	BaseHandler
	devices DeviceLister
}

// NewDeviceHandler creates a new DeviceHandler
func NewDeviceHandler(devices DeviceLister) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// ListDevices handles GET /devices
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	devices, err := h.devices.List(c.Request.Context())
	if err != nil {
		logger.GetGinLogger(c).Error("failed to list print devices", zap.Error(err))
		h.Error(c, http.StatusBadGateway, dto.ErrCodeUnavailable, "print subsystem unavailable")
		return
	}

	out := make([]dto.DeviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, dto.DeviceResponse{Name: d.Name, Default: d.Default})
	}
	h.SuccessList(c, out, len(out), 0)
}

// ListFormats handles GET /formats
func (h *DeviceHandler) ListFormats(c *gin.Context) {
	formats := dto.SupportedFormats()
	h.SuccessList(c, formats, len(formats), 0)
}
