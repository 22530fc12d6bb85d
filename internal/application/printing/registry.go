package printing

import (
	"context"

	"github.com/erp/printdispatch/internal/domain/printing"
	"go.uber.org/zap"
)

// DeviceRegistry enumerates print devices and resolves the target of a request.
// Every call takes a fresh snapshot from the print subsystem.
type DeviceRegistry struct {
	lister printing.DeviceLister
	logger *zap.Logger
}

// NewDeviceRegistry creates a new DeviceRegistry
func NewDeviceRegistry(lister printing.DeviceLister, logger *zap.Logger) *DeviceRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceRegistry{lister: lister, logger: logger}
}

// List returns the devices currently known to the print subsystem, with the
// system default flagged. An empty list is not an error.
func (r *DeviceRegistry) List(ctx context.Context) ([]printing.Device, error) {
	devices, err := r.lister.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	def, ok, err := r.lister.DefaultDevice(ctx)
	if err != nil {
		r.logger.Warn("failed to query default print device", zap.Error(err))
		return devices, nil
	}
	if ok {
		for i := range devices {
			devices[i].Default = devices[i].Name == def.Name
		}
	}
	return devices, nil
}

// Resolve returns the system default device when name is empty, otherwise the
// first device whose name equals name exactly.
func (r *DeviceRegistry) Resolve(ctx context.Context, name string) (printing.Device, error) {
	if name == "" {
		def, ok, err := r.lister.DefaultDevice(ctx)
		if err != nil {
			return printing.Device{}, printing.DeviceNotFound("", err)
		}
		if !ok {
			return printing.Device{}, printing.DeviceNotFound("", nil)
		}
		def.Default = true
		return def, nil
	}

	devices, err := r.lister.ListDevices(ctx)
	if err != nil {
		return printing.Device{}, printing.DeviceNotFound(name, err)
	}
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return printing.Device{}, printing.DeviceNotFound(name, nil)
}
