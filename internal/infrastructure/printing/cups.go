package printing

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/erp/printdispatch/internal/domain/printing"
	"go.uber.org/zap"
)

const (
	defaultLpPath      = "lp"
	defaultLpstatPath  = "lpstat"
	defaultCUPSTimeout = 30 * time.Second

	// IPP orientation-requested values
	ippPortrait  = 3
	ippLandscape = 4
)

var requestIDPattern = regexp.MustCompile(`request id is (\S+)`)

// CUPSConfig contains configuration for the CUPS command line adapters
type CUPSConfig struct {
	// LpPath is the lp binary, searched in PATH if relative
	LpPath string
	// LpstatPath is the lpstat binary, searched in PATH if relative
	LpstatPath string
	// Timeout bounds every command
	Timeout time.Duration
	// Logger for debug output
	Logger *zap.Logger
}

func (c *CUPSConfig) withDefaults() *CUPSConfig {
	out := CUPSConfig{}
	if c != nil {
		out = *c
	}
	if out.LpPath == "" {
		out.LpPath = defaultLpPath
	}
	if out.LpstatPath == "" {
		out.LpstatPath = defaultLpstatPath
	}
	if out.Timeout == 0 {
		out.Timeout = defaultCUPSTimeout
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return &out
}

// CUPSDeviceLister enumerates destinations with lpstat
type CUPSDeviceLister struct {
	config *CUPSConfig
	runner CommandRunner
	logger *zap.Logger
}

var _ printing.DeviceLister = (*CUPSDeviceLister)(nil)

// NewCUPSDeviceLister creates a new CUPSDeviceLister. With a nil runner the
// lpstat binary must be installed.
func NewCUPSDeviceLister(config *CUPSConfig, runner CommandRunner) (*CUPSDeviceLister, error) {
	config = config.withDefaults()
	if runner == nil {
		path, err := resolveBinary(config.LpstatPath)
		if err != nil {
			return nil, err
		}
		config.LpstatPath = path
		runner = NewExecRunner(config.Logger)
	}
	return &CUPSDeviceLister{config: config, runner: runner, logger: config.Logger}, nil
}

// ListDevices returns every destination in lpstat order. A system without
// destinations yields an empty list.
func (l *CUPSDeviceLister) ListDevices(ctx context.Context) ([]printing.Device, error) {
	out, err := l.runner.Run(ctx, Command{
		Binary:  l.config.LpstatPath,
		Args:    []string{"-e"},
		Timeout: l.config.Timeout,
	})
	if err != nil {
		if noDestinations(out, err) {
			return []printing.Device{}, nil
		}
		return nil, err
	}

	devices := make([]printing.Device, 0)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		devices = append(devices, printing.Device{Name: name})
	}
	return devices, scanner.Err()
}

// DefaultDevice returns the system default destination
func (l *CUPSDeviceLister) DefaultDevice(ctx context.Context) (printing.Device, bool, error) {
	out, err := l.runner.Run(ctx, Command{
		Binary:  l.config.LpstatPath,
		Args:    []string{"-d"},
		Timeout: l.config.Timeout,
	})
	if err != nil {
		if noDestinations(out, err) {
			return printing.Device{}, false, nil
		}
		return printing.Device{}, false, err
	}

	line := strings.TrimSpace(string(out))
	if _, name, ok := strings.Cut(line, "system default destination:"); ok {
		name = strings.TrimSpace(name)
		if name != "" {
			return printing.Device{Name: name, Default: true}, true, nil
		}
	}
	return printing.Device{}, false, nil
}

func noDestinations(out []byte, err error) bool {
	msg := strings.ToLower(string(out))
	if err != nil {
		msg += " " + strings.ToLower(err.Error())
	}
	return strings.Contains(msg, "no destinations added") ||
		strings.Contains(msg, "no system default destination")
}

// CUPSSpooler submits jobs with lp, streaming the payload on stdin
type CUPSSpooler struct {
	config *CUPSConfig
	runner CommandRunner
	logger *zap.Logger
}

var _ printing.Spooler = (*CUPSSpooler)(nil)

// NewCUPSSpooler creates a new CUPSSpooler. With a nil runner the lp binary
// must be installed.
func NewCUPSSpooler(config *CUPSConfig, runner CommandRunner) (*CUPSSpooler, error) {
	config = config.withDefaults()
	if runner == nil {
		path, err := resolveBinary(config.LpPath)
		if err != nil {
			return nil, err
		}
		config.LpPath = path
		runner = NewExecRunner(config.Logger)
	}
	return &CUPSSpooler{config: config, runner: runner, logger: config.Logger}, nil
}

// Submit queues payload on deviceName, or on the system default when empty
func (s *CUPSSpooler) Submit(
	ctx context.Context,
	payload io.Reader,
	format printing.SubmissionFormat,
	orientation printing.Orientation,
	copies int,
	deviceName string,
) error {
	out, err := s.runner.Run(ctx, Command{
		Binary:  s.config.LpPath,
		Args:    lpArgs(format, orientation, copies, deviceName),
		Stdin:   payload,
		Timeout: s.config.Timeout,
	})
	if err != nil {
		return err
	}

	fields := []zap.Field{zap.String("device", deviceName)}
	if m := requestIDPattern.FindSubmatch(out); m != nil {
		fields = append(fields, zap.String("cups_job", string(m[1])))
	}
	s.logger.Debug("job queued", fields...)
	return nil
}

func lpArgs(format printing.SubmissionFormat, orientation printing.Orientation, copies int, deviceName string) []string {
	if copies < printing.MinCopies {
		copies = printing.MinCopies
	}
	ipp := ippPortrait
	if orientation == printing.OrientationLandscape {
		ipp = ippLandscape
	}

	args := make([]string, 0, 10)
	if deviceName != "" {
		args = append(args, "-d", deviceName)
	}
	args = append(args,
		"-n", strconv.Itoa(copies),
		"-o", "orientation-requested="+strconv.Itoa(ipp),
	)
	if format != "" {
		args = append(args, "-o", "document-format="+string(format))
	}
	return args
}
