package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	printingapp "github.com/erp/printdispatch/internal/application/printing"
	"github.com/erp/printdispatch/internal/domain/printing"
	"github.com/erp/printdispatch/internal/domain/shared"
	"github.com/erp/printdispatch/internal/infrastructure/logger"
	"github.com/erp/printdispatch/internal/interfaces/http/dto"
	"github.com/erp/printdispatch/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	uploadPrefix     = "upload-"
)

// Dispatcher starts print runs without waiting for them
type Dispatcher interface {
	Go(ctx context.Context, req *printing.PrintRequest) (*printingapp.Pending, error)
}

// PrintConfig holds the limits of the print endpoints
type PrintConfig struct {
	// UploadDir receives multipart uploads until their run finishes
	UploadDir string
	// MaxUploadBytes caps the request body of an upload
	MaxUploadBytes int64
	// WaitTimeout bounds how long a request with wait=true blocks
	WaitTimeout time.Duration
	// AllowedRoots are the directories local path sources may name. Empty
	// rejects every local path.
	AllowedRoots []string
}

// PrintHandler handles print run endpoints
type PrintHandler struct {
	BaseHandler
	dispatcher Dispatcher
	history    printing.RunHistory
	config     PrintConfig
	roots      sourceRoots
	inflight   *inflightRuns
}

// NewPrintHandler creates a new PrintHandler. history may be nil, in which
// case finished runs cannot be looked up.
func NewPrintHandler(dispatcher Dispatcher, history printing.RunHistory, config PrintConfig) *PrintHandler {
	if config.UploadDir == "" {
		config.UploadDir = filepath.Join(os.TempDir(), "printdispatch-uploads")
	}
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = 2 * time.Minute
	}
	return &PrintHandler{
		dispatcher: dispatcher,
		history:    history,
		config:     config,
		roots:      newSourceRoots(config.AllowedRoots),
		inflight:   newInflightRuns(),
	}
}

// Create handles POST /prints.
// The source is either a path or s3:// URI in the body or a multipart "file"
// upload. The response is 202 with the request ID unless wait is set and the
// run finishes within the wait timeout.
func (h *PrintHandler) Create(c *gin.Context) {
	log := logger.GetGinLogger(c)

	var req dto.CreatePrintRequest
	upload, err := h.bind(c, &req)
	if err != nil {
		h.handleBindError(c, err)
		return
	}
	discardUpload := func() {
		if upload == "" {
			return
		}
		if err := os.Remove(upload); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove upload", zap.String("path", upload), zap.Error(err))
		}
	}

	source := req.Source
	if upload != "" {
		source = upload
	}
	printReq, err := h.newPrintRequest(source, req, upload, log)
	if errors.Is(err, errSourceForbidden) {
		log.Warn("print source rejected", zap.String("source", source), zap.Error(err))
		h.Error(c, http.StatusForbidden, dto.ErrCodeSourceForbidden, errSourceForbidden.Error())
		return
	}
	if err != nil {
		discardUpload()
		h.HandleError(c, err)
		return
	}

	id := printReq.ID()
	if !h.inflight.reserve(id) {
		discardUpload()
		h.Conflict(c, dto.ErrCodeDuplicatePrintRequest, "print request "+id.String()+" is already running")
		return
	}

	pending, err := h.dispatcher.Go(c.Request.Context(), printReq)
	if err != nil {
		h.inflight.release(id)
		discardUpload()
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			h.HandleError(c, err)
			return
		}
		log.Warn("print request rejected", zap.String("print_request_id", id.String()), zap.Error(err))
		h.Unavailable(c, "print queue is full, retry later")
		return
	}
	h.inflight.track(id, pending, func(result *printing.RunResult) {
		// a refused request never fires its completion hook
		if result == nil {
			discardUpload()
		}
	})
	c.Header("Location", c.FullPath()+"/"+id.String())

	if !req.Wait {
		h.Accepted(c, dto.PrintAcceptedResponse{RequestID: id.String(), State: dto.StateRunning})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.WaitTimeout)
	defer cancel()
	result, err := pending.Wait(ctx)
	switch {
	case result != nil:
		h.respondRun(c, result)
	case ctx.Err() != nil:
		h.Accepted(c, dto.PrintAcceptedResponse{RequestID: id.String(), State: dto.StateRunning})
	default:
		h.HandleError(c, err)
	}
}

// Get handles GET /prints/:id, looking the ID up as a request ID
func (h *PrintHandler) Get(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.ValidationError(c, err)
		return
	}
	id := uuid.MustParse(uri.ID)

	if h.inflight.contains(id) {
		h.Accepted(c, dto.PrintAcceptedResponse{RequestID: id.String(), State: dto.StateRunning})
		return
	}
	if h.history == nil {
		h.NotFound(c, "print run history is disabled")
		return
	}

	result, err := h.history.FindByRequestID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "print request "+id.String()+" not found")
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewPrintRunResponse(result))
}

// List handles GET /prints, returning the most recent finished runs
func (h *PrintHandler) List(c *gin.Context) {
	var q dto.ListPrintsRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultListLimit
	}

	runs := []dto.PrintRunResponse{}
	if h.history != nil {
		results, err := h.history.ListRecent(c.Request.Context(), q.Limit)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		for i := range results {
			runs = append(runs, dto.NewPrintRunResponse(&results[i]))
		}
	}
	h.SuccessList(c, runs, len(runs), q.Limit)
}

// respondRun writes a finished run. A failed run is reported with the status
// of its error code and the run itself as data.
func (h *PrintHandler) respondRun(c *gin.Context, result *printing.RunResult) {
	data := dto.NewPrintRunResponse(result)
	if result.Completed() {
		h.Success(c, data)
		return
	}
	resp := dto.NewErrorResponseWithRequestID(data.ErrorCode, data.ErrorMessage, middleware.GetRequestID(c))
	resp.Data = data
	c.JSON(dto.GetHTTPStatus(data.ErrorCode), resp)
}

// bind reads a JSON or multipart body. For multipart requests the "file" part
// is saved to the upload directory and its path returned.
func (h *PrintHandler) bind(c *gin.Context, req *dto.CreatePrintRequest) (string, error) {
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		if err := c.ShouldBindJSON(req); err != nil {
			return "", err
		}
		if strings.TrimSpace(req.Source) == "" {
			return "", errMissingSource
		}
		return "", nil
	}

	if h.config.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.config.MaxUploadBytes)
	}
	if err := c.ShouldBindWith(req, binding.FormMultipart); err != nil {
		return "", err
	}

	file, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		if strings.TrimSpace(req.Source) == "" {
			return "", errMissingSource
		}
		return "", nil
	}
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if printing.ResolveFormat(file.Filename).IsUnknown() {
		return "", printing.UnsupportedFormat(file.Filename)
	}
	if err := os.MkdirAll(h.config.UploadDir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(h.config.UploadDir, uploadPrefix+uuid.NewString()+ext)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		return "", err
	}
	return dst, nil
}

var errMissingSource = errors.New("either source or a file upload is required")

func (h *PrintHandler) handleBindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	var maxBytesErr *http.MaxBytesError
	var domainErr *shared.DomainError
	switch {
	case errors.As(err, &validationErrs):
		h.ValidationError(c, err)
	case errors.As(err, &maxBytesErr):
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadLarge, "upload exceeds the size limit")
	case errors.As(err, &domainErr):
		h.HandleError(c, err)
	default:
		h.BadRequest(c, err.Error())
	}
}

func (h *PrintHandler) newPrintRequest(source string, req dto.CreatePrintRequest, upload string, log *zap.Logger) (*printing.PrintRequest, error) {
	orientation, err := printing.ParseOrientation(req.Orientation)
	if err != nil {
		return nil, err
	}
	opts := []printing.RequestOption{
		printing.WithDevice(strings.TrimSpace(req.Device)),
		printing.WithOrientation(orientation),
	}
	if req.Copies > 0 {
		opts = append(opts, printing.WithCopies(req.Copies))
	}
	if req.RequestID != "" {
		id, err := uuid.Parse(req.RequestID)
		if err != nil {
			return nil, printing.InvalidRequest("invalid request_id")
		}
		opts = append(opts, printing.WithRequestID(id))
	}
	if upload != "" {
		opts = append(opts, printing.WithCompletionHook(func(*printing.RunResult) {
			if err := os.Remove(upload); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn("failed to remove upload", zap.String("path", upload), zap.Error(err))
			}
		}))
	} else {
		source, err = h.roots.resolve(strings.TrimSpace(source))
		if err != nil {
			return nil, err
		}
	}
	return printing.NewPrintRequest(source, opts...)
}
