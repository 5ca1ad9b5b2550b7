package certificates

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"certificate-studio/generator-backend/internal/assets"
	"certificate-studio/generator-backend/internal/templates"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// UnboundHeader lists placeholders left verbatim, query-escaped and comma
// separated.
const UnboundHeader = "X-Unbound-Placeholders"

// Handler handles HTTP requests for template and certificate operations
type Handler struct {
	service   *Service
	publisher *Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandler creates a new certificates handler. publisher may be nil when
// object storage is not configured.
func NewHandler(service *Service, publisher *Publisher, logger *zap.Logger) *Handler {
	return &Handler{
		service:   service,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterRoutes registers template and certificate routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	tpl := router.Group("/templates")
	{
		tpl.POST("/validate", h.validateTemplate)
		tpl.GET("/default", h.defaultTemplate)
	}

	certs := router.Group("/certificates")
	{
		certs.POST("/preview", h.previewCertificate)
		certs.POST("/generate", h.generateCertificate)
	}
}

// RequestID tags every request with an ID, reusing the caller's when sent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// validateTemplate handles POST /api/v1/templates/validate
func (h *Handler) validateTemplate(c *gin.Context) {
	var tpl templates.Template
	if err := c.ShouldBindJSON(&tpl); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.service.Validate(&tpl))
}

// defaultTemplate handles GET /api/v1/templates/default
func (h *Handler) defaultTemplate(c *gin.Context) {
	tpl := templates.DefaultTemplate(h.now())
	tpl.ID = templates.NewTemplateID(tpl.Name, h.now())
	c.JSON(http.StatusOK, tpl)
}

// previewCertificate handles POST /api/v1/certificates/preview
func (h *Handler) previewCertificate(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	png, result, err := h.service.Preview(c.Request.Context(), req.Template, req.FieldValues)
	if err != nil {
		h.fail(c, "Failed to preview certificate", err)
		return
	}

	c.Header("X-Decode-Failures", strconv.Itoa(len(result.Failures)))
	c.Data(http.StatusOK, "image/png", png)
}

// generateCertificate handles POST /api/v1/certificates/generate
func (h *Handler) generateCertificate(c *gin.Context) {
	var req templates.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	publish := c.Query("publish") == "true"
	if publish && h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "publishing is not configured"})
		return
	}

	result, err := h.service.Generate(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, "Failed to generate certificate", err)
		return
	}

	if publish {
		if _, err := h.publisher.Publish(c.Request.Context(), result); err != nil {
			h.logger.Error("Failed to publish certificate", zap.Error(err),
				zap.String("certificate_code", result.Code), h.requestID(c))
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
			return
		}
		c.Header("X-Certificate-URL", result.URL)
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.FileName}))
	c.Header("X-Certificate-Code", result.Code)
	c.Header("X-Decode-Failures", strconv.Itoa(len(result.Failures)))
	if len(result.Unbound) > 0 {
		c.Header(UnboundHeader, unboundHeader(result.Unbound))
	}
	c.Data(http.StatusOK, "application/pdf", result.PDF)
}

// fail maps service errors onto status codes. Nothing has been written to
// the body when it is called.
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	var validationErr *templates.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Errors: validationErr.Errors})
	case errors.Is(err, assets.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		h.logger.Error(msg, zap.Error(err), h.requestID(c))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func unboundHeader(names []string) string {
	escaped := make([]string, len(names))
	for i, name := range names {
		escaped[i] = url.QueryEscape(name)
	}
	return strings.Join(escaped, ",")
}

func (h *Handler) requestID(c *gin.Context) zap.Field {
	return zap.String("request_id", c.GetString("request_id"))
}
