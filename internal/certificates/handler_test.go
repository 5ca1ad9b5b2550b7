package certificates

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"certificate-studio/generator-backend/internal/certificates/export"
	"certificate-studio/generator-backend/internal/templates"
	"certificate-studio/generator-backend/pkg/storage/storagetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type handlerFixture struct {
	router   *gin.Engine
	renderer *MockRenderer
	exporter *MockExporter
	s3       *storagetest.MockS3Client
}

func newHandlerFixture(withPublisher bool) *handlerFixture {
	svc, renderer, exporter := newTestService(nil)
	f := &handlerFixture{renderer: renderer, exporter: exporter}

	var publisher *Publisher
	if withPublisher {
		f.s3 = new(storagetest.MockS3Client)
		publisher = NewPublisher(f.s3, "certs", time.Hour, zap.NewNop())
	}

	handler := NewHandler(svc, publisher, zap.NewNop())
	handler.now = func() time.Time { return time.UnixMilli(1700000000000) }

	f.router = gin.New()
	f.router.Use(RequestID())
	handler.RegisterRoutes(f.router.Group("/api/v1"))
	return f
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHandler_Validate(t *testing.T) {
	f := newHandlerFixture(false)
	tpl := helloTemplate()
	tpl.Fields = append(tpl.Fields, templates.Field{ID: "dup", Name: "NAME"})

	w := f.do(t, http.MethodPost, "/api/v1/templates/validate", tpl)
	require.Equal(t, http.StatusOK, w.Code)

	var result templates.ValidationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, templates.CodeSubstitutionAmbiguity, result.Errors[0].Code)
}

func TestHandler_Validate_BadJSON(t *testing.T) {
	f := newHandlerFixture(false)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates/validate", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_DefaultTemplate(t *testing.T) {
	f := newHandlerFixture(false)

	w := f.do(t, http.MethodGet, "/api/v1/templates/default", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var tpl templates.Template
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tpl))
	assert.Equal(t, "untitled-certificate-loyw3v28", tpl.ID)
	assert.Equal(t, templates.MaxCanvas, tpl.CanvasDimensions)
	assert.Len(t, tpl.Fields, 4)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestHandler_Preview(t *testing.T) {
	f := newHandlerFixture(false)
	f.renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(blankResult(), nil)

	w := f.do(t, http.MethodPost, "/api/v1/certificates/preview", PreviewRequest{Template: helloTemplate()})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-Decode-Failures"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestHandler_Preview_MissingTemplate(t *testing.T) {
	f := newHandlerFixture(false)

	w := f.do(t, http.MethodPost, "/api/v1/certificates/preview", map[string]any{"fieldValues": map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Generate(t *testing.T) {
	f := newHandlerFixture(false)
	f.renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(blankResult(), nil)
	f.exporter.On("Export", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	w := f.do(t, http.MethodPost, "/api/v1/certificates/generate", templates.GenerationRequest{
		Template:    helloTemplate(),
		FieldValues: map[string]string{"name": "Grace"},
		Code:        "cert_fixed",
	})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=certificate-Grace.pdf`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "cert_fixed", w.Header().Get("X-Certificate-Code"))
	assert.Empty(t, w.Header().Get(UnboundHeader))
	assert.Equal(t, fakePDF, w.Body.Bytes())
}

func TestHandler_Generate_UnboundPlaceholders(t *testing.T) {
	f := newHandlerFixture(false)
	f.renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(blankResult(), nil)
	f.exporter.On("Export", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	tpl := helloTemplate()
	tpl.Elements[0].(*templates.TextElement).Content = "Hello {{name}} of {{course}} at {{home town}}"

	w := f.do(t, http.MethodPost, "/api/v1/certificates/generate", templates.GenerationRequest{Template: tpl})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "course,home+town", w.Header().Get(UnboundHeader))
}

func TestHandler_Generate_ValidationError(t *testing.T) {
	f := newHandlerFixture(false)
	tpl := helloTemplate()
	tpl.CanvasDimensions = templates.CanvasDimensions{Width: -1, Height: 800}

	w := f.do(t, http.MethodPost, "/api/v1/certificates/generate", templates.GenerationRequest{Template: tpl})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, templates.CodeInvalidDimensions, resp.Errors[0].Code)
}

func TestHandler_Generate_EncodingError(t *testing.T) {
	f := newHandlerFixture(false)
	f.renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(blankResult(), nil)
	f.exporter.On("Export", mock.Anything, mock.Anything, mock.Anything).
		Return(&export.EncodingError{Op: "output", Err: errors.New("boom")})

	w := f.do(t, http.MethodPost, "/api/v1/certificates/generate", templates.GenerationRequest{Template: helloTemplate()})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

func TestHandler_Generate_InvalidCode(t *testing.T) {
	f := newHandlerFixture(false)

	w := f.do(t, http.MethodPost, "/api/v1/certificates/generate", templates.GenerationRequest{
		Template: helloTemplate(),
		Code:     "a/b",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Generate_Publish(t *testing.T) {
	f := newHandlerFixture(true)
	f.renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(blankResult(), nil)
	f.exporter.On("Export", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.s3.On("Upload", mock.Anything, "certs", "certificates/cert_pub/certificate-Ada.pdf", "application/pdf", mock.Anything).Return(nil)
	f.s3.On("GetPresignedURL", mock.Anything, "certs", "certificates/cert_pub/certificate-Ada.pdf", time.Hour).
		Return("https://certs.example.com/signed", nil)

	w := f.do(t, http.MethodPost, "/api/v1/certificates/generate?publish=true", templates.GenerationRequest{
		Template: helloTemplate(),
		Code:     "cert_pub",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://certs.example.com/signed", w.Header().Get("X-Certificate-URL"))
	f.s3.AssertExpectations(t)
}

func TestHandler_Generate_PublishNotConfigured(t *testing.T) {
	f := newHandlerFixture(false)

	w := f.do(t, http.MethodPost, "/api/v1/certificates/generate?publish=true", templates.GenerationRequest{Template: helloTemplate()})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	f.renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestID_ReusesHeader(t *testing.T) {
	f := newHandlerFixture(false)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates/default", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
}
