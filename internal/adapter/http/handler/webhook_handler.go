package handler

import (
	"io"

	"webhook-relay/internal/core/ports"
	"webhook-relay/pkg/apperror"
	"webhook-relay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WebhookHandler handles the public intake endpoint.
type WebhookHandler struct {
	intakeSvc    ports.IntakeService
	maxBodyBytes int
	log          zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(intakeSvc ports.IntakeService, maxBodyBytes int, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		intakeSvc:    intakeSvc,
		maxBodyBytes: maxBodyBytes,
		log:          log,
	}
}

// Receive handles POST /webhooks/:category. The handler stays thin: it reads
// a bounded body and forwards request metadata; all acceptance rules live in
// the intake service. One byte past the limit is read so the service can see
// the body is oversized without the handler buffering arbitrary input.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(h.maxBodyBytes)+1))
	if err != nil {
		response.Error(c, apperror.ErrIntakeFailed(err))
		return
	}

	_, err = h.intakeSvc.Accept(c.Request.Context(), ports.IntakeRequest{
		CategoryExternalID: c.Param("category"),
		Method:             c.Request.Method,
		Path:               c.Request.URL.Path,
		FullURL:            fullURL(c),
		UserAgent:          c.Request.UserAgent(),
		ClientIP:           c.ClientIP(),
		ContentType:        c.ContentType(),
		Body:               body,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c)
}

func fullURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}
