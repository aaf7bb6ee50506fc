package handlers

import (
	"log/slog"
	"net/http"

	"akatsuki/api/internal/core/domain"
)

// ==============================================================================
// 1. Request Payloads (Input Validation)
// ==============================================================================

type SendMailRequest struct {
	Subject string `json:"subject" validate:"required,max=255"`
	Message string `json:"message" validate:"required,max=1048576"`
	// SendMail overrides the configured destination when set.
	SendMail string `json:"send_mail" validate:"omitempty,email,max=254"`
	HTML     bool   `json:"html"`
}

// ==============================================================================
// 2. The Handler Struct (Dependency Injection)
// ==============================================================================

type MailHandler struct {
	Mailer domain.Mailer
	Logger *slog.Logger
}

func NewMailHandler(mailer domain.Mailer, logger *slog.Logger) *MailHandler {
	return &MailHandler{Mailer: mailer, Logger: logger}
}

// ==============================================================================
// 3. HTTP Methods
// ==============================================================================

// Send handles POST /v1/mail
func (h *MailHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendMailRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, h.Logger, err)
		return
	}

	if err := validate.Struct(req); err != nil {
		HandleError(w, r, h.Logger, err)
		return
	}

	err := h.Mailer.Send(r.Context(), domain.MailMessage{
		To:      req.SendMail,
		Subject: req.Subject,
		Body:    req.Message,
		HTML:    req.HTML,
	})
	if err != nil {
		HandleError(w, r, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}
