package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"akatsuki/api/internal/core/domain"
)

type fakeGateway struct {
	domain.QueryGateway
	err   error
	query string
}

func (f *fakeGateway) QueryOne(ctx context.Context, method, query string, args ...any) (domain.Row, error) {
	f.query = query
	if f.err != nil {
		return nil, f.err
	}
	return domain.Row{"ok": int64(1)}, nil
}

type fakeMailer struct {
	err  error
	sent []domain.MailMessage
}

func (f *fakeMailer) Send(ctx context.Context, msg domain.MailMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		gw := &fakeGateway{}
		rec := httptest.NewRecorder()
		NewHealthHandler(gw).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "healthy", rec.Body.String())
		assert.Equal(t, "SELECT 1 AS ok", gw.query)
	})

	t.Run("database down", func(t *testing.T) {
		gw := &fakeGateway{err: fmt.Errorf("HealthHandler.Check: %w", domain.ErrDriver)}
		rec := httptest.NewRecorder()
		NewHealthHandler(gw).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestDevTest(t *testing.T) {
	rec := httptest.NewRecorder()
	NewDevHandler().Test(rec, httptest.NewRequest(http.MethodPost, "/v1/test", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"text": ""}`, rec.Body.String())
}

func postMail(h *MailHandler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Send(rec, httptest.NewRequest(http.MethodPost, "/v1/mail", strings.NewReader(body)))
	return rec
}

func TestMailSend_Accepted(t *testing.T) {
	m := &fakeMailer{}
	rec := postMail(NewMailHandler(m, discard()), `{"subject":"Report","message":"<b>done</b>","send_mail":"ops@example.com","html":true}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, m.sent, 1)
	assert.Equal(t, domain.MailMessage{To: "ops@example.com", Subject: "Report", Body: "<b>done</b>", HTML: true}, m.sent[0])
}

func TestMailSend_Rejections(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"malformed json", `{"subject":`, nil, http.StatusBadRequest},
		{"unknown field", `{"subject":"s","message":"m","cc":"x"}`, nil, http.StatusBadRequest},
		{"missing subject", `{"message":"m"}`, nil, http.StatusUnprocessableEntity},
		{"subject too long", `{"subject":"` + strings.Repeat("x", 256) + `","message":"m"}`, nil, http.StatusUnprocessableEntity},
		{"bad recipient", `{"subject":"s","message":"m","send_mail":"not-an-address"}`, nil, http.StatusUnprocessableEntity},
		{"not configured", `{"subject":"s","message":"m"}`, domain.ErrMailNotConfigured, http.StatusServiceUnavailable},
		{"relay refused", `{"subject":"s","message":"m"}`, fmt.Errorf("%w: 554 rejected", domain.ErrMailDelivery), http.StatusBadGateway},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := postMail(NewMailHandler(&fakeMailer{err: c.err}, discard()), c.body)
			assert.Equal(t, c.want, rec.Code)
		})
	}
}

func TestHandleError_HidesInternalDetail(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("Repo.Find: %w: %w", domain.ErrDriver, fmt.Errorf("Error 1045: Access denied for user 'app'")), http.StatusInternalServerError},
		{fmt.Errorf("decrypt: %w", domain.ErrCrypto), http.StatusInternalServerError},
		{domain.ErrMisconfiguredKey, http.StatusInternalServerError},
		{fmt.Errorf("Repo.Insert: %w", domain.ErrLastInsertIDUnknown), http.StatusInternalServerError},
		{fmt.Errorf("Repo.Find: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("Repo.Find: %w: empty sql", domain.ErrInvalidInput), http.StatusBadRequest},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), discard(), c.err)

		assert.Equal(t, c.want, rec.Code, c.err.Error())
		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotContains(t, body.Message, "Access denied")
		assert.NotContains(t, body.Message, "sql")
	}
}

func TestHandleError_LogsServerFailuresToInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	rec := httptest.NewRecorder()
	HandleError(rec, httptest.NewRequest(http.MethodPost, "/v1/mail", nil), logger,
		fmt.Errorf("%w: 554 relay denied", domain.ErrMailDelivery))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, buf.String(), `"msg":"request failed"`)
	assert.Contains(t, buf.String(), "554 relay denied")
	assert.NotContains(t, rec.Body.String(), "554")

	buf.Reset()
	HandleError(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), logger,
		fmt.Errorf("x: %w", domain.ErrNotFound))
	assert.Empty(t, buf.String())
}
