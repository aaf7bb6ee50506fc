package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"akatsuki/api/internal/core/domain"
)

// counterValue reads one sample from the registry by family name and labels.
func counterValue(t *testing.T, m *Metrics, family string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != family {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range metric.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue next
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

type stubGateway struct {
	err error
}

func (s stubGateway) QueryMany(context.Context, string, string, ...any) ([]domain.Row, error) {
	return []domain.Row{}, s.err
}
func (s stubGateway) QueryOne(context.Context, string, string, ...any) (domain.Row, error) {
	return nil, s.err
}
func (s stubGateway) Execute(context.Context, string, string, ...any) error { return s.err }
func (s stubGateway) ExecuteReturningID(context.Context, string, string, ...any) (int64, error) {
	return 7, s.err
}

type stubMailer struct{ err error }

func (s stubMailer) Send(context.Context, domain.MailMessage) error { return s.err }

func TestInstrument_LabelsByRoutePattern(t *testing.T) {
	m := New(nil)

	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 3.0, counterValue(t, m, "akatsuki_http_requests_total",
		map[string]string{"method": "GET", "route": "/users/{id}", "status": "418"}))
	assert.Equal(t, 1.0, counterValue(t, m, "akatsuki_http_requests_total",
		map[string]string{"route": "unmatched", "status": "404"}))
}

func TestInstrumentGateway_Outcomes(t *testing.T) {
	m := New(nil)
	ctx := context.Background()

	m.InstrumentGateway(stubGateway{}).Execute(ctx, "t", "UPDATE t SET a = 1")
	m.InstrumentGateway(stubGateway{err: fmt.Errorf("t: %w", domain.ErrNotFound)}).QueryOne(ctx, "t", "SELECT 1")
	m.InstrumentGateway(stubGateway{err: fmt.Errorf("t: %w: boom", domain.ErrDriver)}).QueryMany(ctx, "t", "SELECT 1")
	id, err := m.InstrumentGateway(stubGateway{err: fmt.Errorf("t: %w", domain.ErrLastInsertIDUnknown)}).
		ExecuteReturningID(ctx, "t", "INSERT INTO t VALUES (1)")

	assert.Equal(t, int64(7), id)
	assert.ErrorIs(t, err, domain.ErrLastInsertIDUnknown)

	cases := map[string]string{
		"execute":              "ok",
		"query_one":            "not_found",
		"query_many":           "driver_error",
		"execute_returning_id": "id_unknown",
	}
	for op, out := range cases {
		assert.Equal(t, 1.0, counterValue(t, m, "akatsuki_gateway_calls_total",
			map[string]string{"operation": op, "outcome": out}), op)
	}
}

func TestInstrumentMailer(t *testing.T) {
	m := New(nil)
	ctx := context.Background()

	require.NoError(t, m.InstrumentMailer(stubMailer{}).Send(ctx, domain.MailMessage{}))
	err := m.InstrumentMailer(stubMailer{err: domain.ErrMailNotConfigured}).Send(ctx, domain.MailMessage{})
	assert.ErrorIs(t, err, domain.ErrMailNotConfigured)

	assert.Equal(t, 1.0, counterValue(t, m, "akatsuki_mail_sends_total", map[string]string{"outcome": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, m, "akatsuki_mail_sends_total", map[string]string{"outcome": "not_configured"}))
}

func TestHandler_ExposesPoolStats(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := New(db)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(string(body), `go_sql_max_open_connections{db_name="mysql"}`))
	assert.Contains(t, string(body), "go_goroutines")
}
