package metrics

import (
	"context"
	"errors"
	"time"

	"akatsuki/api/internal/core/domain"
)

// InstrumentGateway decorates gw with call counters and latency histograms.
func (m *Metrics) InstrumentGateway(gw domain.QueryGateway) domain.QueryGateway {
	return &gatewayMetrics{next: gw, m: m}
}

// InstrumentMailer decorates mailer with a send counter.
func (m *Metrics) InstrumentMailer(mailer domain.Mailer) domain.Mailer {
	return &mailerMetrics{next: mailer, m: m}
}

type gatewayMetrics struct {
	next domain.QueryGateway
	m    *Metrics
}

func (g *gatewayMetrics) observe(op string, start time.Time, err error) {
	g.m.gatewayCalls.WithLabelValues(op, outcome(err)).Inc()
	g.m.gatewayDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (g *gatewayMetrics) QueryMany(ctx context.Context, method, query string, args ...any) ([]domain.Row, error) {
	start := time.Now()
	rows, err := g.next.QueryMany(ctx, method, query, args...)
	g.observe("query_many", start, err)
	return rows, err
}

func (g *gatewayMetrics) QueryOne(ctx context.Context, method, query string, args ...any) (domain.Row, error) {
	start := time.Now()
	row, err := g.next.QueryOne(ctx, method, query, args...)
	g.observe("query_one", start, err)
	return row, err
}

func (g *gatewayMetrics) Execute(ctx context.Context, method, query string, args ...any) error {
	start := time.Now()
	err := g.next.Execute(ctx, method, query, args...)
	g.observe("execute", start, err)
	return err
}

func (g *gatewayMetrics) ExecuteReturningID(ctx context.Context, method, query string, args ...any) (int64, error) {
	start := time.Now()
	id, err := g.next.ExecuteReturningID(ctx, method, query, args...)
	g.observe("execute_returning_id", start, err)
	return id, err
}

type mailerMetrics struct {
	next domain.Mailer
	m    *Metrics
}

func (s *mailerMetrics) Send(ctx context.Context, msg domain.MailMessage) error {
	err := s.next.Send(ctx, msg)
	s.m.mailSends.WithLabelValues(outcome(err)).Inc()
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrLastInsertIDUnknown):
		return "id_unknown"
	case errors.Is(err, domain.ErrDriver):
		return "driver_error"
	case errors.Is(err, domain.ErrMailNotConfigured):
		return "not_configured"
	case errors.Is(err, domain.ErrMailDelivery):
		return "delivery_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
