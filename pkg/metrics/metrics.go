package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics counts reconciliation outcomes per event type.
type WebhookMetrics struct {
	processed *prometheus.CounterVec
	ignored   *prometheus.CounterVec
	rejected  *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed",
		Help: "Webhook events that applied an order transition.",
	}, []string{"event_type"})
	ignored := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_ignored",
		Help: "Webhook events acknowledged without a transition.",
	}, []string{"event_type"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_rejected",
		Help: "Webhook requests rejected before reconciliation.",
	}, []string{"reason"})
	reg.MustRegister(processed, ignored, rejected)
	return &WebhookMetrics{processed: processed, ignored: ignored, rejected: rejected}
}

// IncProcessed increments the processed counter for the event type.
func (m *WebhookMetrics) IncProcessed(eventType string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncIgnored increments the ignored counter for the event type.
func (m *WebhookMetrics) IncIgnored(eventType string) {
	if m == nil || m.ignored == nil {
		return
	}
	m.ignored.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncRejected increments the rejected counter for the reason.
func (m *WebhookMetrics) IncRejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// RateLimitMetrics counts throttling decisions per route.
type RateLimitMetrics struct {
	blocked *prometheus.CounterVec
}

// NewRateLimitMetrics registers the rate limit counters on the provided registerer.
func NewRateLimitMetrics(reg prometheus.Registerer) *RateLimitMetrics {
	if reg == nil {
		return &RateLimitMetrics{}
	}
	blocked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_blocked",
		Help: "Requests blocked by the rate limiter.",
	}, []string{"route"})
	reg.MustRegister(blocked)
	return &RateLimitMetrics{blocked: blocked}
}

// IncBlocked increments the blocked counter for the route.
func (m *RateLimitMetrics) IncBlocked(route string) {
	if m == nil || m.blocked == nil {
		return
	}
	m.blocked.WithLabelValues(normalizeLabel(route)).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
