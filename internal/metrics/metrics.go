// Package metrics exposes Prometheus metrics for the auth flows, chat
// traffic and connected clients.
package metrics

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-agent-chat/authflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector is what the server records against.
type MetricsCollector interface {
	RecordTransition(flow authflow.Flow, from, to authflow.State, reason authflow.Reason)
	RecordChatMessage(attachments int)
	RecordChatReply(latency time.Duration, err error)
	SetLiveClients(n int)
	RecordHTTPRequest(method, route string, status int)
}

type Collector struct {
	transitions  *prometheus.CounterVec
	chatMessages prometheus.Counter
	attachments  prometheus.Counter
	chatReplies  *prometheus.CounterVec
	replyLatency prometheus.Histogram
	liveClients  prometheus.Gauge
	httpRequests *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentchat_auth_transitions_total",
			Help: "Auth flow state transitions by flow, target state and reason",
		}, []string{"flow", "state", "reason"}),
		chatMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentchat_chat_messages_total",
			Help: "User messages submitted to the chat backend",
		}),
		attachments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentchat_chat_attachments_total",
			Help: "Files attached to submitted messages",
		}),
		chatReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentchat_chat_replies_total",
			Help: "Chat backend replies by result",
		}, []string{"result"}),
		replyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentchat_chat_reply_latency_seconds",
			Help:    "Time from message submission to backend reply",
			Buckets: prometheus.DefBuckets,
		}),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agentchat_live_clients",
			Help: "Browser clients currently held in memory",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentchat_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		c.transitions,
		c.chatMessages,
		c.attachments,
		c.chatReplies,
		c.replyLatency,
		c.liveClients,
		c.httpRequests,
	)
	return c
}

// RecordTransition matches authflow.TransitionHook so it can be passed to
// authflow.WithTransitionHook directly.
func (c *Collector) RecordTransition(flow authflow.Flow, _, to authflow.State, reason authflow.Reason) {
	c.transitions.WithLabelValues(flow.String(), to.String(), reason.String()).Inc()
}

func (c *Collector) RecordChatMessage(attachments int) {
	c.chatMessages.Inc()
	c.attachments.Add(float64(attachments))
}

func (c *Collector) RecordChatReply(latency time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.chatReplies.WithLabelValues(result).Inc()
	c.replyLatency.Observe(latency.Seconds())
}

func (c *Collector) SetLiveClients(n int) {
	c.liveClients.Set(float64(n))
}

func (c *Collector) RecordHTTPRequest(method, route string, status int) {
	c.httpRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTransition(authflow.Flow, authflow.State, authflow.State, authflow.Reason) {}
func (Nop) RecordChatMessage(int) {}
func (Nop) RecordChatReply(time.Duration, error) {}
func (Nop) SetLiveClients(int) {}
func (Nop) RecordHTTPRequest(string, string, int) {}

// Handler serves the registry for Prometheus scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
