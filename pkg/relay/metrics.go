package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "askandsay",
		Name:      "room_members",
		Help:      "Connected WebSocket clients per project room.",
	}, []string{"project_id"})

	messagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "askandsay",
		Name:      "messages_relayed_total",
		Help:      "Messages broadcast to room members, by origin.",
	}, []string{"origin"})

	aiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "askandsay",
		Name:      "ai_requests_total",
		Help:      "Assistant invocations, by outcome.",
	}, []string{"outcome"})

	aiRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "askandsay",
		Name:      "ai_request_duration_seconds",
		Help:      "Latency of assistant responses.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	handshakeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "askandsay",
		Name:      "handshake_rejections_total",
		Help:      "WebSocket handshakes rejected before upgrade, by reason.",
	}, []string{"reason"})
)
