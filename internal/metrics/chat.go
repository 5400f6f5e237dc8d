package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		chatReplies,
		chatMatches,
	)
}

var (
	chatReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minutes_chat_replies_total",
			Help: "Assistant replies per kind (grounded, no_match, generation_fallback).",
		},
		[]string{"kind"},
	)

	chatMatches = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "minutes_chat_matches",
			Help:    "Number of transcript chunks retrieved per question.",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 10},
		},
	)
)

// Reply kinds.
const (
	ReplyGrounded           = "grounded"
	ReplyNoMatch            = "no_match"
	ReplyGenerationFallback = "generation_fallback"
)

// ChatReply counts one assistant reply of kind and the matches behind it.
func ChatReply(kind string, matches int) {
	chatReplies.WithLabelValues(norm(kind)).Inc()
	chatMatches.Observe(float64(matches))
}
