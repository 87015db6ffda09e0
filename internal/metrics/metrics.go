package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry: собственный реестр сервиса (не глобальный DefaultRegisterer),
// чтобы тесты могли спокойно создавать сервисы много раз.
var Registry = prometheus.NewRegistry()

var (
	// DecodeTotal: итог декодирования VIN.
	// side: client/proxy; source: cache/store/upstream/proxy; outcome: valid/not_found/network/invalid.
	DecodeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vinbox_decode_total",
			Help: "Total number of VIN decode results by side, source and outcome.",
		},
		[]string{"side", "source", "outcome"},
	)

	// UpstreamLatency: время ответа внешних декодеров (proxy/vpic).
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vinbox_upstream_latency_seconds",
			Help:    "Latency of calls to VIN decode providers.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// ScanDispatchTotal: сколько кандидатов отдал диспетчер (kind: vin/barcode).
	ScanDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vinbox_scan_dispatch_total",
			Help: "Total number of scan candidates dispatched to consumers.",
		},
		[]string{"kind"},
	)

	// RefreshTotal: перепроверки неуспешных VIN воркером (outcome как у DecodeTotal).
	RefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vinbox_refresh_total",
			Help: "Total number of stale failure re-decodes performed by the worker.",
		},
		[]string{"outcome"},
	)

	// KafkaPublishedTotal и KafkaConsumedTotal: сообщения vehicle.decoded (outcome: ok/error).
	KafkaPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vinbox_kafka_published_total",
			Help: "Total number of Kafka messages published by topic and outcome.",
		},
		[]string{"topic", "outcome"},
	)
	KafkaConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vinbox_kafka_consumed_total",
			Help: "Total number of Kafka messages handled by topic and outcome.",
		},
		[]string{"topic", "outcome"},
	)
)

func init() {
	Registry.MustRegister(DecodeTotal)
	Registry.MustRegister(UpstreamLatency)
	Registry.MustRegister(ScanDispatchTotal)
	Registry.MustRegister(RefreshTotal)
	Registry.MustRegister(KafkaPublishedTotal)
	Registry.MustRegister(KafkaConsumedTotal)
	Registry.MustRegister(collectors.NewGoCollector())
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Outcome переводит запись в метку outcome.
func Outcome(valid bool, failureKind string) string {
	if valid {
		return "valid"
	}
	if failureKind == "" {
		return "not_found"
	}
	return failureKind
}
