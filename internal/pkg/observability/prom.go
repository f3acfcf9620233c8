package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ServiceName = "bingobackend"
)

var (
	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    prometheus.BuildFQName(ServiceName, "upstream", "request_duration_seconds"),
		Help:    "Duration of upstream requests in seconds, retries included",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"op", "outcome"})
	UpstreamRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(ServiceName, "upstream", "retries_total"),
		Help: "Number of retried upstream attempts",
	}, []string{"op"})
	UpstreamCircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: prometheus.BuildFQName(ServiceName, "upstream", "circuit_state"),
		Help: "State of the upstream circuit breaker (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})
	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(ServiceName, "fetch", "failures_total"),
		Help: "Number of failed fetch sub-operations",
	}, []string{"op", "fatal"})
	CollectionSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    prometheus.BuildFQName(ServiceName, "collection", "size"),
		Help:    "Number of distinct watched ids fetched for a user",
		Buckets: prometheus.ExponentialBuckets(10, 2, 10),
	})
	MatrixBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    prometheus.BuildFQName(ServiceName, "matrix", "build_duration_seconds"),
		Help:    "Duration of popularity matrix builds in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"outcome"})
	CardRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(ServiceName, "card", "runs_total"),
		Help: "Number of card aggregation runs by outcome",
	}, []string{"mode", "outcome"})
	WorkerCalcDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: prometheus.BuildFQName(ServiceName, "worker", "calc_duration_seconds"),
		Help: "Duration of last worker calculation in seconds",
	}, []string{"service"})
)
