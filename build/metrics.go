package build

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sideLabel    = "side"
	reasonLabel  = "reason"
	errTypeLabel = "error_type"
)

const (
	ignoredStale     = "stale"
	ignoredUnknown   = "unknown"
	ignoredUndecoded = "undecoded"
)

var (
	buildSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_build_submitted",
		Help: "The number of tile geometry builds submitted to the workers.",
	}, []string{sideLabel})

	buildCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_build_completed",
		Help: "The number of tile geometries swapped into their tile.",
	}, []string{sideLabel})

	buildIgnored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_build_ignored",
		Help: "The number of build results dropped because they were late, duplicated or unreadable.",
	}, []string{reasonLabel})

	buildRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_build_retried",
		Help: "The number of tile geometry builds submitted again.",
	}, []string{sideLabel})

	buildFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_build_failed",
		Help: "The number of tiles left without geometry after exhausting retries.",
	}, []string{sideLabel, errTypeLabel})

	buildLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tile_build_latency",
		Help:    "The time between a build submission and its completion.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{sideLabel})

	buildPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tile_build_pending",
		Help: "The number of builds waiting for their result.",
	})

	workerTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_build_worker_tasks",
		Help: "The number of tasks handled by the build workers.",
	}, []string{errTypeLabel})

	workerLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tile_build_worker_latency",
		Help:    "The time spent by a worker meshing a tile.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
)

func instrumentSubmit(side string) {
	buildSubmitted.With(prometheus.Labels{sideLabel: side}).Inc()
}

func instrumentRetry(side string) {
	buildRetried.With(prometheus.Labels{sideLabel: side}).Inc()
}

func instrumentCompletion(side string, submitted time.Time, now time.Time) {
	buildCompleted.With(prometheus.Labels{sideLabel: side}).Inc()
	buildLatency.
		With(prometheus.Labels{sideLabel: side}).
		Observe(now.Sub(submitted).Seconds())
}

func instrumentIgnored(reason string) {
	buildIgnored.With(prometheus.Labels{reasonLabel: reason}).Inc()
}

func instrumentFailure(side string, err error) {
	buildFailed.
		With(prometheus.Labels{
			sideLabel:    side,
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}

func instrumentPending(count int) {
	buildPending.Set(float64(count))
}

func instrumentWorkerTask(start time.Time, err error) {
	workerLatency.Observe(time.Since(start).Seconds())
	errType := ""
	if err != nil {
		errType = errors.Type(err)
	}
	workerTasks.With(prometheus.Labels{errTypeLabel: errType}).Inc()
}
