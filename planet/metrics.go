package planet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	stateLabel = "state"
)

var (
	frameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "planet_frame_duration",
		Help:    "The time spent updating the planet tiles during a frame.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	frameSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planet_lod_submitted",
		Help: "The number of tile builds submitted by the level of detail selection.",
	})

	tiles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "planet_tiles",
		Help: "The number of tiles by state.",
	}, []string{stateLabel})
)

func instrumentFrame(s FrameStats) {
	frameDuration.Observe(s.Duration.Seconds())
	frameSubmitted.Add(float64(s.Submitted))
}

func instrumentTiles(s TileStats) {
	tiles.WithLabelValues("unbuilt").Set(float64(s.Unbuilt))
	tiles.WithLabelValues("building").Set(float64(s.Building))
	tiles.WithLabelValues("ready").Set(float64(s.Ready))
	tiles.WithLabelValues("failed").Set(float64(s.Failed))
	tiles.WithLabelValues("active").Set(float64(s.Active))
	tiles.WithLabelValues("visible").Set(float64(s.Visible))
}
