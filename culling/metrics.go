package culling

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tilesTested = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tile_culling_tested",
		Help: "The number of tiles tested against the camera frustum during the last frame.",
	})

	tilesVisible = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tile_culling_visible",
		Help: "The number of tiles visible during the last frame.",
	})
)

func instrumentCull(tested, visible int) {
	tilesTested.Set(float64(tested))
	tilesVisible.Set(float64(visible))
}
