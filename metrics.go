package ndimg

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	allocatedSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ndimg_allocated_samples_total",
		Help: "The total number of samples allocated by containers",
	})
	tiffTileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ndimg_tiff_tile_cache_hits_total",
		Help: "The total number of hits on the TIFF tile cache",
	})
	tiffTileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ndimg_tiff_tile_cache_misses_total",
		Help: "The total number of misses on the TIFF tile cache",
	})
	tiffTileCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ndimg_tiff_tile_cache_evictions_total",
		Help: "The total number of evictions from the TIFF tile cache",
	})
)
