package cachemetrics

import (
	"time"

	"github.com/ethereum/go-ethereum/metrics"
)

type cacheLayerName string

const (
	LayoutCacheHit  cacheLayerName = "LAYOUT_CACHE_HIT"
	LayoutCacheMiss cacheLayerName = "LAYOUT_CACHE_MISS"
)

var (
	layoutHitTimer  = metrics.NewRegisteredTimer("stackcfg/cache/cost/hit", nil)
	layoutMissTimer = metrics.NewRegisteredTimer("stackcfg/cache/cost/miss", nil)

	layoutHitCounter  = metrics.NewRegisteredCounter("stackcfg/cache/count/hit", nil)
	layoutMissCounter = metrics.NewRegisteredCounter("stackcfg/cache/count/miss", nil)

	layoutHitCostCounter  = metrics.NewRegisteredCounter("stackcfg/cache/totalcost/hit", nil)
	layoutMissCostCounter = metrics.NewRegisteredCounter("stackcfg/cache/totalcost/miss", nil)
)

// mark the count of lookups answered by each outcome
func RecordCacheDepth(metricsName cacheLayerName) {
	switch metricsName {
	case LayoutCacheHit:
		layoutHitCounter.Inc(1)
	case LayoutCacheMiss:
		layoutMissCounter.Inc(1)
	}
}

// mark the delays of each outcome
func RecordCacheMetrics(metricsName cacheLayerName, start time.Time) {
	switch metricsName {
	case LayoutCacheHit:
		recordCost(layoutHitTimer, start)
	case LayoutCacheMiss:
		recordCost(layoutMissTimer, start)
	}
}

// accumulate the total delays of each outcome
func RecordTotalCosts(metricsName cacheLayerName, start time.Time) {
	switch metricsName {
	case LayoutCacheHit:
		accumulateCost(layoutHitCostCounter, start)
	case LayoutCacheMiss:
		accumulateCost(layoutMissCostCounter, start)
	}
}

func recordCost(timer metrics.Timer, start time.Time) {
	timer.Update(time.Since(start))
}

func accumulateCost(totalcost metrics.Counter, start time.Time) {
	totalcost.Inc(time.Since(start).Nanoseconds())
}
