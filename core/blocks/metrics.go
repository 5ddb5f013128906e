package blocks

import "github.com/ethereum/go-ethereum/metrics"

var (
	unitsCounter     = metrics.NewRegisteredCounter("stackcfg/units", nil)
	blocksCounter    = metrics.NewRegisteredCounter("stackcfg/blocks", nil)
	edgesCounter     = metrics.NewRegisteredCounter("stackcfg/edges", nil)
	malformedCounter = metrics.NewRegisteredCounter("stackcfg/malformed", nil)

	buildTimer = metrics.NewRegisteredTimer("stackcfg/build", nil)
)
