package blocks

import (
	"os"
	"strconv"
	"sync/atomic"

	"github.com/bnb-chain/stackcfg/log"
)

// debugLogs toggles per-instruction tracing of the graph builder.
// Off by default; set STACKCFG_DEBUG=1 or call EnableDebugLogs.
var debugLogs atomic.Bool

// annotateTrace samples the per-instruction trace. STACKCFG_DEBUG_EVERY=n
// keeps every n-th line; unset keeps all of them.
var annotateTrace = &log.EveryN{}

func init() {
	if v := os.Getenv("STACKCFG_DEBUG"); v == "1" || v == "true" {
		debugLogs.Store(true)
	}
	if n, err := strconv.ParseUint(os.Getenv("STACKCFG_DEBUG_EVERY"), 10, 32); err == nil {
		annotateTrace.N = uint32(n)
	}
}

// EnableDebugLogs toggles the graph builder debug logs.
func EnableDebugLogs(on bool) { debugLogs.Store(on) }

// DebugLogsEnabled reports whether the graph builder debug logs are on.
func DebugLogsEnabled() bool { return debugLogs.Load() }

// debugInfo emits info through filter only if debug logging is enabled.
func debugInfo(filter log.LoggerFilter, msg string, ctx ...interface{}) {
	if debugLogs.Load() {
		log.InfoBy(filter, msg, ctx...)
	}
}
