// Package log adds filtered logging on top of the go-ethereum root logger.
package log

import (
	"sync/atomic"

	ethlog "github.com/ethereum/go-ethereum/log"
	"golang.org/x/exp/slog"
)

// LoggerFilter decides, per call, whether a record is written.
type LoggerFilter interface {
	check() bool
}

// EveryN passes every N-th check. A zero N passes all of them.
type EveryN struct {
	N       uint32
	counter uint32
}

func (e *EveryN) check() bool {
	if e == nil || e.N == 0 {
		return true
	}
	return atomic.AddUint32(&e.counter, 1)%e.N == 0
}

// FirstN passes the first N checks and rejects the rest.
type FirstN struct {
	N       uint32
	counter uint32
}

func (f *FirstN) check() bool {
	if f == nil {
		return true
	}
	return atomic.AddUint32(&f.counter, 1) <= f.N
}

type ifCondition bool

func (c ifCondition) check() bool { return bool(c) }

var (
	_ LoggerFilter = &EveryN{}
	_ LoggerFilter = &FirstN{}
	_ LoggerFilter = ifCondition(false)
)

func writeBy(filter LoggerFilter, level slog.Level, msg string, ctx []interface{}) {
	if filter == nil || filter.check() {
		ethlog.Root().Write(level, msg, ctx...)
	}
}

func DebugBy(filter LoggerFilter, msg string, ctx ...interface{}) {
	writeBy(filter, slog.LevelDebug, msg, ctx)
}

func InfoBy(filter LoggerFilter, msg string, ctx ...interface{}) {
	writeBy(filter, slog.LevelInfo, msg, ctx)
}

// InfoIf logs at info level when condition holds.
func InfoIf(condition bool, msg string, ctx ...interface{}) {
	writeBy(ifCondition(condition), slog.LevelInfo, msg, ctx)
}

// WarnIf logs at warn level when condition holds.
func WarnIf(condition bool, msg string, ctx ...interface{}) {
	writeBy(ifCondition(condition), slog.LevelWarn, msg, ctx)
}
