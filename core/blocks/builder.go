package blocks

import (
	"time"

	"github.com/bnb-chain/stackcfg/common/gopool"
	"github.com/bnb-chain/stackcfg/core/opcodes"
	mapset "github.com/deckarep/golang-set/v2"
	ethlog "github.com/ethereum/go-ethereum/log"
)

// Builder runs the graph pipeline over code units. A Builder holds no
// per-call state and may be shared between goroutines.
type Builder struct {
	cache   *LayoutCache
	workers int
	logger  ethlog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithCache reuses layouts of structurally identical units through cache.
func WithCache(cache *LayoutCache) Option {
	return func(b *Builder) { b.cache = cache }
}

// WithWorkers processes the units found by Process on up to n pool workers.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n < 1 {
			n = 1
		}
		b.workers = n
	}
}

// WithLogger sets the logger receiving per-unit summaries.
func WithLogger(logger ethlog.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{workers: 1, logger: ethlog.Root()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var defaultBuilder = NewBuilder()

// ProcessCode runs Process on a default builder.
func ProcessCode(code *opcodes.Code) (*OrderedCode, *BlockGraph, error) {
	return defaultBuilder.Process(code)
}

// OrderCode runs OrderCode on a default builder.
func OrderCode(code *opcodes.Code, graph *BlockGraph) (*OrderedCode, error) {
	return defaultBuilder.OrderCode(code, graph)
}

// Process builds code and every unit nested in it, registering all of them
// in a new BlockGraph in discovery order. A malformed unit fails the call.
func (b *Builder) Process(code *opcodes.Code) (*OrderedCode, *BlockGraph, error) {
	units := discover(code)
	results := make([]*OrderedCode, len(units))
	errs := make([]error, len(units))

	threads := gopool.Threads(len(units))
	if threads > b.workers {
		threads = b.workers
	}
	err := gopool.ForEach(len(units), threads, func(i int) {
		results[i], errs[i] = b.order(units[i])
	})
	if err != nil {
		return nil, nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}

	byCode := make(map[*opcodes.Code]*OrderedCode, len(units))
	for i, unit := range units {
		byCode[unit] = results[i]
	}
	graph := NewBlockGraph()
	for _, oc := range results {
		for _, nested := range oc.code.Nested() {
			oc.children = append(oc.children, byCode[nested])
		}
		if err := graph.Add(oc); err != nil {
			return nil, nil, err
		}
	}
	b.logger.Debug("Processed code", "name", code.Name, "units", len(units), "registered", graph.Len(), "threads", threads)
	return results[0], graph, nil
}

// OrderCode builds the single unit code and registers it in graph. Nested
// units are left alone.
func (b *Builder) OrderCode(code *opcodes.Code, graph *BlockGraph) (*OrderedCode, error) {
	oc, err := b.order(code)
	if err != nil {
		return nil, err
	}
	if err := graph.Add(oc); err != nil {
		return nil, err
	}
	return oc, nil
}

func (b *Builder) order(code *opcodes.Code) (*OrderedCode, error) {
	start := time.Now()
	defer buildTimer.UpdateSince(start)

	var (
		layout *Layout
		err    error
	)
	if b.cache != nil {
		layout, err = b.cache.Layout(code)
	} else {
		layout, err = BuildLayout(code)
	}
	if err != nil {
		b.logger.Debug("Failed to build code unit", "name", code.Name, "err", err)
		return nil, err
	}
	oc := newOrderedCode(code, code.Fingerprint(), layout)

	unitsCounter.Inc(1)
	blocksCounter.Inc(int64(len(oc.blocks)))
	edgesCounter.Inc(int64(len(oc.edges)))
	b.logger.Trace("Ordered code unit", "name", code.Name, "blocks", len(oc.blocks),
		"reachable", len(oc.order), "edges", len(oc.edges), "back", len(oc.backEdges))
	return oc, nil
}

// discover lists code and its transitively nested units in pre-order. A
// unit referenced from several constants is listed once.
func discover(code *opcodes.Code) []*opcodes.Code {
	var (
		units []*opcodes.Code
		seen  = mapset.NewThreadUnsafeSet[*opcodes.Code]()
		stack = []*opcodes.Code{code}
	)
	for len(stack) > 0 {
		unit := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen.Contains(unit) {
			continue
		}
		seen.Add(unit)
		units = append(units, unit)

		nested := unit.Nested()
		for i := len(nested) - 1; i >= 0; i-- {
			stack = append(stack, nested[i])
		}
	}
	return units
}
