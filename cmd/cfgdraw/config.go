package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"

	"github.com/bnb-chain/stackcfg/core/blocks"
	"github.com/bnb-chain/stackcfg/log"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: "CFGDRAW",
	}
	workersFlag = &cli.IntFlag{
		Name:     "workers",
		Usage:    "Number of pool workers processing nested code units",
		Category: "CFGDRAW",
	}
	cacheSizeFlag = &cli.IntFlag{
		Name:     "cache",
		Usage:    "Number of block layouts kept for structurally identical units (0 disables the cache)",
		Category: "CFGDRAW",
	}
	debugTraceFlag = &cli.BoolFlag{
		Name:     "trace-annotation",
		Usage:    "Log every annotated instruction (units served from the layout cache are not re-annotated)",
		Category: "CFGDRAW",
	}
	outFlag = &cli.StringFlag{
		Name:  "out",
		Usage: "Output file path. If empty, write to stdout",
	}
	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Graph format: dot or svg (inferred from --out when omitted)",
	}
	titleFlag = &cli.StringFlag{
		Name:  "title",
		Usage: "Graph title (defaults to the unit name)",
	}
	unitFlag = &cli.StringFlag{
		Name:  "unit",
		Usage: "Name of the code unit to draw (defaults to the root unit)",
	}
	encodingFlag = &cli.StringFlag{
		Name:  "encoding",
		Usage: "Export encoding: cbor or json",
	}
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// BuilderConfig configures the graph builder.
type BuilderConfig struct {
	Workers   int
	CacheSize int
	Trace     bool
}

// OutputConfig configures rendering and export.
type OutputConfig struct {
	Format   string
	Title    string
	Encoding string
}

type cfgdrawConfig struct {
	Builder BuilderConfig
	Output  OutputConfig
}

var defaultConfig = cfgdrawConfig{
	Builder: BuilderConfig{
		Workers:   1,
		CacheSize: blocks.DefaultLayoutCacheSize,
	},
	Output: OutputConfig{
		Encoding: "cbor",
	},
}

func loadConfig(file string, cfg *cfgdrawConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the configuration file, if any, and applies the flags
// set on the command line on top of it.
func makeConfig(ctx *cli.Context) (*cfgdrawConfig, error) {
	cfg := defaultConfig
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return nil, err
		}
	}
	if ctx.IsSet(workersFlag.Name) {
		cfg.Builder.Workers = ctx.Int(workersFlag.Name)
	}
	if ctx.IsSet(cacheSizeFlag.Name) {
		cfg.Builder.CacheSize = ctx.Int(cacheSizeFlag.Name)
	}
	if ctx.IsSet(debugTraceFlag.Name) {
		cfg.Builder.Trace = ctx.Bool(debugTraceFlag.Name)
	}
	if ctx.IsSet(formatFlag.Name) {
		cfg.Output.Format = ctx.String(formatFlag.Name)
	}
	if ctx.IsSet(titleFlag.Name) {
		cfg.Output.Title = ctx.String(titleFlag.Name)
	}
	if ctx.IsSet(encodingFlag.Name) {
		cfg.Output.Encoding = ctx.String(encodingFlag.Name)
	}
	return &cfg, nil
}

// makeBuilder creates the graph builder described by cfg.
func makeBuilder(cfg *BuilderConfig) *blocks.Builder {
	blocks.EnableDebugLogs(cfg.Trace)
	log.WarnIf(cfg.Workers < 1, "Worker count clamped", "requested", cfg.Workers, "workers", 1)
	log.WarnIf(cfg.Trace && cfg.CacheSize > 0, "Annotation trace skips units served from the layout cache", "cache", cfg.CacheSize)
	opts := []blocks.Option{blocks.WithWorkers(cfg.Workers)}
	if cfg.CacheSize > 0 {
		opts = append(opts, blocks.WithCache(blocks.NewLayoutCache(cfg.CacheSize)))
	}
	return blocks.NewBuilder(opts...)
}
