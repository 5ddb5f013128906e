// cfgdraw assembles an instruction listing, builds the control-flow graphs
// of every code unit in it and prints them as DOT/SVG, a block table or an
// export record.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/bnb-chain/stackcfg/core/asm"
	"github.com/bnb-chain/stackcfg/core/blocks"
	"github.com/bnb-chain/stackcfg/internal/debug"
	"github.com/bnb-chain/stackcfg/log"
)

var (
	dotCommand = &cli.Command{
		Action:    drawGraph,
		Name:      "dot",
		Usage:     "Render the block graph of a code unit as DOT or SVG",
		ArgsUsage: "<listing>",
		Flags:     []cli.Flag{outFlag, formatFlag, titleFlag, unitFlag},
		Description: `
The dot command renders one code unit of the listing. SVG output needs the
graphviz "dot" binary in PATH.`,
	}
	blocksCommand = &cli.Command{
		Action:    printBlocks,
		Name:      "blocks",
		Usage:     "Print the blocks of every code unit as a table",
		ArgsUsage: "<listing>",
		Flags:     []cli.Flag{unitFlag},
	}
	exportCommand = &cli.Command{
		Action:    exportGraph,
		Name:      "export",
		Usage:     "Export the block graph of all code units as CBOR or JSON",
		ArgsUsage: "<listing>",
		Flags:     []cli.Flag{outFlag, encodingFlag},
	}
	dumpConfigCommand = &cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Export configuration values in a TOML format",
		ArgsUsage:   "<dumpfile (optional)>",
		Description: `Export configuration values in TOML format (to stdout by default).`,
	}
)

func newApp() *cli.App {
	app := &cli.App{
		Name:  "cfgdraw",
		Usage: "control-flow graphs for stack-machine bytecode listings",
		Commands: []*cli.Command{
			dotCommand,
			blocksCommand,
			exportCommand,
			dumpConfigCommand,
		},
		Flags: append([]cli.Flag{
			configFileFlag,
			workersFlag,
			cacheSizeFlag,
			debugTraceFlag,
		}, debug.Flags...),
		Before: func(ctx *cli.Context) error {
			return debug.Setup(ctx)
		},
		After: func(ctx *cli.Context) error {
			debug.Exit()
			return nil
		},
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildListing assembles the listing named by the first argument and builds
// the graphs of all its units.
func buildListing(ctx *cli.Context) (*cfgdrawConfig, *blocks.OrderedCode, *blocks.BlockGraph, error) {
	if ctx.Args().Len() != 1 {
		return nil, nil, nil, errors.New("expected exactly one listing argument")
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	code, err := asm.ParseFile(ctx.Args().First())
	if err != nil {
		return nil, nil, nil, err
	}
	root, graph, err := makeBuilder(&cfg.Builder).Process(code)
	if err != nil {
		return nil, nil, nil, err
	}
	log.InfoIf(cfg.Builder.Trace, "Built listing", "file", code.Filename, "units", graph.Len())
	return cfg, root, graph, nil
}

func selectUnit(ctx *cli.Context, root *blocks.OrderedCode, graph *blocks.BlockGraph) (*blocks.OrderedCode, error) {
	name := ctx.String(unitFlag.Name)
	if name == "" {
		return root, nil
	}
	for _, oc := range graph.Units() {
		if oc.Name() == name {
			return oc, nil
		}
	}
	return nil, fmt.Errorf("no code unit named %q", name)
}

func writeOutput(ctx *cli.Context, data []byte) error {
	out := ctx.String(outFlag.Name)
	if out == "" {
		_, err := ctx.App.Writer.Write(data)
		return err
	}
	return os.WriteFile(out, data, 0o644)
}

func drawGraph(ctx *cli.Context) error {
	cfg, root, graph, err := buildListing(ctx)
	if err != nil {
		return err
	}
	oc, err := selectUnit(ctx, root, graph)
	if err != nil {
		return err
	}
	dot := oc.ToDot(cfg.Output.Title)

	// Determine format
	format := cfg.Output.Format
	if format == "" {
		format = "dot"
		if strings.ToLower(filepath.Ext(ctx.String(outFlag.Name))) == ".svg" {
			format = "svg"
		}
	}
	switch format {
	case "dot":
		return writeOutput(ctx, dot)
	case "svg":
		svg, err := renderSVG(dot)
		if err != nil {
			return err
		}
		return writeOutput(ctx, svg)
	default:
		return fmt.Errorf("unknown format %q (use dot or svg)", format)
	}
}

func renderSVG(dot []byte) ([]byte, error) {
	// Attempt to use graphviz dot
	if _, err := exec.LookPath("dot"); err != nil {
		return nil, errors.New("dot not found in PATH; install graphviz or choose --format=dot")
	}
	var svgOut bytes.Buffer
	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = bytes.NewReader(dot)
	cmd.Stdout = &svgOut
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("dot render: %w", err)
	}
	return svgOut.Bytes(), nil
}

func printBlocks(ctx *cli.Context) error {
	_, root, graph, err := buildListing(ctx)
	if err != nil {
		return err
	}
	units := graph.Units()
	if ctx.IsSet(unitFlag.Name) {
		oc, err := selectUnit(ctx, root, graph)
		if err != nil {
			return err
		}
		units = []*blocks.OrderedCode{oc}
	}
	for _, oc := range units {
		fmt.Fprintf(ctx.App.Writer, "%s (%s)\n", oc.Name(), oc.Fingerprint().TerminalString())
		writeBlockTable(ctx.App.Writer, oc)
	}
	return nil
}

func writeBlockTable(w io.Writer, oc *blocks.OrderedCode) {
	rank := make(map[int]int)
	for i, b := range oc.Order() {
		rank[b.ID()] = i
	}
	var rows [][]string
	for _, b := range oc.Blocks() {
		order := "-"
		if r, ok := rank[b.ID()]; ok {
			order = strconv.Itoa(r)
		}
		var succ []string
		for _, e := range b.OutgoingEdges() {
			succ = append(succ, fmt.Sprintf("B%d %v", e.To, e.Kind))
		}
		rows = append(rows, []string{
			fmt.Sprintf("B%d", b.ID()),
			fmt.Sprintf("%d-%d", b.Start(), b.Last().Index),
			b.First().Op.String(),
			b.Last().Op.String(),
			order,
			strings.Join(succ, ", "),
		})
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Block", "Range", "First", "Last", "Order", "Successors"})
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

func exportGraph(ctx *cli.Context) error {
	cfg, _, graph, err := buildListing(ctx)
	if err != nil {
		return err
	}
	record := blocks.Export(graph)
	var data []byte
	switch cfg.Output.Encoding {
	case "cbor":
		data, err = blocks.EncodeCBOR(record)
	case "json":
		data, err = blocks.EncodeJSON(record)
	default:
		return fmt.Errorf("unknown encoding %q (use cbor or json)", cfg.Output.Encoding)
	}
	if err != nil {
		return err
	}
	return writeOutput(ctx, data)
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(cfg)
	if err != nil {
		return err
	}
	dump := ctx.App.Writer
	if ctx.NArg() > 0 {
		f, err := os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		dump = f
	}
	_, err = dump.Write(out)
	return err
}
