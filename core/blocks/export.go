package blocks

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// EdgeRecord is the exported form of an Edge.
type EdgeRecord struct {
	From int    `cbor:"1,keyasint" json:"from"`
	To   int    `cbor:"2,keyasint" json:"to"`
	Kind string `cbor:"3,keyasint" json:"kind"`
}

// BlockRecord is the exported form of a Block. End is exclusive.
type BlockRecord struct {
	ID       int          `cbor:"1,keyasint" json:"id"`
	Start    int          `cbor:"2,keyasint" json:"start"`
	End      int          `cbor:"3,keyasint" json:"end"`
	Outgoing []EdgeRecord `cbor:"4,keyasint,omitempty" json:"outgoing,omitempty"`
}

// UnitRecord is the exported form of an OrderedCode. Children holds
// positions in GraphRecord.Units.
type UnitRecord struct {
	Fingerprint common.Hash   `cbor:"1,keyasint" json:"fingerprint"`
	Name        string        `cbor:"2,keyasint" json:"name"`
	Flags       []string      `cbor:"3,keyasint,omitempty" json:"flags,omitempty"`
	Blocks      []BlockRecord `cbor:"4,keyasint" json:"blocks"`
	Order       []int         `cbor:"5,keyasint" json:"order"`
	BackEdges   []EdgeRecord  `cbor:"6,keyasint,omitempty" json:"backEdges,omitempty"`
	Targets     map[int]int   `cbor:"7,keyasint,omitempty" json:"targets,omitempty"`
	Children    []int         `cbor:"8,keyasint,omitempty" json:"children,omitempty"`
}

// GraphRecord is the exported form of a BlockGraph.
type GraphRecord struct {
	Units []UnitRecord `cbor:"1,keyasint" json:"units"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("blocks: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

func exportEdge(e Edge) EdgeRecord {
	return EdgeRecord{From: e.From, To: e.To, Kind: e.Kind.String()}
}

// Export converts the units registered in graph, in registration order.
func Export(graph *BlockGraph) *GraphRecord {
	units := graph.Units()
	position := make(map[*OrderedCode]int, len(units))
	for i, oc := range units {
		position[oc] = i
	}
	record := &GraphRecord{Units: make([]UnitRecord, len(units))}
	for i, oc := range units {
		record.Units[i] = exportUnit(oc, position)
	}
	return record
}

func exportUnit(oc *OrderedCode, position map[*OrderedCode]int) UnitRecord {
	unit := UnitRecord{
		Fingerprint: oc.fingerprint,
		Name:        oc.Name(),
		Flags:       oc.Flags().Names(),
		Blocks:      make([]BlockRecord, len(oc.blocks)),
		Order:       make([]int, len(oc.order)),
	}
	if oc.targets.Len() > 0 {
		unit.Targets = oc.targets.Clone()
	}
	for i, b := range oc.blocks {
		rec := BlockRecord{ID: b.id, Start: b.Start(), End: b.Last().Index + 1}
		for _, e := range b.OutgoingEdges() {
			rec.Outgoing = append(rec.Outgoing, exportEdge(e))
		}
		unit.Blocks[i] = rec
	}
	for i, b := range oc.order {
		unit.Order[i] = b.id
	}
	for _, e := range oc.backEdges {
		unit.BackEdges = append(unit.BackEdges, exportEdge(e))
	}
	for _, child := range oc.children {
		if pos, ok := position[child]; ok {
			unit.Children = append(unit.Children, pos)
		}
	}
	return unit
}

// EncodeCBOR serializes r in canonical CBOR.
func EncodeCBOR(r *GraphRecord) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// DecodeCBOR parses a record produced by EncodeCBOR.
func DecodeCBOR(data []byte) (*GraphRecord, error) {
	var r GraphRecord
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(err, "decode graph record")
	}
	return &r, nil
}

// EncodeJSON serializes r as indented JSON.
func EncodeJSON(r *GraphRecord) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
