package blocks

import "github.com/pkg/errors"

// ErrMalformedInput reports an instruction stream that no correct compiler
// produces: a region closed with no region open, a break outside a loop, or
// a transfer into an instruction that starts no block. Construction of the
// unit is aborted.
var ErrMalformedInput = errors.New("malformed input")

func malformed(format string, args ...interface{}) error {
	malformedCounter.Inc(1)
	return errors.Wrapf(ErrMalformedInput, format, args...)
}
