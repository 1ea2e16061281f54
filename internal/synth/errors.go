package synth

import "errors"

// Validation errors. NewGeometry and NewBackwardGeometry return all but
// ErrDType, which callers report after checking tensor types.
var (
	ErrRank          = errors.New("tensor must be 4D [N, C, H, W]")
	ErrShapeMismatch = errors.New("tensor shapes do not agree")
	ErrKernelSize    = errors.New("invalid kernel size")
	ErrDilation      = errors.New("dilation must be >= 1")
	ErrDType         = errors.New("tensor dtype must be float32")
)
