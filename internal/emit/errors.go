package emit

import (
	"errors"

	"anvil/internal/sig"
)

// The error taxonomy is shared with the signature package; emit adds the
// unsupported-feature class. All failures are detected before any cache
// or table mutation, so a failing call has no observable side effect.
var (
	ErrInvalidArgument  = sig.ErrInvalidArgument
	ErrInvalidOperation = sig.ErrInvalidOperation
	ErrOverflow         = sig.ErrOverflow

	// ErrUnsupported reports a deliberately excluded capability, such as
	// P/Invoke methods or field marshaling.
	ErrUnsupported = errors.New("unsupported feature")
)
