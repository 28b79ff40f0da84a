package vector

import "errors"

var (
	ErrEmptyAppend       = errors.New("append requires at least one record")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
