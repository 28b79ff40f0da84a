package extract

import "errors"

var (
	ErrEmptyDocument   = errors.New("document is empty")
	ErrTooLarge        = errors.New("document exceeds maximum size")
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrExtraction      = errors.New("document extraction failed")
)
