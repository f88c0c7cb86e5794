package gridset

import "errors"

var (
	ErrConfiguration = errors.New("invalid configuration")
	ErrNotFound      = errors.New("patch not found")
	ErrOverlap       = errors.New("overlapping result cells")
	ErrFinalized     = errors.New("result already finalized")
	ErrInvalidKey    = errors.New("invalid patch key")
	ErrCodec         = errors.New("malformed patch data")
	ErrShape         = errors.New("patch shape mismatch")
)
