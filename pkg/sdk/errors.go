package ipwarehouse

import "github.com/kailas-cloud/ipwarehouse/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrParse           = domain.ErrParse
	ErrInvalidPipeline = domain.ErrInvalidPipeline
	ErrUnknownCategory = domain.ErrUnknownCategory
	ErrMissingKeyField = domain.ErrMissingKeyField
	ErrCorruptLog      = domain.ErrCorruptLog
)
