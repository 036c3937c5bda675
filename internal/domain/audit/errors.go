package audit

import "errors"

var (
	ErrInvalidRecord = errors.New("invalid audit record")

	ErrNormalization     = errors.New("normalize moderation notification")
	ErrMissingContent    = &NormalizationError{Reason: "missing content"}
	ErrMissingDecisionID = &NormalizationError{Reason: "missing decision id"}
	ErrInvalidDecisionID = &NormalizationError{Reason: "invalid decision id"}

	ErrNotFound         = errors.New("audit record not found")
	ErrInvalidReference = errors.New("invalid restore reference")
)

// NormalizationError reports why a moderation notification was dropped.
// Every reason also matches ErrNormalization.
type NormalizationError struct {
	Reason string
}

func (e *NormalizationError) Error() string {
	return "normalize moderation notification: " + e.Reason
}

func (e *NormalizationError) Is(target error) bool {
	return target == ErrNormalization
}
