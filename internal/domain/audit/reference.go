package audit

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const maxReferenceLen = 128

// Reference is a restore reference classified against both key spaces.
type Reference struct {
	Raw        string
	RecordID   string
	DecisionID string
}

// ParseReference classifies a user-supplied restore reference. A reference
// that parses as a UUID is tried as a record id first; any reference that is
// well formed is also a decision id candidate.
func ParseReference(raw string) (Reference, error) {
	ref := Reference{Raw: raw}
	trimmed := strings.TrimSpace(raw)

	if id, err := uuid.Parse(trimmed); err == nil {
		ref.RecordID = id.String()
	}
	if ValidDecisionID(trimmed) {
		ref.DecisionID = trimmed
	}
	if ref.RecordID == "" && ref.DecisionID == "" {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, raw)
	}
	return ref, nil
}

// ValidDecisionID is the decision id grammar shared by Normalize and
// ParseReference: trimmed, non-empty, at most 128 bytes, no control
// characters. Inner spaces are allowed.
func ValidDecisionID(s string) bool {
	if s == "" || len(s) > maxReferenceLen || s != strings.TrimSpace(s) {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
