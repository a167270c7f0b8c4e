package pipeline

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ValidateRefs checks the shape and cardinality of an extraction request's
// reference list before any network activity. It returns the list unchanged
// on success and is side-effect free.
func ValidateRefs(refs []string, maxRefs int) ([]string, error) {
	if refs == nil {
		return nil, NewError(KindInvalidInput, eris.New("validate: image references must be a list"))
	}
	if len(refs) == 0 {
		return nil, NewError(KindInvalidInput, eris.New("validate: at least one image reference is required"))
	}
	if len(refs) > maxRefs {
		return nil, NewError(KindInvalidInput, eris.Errorf("validate: too many image references: %d (max %d)", len(refs), maxRefs))
	}
	for i, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			return nil, NewError(KindInvalidInput, eris.Errorf("validate: reference %d is empty", i+1))
		}
	}
	return refs, nil
}
