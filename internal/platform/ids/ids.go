package ids

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh surrogate ID.
func New() string {
	return uuid.NewString()
}

// Suffix returns a short uppercase token for human-readable numbers
// (quote numbers and the like). 8 hex chars of a v4 UUID is plenty of
// entropy for a per-product namespace.
func Suffix() string {
	u := uuid.NewString()
	return strings.ToUpper(strings.ReplaceAll(u, "-", "")[:8])
}
