package idgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewFunc returns a new globally unique identifier as string. It is
// implemented as a variable so tests can stub it.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new opaque identifier.
func New() string { return NewFunc() }

// RequestNumber formats a human-readable request number such as
// RM-20251102171147-3f9a1c. The random suffix keeps numbers unique when two
// drafts are created within the same second.
func RequestNumber(prefix string, at time.Time) string {
	if prefix == "" {
		prefix = "RM"
	}
	suffix := strings.ReplaceAll(New(), "-", "")
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, at.UTC().Format("20060102150405"), suffix)
}
