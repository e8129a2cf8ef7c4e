package category

import (
	"testing"
	"time"
)

// SetMissTTL overrides how long misses are cached for the duration of t.
func SetMissTTL(t *testing.T, d time.Duration) {
	old := missTTL
	missTTL = d
	t.Cleanup(func() { missTTL = old })
}
