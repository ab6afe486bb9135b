package types

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh random identifier for decisions, memories, tasks,
// and audit entries.
func NewID() string {
	return uuid.NewString()
}

// Clamp01 clamps v into [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// NowUTC returns the current time in UTC. All kernel timestamps are UTC so
// decay math and due-task comparisons are zone-independent.
func NowUTC() time.Time {
	return time.Now().UTC()
}
