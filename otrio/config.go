package otrio

import (
	"fmt"
	"time"
)

type Config struct {
	// Per-turn budget before the active seat is force-skipped.
	TurnTimeout time.Duration

	// Consecutive forced skips before a seat is eliminated.
	SkipLimit int

	// RNG seed for the opening seat (0 => time-based)
	Seed int64
}

func (c Config) validate() error {
	if c.TurnTimeout <= 0 {
		return fmt.Errorf("TurnTimeout must be > 0")
	}
	if c.SkipLimit < 1 {
		return fmt.Errorf("SkipLimit must be >= 1")
	}
	return nil
}
