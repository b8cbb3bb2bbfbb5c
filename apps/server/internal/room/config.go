package room

import (
	"fmt"
	"time"
)

// Config carries the room-level timing knobs. Zero values are filled
// from the defaults below.
type Config struct {
	TurnTimeout      time.Duration
	ReplayVoteWindow time.Duration
	RoomTTL          time.Duration
	ReconnectGrace   time.Duration
	SkipLimit        int

	// Engine RNG seed (0 => time-based); set in tests for
	// deterministic opening seats.
	Seed int64
}

const (
	DefaultTurnTimeout      = 60 * time.Second
	DefaultReplayVoteWindow = 30 * time.Second
	DefaultRoomTTL          = time.Hour
	DefaultReconnectGrace   = 5 * time.Minute
	DefaultSkipLimit        = 2
)

func DefaultConfig() Config {
	return Config{
		TurnTimeout:      DefaultTurnTimeout,
		ReplayVoteWindow: DefaultReplayVoteWindow,
		RoomTTL:          DefaultRoomTTL,
		ReconnectGrace:   DefaultReconnectGrace,
		SkipLimit:        DefaultSkipLimit,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = d.TurnTimeout
	}
	if c.ReplayVoteWindow <= 0 {
		c.ReplayVoteWindow = d.ReplayVoteWindow
	}
	if c.RoomTTL <= 0 {
		c.RoomTTL = d.RoomTTL
	}
	if c.ReconnectGrace <= 0 {
		c.ReconnectGrace = d.ReconnectGrace
	}
	if c.SkipLimit < 1 {
		c.SkipLimit = d.SkipLimit
	}
	return c
}

func (c Config) validate() error {
	if c.TurnTimeout <= 0 || c.ReplayVoteWindow <= 0 || c.RoomTTL <= 0 {
		return fmt.Errorf("timeouts must be > 0")
	}
	if c.SkipLimit < 1 {
		return fmt.Errorf("SkipLimit must be >= 1")
	}
	return nil
}
