package choreo

import (
	"fmt"
	"time"
)

// Config holds the motion timing shared by every step of a run.
type Config struct {
	// Tolerance is the per-joint absolute error, in hardware units, below
	// which a joint counts as arrived.
	Tolerance float64
	// PollInterval is the pause between joint reads while waiting.
	PollInterval time.Duration
	// SettleDelay is the fixed pause after each gripper command.
	SettleDelay time.Duration
	// ConvergenceTimeout bounds each wait. Zero waits forever.
	ConvergenceTimeout time.Duration
}

// DefaultConfig returns the baseline timing: 0.02 tolerance, 100ms polling,
// 1s settle and no convergence timeout.
func DefaultConfig() Config {
	return Config{
		Tolerance:    0.02,
		PollInterval: 100 * time.Millisecond,
		SettleDelay:  time.Second,
	}
}

// Validate rejects settings that would make every wait fail or spin.
func (c Config) Validate() error {
	if !(c.Tolerance > 0) {
		return fmt.Errorf("tolerance must be positive, got %v", c.Tolerance)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle delay must not be negative, got %s", c.SettleDelay)
	}
	if c.ConvergenceTimeout < 0 {
		return fmt.Errorf("convergence timeout must not be negative, got %s", c.ConvergenceTimeout)
	}
	return nil
}
