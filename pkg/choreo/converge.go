package choreo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrConvergenceTimeout is returned when a bounded wait expires before the
// arm reaches its goal.
var ErrConvergenceTimeout = errors.New("convergence timeout")

// Converged reports whether every joint of current is strictly within tol of
// goal. Configurations of different length never converge.
func Converged(current, goal []float64, tol float64) bool {
	if len(current) != len(goal) {
		return false
	}
	for i := range goal {
		// Written as !(x < tol) so NaN fails the check.
		if !(math.Abs(current[i]-goal[i]) < tol) {
			return false
		}
	}
	return true
}

// MaxError returns the largest absolute per-joint difference, or +Inf when the
// lengths differ.
func MaxError(current, goal []float64) float64 {
	if len(current) != len(goal) {
		return math.Inf(1)
	}
	var m float64
	for i := range goal {
		if d := math.Abs(current[i] - goal[i]); d > m || math.IsNaN(d) {
			m = d
		}
	}
	return m
}

// Poll calls cond immediately and then once per interval until it returns
// true or an error. A timeout of zero or less waits forever.
func Poll(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) (bool, error)) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := cond(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w after %s", ErrConvergenceTimeout, timeout)
		case <-ticker.C:
		}
	}
}

// WaitConverged polls the hardware until its joints converge on goal.
func WaitConverged(ctx context.Context, hw Hardware, goal Pose, cfg Config, obs Observer) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("motion config: %w", err)
	}
	target := goal.Joints()
	return Poll(ctx, cfg.PollInterval, cfg.ConvergenceTimeout, func(ctx context.Context) (bool, error) {
		current, err := hw.GetJoints(ctx)
		if err != nil {
			return false, fmt.Errorf("read joints: %w", err)
		}
		obs.emit(Event{
			Kind:     EventPolled,
			Role:     goal.Role(),
			Joints:   current,
			MaxError: MaxError(current, target),
		})
		return Converged(current, target, cfg.Tolerance), nil
	})
}
