package choreo

import (
	"context"
	"errors"
)

// GripState is the commanded gripper state.
type GripState int

const (
	GripOpen   GripState = 0
	GripClosed GripState = 1
)

func (g GripState) String() string {
	if g == GripClosed {
		return "closed"
	}
	return "open"
}

// Hardware is the arm capability set the recorder and executor need.
type Hardware interface {
	// Home moves the arm to its home configuration. Returns once the command is issued.
	Home(ctx context.Context) error
	// SetJoints commands a joint-space goal. It does not wait for arrival.
	SetJoints(ctx context.Context, joints []float64) error
	// GetJoints reads the current joint configuration.
	GetJoints(ctx context.Context) ([]float64, error)
	// Grip commands the gripper. There is no completion feedback.
	Grip(ctx context.Context, state GripState) error
	// HandControl releases the arm so an operator can move it by hand.
	HandControl(ctx context.Context) error
}

// ErrAborted is returned by a Confirmer when the operator cancels.
var ErrAborted = errors.New("aborted by operator")

// Confirmer blocks until the operator acknowledges prompt.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) error
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) error

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) error {
	return f(ctx, prompt)
}
