// Package sim provides a simulated arm for dry runs and tests.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gwillem/pickplace/pkg/choreo"
)

// Op names a command issued to the simulated arm.
type Op string

const (
	OpHome        Op = "home"
	OpSetJoints   Op = "set_joints"
	OpGrip        Op = "grip"
	OpHandControl Op = "hand_control"
)

// Command is one entry in the arm's command journal.
type Command struct {
	Op     Op
	Joints []float64
	Grip   choreo.GripState
}

// ErrNotEnabled is returned when motion is commanded while the arm is under
// hand control and has not been homed since.
var ErrNotEnabled = errors.New("arm under hand control")

// Arm is an in-memory arm. Each joint read advances every joint toward its
// target by at most Step; a Step of zero or less arrives on the first read.
type Arm struct {
	mu       sync.Mutex
	joints   []float64
	target   []float64
	home     []float64
	step     float64
	jammed   map[int]bool
	manual   bool
	grip     choreo.GripState
	reads    int
	journal  []Command
	readErr  error
	failRead int
}

// NewArm creates an arm resting at home.
func NewArm(home []float64, step float64) *Arm {
	return &Arm{
		joints: append([]float64(nil), home...),
		target: append([]float64(nil), home...),
		home:   append([]float64(nil), home...),
		step:   step,
		jammed: make(map[int]bool),
	}
}

// Jam stops joint i from moving, as if blocked.
func (a *Arm) Jam(i int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jammed[i] = true
}

// FailReadsAfter makes the read following n successful reads return err.
func (a *Arm) FailReadsAfter(n int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failRead = a.reads + n
	a.readErr = err
}

// Place moves the arm instantly, as an operator would by hand.
func (a *Arm) Place(joints []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.joints = append(a.joints[:0], joints...)
	a.target = append(a.target[:0], joints...)
}

// Home implements choreo.Hardware.
func (a *Arm) Home(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.manual = false
	a.target = append(a.target[:0], a.home...)
	a.record(Command{Op: OpHome, Joints: a.home})
	return nil
}

// SetJoints implements choreo.Hardware.
func (a *Arm) SetJoints(ctx context.Context, joints []float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(joints) != len(a.joints) {
		return fmt.Errorf("set joints: got %d values, want %d", len(joints), len(a.joints))
	}
	if a.manual {
		return ErrNotEnabled
	}
	a.target = append(a.target[:0], joints...)
	a.record(Command{Op: OpSetJoints, Joints: joints})
	return nil
}

// GetJoints implements choreo.Hardware.
func (a *Arm) GetJoints(ctx context.Context) ([]float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.readErr != nil && a.reads >= a.failRead {
		return nil, a.readErr
	}
	a.reads++
	if !a.manual {
		a.advance()
	}
	return append([]float64(nil), a.joints...), nil
}

// Grip implements choreo.Hardware.
func (a *Arm) Grip(ctx context.Context, state choreo.GripState) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.grip = state
	a.record(Command{Op: OpGrip, Grip: state})
	return nil
}

// HandControl implements choreo.Hardware.
func (a *Arm) HandControl(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.manual = true
	a.record(Command{Op: OpHandControl})
	return nil
}

func (a *Arm) advance() {
	for i := range a.joints {
		if a.jammed[i] {
			continue
		}
		d := a.target[i] - a.joints[i]
		if a.step > 0 && math.Abs(d) > a.step {
			d = math.Copysign(a.step, d)
		}
		a.joints[i] += d
	}
}

func (a *Arm) record(c Command) {
	c.Joints = append([]float64(nil), c.Joints...)
	a.journal = append(a.journal, c)
}

// Journal returns every command issued so far, excluding reads.
func (a *Arm) Journal() []Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Command(nil), a.journal...)
}

// Reads returns how many successful joint reads have been served.
func (a *Arm) Reads() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reads
}

// GripState returns the last commanded gripper state.
func (a *Arm) GripState() choreo.GripState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.grip
}

var _ choreo.Hardware = (*Arm)(nil)
