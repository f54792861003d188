package choreo

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// State is a phase of the replay script.
type State int

const (
	StateHomeAndOpen State = iota
	StateApproachPick
	StateGrasp
	StateLift
	StateTraverse
	StateDescendPlace
	StateRelease
	StateReturnHome
	StateDone
)

// States returns every state in the order a successful run visits them.
func States() []State {
	return []State{
		StateHomeAndOpen,
		StateApproachPick,
		StateGrasp,
		StateLift,
		StateTraverse,
		StateDescendPlace,
		StateRelease,
		StateReturnHome,
		StateDone,
	}
}

func (s State) String() string {
	switch s {
	case StateHomeAndOpen:
		return "HOME_AND_OPEN"
	case StateApproachPick:
		return "APPROACH_PICK"
	case StateGrasp:
		return "GRASP"
	case StateLift:
		return "LIFT"
	case StateTraverse:
		return "TRAVERSE"
	case StateDescendPlace:
		return "DESCEND_PLACE"
	case StateRelease:
		return "RELEASE"
	case StateReturnHome:
		return "RETURN_HOME"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// StepError reports the phase, and the pose if any, where a run stopped.
type StepError struct {
	State State
	Pose  string
	Err   error
}

func (e *StepError) Error() string {
	if e.Pose != "" {
		return fmt.Sprintf("%s (%s): %v", e.State, e.Pose, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Executor replays a taught sequence as a pick-and-place run.
type Executor struct {
	hw     Hardware
	cfg    Config
	logger *slog.Logger
	obs    Observer
	state  State
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithObserver sets an observer for state, step and poll events.
func WithObserver(obs Observer) ExecutorOption {
	return func(e *Executor) { e.obs = obs }
}

// NewExecutor creates an executor driving hw with the given timing.
func NewExecutor(hw Hardware, cfg Config, opts ...ExecutorOption) *Executor {
	e := &Executor{
		hw:     hw,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the most recently entered state.
func (e *Executor) State() State {
	return e.state
}

type step struct {
	state State
	msg   string
	pose  string
	run   func(ctx context.Context) error
}

func (e *Executor) script(seq Sequence) []step {
	return []step{
		{state: StateHomeAndOpen, msg: "Homing.", run: e.home},
		{state: StateHomeAndOpen, msg: "Opening gripper.", run: e.grip(GripOpen, false)},
		{state: StateApproachPick, msg: "Moving to pick pose.", pose: seq.Pick.Label(), run: e.moveTo(seq.Pick)},
		// Close before lifting.
		{state: StateGrasp, msg: "Closing gripper.", run: e.grip(GripClosed, true)},
		{state: StateLift, msg: "Lifting.", pose: seq.Lift.Label(), run: e.moveTo(seq.Lift)},
		{state: StateTraverse, msg: "Moving across.", pose: seq.Mid.Label(), run: e.moveTo(seq.Mid)},
		{state: StateDescendPlace, msg: "Moving to place pose.", pose: seq.Place.Label(), run: e.moveTo(seq.Place)},
		{state: StateDescendPlace, msg: "Placing down block.", pose: seq.End.Label(), run: e.moveTo(seq.End)},
		{state: StateRelease, msg: "Opening gripper.", run: e.grip(GripOpen, true)},
		{state: StateReturnHome, msg: "Returning home.", run: e.home},
	}
}

// Run drives the arm through seq. It refuses incomplete sequences before
// issuing any command, and stops at the first failing step without retrying
// or moving the arm elsewhere.
func (e *Executor) Run(ctx context.Context, seq Sequence) error {
	if err := seq.Validate(); err != nil {
		return err
	}
	if err := e.cfg.Validate(); err != nil {
		return fmt.Errorf("motion config: %w", err)
	}

	e.logger.Info("automated pick and place started",
		"tolerance", e.cfg.Tolerance,
		"poll", e.cfg.PollInterval,
		"timeout", e.cfg.ConvergenceTimeout,
	)

	entered := false
	for _, st := range e.script(seq) {
		if !entered || st.state != e.state {
			e.enter(st.state)
			entered = true
		}

		e.logger.Info(st.msg, "state", st.state)
		e.obs.emit(Event{Kind: EventStep, State: st.state, Message: st.msg})

		if err := st.run(ctx); err != nil {
			e.logger.Error("step failed", "state", st.state, "pose", st.pose, "error", err)
			return &StepError{State: st.state, Pose: st.pose, Err: err}
		}
	}

	e.enter(StateDone)
	return nil
}

func (e *Executor) enter(s State) {
	e.state = s
	e.logger.Debug("state entered", "state", s)
	e.obs.emit(Event{Kind: EventStateEntered, State: s, Message: s.String()})
}

func (e *Executor) home(ctx context.Context) error {
	if err := e.hw.Home(ctx); err != nil {
		return fmt.Errorf("home: %w", err)
	}
	return nil
}

func (e *Executor) grip(state GripState, settle bool) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := e.hw.Grip(ctx, state); err != nil {
			return fmt.Errorf("grip %s: %w", state, err)
		}
		if !settle {
			return nil
		}
		return sleep(ctx, e.cfg.SettleDelay)
	}
}

func (e *Executor) moveTo(p Pose) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := e.hw.SetJoints(ctx, p.Joints()); err != nil {
			return fmt.Errorf("set joints: %w", err)
		}
		start := time.Now()
		if err := WaitConverged(ctx, e.hw, p, e.cfg, e.obs); err != nil {
			return err
		}
		e.logger.Debug("converged", "pose", p.Label(), "elapsed", time.Since(start))
		return nil
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
