package choreo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gwillem/pickplace/pkg/choreo"
	"github.com/gwillem/pickplace/pkg/sim"
)

func fastConfig() choreo.Config {
	cfg := choreo.DefaultConfig()
	cfg.PollInterval = time.Millisecond
	cfg.SettleDelay = time.Millisecond
	return cfg
}

func taughtSequence(t *testing.T) choreo.Sequence {
	t.Helper()
	seq, err := choreo.NewSequence(taughtPoses())
	if err != nil {
		t.Fatalf("NewSequence = %v", err)
	}
	return seq
}

func TestExecutor_Run_CommandOrder(t *testing.T) {
	arm := sim.NewArm([]float64{0, 0, 0, 0, 0}, 0.25)
	seq := taughtSequence(t)

	exec := choreo.NewExecutor(arm, fastConfig())
	if err := exec.Run(context.Background(), seq); err != nil {
		t.Fatalf("Run = %v", err)
	}

	type want struct {
		op     sim.Op
		grip   choreo.GripState
		joints []float64
	}
	expected := []want{
		{op: sim.OpHome},
		{op: sim.OpGrip, grip: choreo.GripOpen},
		{op: sim.OpSetJoints, joints: seq.Pick.Joints()},
		{op: sim.OpGrip, grip: choreo.GripClosed},
		{op: sim.OpSetJoints, joints: seq.Lift.Joints()},
		{op: sim.OpSetJoints, joints: seq.Mid.Joints()},
		{op: sim.OpSetJoints, joints: seq.Place.Joints()},
		{op: sim.OpSetJoints, joints: seq.End.Joints()},
		{op: sim.OpGrip, grip: choreo.GripOpen},
		{op: sim.OpHome},
	}

	journal := arm.Journal()
	if len(journal) != len(expected) {
		t.Fatalf("journal has %d commands, want %d: %+v", len(journal), len(expected), journal)
	}
	for i, w := range expected {
		got := journal[i]
		if got.Op != w.op {
			t.Errorf("command %d = %s, want %s", i, got.Op, w.op)
			continue
		}
		if got.Op == sim.OpGrip && got.Grip != w.grip {
			t.Errorf("command %d grip = %s, want %s", i, got.Grip, w.grip)
		}
		if got.Op == sim.OpSetJoints && !choreo.Converged(got.Joints, w.joints, 1e-12) {
			t.Errorf("command %d joints = %v, want %v", i, got.Joints, w.joints)
		}
	}

	var opens, closes int
	for _, c := range journal {
		if c.Op != sim.OpGrip {
			continue
		}
		if c.Grip == choreo.GripOpen {
			opens++
		} else {
			closes++
		}
	}
	if opens != 2 || closes != 1 {
		t.Errorf("grip commands: %d open, %d closed; want 2 open, 1 closed", opens, closes)
	}
	if exec.State() != choreo.StateDone {
		t.Errorf("final state = %s, want DONE", exec.State())
	}
}

func TestExecutor_Run_StateOrder(t *testing.T) {
	arm := sim.NewArm([]float64{0, 0, 0, 0, 0}, 0.3)

	var states []choreo.State
	obs := func(e choreo.Event) {
		if e.Kind == choreo.EventStateEntered {
			states = append(states, e.State)
		}
	}

	exec := choreo.NewExecutor(arm, fastConfig(), choreo.WithObserver(obs))
	if err := exec.Run(context.Background(), taughtSequence(t)); err != nil {
		t.Fatalf("Run = %v", err)
	}

	want := choreo.States()
	if len(states) != len(want) {
		t.Fatalf("visited %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("state %d = %s, want %s", i, states[i], want[i])
		}
	}
}

func TestExecutor_Run_GripAfterConvergence(t *testing.T) {
	arm := sim.NewArm([]float64{0, 0, 0, 0, 0}, 0.1)
	cfg := fastConfig()

	var last choreo.Event
	var closedAfter, openedAfter choreo.Event
	obs := func(e choreo.Event) {
		switch {
		case e.Kind == choreo.EventPolled:
			last = e
		case e.Kind == choreo.EventStep && e.State == choreo.StateGrasp:
			closedAfter = last
		case e.Kind == choreo.EventStep && e.State == choreo.StateRelease:
			openedAfter = last
		}
	}

	exec := choreo.NewExecutor(arm, cfg, choreo.WithObserver(obs))
	if err := exec.Run(context.Background(), taughtSequence(t)); err != nil {
		t.Fatalf("Run = %v", err)
	}

	if closedAfter.Role != choreo.RolePick || !(closedAfter.MaxError < cfg.Tolerance) {
		t.Errorf("gripper closed after poll %+v, want converged pick", closedAfter)
	}
	if openedAfter.Role != choreo.RoleEnd || !(openedAfter.MaxError < cfg.Tolerance) {
		t.Errorf("gripper opened after poll %+v, want converged end", openedAfter)
	}
}

func TestExecutor_Run_IncompleteSequence(t *testing.T) {
	poses := taughtPoses()

	tests := []struct {
		name string
		seq  choreo.Sequence
	}{
		{"empty", choreo.Sequence{}},
		{"three poses", choreo.Sequence{Pick: poses[0], Lift: poses[1], Mid: poses[2]}},
		{"missing pick", choreo.Sequence{Lift: poses[1], Mid: poses[2], Place: poses[3], End: poses[4]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arm := sim.NewArm([]float64{0, 0, 0, 0, 0}, 0)
			err := choreo.NewExecutor(arm, fastConfig()).Run(context.Background(), tt.seq)
			if !errors.Is(err, choreo.ErrIncompleteSequence) {
				t.Errorf("Run = %v, want ErrIncompleteSequence", err)
			}
			if n := len(arm.Journal()); n != 0 {
				t.Errorf("issued %d commands, want 0", n)
			}
		})
	}
}

func TestExecutor_Run_ReadFailure(t *testing.T) {
	arm := sim.NewArm([]float64{0, 0, 0, 0, 0}, 0.25)
	boom := errors.New("serial read timeout")
	arm.FailReadsAfter(2, boom)

	err := choreo.NewExecutor(arm, fastConfig()).Run(context.Background(), taughtSequence(t))

	var stepErr *choreo.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("Run = %v, want *StepError", err)
	}
	if stepErr.State != choreo.StateApproachPick || stepErr.Pose != "PICK POSE" {
		t.Errorf("failed at %s (%s), want APPROACH_PICK (PICK POSE)", stepErr.State, stepErr.Pose)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Run = %v, want wrapped %v", err, boom)
	}

	for _, c := range arm.Journal() {
		if c.Op == sim.OpGrip && c.Grip == choreo.GripClosed {
			t.Error("gripper closed after failed approach")
		}
	}
}

func TestExecutor_Run_ConvergenceTimeout(t *testing.T) {
	arm := sim.NewArm([]float64{0, 0, 0, 0, 0}, 0)
	arm.Jam(2)

	cfg := fastConfig()
	cfg.ConvergenceTimeout = 20 * time.Millisecond

	exec := choreo.NewExecutor(arm, cfg)
	err := exec.Run(context.Background(), taughtSequence(t))

	if !errors.Is(err, choreo.ErrConvergenceTimeout) {
		t.Fatalf("Run = %v, want ErrConvergenceTimeout", err)
	}
	var stepErr *choreo.StepError
	if !errors.As(err, &stepErr) || stepErr.State != choreo.StateLift {
		t.Errorf("Run = %v, want failure in LIFT", err)
	}
	if exec.State() != choreo.StateLift {
		t.Errorf("State = %s, want LIFT", exec.State())
	}
}

func TestExecutor_Run_Canceled(t *testing.T) {
	arm := sim.NewArm([]float64{0, 0, 0, 0, 0}, 0)
	arm.Jam(0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := choreo.NewExecutor(arm, fastConfig()).Run(ctx, taughtSequence(t))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v, want context.DeadlineExceeded", err)
	}
}

func TestExecutor_Run_InvalidConfig(t *testing.T) {
	arm := sim.NewArm([]float64{0, 0, 0, 0, 0}, 0)
	cfg := fastConfig()
	cfg.Tolerance = 0

	if err := choreo.NewExecutor(arm, cfg).Run(context.Background(), taughtSequence(t)); err == nil {
		t.Fatal("Run with zero tolerance succeeded")
	}
	if n := len(arm.Journal()); n != 0 {
		t.Errorf("issued %d commands, want 0", n)
	}
}
