package choreo_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gwillem/pickplace/pkg/choreo"
	"github.com/gwillem/pickplace/pkg/sim"
)

// guide moves the simulated arm to the next demonstrated pose each time the
// operator is prompted.
func guide(arm *sim.Arm, poses []choreo.Pose, prompts *[]string) choreo.Confirmer {
	i := 0
	return choreo.ConfirmFunc(func(ctx context.Context, prompt string) error {
		*prompts = append(*prompts, prompt)
		if i >= len(poses) {
			return choreo.ErrAborted
		}
		arm.Place(poses[i].Joints())
		i++
		return nil
	})
}

func TestRecorder_RecordSequence(t *testing.T) {
	ctx := context.Background()
	arm := sim.NewArm([]float64{0, 0, 0, 0, 0}, 0)
	demo := taughtPoses()

	var prompts []string
	var recorded []choreo.Event
	rec := choreo.NewRecorder(arm, guide(arm, demo, &prompts),
		choreo.WithRecorderObserver(func(e choreo.Event) { recorded = append(recorded, e) }),
	)

	if err := rec.EnterManualMode(ctx); err != nil {
		t.Fatalf("EnterManualMode = %v", err)
	}
	seq, err := rec.RecordSequence(ctx)
	if err != nil {
		t.Fatalf("RecordSequence = %v", err)
	}

	for i, p := range seq.Poses() {
		if !choreo.Converged(p.Joints(), demo[i].Joints(), 1e-12) {
			t.Errorf("pose %s = %v, want %v", p.Label(), p.Joints(), demo[i].Joints())
		}
		if !strings.Contains(prompts[i], p.Label()) {
			t.Errorf("prompt %d = %q, want mention of %s", i, prompts[i], p.Label())
		}
	}
	if len(recorded) != 5 {
		t.Errorf("got %d PoseRecorded events, want 5", len(recorded))
	}

	journal := arm.Journal()
	if len(journal) != 1 || journal[0].Op != sim.OpHandControl {
		t.Errorf("recorder issued %+v, want only hand_control", journal)
	}
}

func TestRecorder_AcceptsIdenticalPoses(t *testing.T) {
	ctx := context.Background()
	arm := sim.NewArm([]float64{0.1, 0.2, 0.3, 0.4, 0.5}, 0)
	confirm := choreo.ConfirmFunc(func(context.Context, string) error { return nil })

	seq, err := choreo.NewRecorder(arm, confirm).RecordSequence(ctx)
	if err != nil {
		t.Fatalf("RecordSequence = %v", err)
	}
	if !choreo.Converged(seq.Place.Joints(), seq.End.Joints(), 1e-12) {
		t.Errorf("place %v and end %v differ", seq.Place, seq.End)
	}
}

func TestRecorder_Abort(t *testing.T) {
	ctx := context.Background()
	arm := sim.NewArm([]float64{0, 0, 0, 0, 0}, 0)
	demo := taughtPoses()[:3]

	var prompts []string
	rec := choreo.NewRecorder(arm, guide(arm, demo, &prompts))

	_, err := rec.RecordSequence(ctx)
	if !errors.Is(err, choreo.ErrAborted) {
		t.Fatalf("RecordSequence = %v, want ErrAborted", err)
	}
	if !strings.Contains(err.Error(), "PLACE POSE") {
		t.Errorf("error %q does not name the place pose", err)
	}
	if len(prompts) != 4 {
		t.Errorf("prompted %d times, want 4", len(prompts))
	}
}

func TestRecorder_ReadFailure(t *testing.T) {
	ctx := context.Background()
	arm := sim.NewArm([]float64{0, 0, 0, 0, 0}, 0)
	boom := errors.New("servo 3 not responding")
	arm.FailReadsAfter(1, boom)

	confirm := choreo.ConfirmFunc(func(context.Context, string) error { return nil })
	rec := choreo.NewRecorder(arm, confirm)

	if _, err := rec.RecordPose(ctx, choreo.RolePick, "PICK POSE"); err != nil {
		t.Fatalf("first RecordPose = %v", err)
	}
	_, err := rec.RecordPose(ctx, choreo.RoleLift, "LIFT POSE")
	if !errors.Is(err, boom) {
		t.Errorf("second RecordPose = %v, want %v", err, boom)
	}
}
