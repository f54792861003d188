package choreo

import (
	"context"
	"fmt"
	"log/slog"
)

// Recorder captures poses from an arm that an operator moves by hand.
// It reads joint state and never commands motion.
type Recorder struct {
	hw      Hardware
	confirm Confirmer
	logger  *slog.Logger
	obs     Observer
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the recorder's logger.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = l }
}

// WithRecorderObserver sets an observer for PoseRecorded events.
func WithRecorderObserver(obs Observer) RecorderOption {
	return func(r *Recorder) { r.obs = obs }
}

// NewRecorder creates a recorder reading from hw and waiting on confirm.
func NewRecorder(hw Hardware, confirm Confirmer, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		hw:      hw,
		confirm: confirm,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnterManualMode hands the arm over to the operator.
func (r *Recorder) EnterManualMode(ctx context.Context) error {
	if err := r.hw.HandControl(ctx); err != nil {
		return fmt.Errorf("enter hand control: %w", err)
	}
	r.logger.Info("hand control enabled")
	return nil
}

// RecordPose waits for the operator to confirm, then reads the current joints
// once and returns them as a pose for role.
func (r *Recorder) RecordPose(ctx context.Context, role Role, label string) (Pose, error) {
	prompt := fmt.Sprintf("Move robot using hand control to %s, then confirm", label)
	if err := r.confirm.Confirm(ctx, prompt); err != nil {
		return Pose{}, fmt.Errorf("record %s: %w", label, err)
	}

	joints, err := r.hw.GetJoints(ctx)
	if err != nil {
		return Pose{}, fmt.Errorf("record %s: read joints: %w", label, err)
	}

	pose := NewPose(role, label, joints)
	r.logger.Info("pose recorded", "label", label, "joints", joints)
	r.obs.emit(Event{
		Kind:    EventPoseRecorded,
		Role:    role,
		Message: label + " recorded",
		Joints:  pose.Joints(),
	})
	return pose, nil
}

// RecordSequence records one pose per role in order. Any failure discards
// the poses captured so far.
func (r *Recorder) RecordSequence(ctx context.Context) (Sequence, error) {
	poses := make([]Pose, 0, len(Roles()))
	for _, role := range Roles() {
		p, err := r.RecordPose(ctx, role, role.Label())
		if err != nil {
			return Sequence{}, err
		}
		poses = append(poses, p)
	}
	return NewSequence(poses)
}
