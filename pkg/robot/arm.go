package robot

import (
	"context"
	"fmt"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gwillem/pickplace/pkg/choreo"
)

// Arm represents a robot arm with multiple servos.
// It implements choreo.Hardware in normalized [-100, 100] joint units.
type Arm struct {
	bus         *feetech.Bus
	group       *feetech.ServoGroup
	calibration Calibration
	home        []float64
	gripper     GripperConfig
	enabled     bool
}

// NewArm creates and initializes an arm connection from a calibrated config.
func NewArm(cfg *Config) (*Arm, error) {
	if err := cfg.Calibration.Validate(); err != nil {
		return nil, err
	}

	// Open serial bus
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	// Create servo group from calibration IDs
	ids := cfg.Calibration.MotorIDs()
	group := feetech.NewServoGroupByIDs(bus, ids...)

	return &Arm{
		bus:         bus,
		group:       group,
		calibration: cfg.Calibration,
		home:        cfg.HomePose(),
		gripper:     cfg.Gripper,
	}, nil
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	return a.bus.Close()
}

// Enable enables torque on all servos.
func (a *Arm) Enable(ctx context.Context) error {
	if err := a.group.EnableAll(ctx); err != nil {
		return fmt.Errorf("enable torque: %w", err)
	}
	a.enabled = true
	return nil
}

// Disable disables torque on all servos.
func (a *Arm) Disable(ctx context.Context) error {
	if err := a.group.DisableAll(ctx); err != nil {
		return fmt.Errorf("disable torque: %w", err)
	}
	a.enabled = false
	return nil
}

// ReadPositions reads current positions from all motors.
// Returns normalized positions in the range [-100, 100].
func (a *Arm) ReadPositions(ctx context.Context) (map[MotorName]float64, error) {
	// Read raw positions using sync read
	rawPositions, err := a.group.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	positions := make(map[MotorName]float64, len(rawPositions))
	for id, raw := range rawPositions {
		name, cal, ok := a.calibration.ByID(id)
		if !ok {
			continue
		}
		positions[name] = cal.Normalize(raw)
	}

	return positions, nil
}

// WritePositions writes target positions to the given motors.
// Takes normalized positions in the range [-100, 100].
func (a *Arm) WritePositions(ctx context.Context, positions map[MotorName]float64) error {
	rawPositions := make(feetech.PositionMap, len(positions))
	for name, norm := range positions {
		cal, ok := a.calibration[name]
		if !ok {
			return fmt.Errorf("write positions: no calibration for %s", name)
		}
		rawPositions[cal.ID] = cal.Denormalize(norm)
	}

	// Write using sync write
	if err := a.group.SetPositions(ctx, rawPositions); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}

	return nil
}

// Home enables torque and moves the arm joints to the configured home pose.
func (a *Arm) Home(ctx context.Context) error {
	if err := a.Enable(ctx); err != nil {
		return err
	}
	return a.SetJoints(ctx, a.home)
}

// SetJoints commands the five arm joints, in ArmJoints order.
func (a *Arm) SetJoints(ctx context.Context, joints []float64) error {
	positions, err := jointMap(joints)
	if err != nil {
		return err
	}
	if !a.enabled {
		// Torque is off after hand control; the servos would ignore the goal.
		if err := a.Enable(ctx); err != nil {
			return err
		}
	}
	return a.WritePositions(ctx, positions)
}

// GetJoints reads the five arm joints, in ArmJoints order.
func (a *Arm) GetJoints(ctx context.Context) ([]float64, error) {
	positions, err := a.ReadPositions(ctx)
	if err != nil {
		return nil, err
	}
	return jointSlice(positions)
}

// Grip moves the gripper motor to its configured open or closed position.
func (a *Arm) Grip(ctx context.Context, state choreo.GripState) error {
	target := a.gripper.Open
	if state == choreo.GripClosed {
		target = a.gripper.Closed
	}
	return a.WritePositions(ctx, map[MotorName]float64{Gripper: target})
}

// HandControl disables torque so the arm can be moved by hand.
func (a *Arm) HandControl(ctx context.Context) error {
	return a.Disable(ctx)
}

func jointMap(joints []float64) (map[MotorName]float64, error) {
	names := ArmJoints()
	if len(joints) != len(names) {
		return nil, fmt.Errorf("set joints: got %d values, want %d", len(joints), len(names))
	}
	m := make(map[MotorName]float64, len(names))
	for i, name := range names {
		m[name] = joints[i]
	}
	return m, nil
}

func jointSlice(positions map[MotorName]float64) ([]float64, error) {
	names := ArmJoints()
	joints := make([]float64, len(names))
	for i, name := range names {
		v, ok := positions[name]
		if !ok {
			return nil, fmt.Errorf("read joints: no reading for %s", name)
		}
		joints[i] = v
	}
	return joints, nil
}

var _ choreo.Hardware = (*Arm)(nil)
