package robot

import (
	"errors"
	"fmt"
	"math"
)

// ErrNotCalibrated is returned when calibration data is missing or unusable.
var ErrNotCalibrated = errors.New("arm not calibrated")

// MotorCalibration holds calibration data for a single motor.
type MotorCalibration struct {
	ID           int `json:"id" yaml:"id"`
	DriveMode    int `json:"drive_mode" yaml:"drive_mode"`
	HomingOffset int `json:"homing_offset" yaml:"homing_offset"`
	RangeMin     int `json:"range_min" yaml:"range_min"`
	RangeMax     int `json:"range_max" yaml:"range_max"`
}

// Calibration holds calibration data for all motors, keyed by motor name.
type Calibration map[MotorName]MotorCalibration

// Normalize converts a raw servo position to a normalized value in the range [-100, 100].
func (c MotorCalibration) Normalize(raw int) float64 {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	if rangeSize == 0 {
		return 0
	}
	return (float64(raw-c.RangeMin)/rangeSize)*200 - 100
}

// Denormalize converts a normalized value to a raw servo position. Values
// outside [-100, 100] are clamped to the calibrated range.
func (c MotorCalibration) Denormalize(norm float64) int {
	norm = max(-100, min(100, norm))
	rangeSize := float64(c.RangeMax - c.RangeMin)
	return int(math.Round((norm+100)/200*rangeSize)) + c.RangeMin
}

// TickSize returns the normalized width of one raw servo step.
func (c MotorCalibration) TickSize() float64 {
	rangeSize := c.RangeMax - c.RangeMin
	if rangeSize <= 0 {
		return 0
	}
	return 200 / float64(rangeSize)
}

// MotorIDs returns the servo IDs for all motors in the calibration.
func (c Calibration) MotorIDs() []int {
	ids := make([]int, 0, len(c))
	// Use AllMotors() to ensure consistent ordering
	for _, name := range AllMotors() {
		if mc, ok := c[name]; ok {
			ids = append(ids, mc.ID)
		}
	}
	return ids
}

// ByID returns motor name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (MotorName, MotorCalibration, bool) {
	for name, mc := range c {
		if mc.ID == id {
			return name, mc, true
		}
	}
	return "", MotorCalibration{}, false
}

// Validate checks that every motor has a distinct ID and a non-empty range.
func (c Calibration) Validate() error {
	seen := make(map[int]MotorName, len(c))
	for _, name := range AllMotors() {
		mc, ok := c[name]
		if !ok {
			return fmt.Errorf("%w: no calibration for %s", ErrNotCalibrated, name)
		}
		if mc.RangeMax <= mc.RangeMin {
			return fmt.Errorf("%w: %s range [%d, %d] is empty", ErrNotCalibrated, name, mc.RangeMin, mc.RangeMax)
		}
		if other, dup := seen[mc.ID]; dup {
			return fmt.Errorf("%w: %s and %s share servo ID %d", ErrNotCalibrated, other, name, mc.ID)
		}
		seen[mc.ID] = name
	}
	return nil
}

// JointResolution returns the coarsest normalized step among the arm joints.
// Joint readings are quantized to this step, so a convergence tolerance at or
// below it only accepts exact readings.
func (c Calibration) JointResolution() float64 {
	var res float64
	for _, name := range ArmJoints() {
		res = max(res, c[name].TickSize())
	}
	return res
}
