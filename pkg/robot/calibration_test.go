package robot

import (
	"errors"
	"math"
	"testing"
)

func TestMotorCalibration_Normalize(t *testing.T) {
	cal := MotorCalibration{
		RangeMin: 1000,
		RangeMax: 3000,
	}

	tests := []struct {
		raw      int
		expected float64
	}{
		{1000, -100.0}, // min -> -100
		{3000, 100.0},  // max -> 100
		{2000, 0.0},    // mid -> 0
		{1500, -50.0},  // quarter -> -50
		{2500, 50.0},   // three-quarter -> 50
	}

	for _, tt := range tests {
		got := cal.Normalize(tt.raw)
		if math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("Normalize(%d) = %f, want %f", tt.raw, got, tt.expected)
		}
	}
}

func TestMotorCalibration_Denormalize(t *testing.T) {
	cal := MotorCalibration{
		RangeMin: 1000,
		RangeMax: 3000,
	}

	tests := []struct {
		norm     float64
		expected int
	}{
		{-100.0, 1000}, // -100 -> min
		{100.0, 3000},  // 100 -> max
		{0.0, 2000},    // 0 -> mid
		{-50.0, 1500},  // -50 -> quarter
		{50.0, 2500},   // 50 -> three-quarter
		{140.0, 3000},  // clamped high
		{-250.0, 1000}, // clamped low
	}

	for _, tt := range tests {
		got := cal.Denormalize(tt.norm)
		if got != tt.expected {
			t.Errorf("Denormalize(%f) = %d, want %d", tt.norm, got, tt.expected)
		}
	}
}

func TestMotorCalibration_RoundTrip(t *testing.T) {
	ranges := []MotorCalibration{
		{RangeMin: 1000, RangeMax: 3000},
		{RangeMin: 713, RangeMax: 3391},
		{RangeMin: 823, RangeMax: 3540},
		{RangeMin: 0, RangeMax: 4095},
	}

	for _, cal := range ranges {
		for raw := cal.RangeMin; raw <= cal.RangeMax; raw++ {
			norm := cal.Normalize(raw)
			if back := cal.Denormalize(norm); back != raw {
				t.Errorf("[%d, %d]: %d -> %f -> %d", cal.RangeMin, cal.RangeMax, raw, norm, back)
			}
		}
	}
}

func TestMotorCalibration_TickSize(t *testing.T) {
	tests := []struct {
		cal      MotorCalibration
		expected float64
	}{
		{MotorCalibration{RangeMin: 1000, RangeMax: 3000}, 0.1},
		{MotorCalibration{RangeMin: 0, RangeMax: 4000}, 0.05},
		{MotorCalibration{RangeMin: 2000, RangeMax: 2000}, 0},
	}

	for _, tt := range tests {
		if got := tt.cal.TickSize(); math.Abs(got-tt.expected) > 1e-12 {
			t.Errorf("TickSize(%+v) = %f, want %f", tt.cal, got, tt.expected)
		}
	}
}

func fullCalibration() Calibration {
	cal := make(Calibration)
	for i, name := range AllMotors() {
		cal[name] = MotorCalibration{ID: i + 1, RangeMin: 1000, RangeMax: 3000}
	}
	return cal
}

func TestCalibration_MotorIDs(t *testing.T) {
	ids := fullCalibration().MotorIDs()
	expected := []int{1, 2, 3, 4, 5, 6}

	if len(ids) != len(expected) {
		t.Fatalf("MotorIDs returned %d IDs, want %d", len(ids), len(expected))
	}

	for i, id := range ids {
		if id != expected[i] {
			t.Errorf("MotorIDs()[%d] = %d, want %d", i, id, expected[i])
		}
	}
}

func TestCalibration_ByID(t *testing.T) {
	cal := Calibration{
		ShoulderPan: MotorCalibration{ID: 1, RangeMin: 100, RangeMax: 200},
		Gripper:     MotorCalibration{ID: 6, RangeMin: 300, RangeMax: 400},
	}

	name, mc, ok := cal.ByID(1)
	if !ok {
		t.Fatal("ByID(1) returned false")
	}
	if name != ShoulderPan {
		t.Errorf("ByID(1) returned name %s, want shoulder_pan", name)
	}
	if mc.RangeMin != 100 {
		t.Errorf("ByID(1) returned wrong calibration: %+v", mc)
	}

	_, _, ok = cal.ByID(99)
	if ok {
		t.Error("ByID(99) should return false")
	}
}

func TestCalibration_Validate(t *testing.T) {
	if err := fullCalibration().Validate(); err != nil {
		t.Fatalf("Validate(full) = %v", err)
	}

	missing := fullCalibration()
	delete(missing, WristRoll)

	empty := fullCalibration()
	empty[ElbowFlex] = MotorCalibration{ID: 3, RangeMin: 2000, RangeMax: 2000}

	dup := fullCalibration()
	dup[Gripper] = MotorCalibration{ID: 1, RangeMin: 1000, RangeMax: 3000}

	for name, cal := range map[string]Calibration{
		"missing motor": missing,
		"empty range":   empty,
		"duplicate id":  dup,
		"nil":           nil,
	} {
		if err := cal.Validate(); !errors.Is(err, ErrNotCalibrated) {
			t.Errorf("Validate(%s) = %v, want ErrNotCalibrated", name, err)
		}
	}
}

func TestJointMapping(t *testing.T) {
	joints := []float64{1, 2, 3, 4, 5}
	m, err := jointMap(joints)
	if err != nil {
		t.Fatal(err)
	}
	if m[ShoulderPan] != 1 || m[WristRoll] != 5 {
		t.Errorf("jointMap = %v", m)
	}
	if _, ok := m[Gripper]; ok {
		t.Error("jointMap includes the gripper")
	}

	back, err := jointSlice(m)
	if err != nil {
		t.Fatal(err)
	}
	for i := range joints {
		if back[i] != joints[i] {
			t.Errorf("jointSlice()[%d] = %f, want %f", i, back[i], joints[i])
		}
	}

	if _, err := jointMap(joints[:4]); err == nil {
		t.Error("jointMap accepted 4 joints")
	}
	delete(m, ElbowFlex)
	if _, err := jointSlice(m); err == nil {
		t.Error("jointSlice accepted a missing motor")
	}
}

func TestCalibration_JointResolution(t *testing.T) {
	cal := fullCalibration()
	cal[ElbowFlex] = MotorCalibration{ID: 3, RangeMin: 1500, RangeMax: 2500}
	// The gripper does not take part in convergence.
	cal[Gripper] = MotorCalibration{ID: 6, RangeMin: 2000, RangeMax: 2100}

	if got := cal.JointResolution(); math.Abs(got-0.2) > 1e-12 {
		t.Errorf("JointResolution = %f, want 0.2", got)
	}
}
