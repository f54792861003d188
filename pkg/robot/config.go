package robot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gwillem/pickplace/pkg/choreo"
)

// ToleranceTicks is how many raw servo steps setup allows a joint to settle
// away from its goal.
const ToleranceTicks = 3

// Config holds the arm connection, calibration and motion settings.
type Config struct {
	Port        string                `json:"port" yaml:"port"`
	Calibration Calibration           `json:"calibration,omitempty" yaml:"calibration,omitempty"`
	Home        map[MotorName]float64 `json:"home,omitempty" yaml:"home,omitempty"`
	Gripper     GripperConfig         `json:"gripper" yaml:"gripper"`
	Motion      MotionConfig          `json:"motion" yaml:"motion"`
}

// GripperConfig holds normalized gripper positions.
type GripperConfig struct {
	Open   float64 `json:"open" yaml:"open"`
	Closed float64 `json:"closed" yaml:"closed"`
}

// MotionConfig overrides replay timing. Zero fields fall back to
// choreo.DefaultConfig, except ConvergenceTimeout where zero means no timeout.
type MotionConfig struct {
	Tolerance          float64  `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	PollInterval       Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	SettleDelay        Duration `json:"settle_delay,omitempty" yaml:"settle_delay,omitempty"`
	ConvergenceTimeout Duration `json:"convergence_timeout,omitempty" yaml:"convergence_timeout,omitempty"`
}

// Choreo returns the executor timing for these settings.
func (m MotionConfig) Choreo() choreo.Config {
	cfg := choreo.DefaultConfig()
	if m.Tolerance != 0 {
		cfg.Tolerance = m.Tolerance
	}
	if m.PollInterval != 0 {
		cfg.PollInterval = time.Duration(m.PollInterval)
	}
	if m.SettleDelay != 0 {
		cfg.SettleDelay = time.Duration(m.SettleDelay)
	}
	cfg.ConvergenceTimeout = time.Duration(m.ConvergenceTimeout)
	return cfg
}

// DefaultGripper opens fully and closes to the middle of the range.
func DefaultGripper() GripperConfig {
	return GripperConfig{Open: 100, Closed: 0}
}

// IsCalibrated returns true if the arm has calibration data
func (c *Config) IsCalibrated() bool {
	return len(c.Calibration) > 0
}

// HomePose returns the home position for each arm joint, zero where unset.
func (c *Config) HomePose() []float64 {
	pose := make([]float64, 0, len(ArmJoints()))
	for _, name := range ArmJoints() {
		pose = append(pose, c.Home[name])
	}
	return pose
}

// SuggestedTolerance returns a convergence tolerance of ToleranceTicks steps
// of the coarsest calibrated joint.
func (c *Config) SuggestedTolerance() float64 {
	return ToleranceTicks * c.Calibration.JointResolution()
}

// CheckTolerance rejects a tolerance the calibrated joints cannot resolve.
func (c *Config) CheckTolerance(tol float64) error {
	res := c.Calibration.JointResolution()
	if tol <= res {
		return fmt.Errorf("tolerance %.4g is within one servo step (%.4g); use at least %.4g", tol, res, c.SuggestedTolerance())
	}
	return nil
}

// LoadConfigFrom loads configuration from path. Files ending in .yaml or
// .yml are read as YAML, anything else as JSON.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Config{Gripper: DefaultGripper()}
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the config file exists
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Duration is a time.Duration written as a Go duration string ("100ms").
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"100ms\": %w", err)
	}
	return d.parse(s)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
