// Package pickplace teaches an SO-101 robot arm a pick-and-place motion by
// hand and replays it autonomously.
//
// The operator moves the arm through five poses (pick, lift, mid, place,
// end) while torque is off. Each pose is captured on confirmation. The
// replay then homes the arm, visits each pose in turn, and waits after
// every motion until all joints are within tolerance of the goal. It closes
// the gripper after the pick pose and opens it after the end pose.
//
// # Installation
//
//	go install github.com/gwillem/pickplace/cmd/pickplace@latest
//
// # Usage
//
// Detect and calibrate the arm, and record its home pose:
//
//	pickplace setup
//
// Teach and replay:
//
//	pickplace run
//
// Try the flow without hardware:
//
//	pickplace run --sim --dashboard
//
// # Packages
//
//   - cmd/pickplace: CLI with setup, joints and run commands
//   - pkg/choreo: pose sequences, recorder, executor and convergence waiting
//   - pkg/robot: feetech servo arm, calibration and configuration
//   - pkg/sim: simulated arm for dry runs and tests
//   - pkg/prompt: operator confirmations
//   - pkg/logging: slog setup
package pickplace
