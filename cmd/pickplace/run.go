package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/gwillem/pickplace/pkg/choreo"
	"github.com/gwillem/pickplace/pkg/prompt"
	"github.com/gwillem/pickplace/pkg/robot"
	"github.com/gwillem/pickplace/pkg/sim"
)

type RunCommand struct {
	Sim       bool          `long:"sim" description:"Use a simulated arm instead of the serial bus"`
	SimStep   float64       `long:"sim-step" default:"0.05" description:"Simulated joint travel per read"`
	Tolerance float64       `long:"tolerance" description:"Per-joint convergence tolerance in normalized joint units (default from config, else 0.02)"`
	Poll      time.Duration `long:"poll" description:"Joint polling interval (default from config, else 100ms)"`
	Settle    time.Duration `long:"settle" description:"Pause after each gripper command (default from config, else 1s)"`
	Timeout   time.Duration `long:"timeout" description:"Fail when a pose is not reached within this time (default waits forever)"`
	Dashboard bool          `long:"dashboard" description:"Show a live dashboard during replay"`
}

var (
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	poseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// demoPoses are the poses a simulated operator demonstrates.
var demoPoses = [][]float64{
	{1, 0, 0, 0, 0},
	{1, 0, 0.5, 0, 0},
	{0.5, 0.5, 0.5, 0, 0},
	{0, 1, 0.5, 0, 0},
	{0, 1, 0, 0, 0},
}

func (c *RunCommand) Execute(args []string) error {
	logger, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hw, motion, closeHW, err := c.openHardware()
	if err != nil {
		return err
	}
	defer closeHW()

	confirm := prompt.New(os.Stdin, os.Stdout)
	teachConfirm := confirm
	if arm, ok := hw.(*sim.Arm); ok {
		teachConfirm = simulatedOperator(arm, confirm)
	}

	seq, err := teach(ctx, hw, teachConfirm, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Teaching failed: ")+err.Error())
		return err
	}

	if err := confirm.Confirm(ctx, "Press ENTER to start automated motion."); err != nil {
		return fmt.Errorf("start replay: %w", err)
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Automated Pick and Place"))

	if c.Dashboard {
		err = runDashboard(ctx, hw, motion, seq)
	} else {
		err = choreo.NewExecutor(hw, motion, choreo.WithLogger(logger)).Run(ctx, seq)
	}
	if err != nil {
		reportReplayError(err)
		return err
	}

	fmt.Println(successStyle.Render("Pick and place complete."))
	return nil
}

// openHardware returns the arm to drive and the motion timing, with flag
// values taking precedence over the config file.
func (c *RunCommand) openHardware() (choreo.Hardware, choreo.Config, func() error, error) {
	var cfg *robot.Config
	if robot.ConfigExists(opts.Config) {
		loaded, err := robot.LoadConfigFrom(opts.Config)
		if err != nil {
			return nil, choreo.Config{}, nil, err
		}
		cfg = loaded
	} else if !c.Sim {
		return nil, choreo.Config{}, nil, fmt.Errorf("no configuration at %s, run 'pickplace setup' first", opts.Config)
	}

	motion := choreo.DefaultConfig()
	if cfg != nil {
		motion = cfg.Motion.Choreo()
	}
	if c.Tolerance > 0 {
		motion.Tolerance = c.Tolerance
	}
	if c.Poll > 0 {
		motion.PollInterval = c.Poll
	}
	if c.Settle > 0 {
		motion.SettleDelay = c.Settle
	}
	if c.Timeout > 0 {
		motion.ConvergenceTimeout = c.Timeout
	}
	if err := motion.Validate(); err != nil {
		return nil, choreo.Config{}, nil, err
	}

	if c.Sim {
		home := make([]float64, len(robot.ArmJoints()))
		return sim.NewArm(home, c.SimStep), motion, func() error { return nil }, nil
	}

	if !cfg.IsCalibrated() {
		return nil, choreo.Config{}, nil, fmt.Errorf("arm not calibrated, run 'pickplace setup' first")
	}
	if err := cfg.CheckTolerance(motion.Tolerance); err != nil {
		return nil, choreo.Config{}, nil, fmt.Errorf("%w (set --tolerance or rerun 'pickplace setup')", err)
	}
	arm, err := robot.NewArm(cfg)
	if err != nil {
		return nil, choreo.Config{}, nil, fmt.Errorf("connect arm on %s: %w", cfg.Port, err)
	}
	fmt.Printf("Loaded configuration from %s\n", opts.Config)
	return arm, motion, arm.Close, nil
}

// teach homes the arm, opens the gripper, releases the arm to the operator
// and records the five poses.
func teach(ctx context.Context, hw choreo.Hardware, confirm choreo.Confirmer, logger *slog.Logger) (choreo.Sequence, error) {
	fmt.Println(headerStyle.Render("Manual Recording Mode"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))

	if err := hw.Home(ctx); err != nil {
		return choreo.Sequence{}, fmt.Errorf("home: %w", err)
	}
	if err := hw.Grip(ctx, choreo.GripOpen); err != nil {
		return choreo.Sequence{}, fmt.Errorf("open gripper: %w", err)
	}

	rec := choreo.NewRecorder(hw, confirm,
		choreo.WithRecorderLogger(logger),
		choreo.WithRecorderObserver(func(e choreo.Event) {
			fmt.Printf("%s %s\n", successStyle.Render(e.Message+":"), poseStyle.Render(formatJoints(e.Joints)))
		}),
	)

	fmt.Println()
	fmt.Println("Entering hand control mode. Move the arm by hand to each pose.")
	if err := rec.EnterManualMode(ctx); err != nil {
		return choreo.Sequence{}, err
	}
	return rec.RecordSequence(ctx)
}

// simulatedOperator places the simulated arm at the next demo pose whenever
// the operator confirms a recording prompt.
func simulatedOperator(arm *sim.Arm, confirm choreo.Confirmer) choreo.Confirmer {
	next := 0
	return choreo.ConfirmFunc(func(ctx context.Context, prompt string) error {
		if err := confirm.Confirm(ctx, prompt); err != nil {
			return err
		}
		if next < len(demoPoses) {
			arm.Place(demoPoses[next])
			next++
		}
		return nil
	})
}

func reportReplayError(err error) {
	var stepErr *choreo.StepError
	switch {
	case errors.Is(err, choreo.ErrIncompleteSequence):
		fmt.Fprintln(os.Stderr, errorStyle.Render("Replay refused: ")+err.Error())
	case errors.As(err, &stepErr):
		where := stepErr.State.String()
		if stepErr.Pose != "" {
			where += " (" + stepErr.Pose + ")"
		}
		fmt.Fprintln(os.Stderr, errorStyle.Render("Replay failed in "+where+": ")+stepErr.Err.Error())
		if errors.Is(err, choreo.ErrConvergenceTimeout) {
			fmt.Fprintln(os.Stderr, "The arm did not reach the pose. Check for obstructions or raise --tolerance.")
		}
		fmt.Fprintln(os.Stderr, "The arm was left where it stopped.")
	default:
		fmt.Fprintln(os.Stderr, errorStyle.Render("Replay failed: ")+err.Error())
	}
}

func formatJoints(joints []float64) string {
	s := "("
	for i, v := range joints {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%.3f", v)
	}
	return s + ")"
}
