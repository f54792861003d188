package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gwillem/pickplace/pkg/choreo"
	"github.com/gwillem/pickplace/pkg/robot"
)

type JointsCommand struct {
	Interval time.Duration `long:"interval" default:"500ms" description:"Time between readings"`
	Release  bool          `long:"release" description:"Disable torque first so the arm can be moved by hand"`
	Count    int           `long:"count" description:"Stop after this many readings (0 runs until Ctrl+C)"`
}

func (c *JointsCommand) Execute(args []string) error {
	cfg, err := robot.LoadConfigFrom(opts.Config)
	if err != nil {
		return fmt.Errorf("%w (run 'pickplace setup' first)", err)
	}
	arm, err := robot.NewArm(cfg)
	if err != nil {
		return fmt.Errorf("connect arm on %s: %w", cfg.Port, err)
	}
	defer arm.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Release {
		if err := arm.HandControl(ctx); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Torque disabled - move the arm by hand"))
	}

	fmt.Println(dimStyle.Render(jointHeader()))
	return watchJoints(ctx, arm, c.Interval, c.Count, func(joints []float64) {
		fmt.Println(formatJoints(joints))
	})
}

func jointHeader() string {
	names := make([]string, 0, len(robot.ArmJoints()))
	for _, name := range robot.ArmJoints() {
		names = append(names, string(name))
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// watchJoints reads hw every interval and hands each reading to show. A
// count above zero stops after that many readings. Read errors are printed
// and do not stop the loop.
func watchJoints(ctx context.Context, hw choreo.Hardware, interval time.Duration, count int, show func([]float64)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 0; count <= 0 || n < count; n++ {
		joints, err := hw.GetJoints(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Position read failed: %v\n", err)
		} else {
			show(joints)
		}

		if count > 0 && n+1 == count {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}
