package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/pickplace/pkg/prompt"
	"github.com/gwillem/pickplace/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	Port string `long:"port" description:"Serial port of the arm (skips scanning)"`
}

func (c *SetupCommand) Execute(args []string) error {
	logger, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	fmt.Println(headerStyle.Render("Pick and Place Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	// Keep motion and gripper settings from an earlier setup.
	config := &robot.Config{Gripper: robot.DefaultGripper()}
	if robot.ConfigExists(opts.Config) {
		if existing, err := robot.LoadConfigFrom(opts.Config); err == nil {
			config = existing
		}
	}

	// Step 1: Find the arm
	port := c.Port
	if port == "" {
		port, err = scanForArm()
		if err != nil {
			return err
		}
	}
	config.Port = port
	logger.Info("arm selected", "port", port)

	// Step 2: Calibrate
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Calibrating Arm ━━━"))
	fmt.Println()
	cal, err := calibrateArm(port)
	if err != nil {
		return err
	}
	config.Calibration = cal
	if config.CheckTolerance(config.Motion.Tolerance) != nil {
		config.Motion.Tolerance = config.SuggestedTolerance()
		fmt.Printf("Convergence tolerance set to %.3f (%d servo steps)\n", config.Motion.Tolerance, robot.ToleranceTicks)
	}

	// Save after calibration
	if err := config.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	// Step 3: Home pose
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Recording Home Pose ━━━"))
	fmt.Println()
	home, err := recordHome(config)
	if err != nil {
		return err
	}
	config.Home = home

	if err := config.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	logger.Info("setup saved", "path", opts.Config)

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Teach and replay with: " + headerStyle.Render("pickplace run"))

	return nil
}

const (
	busBaudRate   = 1_000_000
	scanTimeout   = 2 * time.Second
	soArmServos   = 6
	minUsefulSpan = 500 // raw ticks a joint should travel during calibration
)

var errCalibrationAborted = errors.New("calibration aborted")

func scanForArm() (string, error) {
	fmt.Println("Scanning for robot arms...")
	fmt.Println()

	arms := findArms()
	switch len(arms) {
	case 0:
		fmt.Println("No SO-101 arms found.")
		fmt.Println("Make sure your arm is connected and powered on.")
		return "", fmt.Errorf("no arm found")
	case 1:
		arms[0].bus.Close()
		fmt.Printf("Using arm on %s\n", arms[0].port)
		return arms[0].port, nil
	}

	fmt.Printf("Found %d arms. Watch for the one that moves.\n\n", len(arms))

	var port string
	for _, arm := range arms {
		if port == "" && identifyArmWithWiggle(arm) {
			port = arm.port
		}
		arm.bus.Close()
	}
	if port == "" {
		return "", fmt.Errorf("no arm selected")
	}

	fmt.Println(successStyle.Render("Arm selected: ") + port)
	return port, nil
}

func calibrateArm(port string) (robot.Calibration, error) {
	fmt.Printf("Calibrating arm on %s\n\n", port)

	arm, err := openSOArm(port)
	if err != nil {
		return nil, fmt.Errorf("connect to arm: %w", err)
	}
	defer arm.bus.Close()

	// Torque off so every joint can be moved by hand.
	ctx := context.Background()
	joints := make([]*jointRange, 0, soArmServos)
	for i, name := range robot.AllMotors() {
		servo := arm.servo(i + 1)
		servo.Disable(ctx)
		pos, err := servo.Position(ctx)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		joints = append(joints, &jointRange{name: name, id: i + 1, servo: servo, cur: pos, lo: pos, hi: pos})
	}

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move each joint, gripper included, to both ends of its travel.")
	fmt.Println()

	final, err := tea.NewProgram(calibrationModel{joints: joints}).Run()
	if err != nil {
		return nil, fmt.Errorf("run calibration: %w", err)
	}
	if final.(calibrationModel).aborted {
		return nil, errCalibrationAborted
	}

	calibration := make(robot.Calibration, len(joints))
	for _, j := range joints {
		calibration[j.name] = robot.MotorCalibration{ID: j.id, RangeMin: j.lo, RangeMax: j.hi}
	}
	if err := calibration.Validate(); err != nil {
		return nil, fmt.Errorf("%w (move every joint through its range)", err)
	}

	fmt.Println()
	fmt.Println("Arm calibrated.")
	return calibration, nil
}

// recordHome reads the pose the operator guides the arm to and returns it as
// the home position used before teaching and after replay.
func recordHome(config *robot.Config) (map[robot.MotorName]float64, error) {
	arm, err := robot.NewArm(config)
	if err != nil {
		return nil, fmt.Errorf("connect arm: %w", err)
	}
	defer arm.Close()

	ctx := context.Background()
	if err := arm.HandControl(ctx); err != nil {
		return nil, err
	}

	confirm := prompt.New(os.Stdin, os.Stdout)
	if err := confirm.Confirm(ctx, "Move the arm to a safe home pose, then confirm"); err != nil {
		return nil, err
	}

	joints, err := arm.GetJoints(ctx)
	if err != nil {
		return nil, err
	}

	home := make(map[robot.MotorName]float64, len(joints))
	for i, name := range robot.ArmJoints() {
		home[name] = joints[i]
	}
	fmt.Println(successStyle.Render("Home recorded: ") + formatJoints(joints))
	return home, nil
}

type armInfo struct {
	port   string
	servos []feetech.FoundServo
	bus    *feetech.Bus
}

func (a armInfo) servo(id int) *feetech.Servo {
	for _, s := range a.servos {
		if s.ID == id {
			return feetech.NewServo(a.bus, s.ID, s.Model)
		}
	}
	return nil
}

// openSOArm opens port and keeps the bus open when servos 1-6 all answer.
func openSOArm(port string) (armInfo, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: busBaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return armInfo{}, fmt.Errorf("open %s: %w", port, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	servos, err := bus.Scan(ctx, 1, soArmServos)
	if err == nil && !isSOArm(servos) {
		err = fmt.Errorf("not an SO-101 arm (expected servo IDs 1-%d)", soArmServos)
	}
	if err != nil {
		bus.Close()
		return armInfo{}, err
	}
	return armInfo{port: port, servos: servos, bus: bus}, nil
}

func findArms() []armInfo {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var arms []armInfo
	for _, port := range ports {
		// macOS lists Bluetooth serial ports that never host a servo bus.
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		arm, err := openSOArm(port)
		if err != nil {
			continue
		}
		fmt.Printf("  Found SO-101 arm on %s\n", port)
		arms = append(arms, arm)
	}
	return arms
}

func isSOArm(servos []feetech.FoundServo) bool {
	seen := make(map[int]bool, len(servos))
	for _, s := range servos {
		seen[s.ID] = true
	}
	if len(servos) != soArmServos || len(seen) != soArmServos {
		return false
	}
	for id := 1; id <= soArmServos; id++ {
		if !seen[id] {
			return false
		}
	}
	return true
}

// identifyArmWithWiggle nudges the shoulder pan servo back and forth and
// asks whether this is the arm to use. The caller closes the bus.
func identifyArmWithWiggle(arm armInfo) bool {
	ctx := context.Background()

	pan := arm.servo(1)
	if pan == nil {
		return false
	}
	start, err := pan.Position(ctx)
	if err != nil {
		fmt.Printf("  Error reading %s: %v\n", arm.port, err)
		return false
	}
	if err := pan.Enable(ctx); err != nil {
		fmt.Printf("  Error enabling servo on %s: %v\n", arm.port, err)
		return false
	}

	fmt.Printf("\n  Wiggling arm on %s...\n", arm.port)
	const moveTime = 500 * time.Millisecond
	for _, offset := range []int{30, -30, 0} {
		pan.SetPositionWithTime(ctx, start+offset, int(moveTime.Milliseconds()))
		time.Sleep(moveTime + 100*time.Millisecond)
	}
	pan.Disable(ctx)

	use := false
	confirm := huh.NewConfirm().
		Title(fmt.Sprintf("Use the arm on %s?", arm.port)).
		Description("The arm that just wiggled").
		Affirmative("Use this arm").
		Negative("Skip").
		Value(&use)
	if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
		return false
	}
	return use
}

// jointRange is the travel observed on one servo while calibrating.
type jointRange struct {
	name   robot.MotorName
	id     int
	servo  *feetech.Servo
	cur    int
	lo, hi int
}

func (j *jointRange) observe(pos int) {
	j.cur = pos
	j.lo = min(j.lo, pos)
	j.hi = max(j.hi, pos)
}

func (j *jointRange) span() int { return j.hi - j.lo }

var (
	calCellStyle    = lipgloss.NewStyle().Padding(0, 1)
	calHeaderStyle  = calCellStyle.Bold(true).Foreground(lipgloss.Color("12"))
	calMotorStyle   = calCellStyle.Foreground(lipgloss.Color("14"))
	calCurrentStyle = calCellStyle.Foreground(lipgloss.Color("11"))
	calGoodStyle    = calCellStyle.Foreground(lipgloss.Color("10"))
	calLowStyle     = calCellStyle.Foreground(lipgloss.Color("9"))
)

// calibrationModel polls every servo and widens each joint's range as the
// operator moves it. Enter accepts, ctrl+c aborts.
type calibrationModel struct {
	joints  []*jointRange
	done    bool
	aborted bool
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return tick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.aborted = true
			fallthrough
		case "enter", "q":
			m.done = true
			return m, tea.Quit
		}

	case tickMsg:
		ctx := context.Background()
		for _, j := range m.joints {
			if pos, err := j.servo.Position(ctx); err == nil {
				j.observe(pos)
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m calibrationModel) View() string {
	if m.done {
		return ""
	}

	rows := make([][]string, len(m.joints))
	for i, j := range m.joints {
		rows[i] = []string{
			string(j.name),
			strconv.Itoa(j.cur),
			strconv.Itoa(j.lo),
			strconv.Itoa(j.hi),
			strconv.Itoa(j.span()),
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Motor", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(m.cellStyle)

	return t.Render() + "\n\n" + dimStyle.Render("Press Enter when every joint has travelled its full range")
}

func (m calibrationModel) cellStyle(row, col int) lipgloss.Style {
	switch {
	case row == table.HeaderRow:
		return calHeaderStyle
	case col == 0:
		return calMotorStyle
	case col == 1:
		return calCurrentStyle
	case col == 4 && row >= 0 && row < len(m.joints) && m.joints[row].span() > minUsefulSpan:
		return calGoodStyle
	case col == 4:
		return calLowStyle
	}
	return calCellStyle
}
