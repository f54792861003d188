package main

import (
	"context"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/pickplace/pkg/choreo"
	"github.com/gwillem/pickplace/pkg/logging"
	"github.com/gwillem/pickplace/pkg/robot"
)

const (
	headerHeight = 3 // title + state + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Joint colors - distinct colors for each arm joint
var jointColors = map[robot.MotorName]string{
	robot.ShoulderPan:  "196", // red
	robot.ShoulderLift: "208", // orange
	robot.ElbowFlex:    "226", // yellow
	robot.WristFlex:    "46",  // green
	robot.WristRoll:    "51",  // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	stateStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

type dashboardModel struct {
	events   <-chan choreo.Event
	finished <-chan struct{}
	runErr   *error
	cfg      choreo.Config
	chart    *streamlinechart.Model
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N log messages
	state    choreo.State
	maxError float64
	err      error
	complete bool
	quitting bool
}

// Messages from the executor
type eventMsg choreo.Event
type doneMsg struct{ err error }

func waitForEvent(ch <-chan choreo.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func waitForDone(finished <-chan struct{}, runErr *error) tea.Cmd {
	return func() tea.Msg {
		<-finished
		return doneMsg{err: *runErr}
	}
}

func (m *dashboardModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *dashboardModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = max(40, m.width-borderSize-2)
	height = max(10, m.height-headerHeight-legendHeight-footerHeight-borderSize)
	return width, height
}

// chartRange spans every taught pose with some headroom.
func chartRange(seq choreo.Sequence) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range seq.Poses() {
		for _, v := range p.Joints() {
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	lo, hi = min(lo, 0), max(hi, 0)
	pad := max((hi-lo)*0.1, 0.1)
	return lo - pad, hi + pad
}

func newDashboardModel(seq choreo.Sequence, cfg choreo.Config, events <-chan choreo.Event, finished <-chan struct{}, runErr *error) dashboardModel {
	lo, hi := chartRange(seq)
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(lo, hi),
	)

	for _, name := range robot.ArmJoints() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[name]))
		chart.SetDataSetStyles(string(name), runes.ThinLineStyle, style)
	}

	return dashboardModel{
		events:   events,
		finished: finished,
		runErr:   runErr,
		cfg:      cfg,
		chart:    &chart,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.events),
		waitForDone(m.finished, m.runErr),
	)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := m.chartSize()
		m.chart.Resize(w, h)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case eventMsg:
		e := choreo.Event(msg)
		switch e.Kind {
		case choreo.EventStateEntered:
			m.state = e.State
		case choreo.EventStep:
			m.addLog(fmt.Sprintf("[%s] %s", e.Timestamp.Format("15:04:05"), e.Message))
		case choreo.EventPolled:
			m.maxError = e.MaxError
			for i, name := range robot.ArmJoints() {
				if i < len(e.Joints) {
					m.chart.PushDataSet(string(name), e.Joints[i])
				}
			}
			m.chart.DrawAll()
		}
		return m, waitForEvent(m.events)

	case doneMsg:
		m.complete = true
		m.err = msg.err
		if msg.err != nil {
			m.addLog("Failed: " + msg.err.Error())
		} else {
			m.addLog("Done. Press 'q' to exit")
		}
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("Pick and Place Replay"))
	sb.WriteString(statusStyle.Render(fmt.Sprintf("  tolerance %.3g, poll %s", m.cfg.Tolerance, m.cfg.PollInterval)))
	sb.WriteString("\n")
	sb.WriteString(stateStyle.Render(m.state.String()))
	if m.complete && m.err != nil {
		sb.WriteString(errorStyle.Render("  stopped"))
	} else if !math.IsInf(m.maxError, 0) {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  max joint error %.4f", m.maxError)))
	}
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Log box
	logColor := lipgloss.Color("10")
	if m.err != nil {
		logColor = lipgloss.Color("9")
	}
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(20, m.width-4)).
		Foreground(logColor)

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	var items []string
	for _, name := range robot.ArmJoints() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+string(name))
	}
	return strings.Join(items, "  ")
}

// runDashboard replays seq on a background goroutine while the TUI shows
// progress. Quitting the TUI early cancels the run.
func runDashboard(ctx context.Context, hw choreo.Hardware, cfg choreo.Config, seq choreo.Sequence) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Terminal text logs would tear the alternate screen; keep the other sinks.
	logger, closeLog, err := logging.New(logging.Options{
		JSONPath: opts.LogJSON,
		Journal:  opts.Journal,
		Debug:    opts.Debug,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	events := make(chan choreo.Event, 256)
	finished := make(chan struct{})
	var runErr error

	exec := choreo.NewExecutor(hw, cfg,
		choreo.WithLogger(logger),
		choreo.WithObserver(choreo.ChannelObserver(events)),
	)
	go func() {
		defer close(finished)
		runErr = exec.Run(ctx, seq)
	}()

	p := tea.NewProgram(newDashboardModel(seq, cfg, events, finished, &runErr), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-finished
		return fmt.Errorf("dashboard: %w", err)
	}

	// Quitting before the run ends stops the arm where it is.
	cancel()
	<-finished
	return runErr
}
