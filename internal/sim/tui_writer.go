package sim

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"iotfleet-sim/internal/config"
	"iotfleet-sim/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// attemptMsg carries a rendered attempt line plus the row data.
type attemptMsg struct {
	line string
	row  telemetry.AttemptRow
}

// healthMsg carries a fleet progress update.
type healthMsg struct{ FleetHealth }

// adminMsg reports admin server status.
type adminMsg struct{ active bool }

const maxLogLines = 500

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
)

// TUIWriter renders attempt records in a bubbletea TUI: a config table,
// a progress line, and a scrolling attempt log.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter.
func NewTUIWriter(cfg *config.SimulationConfig) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(cfg), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// WriteAttempt implements AttemptWriter.
func (w *TUIWriter) WriteAttempt(row telemetry.AttemptRow) error {
	style := okStyle
	if !row.Succeeded() {
		style = failStyle
	}
	line := fmt.Sprintf("%s %s vt=%-8s device=%s attempt=%d sent=%d bytes=%d signal=%.3f",
		dimStyle.Render(row.Timestamp.Format(time.RFC3339)),
		style.Render(fmt.Sprintf("%-14s", row.Outcome)),
		fmt.Sprintf("%.1fs", row.VirtualTime),
		row.DeviceID, row.Attempt, row.Sent, row.Bytes, row.Signal)
	if row.Error != "" {
		line += " " + failStyle.Render(row.Error)
	}
	w.program.Send(attemptMsg{line: line, row: row})
	return nil
}

// WriteDevice implements DeviceWriter; summaries show up in the log.
func (w *TUIWriter) WriteDevice(row telemetry.DeviceRow) error {
	line := summaryStyle.Render(fmt.Sprintf("SUMMARY device=%s sent=%d/%d attempts=%d",
		row.DeviceID, row.Sent, row.Quota, row.Attempts))
	w.program.Send(attemptMsg{line: line})
	return nil
}

// UpdateHealth pushes a fleet progress snapshot to the header.
func (w *TUIWriter) UpdateHealth(h FleetHealth) {
	w.program.Send(healthMsg{h})
}

// SetAdminStatus updates the admin server indicator.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	cfg        *config.SimulationConfig
	table      table.Model
	vp         viewport.Model
	logs       []string
	health     FleetHealth
	admin      bool
	wrap       bool
	autoscroll bool
	width      int
	height     int
}

func newTUIModel(cfg *config.SimulationConfig) tuiModel {
	cols := []table.Column{
		{Title: "Config", Width: 20},
		{Title: "Value", Width: 14},
		{Title: "Config", Width: 20},
		{Title: "Value", Width: 14},
	}
	rows := []table.Row{
		{"Target", fmt.Sprintf("%s:%d", cfg.TargetHost, cfg.TargetPort),
			"Devices", strconv.Itoa(cfg.DeviceCount)},
		{"Packet Size", strconv.Itoa(cfg.PacketSizeBytes),
			"Quota / Device", strconv.Itoa(cfg.PacketsPerDevice)},
		{"Send Interval", cfg.SendInterval.Std().String(),
			"Start Stagger", cfg.StartStagger.Std().String()},
		{"Window", fmt.Sprintf("%s-%s", cfg.WindowStart.Std(), cfg.WindowStop.Std()),
			"Horizon", cfg.Horizon.Std().String()},
	}
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	return tuiModel{
		cfg:        cfg,
		table:      t,
		vp:         viewport.New(0, 0),
		autoscroll: true,
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.vp.Height = max(3, msg.Height-lipgloss.Height(m.headerView()))
		m.refreshViewport()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
		case "a":
			m.autoscroll = !m.autoscroll
		default:
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}
	case attemptMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.refreshViewport()
	case healthMsg:
		m.health = msg.FleetHealth
	case adminMsg:
		m.admin = msg.active
	}
	return m, nil
}

func (m tuiModel) View() string {
	return m.headerView() + "\n" + m.vp.View()
}

func (m tuiModel) headerView() string {
	title := headerStyle.Render("iotfleet-sim")
	status := fmt.Sprintf("devices=%d running=%d completed=%d sent=%d attempts=%d",
		m.health.Total, m.health.Running, m.health.Completed, m.health.Sent, m.health.Attempts)
	if m.admin {
		status += dimStyle.Render("  [admin :8080]")
	}
	keys := dimStyle.Render("q quit · w wrap · a autoscroll")
	return lipgloss.JoinVertical(lipgloss.Left, title, m.table.View(), status, keys)
}

func (m *tuiModel) refreshViewport() {
	content := ""
	for i, l := range m.logs {
		if i > 0 {
			content += "\n"
		}
		if m.wrap && m.vp.Width > 0 {
			content += wordwrap.String(l, m.vp.Width)
		} else {
			content += l
		}
	}
	m.vp.SetContent(content)
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}
