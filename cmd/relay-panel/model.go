package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"relay-server/entities"
	"relay-server/panel"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170")).
			Bold(true)

	normalStyle = lipgloss.NewStyle()

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	waitingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)
)

// api is what the panel needs from the relay API.
type api interface {
	SendCommand(ctx context.Context, cmd entities.Command) error
	Status(ctx context.Context, includeErrors bool) (entities.StatusView, error)
	ClearErrors(ctx context.Context) error
	RecordLogin(ctx context.Context) error
}

type mode int

const (
	modeControl mode = iota
	modeSchedule
)

// schedule form fields, in cursor order
const (
	fieldDay = iota
	fieldMonth
	fieldYear
	fieldHour
	fieldMinute
	fieldAction
	fieldCount
)

type model struct {
	api      api
	panel    *panel.Panel
	interval time.Duration
	now      func() time.Time

	mode       mode
	form       [fieldAction]int
	formAction string
	cursor     int
	showErrors bool
	pollErr    error
	message    string
	quitting   bool
}

type pollTickMsg time.Time
type statusMsg entities.StatusView
type pollErrMsg struct{ err error }
type sentMsg struct{}
type sendFailedMsg struct{ err error }
type clearFailedMsg struct{ err error }
type infoMsg string

func newModel(a api, p *panel.Panel, interval time.Duration) model {
	if interval <= 0 {
		interval = time.Second
	}
	return model{
		api:        a,
		panel:      p,
		interval:   interval,
		now:        time.Now,
		formAction: entities.ActionOn,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.recordLogin(), m.poll(), m.tick())
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

func (m model) poll() tea.Cmd {
	a, includeErrors := m.api, m.showErrors
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		view, err := a.Status(ctx, includeErrors)
		if err != nil {
			return pollErrMsg{err}
		}
		return statusMsg(view)
	}
}

func (m model) recordLogin() tea.Cmd {
	a := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// best effort; a failed login event never blocks the panel
		_ = a.RecordLogin(ctx)
		return nil
	}
}

func (m model) send(cmd entities.Command) tea.Cmd {
	a := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.SendCommand(ctx, cmd); err != nil {
			return sendFailedMsg{err}
		}
		return sentMsg{}
	}
}

func (m model) clearErrors() tea.Cmd {
	a := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.ClearErrors(ctx); err != nil {
			return clearFailedMsg{err}
		}
		return infoMsg("Clear errors requested, the log empties on the next heartbeat")
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode == modeSchedule {
			return m.updateScheduleForm(msg)
		}
		return m.updateControls(msg)

	case pollTickMsg:
		m.panel.Tick(time.Time(msg))
		return m, tea.Batch(m.poll(), m.tick())

	case statusMsg:
		m.pollErr = nil
		m.panel.Observe(entities.StatusView(msg))

	case pollErrMsg:
		m.pollErr = msg.err

	case sentMsg:
		// stay waiting until the relay reports back

	case sendFailedMsg:
		m.panel.SubmitFailed()
		m.message = ""

	case clearFailedMsg:
		// pending relay or schedule confirmations are unaffected
		m.message = "Failed to clear errors: " + msg.err.Error()

	case infoMsg:
		m.message = string(msg)
	}
	return m, nil
}

func (m model) updateControls(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "e":
		m.showErrors = !m.showErrors
		return m, m.poll()

	case "x":
		return m, m.clearErrors()
	}

	if !m.panel.ControlsEnabled() {
		return m, nil
	}
	now := m.now()

	switch msg.String() {
	case " ", "t":
		next := entities.ActionOn
		if m.panel.RelayState() == entities.ActionOn {
			next = entities.ActionOff
		}
		cmd, err := m.panel.RequestRelay(next, now)
		if err != nil {
			return m, nil
		}
		m.message = ""
		return m, m.send(cmd)

	case "s":
		m.openScheduleForm(now)

	case "c":
		cmd, err := m.panel.RequestClearSchedule(now)
		if err != nil {
			return m, nil
		}
		m.message = ""
		return m, m.send(cmd)
	}
	return m, nil
}

// openScheduleForm starts from the current schedule, or the next full hour.
func (m *model) openScheduleForm(now time.Time) {
	m.mode = modeSchedule
	m.cursor = fieldDay
	if s := m.panel.Schedule(); s != nil && s.Year != 0 {
		m.form = [fieldAction]int{s.Day, s.Month, s.Year, s.Hour, s.Minute}
		m.formAction = s.Action
		return
	}
	next := now.Truncate(time.Hour).Add(time.Hour)
	m.form = [fieldAction]int{next.Day(), int(next.Month()), next.Year(), next.Hour(), 0}
	m.formAction = entities.ActionOn
}

func (m model) updateScheduleForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		m.mode = modeControl

	case "left", "h", "shift+tab":
		if m.cursor > 0 {
			m.cursor--
		}

	case "right", "l", "tab":
		if m.cursor < fieldCount-1 {
			m.cursor++
		}

	case "up", "k":
		m.adjust(1)

	case "down", "j":
		m.adjust(-1)

	case "enter":
		m.mode = modeControl
		if !m.panel.ControlsEnabled() {
			return m, nil
		}
		cmd, err := m.panel.RequestSchedule(entities.Schedule{
			Day:    m.form[fieldDay],
			Month:  m.form[fieldMonth],
			Year:   m.form[fieldYear],
			Hour:   m.form[fieldHour],
			Minute: m.form[fieldMinute],
			Action: m.formAction,
		}, m.now())
		if err != nil {
			return m, nil
		}
		m.message = ""
		return m, m.send(cmd)
	}
	return m, nil
}

func (m *model) adjust(delta int) {
	if m.cursor == fieldAction {
		if m.formAction == entities.ActionOn {
			m.formAction = entities.ActionOff
		} else {
			m.formAction = entities.ActionOn
		}
		return
	}
	bounds := [fieldAction][2]int{{1, 31}, {1, 12}, {2024, 2099}, {0, 23}, {0, 59}}
	lo, hi := bounds[m.cursor][0], bounds[m.cursor][1]
	v := m.form[m.cursor] + delta
	if v < lo {
		v = hi
	} else if v > hi {
		v = lo
	}
	m.form[m.cursor] = v
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	now := m.now()

	var s strings.Builder
	s.WriteString(titleStyle.Render("Relay Control Panel"))
	s.WriteString("\n")

	status := m.panel.Status()
	switch {
	case m.panel.Awaiting():
		s.WriteString(waitingStyle.Render("● " + panel.WaitingText))
	case status.IsConnected:
		s.WriteString(successStyle.Render("● " + m.panel.StatusText()))
	default:
		s.WriteString(errorStyle.Render("● " + m.panel.StatusText()))
	}
	s.WriteString("  " + dimStyle.Render(m.panel.ConnectionText(now)) + "\n\n")

	relay := strings.ToUpper(m.panel.RelayState())
	s.WriteString(fmt.Sprintf("Relay:    %s\n", selectedStyle.Render(relay)))
	s.WriteString(fmt.Sprintf("Schedule: %s\n", describeSchedule(m.panel.Schedule())))

	if m.mode == modeSchedule {
		s.WriteString("\n" + m.scheduleFormView())
	}

	if m.showErrors {
		s.WriteString("\n" + promptStyle.Render("Device errors") + "\n")
		if len(status.Errors) == 0 {
			s.WriteString(dimStyle.Render("  none") + "\n")
		}
		for _, e := range status.Errors {
			s.WriteString(fmt.Sprintf("  %s  %s\n", dimStyle.Render(e.Time), e.Message))
		}
	}

	s.WriteString("\n")
	if banner := m.panel.Banner(); banner != "" {
		if banner == panel.SendFailedText || banner == panel.TimedOutText {
			s.WriteString(errorStyle.Render("✗ "+banner) + "\n")
		} else {
			s.WriteString(successStyle.Render("✓ "+banner) + "\n")
		}
	}
	if m.message != "" {
		s.WriteString(m.message + "\n")
	}
	if m.pollErr != nil {
		s.WriteString(errorStyle.Render("✗ status poll failed: "+m.pollErr.Error()) + "\n")
	}

	if m.mode == modeSchedule {
		s.WriteString(dimStyle.Render("←/→ field, ↑/↓ change, Enter save, Esc cancel") + "\n")
	} else if m.panel.ControlsEnabled() {
		s.WriteString(dimStyle.Render("t toggle, s schedule, c clear schedule, e errors, x clear errors, q quit") + "\n")
	} else {
		s.WriteString(dimStyle.Render("controls locked, e errors, q quit") + "\n")
	}
	return s.String()
}

func (m model) scheduleFormView() string {
	labels := [fieldCount]string{"day", "month", "year", "hour", "min", "action"}
	values := [fieldCount]string{
		fmt.Sprintf("%02d", m.form[fieldDay]),
		fmt.Sprintf("%02d", m.form[fieldMonth]),
		fmt.Sprintf("%04d", m.form[fieldYear]),
		fmt.Sprintf("%02d", m.form[fieldHour]),
		fmt.Sprintf("%02d", m.form[fieldMinute]),
		m.formAction,
	}
	var s strings.Builder
	s.WriteString(promptStyle.Render("Set schedule") + "\n")
	for i := range labels {
		style := normalStyle
		if i == m.cursor {
			style = selectedStyle
		}
		s.WriteString(fmt.Sprintf("  %s %s", dimStyle.Render(labels[i]), style.Render(values[i])))
	}
	s.WriteString("\n")
	return s.String()
}

func describeSchedule(s *entities.Schedule) string {
	if s == nil || s.Year == 0 {
		return dimStyle.Render("none")
	}
	when := fmt.Sprintf("%02d/%02d/%04d %02d:%02d", s.Day, s.Month, s.Year, s.Hour, s.Minute)
	switch {
	case s.Executed:
		return fmt.Sprintf("%s turned %s (executed)", when, s.Action)
	case s.Active:
		return fmt.Sprintf("turn %s at %s", s.Action, when)
	default:
		return dimStyle.Render(fmt.Sprintf("%s %s (inactive)", when, s.Action))
	}
}
