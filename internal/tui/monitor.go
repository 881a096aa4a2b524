// Package tui implements the live terminal monitor shown by "xrloop run
// --monitor". The model consumes driver events from the bus and polls the
// driver's counters on a fixed refresh interval.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/xrloop/internal/driver"
	"github.com/Iron-Ham/xrloop/internal/event"
	"github.com/Iron-Ham/xrloop/internal/tui/styles"
)

const (
	// maxLogLines bounds the event log panel.
	maxLogLines = 12
	// fpsWindow is how many frame timestamps the rate is averaged over.
	fpsWindow = 90
	noSession = "none"
)

// Source is the driver surface the monitor reads.
type Source interface {
	Stats() driver.Stats
	IsFocused() bool
	IsActive() bool
	ScheduleExit()
}

type logLevel int

const (
	levelInfo logLevel = iota
	levelMuted
	levelWarn
	levelError
)

type logLine struct {
	at    time.Time
	level logLevel
	text  string
}

// eventMsg carries one bus event into Update.
type eventMsg struct{ event event.Event }

// eventsClosedMsg is sent when the event channel is closed.
type eventsClosedMsg struct{}

// tickMsg drives the stats refresh.
type tickMsg time.Time

// exitScheduledMsg confirms a session exit was handed to the driver.
type exitScheduledMsg struct{}

// Model is the monitor's bubbletea model.
type Model struct {
	source  Source
	events  <-chan event.Event
	refresh time.Duration
	keys    keyMap
	spinner spinner.Model

	state     string
	sessionID string
	views     int
	imageW    int
	imageH    int

	lastFrame  event.FrameCompletedEvent
	haveFrame  bool
	frameTimes []time.Time
	modes      map[event.FrameMode]uint64

	stats   driver.Stats
	focused bool
	active  bool

	log    []logLine
	paused bool

	width    int
	quitting bool
}

// NewModel returns a monitor reading events and polling source every
// refresh. Either may be nil.
func NewModel(source Source, events <-chan event.Event, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = 250 * time.Millisecond
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Primary
	return Model{
		source:  source,
		events:  events,
		refresh: refresh,
		keys:    defaultKeyMap(),
		spinner: sp,
		state:   noSession,
		modes:   make(map[event.FrameMode]uint64),
	}
}

// Init starts the spinner, the event reader and the refresh ticker.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, tick(m.refresh)}
	if m.events != nil {
		cmds = append(cmds, waitForEvent(m.events))
	}
	return tea.Batch(cmds...)
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForEvent(ch <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: e}
	}
}

func scheduleExit(src Source) tea.Cmd {
	return func() tea.Msg {
		src.ScheduleExit()
		return exitScheduledMsg{}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.apply(msg.event)
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		m.addLog(time.Now(), levelMuted, "event stream closed")
		return m, nil

	case tickMsg:
		m.poll()
		return m, tick(m.refresh)

	case exitScheduledMsg:
		m.addLog(time.Now(), levelInfo, "session exit requested")
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Exit):
		if m.source == nil {
			return m, nil
		}
		return m, scheduleExit(m.source)
	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
	case key.Matches(msg, m.keys.Clear):
		m.log = nil
	}
	return m, nil
}

func (m *Model) poll() {
	if m.source == nil {
		return
	}
	m.stats = m.source.Stats()
	m.focused = m.source.IsFocused()
	m.active = m.source.IsActive()
}

// apply folds one event into the model.
func (m *Model) apply(e event.Event) {
	at := e.Timestamp()
	switch ev := e.(type) {
	case event.FrameCompletedEvent:
		m.lastFrame = ev
		m.haveFrame = true
		m.modes[ev.Mode]++
		m.frameTimes = append(m.frameTimes, at)
		if len(m.frameTimes) > fpsWindow {
			m.frameTimes = m.frameTimes[len(m.frameTimes)-fpsWindow:]
		}
	case event.SessionStateChangedEvent:
		m.state = ev.Current
		m.sessionID = ev.SessionID
		level := levelInfo
		if !ev.Expected {
			level = levelWarn
		}
		m.addLog(at, level, fmt.Sprintf("state %s -> %s", ev.Previous, ev.Current))
	case event.SessionCreatedEvent:
		m.sessionID = ev.SessionID
		m.views, m.imageW, m.imageH = ev.Views, ev.Width, ev.Height
		m.addLog(at, levelInfo, fmt.Sprintf("session created, %d views at %dx%d", ev.Views, ev.Width, ev.Height))
	case event.SessionDestroyedEvent:
		m.state = noSession
		m.frameTimes = nil
		m.addLog(at, levelMuted, "session destroyed: "+ev.Reason)
	case event.InstanceCreatedEvent:
		m.addLog(at, levelInfo, fmt.Sprintf("instance %d created (%d extensions)", ev.Instance, len(ev.Extensions)))
	case event.InstanceDestroyedEvent:
		m.addLog(at, levelMuted, fmt.Sprintf("instance %d destroyed: %s", ev.Instance, ev.Reason))
	case event.InstanceLossPendingEvent:
		m.addLog(at, levelError, fmt.Sprintf("instance %d loss pending", ev.Instance))
	case event.FrameFailedEvent:
		m.addLog(at, levelError, fmt.Sprintf("frame %d failed at %s (%d in a row): %s", ev.Frame, ev.Stage, ev.Consecutive, ev.Error))
	case event.InitFailedEvent:
		text := fmt.Sprintf("init attempt %d failed (%s): %s", ev.Attempt, ev.Class, ev.Error)
		if ev.RetryIn > 0 {
			text += fmt.Sprintf(", retry in %s", ev.RetryIn)
		}
		m.addLog(at, levelWarn, text)
	case event.ReferenceSpaceChangingEvent:
		m.addLog(at, levelMuted, ev.Space+" space changing")
	case event.InteractionProfileChangedEvent:
		m.addLog(at, levelMuted, "interaction profile changed")
	case event.ConfigReloadedEvent:
		m.addLog(at, levelInfo, "config reloaded from "+ev.Path)
	}
}

func (m *Model) addLog(at time.Time, level logLevel, text string) {
	if m.paused {
		return
	}
	m.log = append(m.log, logLine{at: at, level: level, text: text})
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

// FPS returns the measured frame rate over the recent window.
func (m Model) FPS() float64 {
	n := len(m.frameTimes)
	if n < 2 {
		return 0
	}
	span := m.frameTimes[n-1].Sub(m.frameTimes[0]).Seconds()
	if span <= 0 {
		return 0
	}
	return float64(n-1) / span
}

// State returns the last reported session state.
func (m Model) State() string { return m.state }

// View renders the monitor.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.Header.Render(m.spinner.View() + " xrloop monitor"))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.ContentBox.Render(m.sessionPanel()),
		" ",
		styles.ContentBox.Render(m.framePanel()),
	))
	b.WriteString("\n")
	b.WriteString(styles.ContentBox.Render(m.logPanel()))
	b.WriteString("\n")
	b.WriteString(m.helpBar())
	return b.String()
}

func row(label, value string) string {
	return styles.Label.Render(label) + value + "\n"
}

func yesNo(v bool) string {
	if v {
		return styles.Secondary.Render("yes")
	}
	return styles.Muted.Render("no")
}

func (m Model) sessionPanel() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Session"))
	b.WriteString("\n")
	b.WriteString(row("State", styles.StateBadge(m.state)))
	id := m.sessionID
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		id = "-"
	}
	b.WriteString(row("ID", id))
	if m.views > 0 {
		b.WriteString(row("Swapchains", fmt.Sprintf("%d x %dx%d", m.views, m.imageW, m.imageH)))
	}
	b.WriteString(row("Active", yesNo(m.active)))
	b.WriteString(row("Focused", yesNo(m.focused)))
	b.WriteString(row("Inits", fmt.Sprintf("%d", m.stats.Initializations)))
	b.WriteString(row("Teardowns", fmt.Sprintf("%d", m.stats.Teardowns)))
	if m.stats.LastInitError != "" {
		b.WriteString(row("Last error", styles.Error.Render(m.stats.LastInitError)))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) framePanel() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Frames"))
	b.WriteString("\n")
	if !m.haveFrame {
		b.WriteString(styles.Subtitle.Render("waiting for first frame"))
		return b.String()
	}
	f := m.lastFrame
	b.WriteString(row("Frame", fmt.Sprintf("%d", f.Frame)))
	b.WriteString(row("Mode", string(f.Mode)))
	b.WriteString(row("Eyes", fmt.Sprintf("%d", f.Eyes)))
	target := "-"
	if f.Period > 0 {
		target = fmt.Sprintf("%.0f", 1/f.Period.Seconds())
	}
	b.WriteString(row("FPS", fmt.Sprintf("%.1f (target %s)", m.FPS(), target)))
	b.WriteString(row("Frame time", f.Duration.Round(time.Microsecond).String()))
	b.WriteString(row("Rendered", fmt.Sprintf("%d", m.modes[event.FrameModeRendered])))
	b.WriteString(row("Blank", fmt.Sprintf("%d", m.modes[event.FrameModeBlank])))
	b.WriteString(row("Skipped", fmt.Sprintf("%d", m.modes[event.FrameModeSkipped])))
	failed := fmt.Sprintf("%d", m.stats.Failed)
	if m.stats.Failed > 0 {
		failed = styles.Warning.Render(failed)
	}
	b.WriteString(row("Failed", failed))
	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) logPanel() string {
	var b strings.Builder
	title := "Events"
	if m.paused {
		title += styles.Muted.Render(" (paused)")
	}
	b.WriteString(styles.Title.Render(title))
	if len(m.log) == 0 {
		b.WriteString("\n")
		b.WriteString(styles.Subtitle.Render("no events yet"))
		return b.String()
	}
	for _, l := range m.log {
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render(l.at.Format("15:04:05")))
		b.WriteString(" ")
		switch l.level {
		case levelWarn:
			b.WriteString(styles.Warning.Render(l.text))
		case levelError:
			b.WriteString(styles.Error.Render(l.text))
		case levelMuted:
			b.WriteString(styles.Muted.Render(l.text))
		default:
			b.WriteString(styles.Text.Render(l.text))
		}
	}
	return b.String()
}

func (m Model) helpBar() string {
	parts := make([]string, 0, len(m.keys.bindings()))
	for _, k := range m.keys.bindings() {
		h := k.Help()
		parts = append(parts, styles.HelpKey.Render(h.Key)+" "+h.Desc)
	}
	return styles.HelpBar.Render(strings.Join(parts, "  "))
}
