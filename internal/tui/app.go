package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/xrloop/internal/config"
	"github.com/Iron-Ham/xrloop/internal/event"
)

// App wraps the Bubbletea program
type App struct {
	program *tea.Program
	model   Model
	bus     *event.Bus
	subID   string
}

// New creates a monitor subscribed to bus.
func New(src Source, bus *event.Bus, cfg config.MonitorConfig) *App {
	events, id := bus.SubscribeChan(cfg.EventBuffer)
	return &App{
		model: NewModel(src, events, cfg.RefreshInterval()),
		bus:   bus,
		subID: id,
	}
}

// Run starts the TUI and blocks until the user quits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer a.bus.Unsubscribe(a.subID)

	a.program = tea.NewProgram(
		a.model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := a.program.Run()
	if err != nil && ctx.Err() != nil {
		// Canceled from outside, not a TUI failure.
		return nil
	}
	return err
}
