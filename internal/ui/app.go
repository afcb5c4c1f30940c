package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robfig/cron/v3"

	"github.com/tgienger/tdc/internal/ui/views"
)

// refreshMsg fires when the refresh schedule comes due
type refreshMsg struct{ at time.Time }

type App struct {
	todos    *views.TodoListView
	schedule cron.Schedule // nil disables background reloads
	now      func() time.Time
	width    int
	height   int
}

// Creates a new application
func NewApp(todos *views.TodoListView, schedule cron.Schedule) *App {
	return &App{
		todos:    todos,
		schedule: schedule,
		now:      time.Now,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.todos.Init(), a.nextRefresh())
}

// nextRefresh waits until the next scheduled reload
func (a *App) nextRefresh() tea.Cmd {
	if a.schedule == nil {
		return nil
	}
	now := a.now()
	next := a.schedule.Next(now)
	if next.IsZero() {
		return nil
	}
	return tea.Tick(next.Sub(now), func(t time.Time) tea.Msg {
		return refreshMsg{at: t}
	})
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case refreshMsg:
		return a, tea.Batch(a.todos.Load(), a.nextRefresh())
	}

	_, cmd := a.todos.Update(msg)
	return a, cmd
}

func (a *App) View() string {
	return a.todos.View()
}
