package views

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/tgienger/tdc/internal/api"
	"github.com/tgienger/tdc/internal/models"
	"github.com/tgienger/tdc/internal/state"
	"github.com/tgienger/tdc/internal/ui/keys"
	"github.com/tgienger/tdc/internal/ui/styles"
)

// User-facing messages
const (
	MsgEmptyText      = "Please enter a task"
	MsgTaskAdded      = "Task added successfully!"
	MsgTaskUpdated    = "Task updated successfully!"
	MsgTaskDeleted    = "Task deleted successfully!"
	MsgClearedPattern = "Cleared %d completed tasks!"
	MsgEmptyList      = "No tasks here yet."
)

// Default banner lifetimes
const (
	DefaultErrorBannerTimeout   = 5 * time.Second
	DefaultSuccessBannerTimeout = 3 * time.Second
)

// FocusArea represents which part of the UI has focus
type FocusArea int

const (
	FocusInput FocusArea = iota
	FocusList
)

// HistoryStore keeps previously submitted task texts
type HistoryStore interface {
	AddHistory(text string, keep int) error
	RecentHistory(limit int) ([]string, error)
}

// Options configures a TodoListView
type Options struct {
	ErrorBannerTimeout   time.Duration
	SuccessBannerTimeout time.Duration
	Logger               *log.Logger
	History              HistoryStore // optional
	HistorySize          int
}

type bannerKind int

const (
	bannerError bannerKind = iota
	bannerSuccess
)

type banner struct {
	text string
	seq  int
}

// TodoListView is the controller for the task list. It owns the view state;
// every mutation happens in Update while handling a response message.
type TodoListView struct {
	svc    api.Service
	state  state.ViewState
	styles *styles.Styles
	keys   keys.KeyMap
	logger *log.Logger

	history     HistoryStore
	historySize int

	width  int
	height int

	// UI state
	focus      FocusArea
	cursor     int
	input      textinput.Model
	inputError string
	spinner    spinner.Model

	// Inline editing of the selected task
	editing   bool
	editID    int64
	editInput textinput.Model
	editError string

	// Transient banners
	errBanner     banner
	okBanner      banner
	bannerSeq     int
	errTimeout    time.Duration
	okTimeout     time.Duration
	scheduleAfter func(time.Duration, tea.Msg) tea.Cmd

	showHelpPopup bool
}

// NewTodoListView creates the task list controller
func NewTodoListView(svc api.Service, opts Options) *TodoListView {
	s := styles.NewStyles()

	input := textinput.New()
	input.Placeholder = "What needs to be done?"
	input.CharLimit = 255
	input.ShowSuggestions = true
	input.KeyMap.AcceptSuggestion = key.NewBinding(key.WithKeys("ctrl+y"))
	input.Focus()

	editInput := textinput.New()
	editInput.CharLimit = 255

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	errTimeout := opts.ErrorBannerTimeout
	if errTimeout <= 0 {
		errTimeout = DefaultErrorBannerTimeout
	}
	okTimeout := opts.SuccessBannerTimeout
	if okTimeout <= 0 {
		okTimeout = DefaultSuccessBannerTimeout
	}

	return &TodoListView{
		svc:         svc,
		styles:      s,
		keys:        keys.DefaultKeyMap(),
		logger:      logger,
		history:     opts.History,
		historySize: opts.HistorySize,
		focus:       FocusInput,
		input:       input,
		editInput:   editInput,
		spinner:     sp,
		errTimeout:  errTimeout,
		okTimeout:   okTimeout,
		scheduleAfter: func(d time.Duration, msg tea.Msg) tea.Cmd {
			return tea.Tick(d, func(time.Time) tea.Msg { return msg })
		},
	}
}

// Messages produced by requests

type tasksLoadedMsg struct{ tasks []models.Task }
type taskCreatedMsg struct {
	task models.Task
	text string
}
type taskUpdatedMsg struct {
	task   models.Task
	edited bool
}
type taskDeletedMsg struct{ id int64 }
type completedClearedMsg struct{ count int }

// requestFailedMsg carries any failed request back to the program loop
type requestFailedMsg struct {
	op  string
	err error
}

type hideBannerMsg struct {
	kind bannerKind
	seq  int
}

type historyLoadedMsg struct{ texts []string }

// ReloadMsg asks the view to fetch the task list again
type ReloadMsg struct{}

// Init starts the spinner, the first load and the history lookup
func (v *TodoListView) Init() tea.Cmd {
	return tea.Batch(v.spinner.Tick, v.Load(), v.loadHistory)
}

// State returns a copy of the current view state
func (v *TodoListView) State() state.ViewState {
	s := v.state
	s.Tasks = append([]models.Task(nil), v.state.Tasks...)
	return s
}

// InputValue returns the text in the new-task input
func (v *TodoListView) InputValue() string { return v.input.Value() }

// SetInputValue replaces the text in the new-task input
func (v *TodoListView) SetInputValue(s string) { v.input.SetValue(s) }

// InputError returns the validation message shown under the input
func (v *TodoListView) InputError() string { return v.inputError }

// ErrorBanner returns the visible error banner text, if any
func (v *TodoListView) ErrorBanner() string { return v.errBanner.text }

// SuccessBanner returns the visible success banner text, if any
func (v *TodoListView) SuccessBanner() string { return v.okBanner.text }

// Focus returns the focused area
func (v *TodoListView) Focus() FocusArea { return v.focus }

// Cursor returns the index of the selected visible row
func (v *TodoListView) Cursor() int { return v.cursor }

// Editing reports whether the inline editor is open
func (v *TodoListView) Editing() bool { return v.editing }

// startRequest raises the loading flag and wraps call as a command. The
// flag is a plain boolean: overlapping requests re-assert it and the first
// response to arrive clears it.
func (v *TodoListView) startRequest(call func(ctx context.Context) tea.Msg) tea.Cmd {
	v.state.IsLoading = true
	return func() tea.Msg {
		return call(context.Background())
	}
}

// Load fetches the full task list
func (v *TodoListView) Load() tea.Cmd {
	return v.startRequest(func(ctx context.Context) tea.Msg {
		tasks, err := v.svc.ListTasks(ctx)
		if err != nil {
			return requestFailedMsg{op: "load", err: err}
		}
		return tasksLoadedMsg{tasks: tasks}
	})
}

// Add validates text and sends a create request. Empty text only sets the
// validation message.
func (v *TodoListView) Add(text string) tea.Cmd {
	text = strings.TrimSpace(text)
	if text == "" {
		v.inputError = MsgEmptyText
		return nil
	}
	return v.startRequest(func(ctx context.Context) tea.Msg {
		task, err := v.svc.CreateTask(ctx, text)
		if err != nil {
			return requestFailedMsg{op: "add", err: err}
		}
		return taskCreatedMsg{task: task, text: text}
	})
}

// Toggle inverts the completion flag of a task. Unknown ids are ignored.
func (v *TodoListView) Toggle(id int64) tea.Cmd {
	task, ok := v.state.Find(id)
	if !ok {
		return nil
	}
	patch := api.SetCompleted(!task.Completed)
	return v.startRequest(func(ctx context.Context) tea.Msg {
		updated, err := v.svc.UpdateTask(ctx, id, patch)
		if err != nil {
			return requestFailedMsg{op: "toggle", err: err}
		}
		return taskUpdatedMsg{task: updated}
	})
}

// Edit replaces the text of a task. Empty text sets the edit validation
// message; unknown ids are ignored.
func (v *TodoListView) Edit(id int64, text string) tea.Cmd {
	if _, ok := v.state.Find(id); !ok {
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		v.editError = MsgEmptyText
		return nil
	}
	patch := api.SetText(text)
	return v.startRequest(func(ctx context.Context) tea.Msg {
		updated, err := v.svc.UpdateTask(ctx, id, patch)
		if err != nil {
			return requestFailedMsg{op: "edit", err: err}
		}
		return taskUpdatedMsg{task: updated, edited: true}
	})
}

// Delete removes a task
func (v *TodoListView) Delete(id int64) tea.Cmd {
	return v.startRequest(func(ctx context.Context) tea.Msg {
		if err := v.svc.DeleteTask(ctx, id); err != nil {
			return requestFailedMsg{op: "delete", err: err}
		}
		return taskDeletedMsg{id: id}
	})
}

// ClearCompleted bulk-deletes completed tasks. Nothing is sent when no
// task is completed.
func (v *TodoListView) ClearCompleted() tea.Cmd {
	count := state.CountTasks(v.state.Tasks).Completed
	if count == 0 {
		return nil
	}
	return v.startRequest(func(ctx context.Context) tea.Msg {
		if err := v.svc.ClearCompleted(ctx); err != nil {
			return requestFailedMsg{op: "clear completed", err: err}
		}
		return completedClearedMsg{count: count}
	})
}

// SetFilter changes the displayed subset. It never touches the network.
func (v *TodoListView) SetFilter(mode models.FilterMode) {
	v.state.Filter = mode
	v.clampCursor()
}

func (v *TodoListView) loadHistory() tea.Msg {
	if v.history == nil || v.historySize <= 0 {
		return nil
	}
	texts, err := v.history.RecentHistory(v.historySize)
	if err != nil {
		v.logger.Warn("Failed to load input history", "err", err)
		return nil
	}
	return historyLoadedMsg{texts: texts}
}

func (v *TodoListView) recordHistory(text string) tea.Cmd {
	if v.history == nil || v.historySize <= 0 {
		return nil
	}
	return func() tea.Msg {
		if err := v.history.AddHistory(text, v.historySize); err != nil {
			v.logger.Warn("Failed to record input history", "err", err)
			return nil
		}
		return v.loadHistory()
	}
}

func (v *TodoListView) showBanner(kind bannerKind, text string) tea.Cmd {
	v.bannerSeq++
	b := banner{text: text, seq: v.bannerSeq}
	timeout := v.okTimeout
	if kind == bannerError {
		v.errBanner = b
		timeout = v.errTimeout
	} else {
		v.okBanner = b
	}
	return v.scheduleAfter(timeout, hideBannerMsg{kind: kind, seq: b.seq})
}

// Update handles messages
func (v *TodoListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		inputWidth := clamp(styles.ContentWidth(v.width)-24, 10, 50)
		v.input.Width = inputWidth
		v.editInput.Width = inputWidth
		return v, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case ReloadMsg:
		return v, v.Load()

	case tasksLoadedMsg:
		v.state.IsLoading = false
		v.state.Replace(msg.tasks)
		v.clampCursor()
		v.closeStaleEditor()
		v.logger.Debug("Loaded todos", "count", len(msg.tasks))
		return v, nil

	case taskCreatedMsg:
		v.state.IsLoading = false
		v.state.Append(msg.task)
		v.input.Reset()
		v.inputError = ""
		v.logger.Info("Added todo", "id", msg.task.ID)
		return v, tea.Batch(v.showBanner(bannerSuccess, MsgTaskAdded), v.recordHistory(msg.text))

	case taskUpdatedMsg:
		v.state.IsLoading = false
		v.state.Merge(msg.task)
		v.clampCursor()
		if msg.edited {
			if v.editing && v.editID == msg.task.ID {
				v.closeEditor()
			}
			return v, v.showBanner(bannerSuccess, MsgTaskUpdated)
		}
		return v, nil

	case taskDeletedMsg:
		v.state.IsLoading = false
		v.state.Remove(msg.id)
		v.clampCursor()
		v.closeStaleEditor()
		return v, v.showBanner(bannerSuccess, MsgTaskDeleted)

	case completedClearedMsg:
		v.state.IsLoading = false
		v.state.RemoveCompleted()
		v.clampCursor()
		v.closeStaleEditor()
		return v, v.showBanner(bannerSuccess, fmt.Sprintf(MsgClearedPattern, msg.count))

	case requestFailedMsg:
		v.state.IsLoading = false
		fields := []interface{}{"op", msg.op, "err", msg.err}
		var apiErr *api.APIError
		if errors.As(msg.err, &apiErr) {
			fields = append(fields, "status", apiErr.StatusCode, "request_id", apiErr.RequestID)
		}
		v.logger.Error("Request failed", fields...)
		return v, v.showBanner(bannerError, api.UserMessage(msg.err))

	case hideBannerMsg:
		switch {
		case msg.kind == bannerError && v.errBanner.seq == msg.seq:
			v.errBanner = banner{}
		case msg.kind == bannerSuccess && v.okBanner.seq == msg.seq:
			v.okBanner = banner{}
		}
		return v, nil

	case historyLoadedMsg:
		v.input.SetSuggestions(msg.texts)
		return v, nil

	case tea.KeyMsg:
		// Handle help popup first - any key closes it
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}

		if v.editing {
			return v.updateEditing(msg)
		}

		if v.focus == FocusInput {
			return v.updateInput(msg)
		}

		return v.updateList(msg)
	}

	return v, nil
}

func (v *TodoListView) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return v, tea.Quit

	case key.Matches(msg, v.keys.Enter):
		// The add control is disabled while a request is in flight
		if v.state.IsLoading {
			return v, nil
		}
		return v, v.Add(v.input.Value())

	case key.Matches(msg, v.keys.Tab), key.Matches(msg, v.keys.Back):
		v.focus = FocusList
		v.input.Blur()
		return v, nil
	}

	v.inputError = ""
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *TodoListView) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := state.Rows(v.state)

	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Tab), key.Matches(msg, v.keys.New), key.Matches(msg, v.keys.Back):
		v.focus = FocusInput
		return v, v.input.Focus()

	case key.Matches(msg, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.cursor < len(rows)-1 {
			v.cursor++
		}
		return v, nil

	case key.Matches(msg, v.keys.Toggle):
		if len(rows) > 0 {
			return v, v.Toggle(rows[v.cursor].ID)
		}
		return v, nil

	case key.Matches(msg, v.keys.Edit):
		if len(rows) > 0 {
			task, _ := v.state.Find(rows[v.cursor].ID)
			v.openEditor(task)
			return v, textinput.Blink
		}
		return v, nil

	case key.Matches(msg, v.keys.Delete):
		if len(rows) > 0 {
			return v, v.Delete(rows[v.cursor].ID)
		}
		return v, nil

	case key.Matches(msg, v.keys.ClearCompleted):
		return v, v.ClearCompleted()

	case key.Matches(msg, v.keys.Filter):
		v.SetFilter(v.state.Filter.Next())
		return v, nil

	case key.Matches(msg, v.keys.FilterAll):
		v.SetFilter(models.FilterAll)
		return v, nil

	case key.Matches(msg, v.keys.FilterActive):
		v.SetFilter(models.FilterActive)
		return v, nil

	case key.Matches(msg, v.keys.FilterDone):
		v.SetFilter(models.FilterCompleted)
		return v, nil

	case key.Matches(msg, v.keys.Refresh):
		return v, v.Load()

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}

	return v, nil
}

func (v *TodoListView) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return v, tea.Quit

	case key.Matches(msg, v.keys.Back):
		v.closeEditor()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		return v, v.Edit(v.editID, v.editInput.Value())
	}

	v.editError = ""
	var cmd tea.Cmd
	v.editInput, cmd = v.editInput.Update(msg)
	return v, cmd
}

func (v *TodoListView) openEditor(task models.Task) {
	v.editing = true
	v.editID = task.ID
	v.editError = ""
	v.editInput.SetValue(task.Text)
	v.editInput.CursorEnd()
	v.editInput.Focus()
}

func (v *TodoListView) closeEditor() {
	v.editing = false
	v.editID = 0
	v.editError = ""
	v.editInput.Blur()
}

// closeStaleEditor closes the editor when its task is no longer listed
func (v *TodoListView) closeStaleEditor() {
	if !v.editing {
		return
	}
	if _, ok := v.state.Find(v.editID); !ok {
		v.closeEditor()
	}
}

func (v *TodoListView) clampCursor() {
	n := len(state.Visible(v.state))
	if v.cursor >= n {
		v.cursor = max(0, n-1)
	}
}
