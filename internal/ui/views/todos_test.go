package views

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/tdc/internal/api"
	"github.com/tgienger/tdc/internal/models"
	"github.com/tgienger/tdc/internal/testutil"
)

type scheduledMsg struct {
	after time.Duration
	msg   tea.Msg
}

type harness struct {
	t         *testing.T
	view      *TodoListView
	svc       *testutil.FakeService
	scheduled []scheduledMsg
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{t: t, svc: testutil.NewFakeService()}
	h.view = NewTodoListView(h.svc, opts)
	h.view.scheduleAfter = func(d time.Duration, msg tea.Msg) tea.Cmd {
		h.scheduled = append(h.scheduled, scheduledMsg{after: d, msg: msg})
		return nil
	}
	h.view.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	return h
}

// drain runs cmd and feeds every resulting message back into the view
func (h *harness) drain(cmd tea.Cmd) {
	h.t.Helper()
	settle(h.view, cmd)
}

// settle runs cmd synchronously, feeding each message to v until nothing
// is left to run
func settle(v *TodoListView, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case nil:
	case tea.BatchMsg:
		for _, c := range msg {
			settle(v, c)
		}
	default:
		_, next := v.Update(msg)
		settle(v, next)
	}
}

func (h *harness) load() {
	h.t.Helper()
	h.drain(h.view.Load())
}

func (h *harness) key(k tea.KeyMsg) tea.Cmd {
	_, cmd := h.view.Update(k)
	return cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	tabKey   = tea.KeyMsg{Type: tea.KeyTab}
	escKey   = tea.KeyMsg{Type: tea.KeyEsc}
	spaceKey = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

func texts(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Text)
	}
	return out
}

func TestLoadReplacesTasks(t *testing.T) {
	h := newHarness(t, Options{})
	h.svc.AddTask("a", false)
	h.svc.AddTask("b", true)

	cmd := h.view.Load()
	assert.True(t, h.view.State().IsLoading)

	h.drain(cmd)
	st := h.view.State()
	assert.False(t, st.IsLoading)
	assert.Equal(t, []string{"a", "b"}, texts(st.Tasks))
	assert.Empty(t, h.view.ErrorBanner())
	assert.Empty(t, h.scheduled)
}

func TestLoadFailureShowsErrorBanner(t *testing.T) {
	h := newHarness(t, Options{})
	h.svc.AddTask("a", false)
	h.load()

	h.svc.ListErr = &api.APIError{StatusCode: 500, Message: "Database unavailable"}
	h.load()

	assert.Equal(t, "Database unavailable", h.view.ErrorBanner())
	assert.False(t, h.view.State().IsLoading)
	assert.Equal(t, []string{"a"}, texts(h.view.State().Tasks))
	require.Len(t, h.scheduled, 1)
	assert.Equal(t, DefaultErrorBannerTimeout, h.scheduled[0].after)
}

func TestFailureLoggedOnceWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	h := newHarness(t, Options{Logger: log.New(&buf)})
	h.svc.ListErr = &api.APIError{StatusCode: 500, Message: "Database unavailable", RequestID: "rid-1"}
	h.load()

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "Request failed"))
	assert.Contains(t, out, "request_id=rid-1")
	assert.Contains(t, out, "op=load")
}

func TestTransportFailureUsesGenericMessage(t *testing.T) {
	h := newHarness(t, Options{})
	h.svc.ListErr = errors.New("boom")
	h.load()

	assert.Equal(t, api.FallbackErrorMessage, h.view.ErrorBanner())
}

func TestAddEmptyTextIsRejectedLocally(t *testing.T) {
	h := newHarness(t, Options{})

	for _, text := range []string{"", "   ", "\t\n"} {
		cmd := h.view.Add(text)
		assert.Nil(t, cmd)
		assert.Equal(t, MsgEmptyText, h.view.InputError())
		assert.False(t, h.view.State().IsLoading)
	}
	assert.Zero(t, h.svc.CallCount("CreateTask"))
}

func TestTypingClearsValidationMessage(t *testing.T) {
	h := newHarness(t, Options{})

	h.key(enterKey)
	assert.Equal(t, MsgEmptyText, h.view.InputError())
	assert.Contains(t, h.view.View(), MsgEmptyText)

	h.key(runes("x"))
	assert.Empty(t, h.view.InputError())
	assert.Equal(t, "x", h.view.InputValue())
}

func TestAddAppendsAndClearsInput(t *testing.T) {
	h := newHarness(t, Options{})
	h.svc.AddTask("first", false)
	h.load()

	h.view.SetInputValue("  Buy milk  ")
	h.drain(h.key(enterKey))

	st := h.view.State()
	assert.Equal(t, []string{"first", "Buy milk"}, texts(st.Tasks))
	assert.False(t, st.IsLoading)
	assert.Empty(t, h.view.InputValue())
	assert.Equal(t, MsgTaskAdded, h.view.SuccessBanner())
	require.Len(t, h.scheduled, 1)
	assert.Equal(t, DefaultSuccessBannerTimeout, h.scheduled[0].after)

	calls := h.svc.Calls()
	assert.Equal(t, "Buy milk", calls[len(calls)-1].Text)
}

func TestAddFailureKeepsInput(t *testing.T) {
	h := newHarness(t, Options{})
	h.svc.CreateErr = &api.APIError{StatusCode: 400, Message: "Todo text is required and cannot be empty"}

	h.view.SetInputValue("Buy milk")
	h.drain(h.key(enterKey))

	assert.Empty(t, h.view.State().Tasks)
	assert.Equal(t, "Buy milk", h.view.InputValue())
	assert.Equal(t, "Todo text is required and cannot be empty", h.view.ErrorBanner())
	assert.Empty(t, h.view.SuccessBanner())
}

func TestAddIgnoredWhileLoading(t *testing.T) {
	h := newHarness(t, Options{})
	h.view.Load()
	require.True(t, h.view.State().IsLoading)
	assert.Contains(t, h.view.View(), AddingLabel)

	h.view.SetInputValue("Buy milk")
	assert.Nil(t, h.key(enterKey))
	assert.Zero(t, h.svc.CallCount("CreateTask"))
}

func TestFirstResponseClearsLoading(t *testing.T) {
	h := newHarness(t, Options{})
	h.svc.AddTask("a", false)

	first := h.view.Load()
	second := h.view.Add("b")
	require.True(t, h.view.State().IsLoading)

	h.drain(second)
	assert.False(t, h.view.State().IsLoading)
	assert.Equal(t, []string{"b"}, texts(h.view.State().Tasks))

	// The list response arrives last and replaces everything
	h.drain(first)
	assert.False(t, h.view.State().IsLoading)
	assert.Equal(t, []string{"a", "b"}, texts(h.view.State().Tasks))
}

func TestToggle(t *testing.T) {
	h := newHarness(t, Options{})
	a := h.svc.AddTask("a", false)
	h.load()

	h.drain(h.view.Toggle(a.ID))
	task, ok := h.view.State().Find(a.ID)
	require.True(t, ok)
	assert.True(t, task.Completed)
	assert.Empty(t, h.view.SuccessBanner())

	calls := h.svc.Calls()
	last := calls[len(calls)-1]
	require.NotNil(t, last.Patch.Completed)
	assert.True(t, *last.Patch.Completed)
	assert.Nil(t, last.Patch.Text)

	h.drain(h.view.Toggle(a.ID))
	task, _ = h.view.State().Find(a.ID)
	assert.False(t, task.Completed)
}

func TestToggleUnknownTaskDoesNothing(t *testing.T) {
	h := newHarness(t, Options{})
	assert.Nil(t, h.view.Toggle(99))
	assert.False(t, h.view.State().IsLoading)
	assert.Zero(t, h.svc.CallCount("UpdateTask"))
}

func TestToggleFailureLeavesTaskUnchanged(t *testing.T) {
	h := newHarness(t, Options{})
	a := h.svc.AddTask("a", false)
	h.load()
	h.svc.UpdateErr = &api.APIError{StatusCode: 404, Message: "Todo not found"}

	h.drain(h.view.Toggle(a.ID))
	task, _ := h.view.State().Find(a.ID)
	assert.False(t, task.Completed)
	assert.Equal(t, "Todo not found", h.view.ErrorBanner())
}

func TestEdit(t *testing.T) {
	h := newHarness(t, Options{})
	a := h.svc.AddTask("old", true)
	h.load()

	h.drain(h.view.Edit(a.ID, " new "))
	task, _ := h.view.State().Find(a.ID)
	assert.Equal(t, "new", task.Text)
	assert.True(t, task.Completed)
	assert.Equal(t, MsgTaskUpdated, h.view.SuccessBanner())

	assert.Nil(t, h.view.Edit(a.ID, "  "))
	assert.Nil(t, h.view.Edit(99, "x"))
}

func TestEditWithKeys(t *testing.T) {
	h := newHarness(t, Options{})
	h.svc.AddTask("old", false)
	h.load()

	h.key(tabKey)
	require.Equal(t, FocusList, h.view.Focus())
	h.key(runes("e"))
	require.True(t, h.view.Editing())

	h.key(runes("!"))
	h.drain(h.key(enterKey))

	assert.False(t, h.view.Editing())
	assert.Equal(t, []string{"old!"}, texts(h.view.State().Tasks))

	h.key(runes("e"))
	require.True(t, h.view.Editing())
	h.key(escKey)
	assert.False(t, h.view.Editing())
	assert.Equal(t, 1, h.svc.CallCount("UpdateTask"))
}

func TestEditorClosesWhenTaskDisappearsOnReload(t *testing.T) {
	h := newHarness(t, Options{})
	a := h.svc.AddTask("old", false)
	h.load()

	h.key(tabKey)
	h.key(runes("e"))
	require.True(t, h.view.Editing())

	require.NoError(t, h.svc.DeleteTask(context.Background(), a.ID))
	h.load()

	assert.Empty(t, h.view.State().Tasks)
	assert.False(t, h.view.Editing())

	// Keys go back to the list instead of an invisible editor
	assert.Nil(t, h.key(enterKey))
	assert.Zero(t, h.svc.CallCount("UpdateTask"))
}

func TestEditorClosesWhenTaskIsCleared(t *testing.T) {
	h := newHarness(t, Options{})
	h.svc.AddTask("done", true)
	h.load()

	h.key(tabKey)
	h.key(runes("e"))
	require.True(t, h.view.Editing())

	h.drain(h.view.ClearCompleted())
	assert.False(t, h.view.Editing())
}

func TestEditorStaysOpenWhenOtherTaskIsDeleted(t *testing.T) {
	h := newHarness(t, Options{})
	h.svc.AddTask("a", false)
	b := h.svc.AddTask("b", false)
	h.load()

	h.key(tabKey)
	h.key(runes("e"))
	require.True(t, h.view.Editing())

	h.drain(h.view.Delete(b.ID))
	assert.True(t, h.view.Editing())
}

func TestDelete(t *testing.T) {
	h := newHarness(t, Options{})
	a := h.svc.AddTask("a", false)
	h.svc.AddTask("b", false)
	h.load()

	h.drain(h.view.Delete(a.ID))
	assert.Equal(t, []string{"b"}, texts(h.view.State().Tasks))
	assert.Equal(t, MsgTaskDeleted, h.view.SuccessBanner())
}

func TestDeleteFailureKeepsTask(t *testing.T) {
	h := newHarness(t, Options{})
	a := h.svc.AddTask("a", false)
	h.load()
	h.svc.DeleteErr = &api.APIError{StatusCode: 500, Message: "Failed to delete todo"}

	h.drain(h.view.Delete(a.ID))
	assert.Equal(t, []string{"a"}, texts(h.view.State().Tasks))
	assert.Equal(t, "Failed to delete todo", h.view.ErrorBanner())
}

func TestClearCompleted(t *testing.T) {
	h := newHarness(t, Options{})
	h.svc.AddTask("a", true)
	h.svc.AddTask("b", false)
	h.svc.AddTask("c", true)
	h.load()

	h.drain(h.view.ClearCompleted())
	assert.Equal(t, []string{"b"}, texts(h.view.State().Tasks))
	assert.Equal(t, "Cleared 2 completed tasks!", h.view.SuccessBanner())
}

func TestClearCompletedWithNothingCompleted(t *testing.T) {
	h := newHarness(t, Options{})
	h.svc.AddTask("a", false)
	h.load()

	assert.Nil(t, h.view.ClearCompleted())
	assert.Zero(t, h.svc.CallCount("ClearCompleted"))
}

func TestSetFilterDoesNotTouchNetwork(t *testing.T) {
	h := newHarness(t, Options{})
	h.svc.AddTask("a", false)
	h.svc.AddTask("b", true)
	h.load()
	before := len(h.svc.Calls())

	h.view.SetFilter(models.FilterCompleted)
	assert.Equal(t, models.FilterCompleted, h.view.State().Filter)
	assert.Equal(t, before, len(h.svc.Calls()))

	out := h.view.View()
	assert.Contains(t, out, "b")
	assert.NotContains(t, out, "[ ] a")
}

func TestFilterKeys(t *testing.T) {
	h := newHarness(t, Options{})
	h.key(tabKey)

	h.key(runes("f"))
	assert.Equal(t, models.FilterActive, h.view.State().Filter)
	h.key(runes("3"))
	assert.Equal(t, models.FilterCompleted, h.view.State().Filter)
	h.key(runes("1"))
	assert.Equal(t, models.FilterAll, h.view.State().Filter)
}

func TestListKeysActOnSelectedVisibleRow(t *testing.T) {
	h := newHarness(t, Options{})
	h.svc.AddTask("a", true)
	b := h.svc.AddTask("b", false)
	c := h.svc.AddTask("c", false)
	h.load()

	h.key(tabKey)
	h.key(runes("2"))
	h.key(runes("j"))
	assert.Equal(t, 1, h.view.Cursor())

	h.drain(h.key(spaceKey))
	task, _ := h.view.State().Find(c.ID)
	assert.True(t, task.Completed)

	// c left the active filter so the cursor moves back onto b
	assert.Equal(t, 0, h.view.Cursor())
	h.drain(h.key(runes("d")))
	_, ok := h.view.State().Find(b.ID)
	assert.False(t, ok)

	h.drain(h.key(runes("C")))
	assert.Empty(t, h.view.State().Tasks)
}

func TestQuitKeys(t *testing.T) {
	h := newHarness(t, Options{})

	cmd := h.key(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	// q types into the input while it has focus
	h.key(runes("q"))
	assert.Equal(t, "q", h.view.InputValue())

	h.key(tabKey)
	cmd = h.key(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHelpPopupClosesOnAnyKey(t *testing.T) {
	h := newHarness(t, Options{})
	h.key(tabKey)
	h.key(runes("?"))
	assert.Contains(t, h.view.View(), "Keyboard Shortcuts")

	h.key(runes("d"))
	assert.NotContains(t, h.view.View(), "Keyboard Shortcuts")
}

func TestNewerBannerSurvivesOlderTimer(t *testing.T) {
	h := newHarness(t, Options{SuccessBannerTimeout: time.Second})
	a := h.svc.AddTask("a", false)
	h.svc.AddTask("b", false)
	h.load()

	h.drain(h.view.Add("c"))
	h.drain(h.view.Delete(a.ID))
	require.Len(t, h.scheduled, 2)
	assert.Equal(t, time.Second, h.scheduled[0].after)

	h.view.Update(h.scheduled[0].msg)
	assert.Equal(t, MsgTaskDeleted, h.view.SuccessBanner())

	h.view.Update(h.scheduled[1].msg)
	assert.Empty(t, h.view.SuccessBanner())
}

func TestErrorAndSuccessBannersAreIndependent(t *testing.T) {
	h := newHarness(t, Options{})
	h.svc.ListErr = errors.New("down")
	h.load()
	h.drain(h.view.Add("x"))

	assert.NotEmpty(t, h.view.ErrorBanner())
	assert.Equal(t, MsgTaskAdded, h.view.SuccessBanner())

	h.view.Update(h.scheduled[0].msg)
	assert.Empty(t, h.view.ErrorBanner())
	assert.Equal(t, MsgTaskAdded, h.view.SuccessBanner())
}

func TestViewRendering(t *testing.T) {
	h := newHarness(t, Options{})

	out := h.view.View()
	assert.Contains(t, out, MsgEmptyList)
	assert.Contains(t, out, "0 items left")
	assert.Contains(t, out, AddLabel)
	assert.NotContains(t, out, "Clear completed")

	h.svc.AddTask("<b>bold</b>\x1b[31m", false)
	h.svc.AddTask("done", true)
	h.load()

	out = h.view.View()
	assert.Contains(t, out, "<b>bold</b>")
	assert.NotContains(t, out, "</b>\x1b[31m")
	assert.Contains(t, out, "1 item left")
	assert.Contains(t, out, "Clear completed (1)")
	assert.NotContains(t, out, MsgEmptyList)
	for _, mode := range models.FilterModes {
		assert.Contains(t, out, mode.Label())
	}
}

type fakeHistory struct {
	texts []string
	keep  int
}

func (f *fakeHistory) AddHistory(text string, keep int) error {
	f.keep = keep
	f.texts = append([]string{text}, f.texts...)
	return nil
}

func (f *fakeHistory) RecentHistory(limit int) ([]string, error) {
	return f.texts[:min(limit, len(f.texts))], nil
}

func TestAddRecordsHistory(t *testing.T) {
	hist := &fakeHistory{texts: []string{"older"}}
	h := newHarness(t, Options{History: hist, HistorySize: 5})

	h.drain(h.view.loadHistory)
	assert.Equal(t, []string{"older"}, h.view.input.AvailableSuggestions())

	h.drain(h.view.Add("Buy milk"))
	assert.Equal(t, 5, hist.keep)
	assert.Equal(t, []string{"Buy milk", "older"}, h.view.input.AvailableSuggestions())
}

func TestHistoryDisabledWithoutStore(t *testing.T) {
	h := newHarness(t, Options{})
	assert.Nil(t, h.view.loadHistory())
	assert.Nil(t, h.view.recordHistory("x"))
}
