package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/tdc/internal/models"
	"github.com/tgienger/tdc/internal/state"
	"github.com/tgienger/tdc/internal/ui/styles"
)

// Add control labels
const (
	AddLabel     = "+ Add Task"
	AddingLabel  = "Adding..."
	ClearPattern = "Clear completed (%d)"
)

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// View renders the task list
func (v *TodoListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	var b strings.Builder

	b.WriteString(v.renderHeader())
	b.WriteString("\n\n")

	b.WriteString(v.renderFilterBar())
	b.WriteString("\n\n")

	b.WriteString(v.renderList())
	b.WriteString("\n\n")

	b.WriteString(v.renderFooter())

	if banners := v.renderBanners(); banners != "" {
		b.WriteString("\n\n")
		b.WriteString(banners)
	}

	b.WriteString("\n\n")
	b.WriteString(v.renderHelp())

	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *TodoListView) renderHeader() string {
	s := v.styles

	title := s.Title.Render("Todos")
	if v.state.IsLoading {
		title = lipgloss.JoinHorizontal(lipgloss.Center, title, " ", v.spinner.View())
	}

	inputStyle := s.Input
	switch {
	case v.inputError != "":
		inputStyle = s.InputInvalid
	case v.focus == FocusInput && !v.editing:
		inputStyle = s.InputFocused
	}
	inputBox := inputStyle.Render(v.input.View())

	var addBtn string
	if v.state.IsLoading {
		addBtn = s.ButtonDisabled.Render(v.spinner.View() + " " + AddingLabel)
	} else {
		addBtn = s.ButtonPrimary.Render(AddLabel)
	}

	row := lipgloss.JoinHorizontal(lipgloss.Center, inputBox, "  ", addBtn)

	parts := []string{title, row}
	if v.inputError != "" {
		parts = append(parts, s.InputError.Render(v.inputError))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (v *TodoListView) renderFilterBar() string {
	s := v.styles
	var opts []string
	for _, mode := range models.FilterModes {
		style := s.FilterOption
		if mode == v.state.Filter {
			style = s.FilterSelected
		}
		opts = append(opts, style.Render(mode.Label()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, opts...)
}

func (v *TodoListView) renderList() string {
	s := v.styles
	rows := state.Rows(v.state)

	if len(rows) == 0 {
		return s.Empty.Render(MsgEmptyList)
	}

	// Each row is one line
	visible := max(v.height-16, 3)
	start := 0
	if v.cursor >= visible {
		start = v.cursor - visible + 1
	}
	end := min(start+visible, len(rows))

	items := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, v.renderRow(rows[i], i == v.cursor && v.focus == FocusList))
	}
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (v *TodoListView) renderRow(row state.Row, selected bool) string {
	s := v.styles

	box := s.Checkbox.Render("[ ]")
	if row.Completed {
		box = s.CheckboxDone.Render("[x]")
	}

	if v.editing && v.editID == row.ID {
		line := lipgloss.JoinHorizontal(lipgloss.Center, box, " ", s.InputFocused.Render(v.editInput.View()))
		if v.editError != "" {
			line = lipgloss.JoinVertical(lipgloss.Left, line, s.InputError.Render(v.editError))
		}
		return line
	}

	text := row.Text
	if row.Completed {
		text = s.TaskDone.Render(text)
	}

	itemStyle := s.ListItem
	if selected {
		itemStyle = s.ListSelected
	}
	return itemStyle.Render(box + " " + text)
}

func (v *TodoListView) renderFooter() string {
	s := v.styles
	counts := state.CountTasks(v.state.Tasks)

	parts := []string{s.StatusBar.Render(state.RemainingLabel(counts.Remaining))}
	if counts.ShowClearCompleted() {
		parts = append(parts, "  ", s.Button.Render(fmt.Sprintf(ClearPattern, counts.Completed)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}

func (v *TodoListView) renderBanners() string {
	s := v.styles
	var parts []string
	if v.errBanner.text != "" {
		parts = append(parts, s.BannerError.Render(v.errBanner.text))
	}
	if v.okBanner.text != "" {
		parts = append(parts, s.BannerSuccess.Render(v.okBanner.text))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (v *TodoListView) renderHelp() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	// At narrow widths, show hint to press ? for help
	if contentWidth > 0 && contentWidth < 50 {
		return s.Help.Render(s.HelpKey.Render("?") + " help")
	}

	if v.editing {
		return s.Help.Render(fmt.Sprintf("%s save • %s cancel",
			s.HelpKey.Render("↵"),
			s.HelpKey.Render("esc"),
		))
	}

	if v.focus == FocusInput {
		return s.Help.Render(fmt.Sprintf("%s add • %s accept suggestion • %s list • %s quit",
			s.HelpKey.Render("↵"),
			s.HelpKey.Render("ctrl+y"),
			s.HelpKey.Render("tab"),
			s.HelpKey.Render("ctrl+c"),
		))
	}

	return s.Help.Render(
		fmt.Sprintf("%s toggle • %s edit • %s del • %s clear • %s filter • %s reload • %s new • %s quit",
			s.HelpKey.Render("space"),
			s.HelpKey.Render("e"),
			s.HelpKey.Render("d"),
			s.HelpKey.Render("C"),
			s.HelpKey.Render("f"),
			s.HelpKey.Render("r"),
			s.HelpKey.Render("n"),
			s.HelpKey.Render("q"),
		),
	)
}

func (v *TodoListView) renderHelpPopup() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	helpItems := []string{
		s.HelpKey.Render("↵") + "      add task",
		s.HelpKey.Render("tab") + "    switch focus",
		s.HelpKey.Render("space") + "  toggle task",
		s.HelpKey.Render("e") + "      edit task",
		s.HelpKey.Render("d") + "      delete task",
		s.HelpKey.Render("C") + "      clear completed",
		s.HelpKey.Render("f") + "      cycle filter",
		s.HelpKey.Render("1-3") + "    all / active / completed",
		s.HelpKey.Render("r") + "      reload",
		s.HelpKey.Render("q") + "      quit",
		"",
		s.TitleMuted.Render("Press any key to close"),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, helpItems...)...,
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		s.FilterBar.Render(content),
	)
	return styles.CenterView(centered, v.width, v.height)
}
