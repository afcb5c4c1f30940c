// Package state holds the client's view state and the pure functions that
// derive what is displayed from it.
//
// Nothing in this package performs I/O. The controller owns a ViewState and
// mutates it only while handling API responses; rendering code reads it
// through Visible, Rows and CountTasks.
package state

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
	"github.com/tgienger/tdc/internal/models"
)

// ViewState is the single source of truth for task data and UI mode
type ViewState struct {
	Tasks     []models.Task // server order
	Filter    models.FilterMode
	IsLoading bool
}

// Counts are derived from every task, independent of the filter
type Counts struct {
	Total     int
	Remaining int
	Completed int
}

// ShowClearCompleted reports whether the clear-completed control is offered
func (c Counts) ShowClearCompleted() bool {
	return c.Completed > 0
}

// Row is one rendered list entry
type Row struct {
	ID        int64
	Text      string
	Completed bool
}

// Visible returns the tasks matching the current filter, preserving order
func Visible(s ViewState) []models.Task {
	out := make([]models.Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		if s.Filter.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Rows builds the rendered entries for the current filter. Text is
// neutralized so it is always displayed literally.
func Rows(s ViewState) []Row {
	visible := Visible(s)
	rows := make([]Row, len(visible))
	for i, t := range visible {
		rows[i] = Row{ID: t.ID, Text: SanitizeText(t.Text), Completed: t.Completed}
	}
	return rows
}

// CountTasks derives the summary counters
func CountTasks(tasks []models.Task) Counts {
	c := Counts{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			c.Completed++
		} else {
			c.Remaining++
		}
	}
	return c
}

// RemainingLabel formats the remaining counter, e.g. "1 item left"
func RemainingLabel(remaining int) string {
	noun := "items"
	if remaining == 1 {
		noun = "item"
	}
	return fmt.Sprintf("%d %s left", remaining, noun)
}

// SanitizeText strips terminal escape sequences and control characters so
// server supplied text cannot restyle or move the cursor.
func SanitizeText(text string) string {
	stripped := ansi.Strip(text)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, stripped)
}

// Find returns the task with the given id
func (s ViewState) Find(id int64) (models.Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}

// Replace swaps in a freshly loaded task list
func (s *ViewState) Replace(tasks []models.Task) {
	s.Tasks = append(make([]models.Task, 0, len(tasks)), tasks...)
}

// Append adds a newly created task at the end
func (s *ViewState) Append(t models.Task) {
	s.Tasks = append(s.Tasks, t)
}

// Merge copies the fields of an updated task onto the local record with the
// same id. It returns false if the task is no longer present.
func (s *ViewState) Merge(updated models.Task) bool {
	for i := range s.Tasks {
		if s.Tasks[i].ID != updated.ID {
			continue
		}
		if updated.Text != "" {
			s.Tasks[i].Text = updated.Text
		}
		s.Tasks[i].Completed = updated.Completed
		if updated.CreatedAt != "" {
			s.Tasks[i].CreatedAt = updated.CreatedAt
		}
		return true
	}
	return false
}

// Remove drops the task with the given id
func (s *ViewState) Remove(id int64) bool {
	for i, t := range s.Tasks {
		if t.ID == id {
			s.Tasks = append(s.Tasks[:i:i], s.Tasks[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveCompleted drops every completed task and returns how many were removed
func (s *ViewState) RemoveCompleted() int {
	kept := make([]models.Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		if !t.Completed {
			kept = append(kept, t)
		}
	}
	removed := len(s.Tasks) - len(kept)
	s.Tasks = kept
	return removed
}
