package models

import (
	"fmt"
	"strings"
)

// Task represents a single to-do item as the Task API returns it
type Task struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	CreatedAt string `json:"created_at,omitempty"` // server supplied, informational
}

// FilterMode selects which subset of tasks is displayed
type FilterMode int

const (
	FilterAll FilterMode = iota
	FilterActive
	FilterCompleted
)

// FilterModes lists the modes in the order they are shown in the selector
var FilterModes = []FilterMode{FilterAll, FilterActive, FilterCompleted}

func (f FilterMode) String() string {
	switch f {
	case FilterActive:
		return "active"
	case FilterCompleted:
		return "completed"
	default:
		return "all"
	}
}

// Label is the capitalized name used by the filter selector
func (f FilterMode) Label() string {
	s := f.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// Matches reports whether a task belongs to the filter's subset
func (f FilterMode) Matches(t Task) bool {
	switch f {
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

// Next returns the following mode, wrapping around
func (f FilterMode) Next() FilterMode {
	return FilterModes[(int(f)+1)%len(FilterModes)]
}

// ParseFilterMode converts a mode name into a FilterMode
func ParseFilterMode(name string) (FilterMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "all":
		return FilterAll, nil
	case "active":
		return FilterActive, nil
	case "completed":
		return FilterCompleted, nil
	}
	return FilterAll, fmt.Errorf("unknown filter mode %q", name)
}
