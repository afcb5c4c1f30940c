// Package api talks to the remote Task API.
package api

import (
	"context"

	"github.com/tgienger/tdc/internal/models"
)

// Service defines the Task API operations the client uses.
// The UI never builds HTTP requests itself.
type Service interface {
	// ListTasks returns every task in server order.
	ListTasks(ctx context.Context) ([]models.Task, error)

	// CreateTask creates a task. The returned record is authoritative for
	// id and defaults.
	CreateTask(ctx context.Context, text string) (models.Task, error)

	// UpdateTask applies a partial update and returns the updated record.
	UpdateTask(ctx context.Context, id int64, patch TaskPatch) (models.Task, error)

	// DeleteTask removes a task.
	DeleteTask(ctx context.Context, id int64) error

	// ClearCompleted removes every completed task on the server.
	ClearCompleted(ctx context.Context) error
}

// TaskPatch is the body of an update request. Nil fields are not sent.
type TaskPatch struct {
	Completed *bool   `json:"completed,omitempty"`
	Text      *string `json:"text,omitempty"`
}

// SetCompleted builds a patch that only changes the completion flag
func SetCompleted(completed bool) TaskPatch {
	return TaskPatch{Completed: &completed}
}

// SetText builds a patch that only changes the text
func SetText(text string) TaskPatch {
	return TaskPatch{Text: &text}
}
