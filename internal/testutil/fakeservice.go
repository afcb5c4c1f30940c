// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/tgienger/tdc/internal/api"
	"github.com/tgienger/tdc/internal/models"
)

// Call records one invocation of the fake service
type Call struct {
	Method string
	ID     int64
	Text   string
	Patch  api.TaskPatch
}

// FakeService is an in-memory implementation of api.Service for testing.
type FakeService struct {
	mu     sync.Mutex
	tasks  []models.Task
	nextID int64
	calls  []Call

	// Error injection for testing
	ListErr           error
	CreateErr         error
	UpdateErr         error
	DeleteErr         error
	ClearCompletedErr error
}

// NewFakeService creates an empty FakeService. Ids start at 1.
func NewFakeService() *FakeService {
	return &FakeService{nextID: 1}
}

// AddTask seeds a task and returns it
func (f *FakeService) AddTask(text string, completed bool) models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := models.Task{ID: f.nextID, Text: text, Completed: completed}
	f.nextID++
	f.tasks = append(f.tasks, t)
	return t
}

// SetNextID sets the id the next created task receives
func (f *FakeService) SetNextID(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID = id
}

// Tasks returns a copy of the server-side tasks
func (f *FakeService) Tasks() []models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Task(nil), f.tasks...)
}

// Calls returns every recorded call in order
func (f *FakeService) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount returns how many calls were made to the named method
func (f *FakeService) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (f *FakeService) record(c Call) {
	f.calls = append(f.calls, c)
}

// ListTasks implements api.Service.
func (f *FakeService) ListTasks(ctx context.Context) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "ListTasks"})
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]models.Task{}, f.tasks...), nil
}

// CreateTask implements api.Service.
func (f *FakeService) CreateTask(ctx context.Context, text string) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "CreateTask", Text: text})
	if f.CreateErr != nil {
		return models.Task{}, f.CreateErr
	}
	if strings.TrimSpace(text) == "" {
		return models.Task{}, &api.APIError{StatusCode: 400, Message: "Todo text is required and cannot be empty"}
	}
	t := models.Task{ID: f.nextID, Text: strings.TrimSpace(text)}
	f.nextID++
	f.tasks = append(f.tasks, t)
	return t, nil
}

// UpdateTask implements api.Service.
func (f *FakeService) UpdateTask(ctx context.Context, id int64, patch api.TaskPatch) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "UpdateTask", ID: id, Patch: patch})
	if f.UpdateErr != nil {
		return models.Task{}, f.UpdateErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		if patch.Completed != nil {
			f.tasks[i].Completed = *patch.Completed
		}
		if patch.Text != nil && strings.TrimSpace(*patch.Text) != "" {
			f.tasks[i].Text = strings.TrimSpace(*patch.Text)
		}
		return f.tasks[i], nil
	}
	return models.Task{}, &api.APIError{StatusCode: 404, Message: "Todo not found"}
}

// DeleteTask implements api.Service.
func (f *FakeService) DeleteTask(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "DeleteTask", ID: id})
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return &api.APIError{StatusCode: 404, Message: "Todo not found"}
}

// ClearCompleted implements api.Service.
func (f *FakeService) ClearCompleted(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "ClearCompleted"})
	if f.ClearCompletedErr != nil {
		return f.ClearCompletedErr
	}
	kept := f.tasks[:0:0]
	for _, t := range f.tasks {
		if !t.Completed {
			kept = append(kept, t)
		}
	}
	f.tasks = kept
	return nil
}
