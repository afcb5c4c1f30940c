package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tgienger/tdc/internal/models"
)

// RecordedRequest is what the fake server saw for one request
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

// Failure overrides the response for a method and path
type Failure struct {
	Status int
	Body   string // raw response body
}

// FakeServer is an in-memory Task API served over HTTP for client tests.
type FakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	todos    []models.Task
	counter  int64
	requests []RecordedRequest
	failures map[string]Failure
}

// NewFakeServer starts a fake Task API. Call Close when done.
func NewFakeServer() *FakeServer {
	fs := &FakeServer{
		counter:  1,
		failures: make(map[string]Failure),
	}

	r := chi.NewRouter()
	r.Use(fs.record)
	r.Route("/api/todos", func(r chi.Router) {
		r.Get("/", fs.handleList)
		r.Post("/", fs.handleCreate)
		r.Delete("/clear-completed", fs.handleClearCompleted)
		r.Put("/{id:[0-9]+}", fs.handleUpdate)
		r.Delete("/{id:[0-9]+}", fs.handleDelete)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorJSON(w, http.StatusNotFound, "Endpoint not found")
	})

	fs.Server = httptest.NewServer(r)
	return fs
}

// Seed adds a task directly to the server state
func (fs *FakeServer) Seed(text string, completed bool) models.Task {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	t := models.Task{ID: fs.counter, Text: text, Completed: completed, CreatedAt: now()}
	fs.counter++
	fs.todos = append(fs.todos, t)
	return t
}

// Fail makes every request matching method and path return the failure
func (fs *FakeServer) Fail(method, path string, f Failure) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.failures[method+" "+path] = f
}

// Requests returns every request received so far
func (fs *FakeServer) Requests() []RecordedRequest {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]RecordedRequest(nil), fs.requests...)
}

// Todos returns a copy of the server state
func (fs *FakeServer) Todos() []models.Task {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]models.Task(nil), fs.todos...)
}

func (fs *FakeServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		fs.mu.Lock()
		fs.requests = append(fs.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		failure, failing := fs.failures[r.Method+" "+r.URL.Path]
		fs.mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(failure.Status)
			_, _ = w.Write([]byte(failure.Body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (fs *FakeServer) handleList(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	todos := append([]models.Task{}, fs.todos...)
	fs.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "todos": todos})
}

func (fs *FakeServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || strings.TrimSpace(data.Text) == "" {
		writeErrorJSON(w, http.StatusBadRequest, "Todo text is required and cannot be empty")
		return
	}

	fs.mu.Lock()
	t := models.Task{ID: fs.counter, Text: strings.TrimSpace(data.Text), CreatedAt: now()}
	fs.counter++
	fs.todos = append(fs.todos, t)
	fs.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "todo": t})
}

func (fs *FakeServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)

	var data struct {
		Completed *bool   `json:"completed"`
		Text      *string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, "Failed to update todo")
		return
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i := range fs.todos {
		if fs.todos[i].ID != id {
			continue
		}
		if data.Completed != nil {
			fs.todos[i].Completed = *data.Completed
		}
		if data.Text != nil && strings.TrimSpace(*data.Text) != "" {
			fs.todos[i].Text = strings.TrimSpace(*data.Text)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "todo": fs.todos[i]})
		return
	}
	writeErrorJSON(w, http.StatusNotFound, "Todo not found")
}

func (fs *FakeServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i, t := range fs.todos {
		if t.ID == id {
			fs.todos = append(fs.todos[:i:i], fs.todos[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Todo deleted successfully"})
			return
		}
	}
	writeErrorJSON(w, http.StatusNotFound, "Todo not found")
}

func (fs *FakeServer) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	kept := make([]models.Task, 0, len(fs.todos))
	for _, t := range fs.todos {
		if !t.Completed {
			kept = append(kept, t)
		}
	}
	cleared := len(fs.todos) - len(kept)
	fs.todos = kept
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Cleared %d completed todos", cleared),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": message})
}

func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000")
}
