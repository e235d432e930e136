package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// Request is one request observed by a FakePortal.
type Request struct {
	Method string
	Path   string
	Accept string
}

// FakePortal is an in-process Taverna Player portal. Exported fields may be
// set before the first request; the recorded requests are read through the
// accessor methods.
type FakePortal struct {
	*httptest.Server

	Username string
	Password string

	// Catalog is served from GET /workflows.
	Catalog []map[string]any
	// Templates maps a workflow id to the "run" object of GET /runs/new.
	Templates map[int]any
	// RunID is returned from POST /runs. Nil answers with an empty object.
	RunID any
	// States are returned by successive polls; the last one repeats.
	States []string
	// OmitLinks drops outputs_zip and log from finished runs.
	OmitLinks bool
	Outputs   []byte
	Log       string
	// Status forces a response code for an exact request path.
	Status map[string]int

	mu       sync.Mutex
	polls    int
	requests []Request
	created  []map[string]any
}

// NewFakePortal starts a FakePortal that expects the given credentials.
// The server is closed when the test completes.
func NewFakePortal(t *testing.T, username, password string) *FakePortal {
	t.Helper()

	p := &FakePortal{
		Username:  username,
		Password:  password,
		Templates: map[int]any{},
		RunID:     7,
		States:    []string{"finished"},
		Status:    map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "Taverna Player")
	})
	mux.HandleFunc("GET /workflows", p.handleCatalog)
	mux.HandleFunc("GET /runs/new", p.handleTemplate)
	mux.HandleFunc("POST /runs", p.handleCreate)
	mux.HandleFunc("GET /runs/{id}", p.handlePoll)
	mux.HandleFunc("GET /runs/{id}/download/outputs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(p.Outputs)
	})
	mux.HandleFunc("GET /runs/{id}/download/log", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, p.Log)
	})

	p.Server = httptest.NewServer(p.middleware(mux))
	t.Cleanup(p.Server.Close)

	return p
}

func (p *FakePortal) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.requests = append(p.requests, Request{Method: r.Method, Path: r.URL.Path, Accept: r.Header.Get("Accept")})
		status := p.Status[r.URL.Path]
		p.mu.Unlock()

		user, pass, ok := r.BasicAuth()
		if !ok || user != p.Username || pass != p.Password {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *FakePortal) handleCatalog(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	catalog := p.Catalog
	p.mu.Unlock()
	if catalog == nil {
		catalog = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (p *FakePortal) handleTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("workflow_id"))
	if err != nil {
		http.Error(w, "bad workflow_id", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	run, ok := p.Templates[id]
	p.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (p *FakePortal) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	p.mu.Lock()
	p.created = append(p.created, body)
	id := p.RunID
	p.mu.Unlock()

	if id == nil {
		writeJSON(w, http.StatusCreated, map[string]any{})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (p *FakePortal) handlePoll(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	p.mu.Lock()
	state := "pending"
	if len(p.States) > 0 {
		state = p.States[min(p.polls, len(p.States)-1)]
	}
	p.polls++
	omit := p.OmitLinks
	p.mu.Unlock()

	info := map[string]any{"id": id, "state": state}
	if state == "finished" {
		info["start_time"] = "2014-06-05T10:00:00.000Z"
		info["finish_time"] = "2014-06-05T10:02:30.000Z"
		if !omit {
			info["outputs_zip"] = fmt.Sprintf("/runs/%s/download/outputs", id)
			info["log"] = fmt.Sprintf("/runs/%s/download/log", id)
		}
	}
	writeJSON(w, http.StatusOK, info)
}

// Requests returns every request observed so far.
func (p *FakePortal) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Request(nil), p.requests...)
}

// Count returns how many requests used method on path.
func (p *FakePortal) Count(method, path string) int {
	n := 0
	for _, r := range p.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Created returns the decoded bodies of every POST /runs.
func (p *FakePortal) Created() []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]map[string]any(nil), p.created...)
}

// Set updates the portal under its lock.
func (p *FakePortal) Set(fn func(p *FakePortal)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
