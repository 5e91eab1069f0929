package gh

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// MockServer provides a fake GitHub API for testing
type MockServer struct {
	*httptest.Server
	mu       sync.RWMutex
	issues   map[int]*Issue // issue number -> issue
	requests []*http.Request

	nextErrStatus int
	nextErrBody   string
}

// NewMockServer creates a mock GitHub API server
func NewMockServer() *MockServer {
	m := &MockServer{
		issues: make(map[int]*Issue),
	}

	mux := http.NewServeMux()

	// List issues: GET /repos/{owner}/{repo}/issues
	mux.HandleFunc("/repos/", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.Clone(r.Context()))
		status, body := m.nextErrStatus, m.nextErrBody
		m.nextErrStatus, m.nextErrBody = 0, ""
		m.mu.Unlock()

		if status != 0 {
			http.Error(w, body, status)
			return
		}

		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/repos/"), "/")
		if len(parts) == 3 && parts[2] == "issues" && r.Method == http.MethodGet {
			m.handleListIssues(w, r)
			return
		}
		http.Error(w, "not found", http.StatusNotFound)
	})

	m.Server = httptest.NewServer(mux)
	return m
}

// AddIssue adds an issue (or pull request record) to the mock server
func (m *MockServer) AddIssue(issue *Issue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues[issue.Number] = issue
}

// SetNextError makes the next request fail with the given status and body
func (m *MockServer) SetNextError(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextErrStatus = status
	m.nextErrBody = body
}

// Requests returns the requests received so far
func (m *MockServer) Requests() []*http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*http.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Reset clears all issues and recorded requests
func (m *MockServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues = make(map[int]*Issue)
	m.requests = nil
}

func (m *MockServer) handleListIssues(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state := r.URL.Query().Get("state")
	numbers := make([]int, 0, len(m.issues))
	for n, issue := range m.issues {
		if state == "" || state == "all" || issue.State == state {
			numbers = append(numbers, n)
		}
	}
	// GitHub lists newest first
	sort.Sort(sort.Reverse(sort.IntSlice(numbers)))

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 {
		perPage = 30
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}

	start := (page - 1) * perPage
	if start > len(numbers) {
		start = len(numbers)
	}
	end := start + perPage
	if end > len(numbers) {
		end = len(numbers)
	}

	issues := make([]*Issue, 0, end-start)
	for _, n := range numbers[start:end] {
		issues = append(issues, m.issues[n])
	}

	if end < len(numbers) {
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(page+1))
		next := fmt.Sprintf("%s%s?%s", m.URL, r.URL.Path, q.Encode())
		w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(issues)
}
