package notion

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockServer provides a fake Notion API for testing. It serves a single
// in-memory database whose columns get stable property ids.
type MockServer struct {
	*httptest.Server

	// PageSize is the number of rows returned per query page.
	PageSize int
	// Latency is added to every create and update call.
	Latency time.Duration

	mu          sync.Mutex
	pages       map[string]*Page
	order       []string
	columnIDs   map[string]string
	nextID      int
	failIssues  map[int]bool
	creates     int
	updates     int
	inFlight    int
	maxInFlight int
}

// NewMockServer creates a mock Notion API server
func NewMockServer() *MockServer {
	m := &MockServer{
		PageSize:   100,
		pages:      make(map[string]*Page),
		columnIDs:  make(map[string]string),
		failIssues: make(map[int]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/databases/", m.handleQuery)
	mux.HandleFunc("/pages", m.handleCreate)
	mux.HandleFunc("/pages/", m.handlePage)

	m.Server = httptest.NewServer(mux)
	return m
}

// AddRow seeds a row with the given id and properties.
func (m *MockServer) AddRow(id string, props Properties) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeLocked(id, props)
}

// FailIssue makes create and update calls carrying this issue number fail with 500.
func (m *MockServer) FailIssue(number int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failIssues[number] = true
}

// Rows returns a snapshot of all rows in insertion order.
func (m *MockServer) Rows() []Page {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Page, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.pages[id])
	}
	return out
}

// Row returns a row by id, or nil.
func (m *MockServer) Row(id string) *Page {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pages[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// Counts returns the number of create and update calls that succeeded.
func (m *MockServer) Counts() (creates, updates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates, m.updates
}

// MaxInFlight returns the highest number of concurrent write calls observed.
func (m *MockServer) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

func (m *MockServer) columnIDLocked(name string) string {
	id, ok := m.columnIDs[name]
	if !ok {
		// encoded like real property ids, which often contain reserved characters
		id = fmt.Sprintf("%%3Acol%d", len(m.columnIDs)+1)
		m.columnIDs[name] = id
	}
	return id
}

func (m *MockServer) storeLocked(id string, props Properties) {
	page, ok := m.pages[id]
	if !ok {
		page = &Page{Object: "page", ID: id, Properties: Properties{}}
		m.pages[id] = page
		m.order = append(m.order, id)
	}
	for name, value := range props {
		value.ID = m.columnIDLocked(name)
		page.Properties[name] = value
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"object":  "error",
		"status":  status,
		"code":    code,
		"message": message,
	})
}

// POST /databases/{id}/query
func (m *MockServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/query") {
		writeError(w, http.StatusNotFound, "object_not_found", "not found")
		return
	}

	var req struct {
		StartCursor string `json:"start_cursor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if req.StartCursor != "" {
		n, err := strconv.Atoi(req.StartCursor)
		if err != nil || n < 0 || n > len(m.order) {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid start_cursor")
			return
		}
		start = n
	}
	end := start + m.PageSize
	if end > len(m.order) {
		end = len(m.order)
	}

	result := QueryResult{Results: []Page{}}
	for _, id := range m.order[start:end] {
		result.Results = append(result.Results, *m.pages[id])
	}
	if end < len(m.order) {
		next := strconv.Itoa(end)
		result.HasMore = true
		result.NextCursor = &next
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /pages
func (m *MockServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}

	var req struct {
		Parent struct {
			DatabaseID string `json:"database_id"`
		} `json:"parent"`
		Properties Properties `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Parent.DatabaseID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "parent.database_id is required")
		return
	}

	done := m.enter()
	defer done()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failsLocked(req.Properties) {
		writeError(w, http.StatusInternalServerError, "internal_server_error", "forced failure")
		return
	}

	m.nextID++
	id := fmt.Sprintf("page-%d", m.nextID)
	m.storeLocked(id, req.Properties)
	m.creates++
	writeJSON(w, http.StatusOK, m.pages[id])
}

// GET /pages/{id}/properties/{prop}, PATCH /pages/{id}
func (m *MockServer) handlePage(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.EscapedPath(), "/pages/"), "/")
	for i, part := range parts {
		decoded, err := url.PathUnescape(part)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_url", err.Error())
			return
		}
		parts[i] = decoded
	}

	switch {
	case len(parts) == 3 && parts[1] == "properties" && r.Method == http.MethodGet:
		m.handleProperty(w, parts[0], parts[2])
	case len(parts) == 1 && r.Method == http.MethodPatch:
		m.handleUpdate(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "object_not_found", "not found")
	}
}

func (m *MockServer) handleProperty(w http.ResponseWriter, pageID, propertyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, ok := m.pages[pageID]
	if !ok {
		writeError(w, http.StatusNotFound, "object_not_found", "page not found")
		return
	}
	for _, value := range page.Properties {
		if id, err := url.PathUnescape(value.ID); err != nil || id != propertyID {
			continue
		}
		writeJSON(w, http.StatusOK, PropertyItem{
			Object: "property_item",
			ID:     value.ID,
			Type:   value.Type,
			Number: value.Number,
			Select: value.Select,
			URL:    value.URL,
		})
		return
	}
	writeError(w, http.StatusNotFound, "object_not_found", "property not found")
}

func (m *MockServer) handleUpdate(w http.ResponseWriter, r *http.Request, pageID string) {
	var req struct {
		Properties Properties `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	done := m.enter()
	defer done()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pages[pageID]; !ok {
		writeError(w, http.StatusNotFound, "object_not_found", "page not found")
		return
	}
	if m.failsLocked(req.Properties) {
		writeError(w, http.StatusInternalServerError, "internal_server_error", "forced failure")
		return
	}

	m.storeLocked(pageID, req.Properties)
	m.updates++
	writeJSON(w, http.StatusOK, m.pages[pageID])
}

func (m *MockServer) failsLocked(props Properties) bool {
	for _, value := range props {
		if value.Number != nil && m.failIssues[int(*value.Number)] {
			return true
		}
	}
	return false
}

// enter tracks a write call in flight and applies Latency outside the lock.
func (m *MockServer) enter() func() {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	latency := m.Latency
	m.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}

	return func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}
}
