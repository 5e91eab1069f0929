package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohanCodinha/issuesync/internal/gh"
	"github.com/JohanCodinha/issuesync/internal/notion"
)

// fakeStore is an in-memory RowStore. Cursors are row offsets.
type fakeStore struct {
	pageSize    int
	rows        []notion.Page
	queryErr    error
	propertyErr error
	failIssue   int

	mu      gosync.Mutex
	queries int
	cursors []string
	created []notion.Properties
	updated map[string]notion.Properties
}

func newFakeStore() *fakeStore {
	return &fakeStore{pageSize: 100, updated: make(map[string]notion.Properties)}
}

func (f *fakeStore) addRow(id string, number int) {
	value := notion.NumberValue(float64(number))
	value.ID = "num"
	f.rows = append(f.rows, notion.Page{
		ID:         id,
		Properties: notion.Properties{string(ColumnIssueNumber): value},
	})
}

func (f *fakeStore) QueryDatabase(ctx context.Context, databaseID, cursor string) (*notion.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	f.cursors = append(f.cursors, cursor)
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	end := start + f.pageSize
	if end > len(f.rows) {
		end = len(f.rows)
	}

	result := &notion.QueryResult{Results: f.rows[start:end]}
	if end < len(f.rows) {
		next := strconv.Itoa(end)
		result.HasMore = true
		result.NextCursor = &next
	}
	return result, nil
}

func (f *fakeStore) GetPageProperty(ctx context.Context, pageID, propertyID string) (*notion.PropertyItem, error) {
	if f.propertyErr != nil {
		return nil, f.propertyErr
	}
	for _, row := range f.rows {
		if row.ID != pageID {
			continue
		}
		for _, value := range row.Properties {
			if value.ID == propertyID {
				return &notion.PropertyItem{Object: "property_item", ID: propertyID, Type: value.Type, Number: value.Number}, nil
			}
		}
	}
	return nil, fmt.Errorf("property %s of page %s not found", propertyID, pageID)
}

func (f *fakeStore) fails(props notion.Properties) bool {
	n := props[string(ColumnIssueNumber)].Number
	return f.failIssue != 0 && n != nil && int(*n) == f.failIssue
}

func (f *fakeStore) CreatePage(ctx context.Context, databaseID string, props notion.Properties) (*notion.Page, error) {
	if f.fails(props) {
		return nil, errors.New("create failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, props)
	return &notion.Page{ID: fmt.Sprintf("new-%d", len(f.created)), Properties: props}, nil
}

func (f *fakeStore) UpdatePage(ctx context.Context, pageID string, props notion.Properties) (*notion.Page, error) {
	if f.fails(props) {
		return nil, errors.New("update failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated[pageID] = props
	return &notion.Page{ID: pageID, Properties: props}, nil
}

type fakeLister struct {
	issues []gh.Issue
	err    error
	opts   gh.ListOptions
}

func (f *fakeLister) ListIssues(ctx context.Context, owner, repo string, opts gh.ListOptions) ([]gh.Issue, error) {
	f.opts = opts
	return f.issues, f.err
}

func newTestEngine(t *testing.T, lister IssueLister, store RowStore) *Engine {
	t.Helper()
	engine, err := NewEngine(lister, store, Options{Owner: "owner", Repo: "repo", DatabaseID: "db"})
	require.NoError(t, err)
	return engine
}

func TestNewEngine(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"valid", Options{Owner: "o", Repo: "r", DatabaseID: "d"}, false},
		{"missing owner", Options{Repo: "r", DatabaseID: "d"}, true},
		{"missing repo", Options{Owner: "o", DatabaseID: "d"}, true},
		{"missing database", Options{Owner: "o", Repo: "r"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewEngine(&fakeLister{}, newFakeStore(), tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultBatchSize, engine.opts.BatchSize)
		})
	}

	_, err := NewEngine(nil, newFakeStore(), Options{Owner: "o", Repo: "r", DatabaseID: "d"})
	assert.Error(t, err)
}

func TestEngineRun_Scenario(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	lister := &fakeLister{issues: []gh.Issue{
		{Number: 1, Title: "Open one", State: "open", HTMLURL: "https://github.com/o/r/issues/1", CreatedAt: created},
		{Number: 2, Title: "Closed bug", State: "closed", HTMLURL: "https://github.com/o/r/issues/2", CreatedAt: created, Labels: labels("bug")},
	}}
	store := newFakeStore()
	store.addRow("rowA", 1)

	res, err := newTestEngine(t, lister, store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.RowsIndexed)
	assert.Equal(t, 2, res.IssuesFetched)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
	assert.Equal(t, gh.ListOptions{State: "all", PerPage: gh.DefaultPageSize}, lister.opts)

	require.Len(t, store.created, 1)
	createdRow := store.created[0]
	assert.Equal(t, float64(2), *createdRow[string(ColumnIssueNumber)].Number)
	assert.Equal(t, "closed", createdRow[string(ColumnState)].Select.Name)
	assert.Equal(t, TypeBug, createdRow[string(ColumnType)].Select.Name)

	updatedRow, ok := store.updated["rowA"]
	require.True(t, ok)
	assert.Equal(t, float64(1), *updatedRow[string(ColumnIssueNumber)].Number)
	assert.NotContains(t, updatedRow, string(ColumnType))
}

func TestEngineRun_SkipsPullRequests(t *testing.T) {
	lister := &fakeLister{issues: []gh.Issue{
		{Number: 1, Title: "Issue", State: "open"},
		{Number: 2, Title: "PR", State: "open", PullRequest: &gh.PullRequestRef{URL: "u"}},
		{Number: 3, Title: "Another PR", State: "closed", PullRequest: &gh.PullRequestRef{}},
	}}
	store := newFakeStore()

	res, err := newTestEngine(t, lister, store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.IssuesFetched)
	assert.Equal(t, 2, res.PullRequests)
	require.Len(t, store.created, 1)
	assert.Equal(t, float64(1), *store.created[0][string(ColumnIssueNumber)].Number)
}

func TestEngineRun_ListErrorAbortsBeforeWrites(t *testing.T) {
	lister := &fakeLister{err: errors.New("bad credentials")}
	store := newFakeStore()

	_, err := newTestEngine(t, lister, store).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, lister.err)
	assert.Contains(t, err.Error(), "fetch issues")
	assert.Empty(t, store.created)
}

func TestEngineRun_SchemaMismatchIsFatal(t *testing.T) {
	store := newFakeStore()
	store.rows = append(store.rows, notion.Page{ID: "r", Properties: notion.Properties{}})
	lister := &fakeLister{issues: []gh.Issue{{Number: 1, State: "open"}}}

	_, err := newTestEngine(t, lister, store).Run(context.Background())
	require.Error(t, err)

	var schemaErr *SchemaError
	assert.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, err.Error(), "load rows")
	assert.Empty(t, store.created)
}

func TestEngineRun_CreateFailureSkipsUpdates(t *testing.T) {
	lister := &fakeLister{issues: []gh.Issue{
		{Number: 1, State: "open"},
		{Number: 2, State: "open"},
	}}
	store := newFakeStore()
	store.addRow("row-1", 1)
	store.failIssue = 2

	res, err := newTestEngine(t, lister, store).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create rows")
	assert.Contains(t, err.Error(), "issue #2")
	assert.Equal(t, 0, res.Created)
	assert.Empty(t, store.updated, "updates must not run after a failed create phase")
}

func TestEngineRun_SecondRunOnlyUpdates(t *testing.T) {
	lister := &fakeLister{issues: []gh.Issue{
		{Number: 1, State: "open"},
		{Number: 2, State: "open"},
		{Number: 3, State: "closed"},
	}}
	store := newFakeStore()

	first, err := newTestEngine(t, lister, store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Created)

	// mirror what the database now holds
	for i, props := range store.created {
		store.addRow(fmt.Sprintf("new-%d", i+1), int(*props[string(ColumnIssueNumber)].Number))
	}
	store.created = nil

	second, err := newTestEngine(t, lister, store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 3, second.Updated)
	assert.Empty(t, store.created)
}
