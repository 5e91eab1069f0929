// Package sync mirrors the issues of a GitHub repository into a Notion
// database, one row per issue.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/JohanCodinha/issuesync/internal/gh"
	"github.com/JohanCodinha/issuesync/internal/logger"
	"github.com/JohanCodinha/issuesync/internal/notion"
	"github.com/JohanCodinha/issuesync/internal/telemetry"
)

var log = logger.For("sync")

var tracer = telemetry.Tracer("github.com/JohanCodinha/issuesync/internal/sync")

// IssueLister is the source repository reader.
type IssueLister interface {
	ListIssues(ctx context.Context, owner, repo string, opts gh.ListOptions) ([]gh.Issue, error)
}

// RowStore is the target database client.
type RowStore interface {
	RowReader
	CreatePage(ctx context.Context, databaseID string, props notion.Properties) (*notion.Page, error)
	UpdatePage(ctx context.Context, pageID string, props notion.Properties) (*notion.Page, error)
}

// Options configures an Engine.
type Options struct {
	Owner      string
	Repo       string
	DatabaseID string
	// BatchSize bounds concurrent writes. Zero means DefaultBatchSize.
	BatchSize int
}

// Result summarizes one run.
type Result struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	RowsScanned   int
	RowsIndexed   int
	IssuesFetched int
	PullRequests  int
	Created       int
	Updated       int
}

// Engine runs one-way syncs from a repository to a database.
type Engine struct {
	issues IssueLister
	rows   RowStore
	opts   Options
}

// NewEngine creates a new sync engine.
func NewEngine(issues IssueLister, rows RowStore, opts Options) (*Engine, error) {
	if issues == nil || rows == nil {
		return nil, errors.New("sync: issue lister and row store are required")
	}
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("invalid repository %q/%q: owner and repo cannot be empty", opts.Owner, opts.Repo)
	}
	if opts.DatabaseID == "" {
		return nil, errors.New("database id cannot be empty")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Engine{issues: issues, rows: rows, opts: opts}, nil
}

// Run performs one full sync: index existing rows, fetch issues, reconcile,
// then apply creates and updates in batches. Phases run one after another
// and the first error aborts the run. Rows written by batches that finished
// before the error are kept; rerunning picks them up as updates.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "sync.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("github.repo", e.opts.Owner+"/"+e.opts.Repo),
		attribute.String("notion.database", e.opts.DatabaseID),
	)

	res := &Result{StartedAt: time.Now().UTC()}
	err := e.run(ctx, res)
	res.FinishedAt = time.Now().UTC()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	span.SetAttributes(
		attribute.Int("sync.created", res.Created),
		attribute.Int("sync.updated", res.Updated),
	)
	return res, nil
}

func (e *Engine) run(ctx context.Context, res *Result) error {
	var mapping RowMapping
	err := e.phase(ctx, "load rows", func(ctx context.Context) error {
		var err error
		mapping, res.RowsScanned, err = LoadRowMapping(ctx, e.rows, e.opts.DatabaseID)
		res.RowsIndexed = mapping.Len()
		return err
	})
	if err != nil {
		return err
	}
	log.Info("found %d rows mirroring issues in database %s", res.RowsIndexed, e.opts.DatabaseID)

	var issues []RemoteIssue
	err = e.phase(ctx, "fetch issues", func(ctx context.Context) error {
		var err error
		issues, res.PullRequests, err = e.fetchIssues(ctx)
		res.IssuesFetched = len(issues)
		return err
	})
	if err != nil {
		return err
	}
	log.Info("fetched %d issues from %s/%s (%d pull requests skipped)",
		res.IssuesFetched, e.opts.Owner, e.opts.Repo, res.PullRequests)

	plan := Reconcile(issues, mapping)
	log.Info("%d issues to create, %d to update", len(plan.Creates), len(plan.Updates))

	err = e.phase(ctx, "create rows", func(ctx context.Context) error {
		return RunBatches(ctx, plan.Creates, e.opts.BatchSize, e.apply,
			WithLabel("create batch"),
			OnBatch(func(_, size int) { res.Created += size }))
	})
	if err != nil {
		return err
	}

	return e.phase(ctx, "update rows", func(ctx context.Context) error {
		return RunBatches(ctx, plan.Updates, e.opts.BatchSize, e.apply,
			WithLabel("update batch"),
			OnBatch(func(_, size int) { res.Updated += size }))
	})
}

// phase runs fn under its own span and prefixes its error with the phase name.
func (e *Engine) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "sync."+name)
	defer span.End()

	log.Debug("phase %q started", name)
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// fetchIssues lists every issue of the repository, drops pull requests and
// extracts the rest in listing order.
func (e *Engine) fetchIssues(ctx context.Context) ([]RemoteIssue, int, error) {
	raw, err := e.issues.ListIssues(ctx, e.opts.Owner, e.opts.Repo, gh.ListOptions{
		State:   "all",
		PerPage: gh.DefaultPageSize,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list issues: %w", err)
	}

	issues := make([]RemoteIssue, 0, len(raw))
	pulls := 0
	for _, r := range raw {
		if r.IsPullRequest() {
			pulls++
			continue
		}
		issues = append(issues, Extract(r))
	}
	return issues, pulls, nil
}

// apply performs one operation against the database.
func (e *Engine) apply(ctx context.Context, op Operation) error {
	props := Properties(op.Issue)

	switch op.Kind {
	case OpCreate:
		if _, err := e.rows.CreatePage(ctx, e.opts.DatabaseID, props); err != nil {
			return fmt.Errorf("issue #%d: %w", op.Issue.Number, err)
		}
	case OpUpdate:
		if _, err := e.rows.UpdatePage(ctx, op.RowID, props); err != nil {
			return fmt.Errorf("issue #%d: %w", op.Issue.Number, err)
		}
	default:
		return fmt.Errorf("issue #%d: unknown operation %v", op.Issue.Number, op.Kind)
	}

	log.Debug("%s", op)
	return nil
}
