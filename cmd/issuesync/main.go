// Package main provides the CLI entrypoint for issuesync.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JohanCodinha/issuesync/internal/config"
	"github.com/JohanCodinha/issuesync/internal/gh"
	"github.com/JohanCodinha/issuesync/internal/journal"
	"github.com/JohanCodinha/issuesync/internal/logger"
	"github.com/JohanCodinha/issuesync/internal/notion"
	"github.com/JohanCodinha/issuesync/internal/sync"
	"github.com/JohanCodinha/issuesync/internal/telemetry"
)

var version = "dev"

// Client constructors, replaced in tests to point at mock servers.
var (
	newIssueLister = func(token string) sync.IssueLister { return gh.New(token) }
	newRowStore    = func(token string) sync.RowStore { return notion.New(token) }
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "issuesync",
		Short: "Sync GitHub issues into a Notion database",
		Long: `issuesync copies every issue of a GitHub repository into a Notion
database, creating a row for each new issue and refreshing the rows of
issues it has seen before. Pull requests are skipped.

Configuration comes from the environment:
  NOTION_DATABASE_ID, GITHUB_REPO_OWNER, GITHUB_REPO_NAME, GITHUB_KEY, NOTION_KEY`,
		Args:          cobra.NoArgs,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reportErr(cmd, runSync(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr()))
		},
	}
	root.AddCommand(newRunsCmd())
	return root
}

func newRunsCmd() *cobra.Command {
	var (
		limit int
		repo  string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent sync runs from the journal",
		Long: `List recent sync runs recorded in the journal as YAML, newest first.

The journal lives at ~/.cache/issuesync/journal.db unless ISSUESYNC_JOURNAL
says otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reportErr(cmd, listRuns(cmd.OutOrStdout(), repo, limit))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of runs to show")
	cmd.Flags().StringVar(&repo, "repo", "", "only show runs for owner/repo")
	return cmd
}

func reportErr(cmd *cobra.Command, err error) error {
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
	}
	return err
}

func runSync(ctx context.Context, out, errOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.SetOutput(errOut)
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	defer logger.Close()

	if err := telemetry.Init(ctx, "issuesync", version, telemetry.Options{
		Enabled: cfg.OtelEnabled,
		Stdout:  cfg.OtelStdout,
	}); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown: %v", err)
		}
	}()

	engine, err := sync.NewEngine(newIssueLister(cfg.GitHubKey), newRowStore(cfg.NotionKey), sync.Options{
		Owner:      cfg.RepoOwner,
		Repo:       cfg.RepoName,
		DatabaseID: cfg.DatabaseID,
		BatchSize:  cfg.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create sync engine: %w", err)
	}

	logLastSuccess(cfg)
	fmt.Fprintf(out, "syncing issues from %s...\n", cfg.Repo())
	res, runErr := engine.Run(ctx)
	record(cfg, res, runErr)
	if runErr != nil {
		return fmt.Errorf("sync failed: %w", runErr)
	}

	fmt.Fprintf(out, "created %d rows, updated %d rows (%d pull requests skipped)\n",
		res.Created, res.Updated, res.PullRequests)
	return nil
}

// record writes the run to the journal. Journal problems are logged and
// never fail the sync.
func record(cfg *config.Config, res *sync.Result, runErr error) {
	if cfg.JournalPath == "" || res == nil {
		return
	}

	if err := os.MkdirAll(filepath.Dir(cfg.JournalPath), 0755); err != nil {
		logger.Warn("failed to create journal directory: %v", err)
		return
	}
	db, err := journal.InitDB(cfg.JournalPath)
	if err != nil {
		logger.Warn("failed to open journal: %v", err)
		return
	}
	defer db.Close()

	run := journal.Run{
		Repo:          cfg.Repo(),
		DatabaseID:    cfg.DatabaseID,
		StartedAt:     res.StartedAt,
		FinishedAt:    res.FinishedAt,
		RowsIndexed:   res.RowsIndexed,
		IssuesFetched: res.IssuesFetched,
		PullRequests:  res.PullRequests,
		Created:       res.Created,
		Updated:       res.Updated,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if _, err := db.Record(run); err != nil {
		logger.Warn("failed to record run: %v", err)
	}
}

// logLastSuccess reports when the repository last synced cleanly, if ever.
func logLastSuccess(cfg *config.Config) {
	if cfg.JournalPath == "" {
		return
	}
	if _, err := os.Stat(cfg.JournalPath); err != nil {
		return
	}
	db, err := journal.InitDB(cfg.JournalPath)
	if err != nil {
		logger.Warn("failed to open journal: %v", err)
		return
	}
	defer db.Close()

	last, err := db.LastSuccess(cfg.Repo())
	if err != nil {
		logger.Warn("failed to read journal: %v", err)
		return
	}
	if last != nil {
		logger.Info("last successful sync of %s finished %s", cfg.Repo(), last.FinishedAt.Format(time.RFC3339))
	}
}

func listRuns(out io.Writer, repo string, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("invalid limit %d: must be positive", limit)
	}

	path, err := config.JournalPath()
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New("journal is disabled (ISSUESYNC_JOURNAL=off)")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}

	db, err := journal.InitDB(path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer db.Close()

	runs, err := db.Recent(repo, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(runs); err != nil {
		return fmt.Errorf("failed to encode runs: %w", err)
	}
	return enc.Close()
}
