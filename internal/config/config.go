// Package config loads issuesync settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Required environment variables.
const (
	EnvDatabaseID = "NOTION_DATABASE_ID"
	EnvRepoOwner  = "GITHUB_REPO_OWNER"
	EnvRepoName   = "GITHUB_REPO_NAME"
	EnvGitHubKey  = "GITHUB_KEY"
	EnvNotionKey  = "NOTION_KEY"
)

// Optional environment variables.
const (
	EnvLogLevel    = "ISSUESYNC_LOG_LEVEL"
	EnvLogFile     = "ISSUESYNC_LOG_FILE"
	EnvBatchSize   = "ISSUESYNC_BATCH_SIZE"
	EnvJournal     = "ISSUESYNC_JOURNAL"
	EnvOtelEnabled = "ISSUESYNC_OTEL_ENABLED"
	EnvOtelStdout  = "ISSUESYNC_OTEL_STDOUT"
)

// JournalOff disables the run journal when used as the ISSUESYNC_JOURNAL value.
const JournalOff = "off"

// defaultBatchSize mirrors sync.DefaultBatchSize without importing it.
const defaultBatchSize = 10

var (
	required = []string{EnvDatabaseID, EnvRepoOwner, EnvRepoName, EnvGitHubKey, EnvNotionKey}
	optional = []string{EnvLogLevel, EnvLogFile, EnvBatchSize, EnvJournal, EnvOtelEnabled, EnvOtelStdout}
)

// Config holds everything a sync run needs.
type Config struct {
	DatabaseID string
	RepoOwner  string
	RepoName   string
	GitHubKey  string
	NotionKey  string

	LogLevel    string
	LogFile     string
	BatchSize   int
	JournalPath string // empty when the journal is disabled
	OtelEnabled bool
	OtelStdout  bool
}

// Repo returns "owner/name".
func (c *Config) Repo() string {
	return c.RepoOwner + "/" + c.RepoName
}

// MissingError reports a required variable that is unset or empty.
type MissingError struct {
	Variable string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required environment variable %s", e.Variable)
}

// newViper binds every key to the environment variable of the same name.
func newViper() (*viper.Viper, error) {
	v := viper.New()
	for _, key := range append(append([]string{}, required...), optional...) {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	v.SetDefault(EnvLogLevel, "info")
	v.SetDefault(EnvBatchSize, defaultBatchSize)
	return v, nil
}

// Load reads the configuration from the environment. The first missing
// required variable is returned as a *MissingError.
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	for _, key := range required {
		if strings.TrimSpace(v.GetString(key)) == "" {
			return nil, &MissingError{Variable: key}
		}
	}

	cfg := &Config{
		DatabaseID:  strings.TrimSpace(v.GetString(EnvDatabaseID)),
		RepoOwner:   strings.TrimSpace(v.GetString(EnvRepoOwner)),
		RepoName:    strings.TrimSpace(v.GetString(EnvRepoName)),
		GitHubKey:   strings.TrimSpace(v.GetString(EnvGitHubKey)),
		NotionKey:   strings.TrimSpace(v.GetString(EnvNotionKey)),
		LogLevel:    v.GetString(EnvLogLevel),
		LogFile:     v.GetString(EnvLogFile),
		OtelEnabled: v.GetBool(EnvOtelEnabled),
		OtelStdout:  v.GetBool(EnvOtelStdout),
	}

	size := v.GetInt(EnvBatchSize)
	if size <= 0 {
		return nil, fmt.Errorf("invalid %s %q: must be a positive integer", EnvBatchSize, v.GetString(EnvBatchSize))
	}
	cfg.BatchSize = size

	journal, err := journalPath(v.GetString(EnvJournal))
	if err != nil {
		return nil, err
	}
	cfg.JournalPath = journal

	return cfg, nil
}

// JournalPath reads only ISSUESYNC_JOURNAL, for commands that inspect the
// journal without syncing.
func JournalPath() (string, error) {
	v, err := newViper()
	if err != nil {
		return "", err
	}
	return journalPath(v.GetString(EnvJournal))
}

// journalPath resolves the journal location: ~/.cache/issuesync/journal.db
// by default, nothing when set to "off", and a leading ~ is expanded.
func journalPath(value string) (string, error) {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, JournalOff) {
		return "", nil
	}

	if value != "" && value != "~" && !strings.HasPrefix(value, "~/") {
		return value, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if value == "" {
		return filepath.Join(home, ".cache", "issuesync", "journal.db"), nil
	}
	return filepath.Join(home, strings.TrimPrefix(value, "~")), nil
}
