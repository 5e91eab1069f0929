package logger

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogs resets the default logger to level and a buffer, restoring
// stderr and closing any log file when the test ends.
func captureLogs(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		Close()
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"  DEBUG  ", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"ERROR", LevelError, false},
		{"loud", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}
}

func TestLineFormat(t *testing.T) {
	buf := captureLogs(t, LevelDebug)

	For("sync").Debug("phase %q started", "load rows")

	pattern := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z DEBUG sync: phase "load rows" started\n$`)
	assert.Regexp(t, pattern, buf.String())
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLogs(t, LevelWarn)

	log := For("notion")
	log.Debug("queried database")
	log.Info("created page")
	log.Warn("rate limit reached")
	log.Error("request failed")

	output := buf.String()
	assert.NotContains(t, output, "queried database")
	assert.NotContains(t, output, "created page")
	assert.Contains(t, output, "WARN notion: rate limit reached")
	assert.Contains(t, output, "ERROR notion: request failed")
}

func TestComponentPrefix(t *testing.T) {
	buf := captureLogs(t, LevelDebug)

	For("notion").Info("created page %s", "abc")
	For("").Warn("bare message")
	Info("package level")

	output := buf.String()
	assert.Contains(t, output, "INFO notion: created page abc")
	assert.Contains(t, output, "WARN bare message")
	assert.Contains(t, output, "INFO package level")
}

func TestConfigure(t *testing.T) {
	buf := captureLogs(t, LevelInfo)
	logPath := filepath.Join(t.TempDir(), "sync.log")

	require.NoError(t, Configure("debug", logPath))
	For("github").Debug("fetched page %d", 2)
	Close()

	assert.Contains(t, buf.String(), "DEBUG github: fetched page 2")
	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "DEBUG github: fetched page 2")

	assert.Error(t, Configure("loud", ""))
}

func TestConfigure_EmptyKeepsDefaults(t *testing.T) {
	buf := captureLogs(t, LevelWarn)

	require.NoError(t, Configure("", ""))
	Info("hidden")
	Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetLogFile_MissingDirectory(t *testing.T) {
	captureLogs(t, LevelInfo)

	err := SetLogFile(filepath.Join(t.TempDir(), "missing", "sync.log"))
	assert.Error(t, err)
}

// Batches log from many goroutines at once; lines must never interleave.
func TestConcurrentComponentLogging(t *testing.T) {
	buf := captureLogs(t, LevelDebug)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			log := For(fmt.Sprintf("worker%d", id))
			for j := 0; j < 50; j++ {
				log.Debug("update #%d", j)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 500)
	for _, line := range lines {
		assert.Regexp(t, `DEBUG worker\d: update #\d+$`, line)
	}
}
