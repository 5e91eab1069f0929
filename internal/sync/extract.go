package sync

import (
	"strings"
	"time"

	"github.com/JohanCodinha/issuesync/internal/gh"
)

// MaxDescriptionLength is the number of characters of an issue body kept in
// the Description column. Notion caps a rich text item at 2000 characters.
const MaxDescriptionLength = 1999

// Classification values written to the Type column.
const (
	TypeBug      = "Bug"
	TypeTechDebt = "Tech Debt"
)

// Priority values written to the Priority column.
const (
	PriorityLow  = "Low"
	PriorityHigh = "High"
)

// labelTag pairs a recognized label name with the tag it derives.
type labelTag struct {
	label string
	tag   string
}

// Recognized labels, in precedence order: the first entry whose label is
// present wins, whatever the order of the issue's labels.
var (
	typeLabels = []labelTag{
		{label: "bug", tag: TypeBug},
		{label: "tech debt", tag: TypeTechDebt},
	}
	priorityLabels = []labelTag{
		{label: "low priority", tag: PriorityLow},
		{label: "high priority", tag: PriorityHigh},
	}
)

// RemoteIssue is the compact form of a GitHub issue that gets mirrored into a row.
// Empty Type, Priority and Description mean the attribute is absent.
type RemoteIssue struct {
	Number      int
	Title       string
	State       string
	URL         string
	CreatedAt   time.Time
	Type        string
	Priority    string
	Description string
}

// Extract normalizes a raw GitHub issue. Pull requests must be filtered out
// before calling it.
func Extract(issue gh.Issue) RemoteIssue {
	labels := normalizeLabels(issue.LabelNames())

	out := RemoteIssue{
		Number:    issue.Number,
		Title:     issue.Title,
		State:     issue.State,
		URL:       issue.HTMLURL,
		CreatedAt: issue.CreatedAt,
		Type:      matchLabel(labels, typeLabels),
		Priority:  matchLabel(labels, priorityLabels),
	}
	if issue.Body != nil {
		out.Description = truncate(*issue.Body, MaxDescriptionLength)
	}
	return out
}

func normalizeLabels(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(strings.TrimSpace(n))] = true
	}
	return set
}

func matchLabel(labels map[string]bool, candidates []labelTag) string {
	for _, c := range candidates {
		if labels[c.label] {
			return c.tag
		}
	}
	return ""
}

// truncate keeps the first limit characters of s without splitting a rune.
func truncate(s string, limit int) string {
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
