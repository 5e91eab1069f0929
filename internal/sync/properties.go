package sync

import (
	"github.com/JohanCodinha/issuesync/internal/notion"
)

// Properties builds the column values for the issue's row. Optional columns
// are left out entirely when the issue has no value for them, so writing the
// row never clears a value someone set by hand.
func Properties(issue RemoteIssue) notion.Properties {
	props := notion.Properties{
		string(ColumnName):        notion.TitleValue(issue.Title),
		string(ColumnIssueNumber): notion.NumberValue(float64(issue.Number)),
		string(ColumnState):       notion.SelectValue(issue.State),
		string(ColumnIssueURL):    notion.URLValue(issue.URL),
		string(ColumnCreatedAt):   notion.DateOnlyValue(issue.CreatedAt),
	}

	if issue.Priority != "" {
		props[string(ColumnPriority)] = notion.SelectValue(issue.Priority)
	}
	if issue.Type != "" {
		props[string(ColumnType)] = notion.SelectValue(issue.Type)
	}
	if issue.Description != "" {
		props[string(ColumnDescription)] = notion.RichTextValue(issue.Description)
	}

	return props
}
