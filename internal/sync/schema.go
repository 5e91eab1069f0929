package sync

// Column is the name of a column in the target database.
type Column string

// Columns of the target database. The mapper and the row index loader both
// read these, so a renamed column only changes here.
const (
	ColumnName        Column = "Name"
	ColumnIssueNumber Column = "Issue Number"
	ColumnState       Column = "State"
	ColumnIssueURL    Column = "Issue URL"
	ColumnCreatedAt   Column = "Created At"
	ColumnPriority    Column = "Priority"
	ColumnType        Column = "Type"
	ColumnDescription Column = "Description"
)

// IdentifierColumn holds the issue number that keys a row to its issue.
const IdentifierColumn = ColumnIssueNumber

// RequiredColumns are written on every create and update.
var RequiredColumns = []Column{
	ColumnName,
	ColumnIssueNumber,
	ColumnState,
	ColumnIssueURL,
	ColumnCreatedAt,
}

// OptionalColumns are written only when the issue carries a value for them.
var OptionalColumns = []Column{
	ColumnPriority,
	ColumnType,
	ColumnDescription,
}
