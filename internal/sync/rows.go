package sync

import (
	"context"
	"fmt"

	"github.com/JohanCodinha/issuesync/internal/notion"
)

// RowReader is the read side of the target database.
type RowReader interface {
	QueryDatabase(ctx context.Context, databaseID, cursor string) (*notion.QueryResult, error)
	GetPageProperty(ctx context.Context, pageID, propertyID string) (*notion.PropertyItem, error)
}

// SchemaError reports a row that lacks a column the sync depends on.
type SchemaError struct {
	Column Column
	RowID  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("row %s has no %q column: database schema does not match", e.RowID, e.Column)
}

// LoadRowMapping walks every row of the database and maps the issue number
// stored in the identifier column to the row id. It returns the mapping and
// the number of rows scanned. Rows without a number are skipped; when two
// rows carry the same number the one listed last wins.
func LoadRowMapping(ctx context.Context, store RowReader, databaseID string) (RowMapping, int, error) {
	rows := make(map[int]string)
	scanned := 0
	cursor := ""

	for {
		result, err := store.QueryDatabase(ctx, databaseID, cursor)
		if err != nil {
			return RowMapping{}, scanned, err
		}

		for _, page := range result.Results {
			scanned++
			number, ok, err := issueNumberOf(ctx, store, page)
			if err != nil {
				return RowMapping{}, scanned, err
			}
			if !ok {
				log.Warn("row %s has no issue number, skipping", page.ID)
				continue
			}
			if prev, dup := rows[number]; dup {
				log.Warn("issue #%d is mirrored by rows %s and %s, using %s", number, prev, page.ID, page.ID)
			}
			rows[number] = page.ID
		}

		if !result.HasMore || result.NextCursor == nil || *result.NextCursor == "" {
			break
		}
		cursor = *result.NextCursor
	}

	log.Debug("indexed %d of %d rows", len(rows), scanned)
	return NewRowMapping(rows), scanned, nil
}

// issueNumberOf resolves the identifier column of a row through the page
// property endpoint.
func issueNumberOf(ctx context.Context, store RowReader, page notion.Page) (int, bool, error) {
	prop, ok := page.Properties[string(IdentifierColumn)]
	if !ok || prop.ID == "" {
		return 0, false, &SchemaError{Column: IdentifierColumn, RowID: page.ID}
	}

	item, err := store.GetPageProperty(ctx, page.ID, prop.ID)
	if err != nil {
		return 0, false, err
	}
	if item.Number == nil {
		return 0, false, nil
	}
	return int(*item.Number), true, nil
}
