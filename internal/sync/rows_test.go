package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohanCodinha/issuesync/internal/notion"
)

func TestLoadRowMapping_Paginates(t *testing.T) {
	store := newFakeStore()
	store.pageSize = 2
	store.addRow("row-a", 1)
	store.addRow("row-b", 2)
	store.addRow("row-c", 3)
	store.addRow("row-d", 4)
	store.addRow("row-e", 5)

	mapping, scanned, err := LoadRowMapping(context.Background(), store, "db")
	require.NoError(t, err)

	assert.Equal(t, 5, scanned)
	assert.Equal(t, 5, mapping.Len())
	assert.Equal(t, 3, store.queries)
	assert.Equal(t, []string{"", "2", "4"}, store.cursors)

	id, ok := mapping.Lookup(3)
	assert.True(t, ok)
	assert.Equal(t, "row-c", id)
}

func TestLoadRowMapping_EmptyDatabase(t *testing.T) {
	mapping, scanned, err := LoadRowMapping(context.Background(), newFakeStore(), "db")
	require.NoError(t, err)
	assert.Equal(t, 0, scanned)
	assert.Equal(t, 0, mapping.Len())
}

func TestLoadRowMapping_SkipsRowsWithoutNumber(t *testing.T) {
	store := newFakeStore()
	store.addRow("row-a", 1)
	store.rows = append(store.rows, notion.Page{
		ID: "manual",
		Properties: notion.Properties{
			string(ColumnIssueNumber): {ID: "num", Type: notion.TypeNumber},
		},
	})

	mapping, scanned, err := LoadRowMapping(context.Background(), store, "db")
	require.NoError(t, err)
	assert.Equal(t, 2, scanned)
	assert.Equal(t, 1, mapping.Len())
}

func TestLoadRowMapping_DuplicateNumberLastWins(t *testing.T) {
	store := newFakeStore()
	store.addRow("first", 8)
	store.addRow("second", 8)

	mapping, _, err := LoadRowMapping(context.Background(), store, "db")
	require.NoError(t, err)

	id, ok := mapping.Lookup(8)
	require.True(t, ok)
	assert.Equal(t, "second", id)
}

func TestLoadRowMapping_MissingColumnIsSchemaError(t *testing.T) {
	store := newFakeStore()
	store.rows = append(store.rows, notion.Page{
		ID:         "odd-row",
		Properties: notion.Properties{"Ticket": notion.NumberValue(1)},
	})

	_, _, err := LoadRowMapping(context.Background(), store, "db")
	require.Error(t, err)

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, ColumnIssueNumber, schemaErr.Column)
	assert.Equal(t, "odd-row", schemaErr.RowID)
	assert.Contains(t, err.Error(), `"Issue Number"`)
}

func TestLoadRowMapping_PropagatesErrors(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		store := newFakeStore()
		store.queryErr = errors.New("unauthorized")

		_, _, err := LoadRowMapping(context.Background(), store, "db")
		assert.ErrorIs(t, err, store.queryErr)
	})

	t.Run("property", func(t *testing.T) {
		store := newFakeStore()
		store.addRow("row-a", 1)
		store.propertyErr = errors.New("rate limited")

		_, _, err := LoadRowMapping(context.Background(), store, "db")
		assert.ErrorIs(t, err, store.propertyErr)
	})
}
