package schema

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watcher-go/watcher-go/src/pkg/sqlexec"
)

var testTables = []TableSchema{
	{Name: "MOVIES", Columns: []Column{
		{Name: "imdbid", Type: "TEXT"},
		{Name: "title", Type: "TEXT"},
		{Name: "url", Type: "TEXT"},
		{Name: "finished_score", Type: "SMALLINT"},
	}},
	{Name: "MARKEDRESULTS", Columns: []Column{
		{Name: "imdbid", Type: "TEXT"},
		{Name: "guid", Type: "TEXT"},
		{Name: "status", Type: "TEXT"},
	}},
}

func openExecutor(t *testing.T) *sqlexec.Executor {
	t.Helper()
	e, err := sqlexec.Open(sqlexec.Options{Path: filepath.Join(t.TempDir(), "schema.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestQuote(t *testing.T) {
	q, err := Quote("MOVIES")
	require.NoError(t, err)
	assert.Equal(t, `"MOVIES"`, q)

	for _, bad := range []string{"", "1abc", `title"; DROP TABLE MOVIES; --`, "a b", "a-b"} {
		_, err := Quote(bad)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, bad)
	}
}

func TestTableSchema_CreateSQL(t *testing.T) {
	assert.Equal(t,
		`CREATE TABLE "MARKEDRESULTS" ("imdbid" TEXT, "guid" TEXT, "status" TEXT)`,
		testTables[1].CreateSQL())
}

func TestNewCatalog(t *testing.T) {
	c, err := NewCatalog(testTables, map[string][]RenameRule{
		"MOVIES": {{Column: "url", Legacy: "tomatourl"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"MOVIES", "MARKEDRESULTS"}, c.Declared().TableNames())
	assert.Equal(t, []RenameRule{{Column: "url", Legacy: "tomatourl"}}, c.Renames("MOVIES"))
	assert.Nil(t, c.Renames("MARKEDRESULTS"))
}

func TestNewCatalog_Invalid(t *testing.T) {
	_, err := NewCatalog(testTables, map[string][]RenameRule{
		"MOVIES": {{Column: "not_declared", Legacy: "old"}},
	})
	assert.Error(t, err)

	_, err = NewCatalog(testTables, map[string][]RenameRule{
		"NOPE": {{Column: "url", Legacy: "tomatourl"}},
	})
	assert.Error(t, err)

	_, err = NewCatalog([]TableSchema{{Name: "bad name", Columns: []Column{{Name: "a", Type: "TEXT"}}}}, nil)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = NewCatalog([]TableSchema{{Name: "T", Columns: []Column{{Name: "a"}, {Name: "A"}}}}, nil)
	assert.Error(t, err)

	_, err = NewCatalog([]TableSchema{{Name: "T"}}, nil)
	assert.Error(t, err)
}

func TestCatalog_DeclaredIsCopy(t *testing.T) {
	c := MustCatalog(testTables, nil)
	d := c.Declared()
	d.Tables[0].Columns[0].Name = "changed"
	again, _ := c.Table("MOVIES")
	assert.Equal(t, "imdbid", again.Columns[0].Name)
}

func TestComputeDiff(t *testing.T) {
	declared := Schema{Tables: testTables}
	live := Schema{Tables: []TableSchema{
		{Name: "MOVIES", Columns: []Column{
			{Name: "imdbid", Type: "TEXT"},
			// 类型不同不算差异
			{Name: "title", Type: "VARCHAR"},
			{Name: "tomatourl", Type: "TEXT"},
		}},
		{Name: "EXTRA", Columns: []Column{{Name: "x", Type: "TEXT"}}},
	}}

	d := ComputeDiff(declared, live)
	require.False(t, d.Empty())
	assert.Equal(t, 5, d.ColumnCount())

	movies, ok := d.Table("MOVIES")
	require.True(t, ok)
	assert.False(t, movies.New)
	assert.Equal(t, []Column{{Name: "url", Type: "TEXT"}, {Name: "finished_score", Type: "SMALLINT"}}, movies.Columns)

	marked, ok := d.Table("MARKEDRESULTS")
	require.True(t, ok)
	assert.True(t, marked.New)
	assert.Len(t, marked.Columns, 3)

	_, ok = d.Table("EXTRA")
	assert.False(t, ok)

	assert.Len(t, d.Existing(), 1)
	assert.Len(t, d.Missing(), 1)
}

func TestComputeDiff_Identical(t *testing.T) {
	declared := Schema{Tables: testTables}
	assert.True(t, ComputeDiff(declared, declared).Empty())
}

func TestIntrospector_LiveMatchesDeclared(t *testing.T) {
	ctx := context.Background()
	e := openExecutor(t)
	for _, tbl := range testTables {
		_, err := e.Execute(ctx, sqlexec.Statement(tbl.CreateSQL()))
		require.NoError(t, err)
	}

	in := NewIntrospector(e)
	live, err := in.Live(ctx)
	require.NoError(t, err)

	movies, ok := live.Table("MOVIES")
	require.True(t, ok)
	assert.Equal(t, testTables[0].Columns, movies.Columns)

	assert.True(t, ComputeDiff(Schema{Tables: testTables}, live).Empty())
}

func TestIntrospector_ColumnsCache(t *testing.T) {
	ctx := context.Background()
	e := openExecutor(t)
	in := NewIntrospector(e)

	cols, err := in.Columns(ctx, "MARKEDRESULTS")
	require.NoError(t, err)
	assert.Empty(t, cols)

	_, err = e.Execute(ctx, sqlexec.Statement(testTables[1].CreateSQL()))
	require.NoError(t, err)

	// 空结果不缓存
	cols, err = in.Columns(ctx, "MARKEDRESULTS")
	require.NoError(t, err)
	assert.Len(t, cols, 3)

	_, err = e.Execute(ctx, sqlexec.Statement(`ALTER TABLE "MARKEDRESULTS" ADD COLUMN extra TEXT`))
	require.NoError(t, err)

	cols, err = in.Columns(ctx, "MARKEDRESULTS")
	require.NoError(t, err)
	assert.Len(t, cols, 3, "served from cache")

	in.Invalidate()
	cols, err = in.Columns(ctx, "MARKEDRESULTS")
	require.NoError(t, err)
	assert.Len(t, cols, 4)
}
