package db

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thesavant42/fix-download-links/internal/models"
)

// setupTestDB creates an in-memory SQLite store for testing
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := New(":memory:", "instances")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

const fixtureJSONL = `
{"_id": {"$oid": "64b000000000000000000001"}, "id": "inst-1", "state": "published", "downloads": {"csv": {"href": "http://download.cmd.onsdigital.co.uk/a.csv", "public": "http://static-cmd.s3.amazonaws.com/a.csv", "private": "s3://private/a.csv", "size": "120"}}}
{"_id": "inst-2", "downloads": {"csv": {"href": "http://download.ons.gov.uk/b.csv"}, "xlsx": {"href": "http://download.cmd.onsdigital.co.uk/b.xlsx"}}}
{"id": "inst-3", "downloads": {"csv": {"href": "http://download.cmd.onsdigital.co.uk/c.csv", "size": 42}}}
{"id": "inst-4", "downloads": {"csv": {"size": "10"}}}
`

func seed(t *testing.T, database *DB) {
	t.Helper()
	n, err := database.Import(context.Background(), strings.NewReader(fixtureJSONL))
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestImportFormats(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "empty input", input: "  \n", want: 0},
		{name: "json array", input: `[{"id": "a"}, {"id": "b"}]`, want: 2},
		{name: "jsonl", input: "{\"id\": \"a\"}\n{\"id\": \"b\"}\n{\"id\": \"c\"}\n", want: 3},
		{name: "extended json oid", input: `{"_id": {"$oid": "abc"}}`, want: 1},
		{name: "missing id", input: `{"downloads": {}}`, wantErr: true},
		{name: "malformed", input: `{"id": `, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database := setupTestDB(t)
			n, err := database.Import(context.Background(), strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Import() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && n != tt.want {
				t.Errorf("Import() = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestImportUpserts(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)

	_, err := database.Import(ctx, strings.NewReader(`{"id": "a", "state": "created"}`))
	require.NoError(t, err)
	_, err = database.Import(ctx, strings.NewReader(`{"id": "a", "state": "published"}`))
	require.NoError(t, err)

	n, err := database.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	inst, err := database.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "published", inst.State)
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	seed(t, database)

	onsdigital := regexp.MustCompile(`onsdigital`)

	tests := []struct {
		name    string
		field   string
		limit   int
		wantIDs []string
	}{
		{name: "all csv matches", field: "downloads.csv.href", limit: 10, wantIDs: []string{"64b000000000000000000001", "inst-3"}},
		{name: "limited", field: "downloads.csv.href", limit: 1, wantIDs: []string{"64b000000000000000000001"}},
		{name: "other format", field: "downloads.xlsx.href", limit: 10, wantIDs: []string{"inst-2"}},
		{name: "absent format", field: "downloads.xls.href", limit: 10, wantIDs: nil},
		{name: "zero limit", field: "downloads.csv.href", limit: 0, wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := database.Find(ctx, models.FindQuery{Field: tt.field, Pattern: onsdigital, Limit: tt.limit})
			require.NoError(t, err)

			var ids []string
			for _, m := range matches {
				ids = append(ids, m.ID.(string))
				if !onsdigital.MatchString(m.Value) {
					t.Errorf("match %v value %q does not match pattern", m.ID, m.Value)
				}
			}
			require.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestFindWithSubstring(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	seed(t, database)

	ons := regexp.MustCompile(`ons`)

	tests := []struct {
		name     string
		contains string
		limit    int
		wantIDs  []string
	}{
		{name: "pattern only", limit: 10, wantIDs: []string{"64b000000000000000000001", "inst-2", "inst-3"}},
		{name: "substring narrows", contains: "//download.cmd.", limit: 10, wantIDs: []string{"64b000000000000000000001", "inst-3"}},
		{name: "limit counts narrowed rows", contains: "/c.csv", limit: 1, wantIDs: []string{"inst-3"}},
		{name: "no row holds substring", contains: "//static-cmd.", limit: 10, wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := models.FindQuery{Field: "downloads.csv.href", Pattern: ons, Contains: tt.contains, Limit: tt.limit}
			matches, err := database.Find(ctx, q)
			require.NoError(t, err)

			var ids []string
			for _, m := range matches {
				ids = append(ids, m.ID.(string))
			}
			require.Equal(t, tt.wantIDs, ids)

			n, err := database.Count(ctx, models.CountQuery{Field: q.Field, Pattern: ons, Contains: tt.contains})
			require.NoError(t, err)
			if tt.limit >= 10 {
				require.Equal(t, int64(len(tt.wantIDs)), n)
			}
		})
	}
}

func TestFindIgnoresNonStringValues(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	seed(t, database)

	matches, err := database.Find(ctx, models.FindQuery{Field: "downloads.csv.size", Pattern: regexp.MustCompile(`\d`), Limit: 10})
	require.NoError(t, err)
	// inst-3 stores size as a number and is skipped
	require.Len(t, matches, 2)
}

func TestFindRequiresPattern(t *testing.T) {
	database := setupTestDB(t)
	_, err := database.Find(context.Background(), models.FindQuery{Field: "downloads.csv.href", Limit: 1})
	require.Error(t, err)
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	seed(t, database)

	n, err := database.Count(ctx, models.CountQuery{Field: "downloads.csv.href", Pattern: regexp.MustCompile(`onsdigital`)})
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	n, err = database.Count(ctx, models.CountQuery{Field: "downloads.csv.public", Pattern: regexp.MustCompile(`static-cmd\.s3`)})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestUpdateLink(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	seed(t, database)

	ok, err := database.UpdateLink(ctx, models.Update{
		ID:    "64b000000000000000000001",
		Field: "downloads.csv.href",
		Old:   "http://download.cmd.onsdigital.co.uk/a.csv",
		New:   "http://download.ons.gov.uk/a.csv",
	})
	require.NoError(t, err)
	require.True(t, ok)

	inst, err := database.Get(ctx, "64b000000000000000000001")
	require.NoError(t, err)
	csv := inst.Downloads["csv"]
	require.Equal(t, "http://download.ons.gov.uk/a.csv", csv.HRef)
	// sibling fields are untouched
	require.Equal(t, "http://static-cmd.s3.amazonaws.com/a.csv", csv.Public)
	require.Equal(t, "s3://private/a.csv", csv.Private)
	require.Equal(t, "120", csv.Size)
	require.Equal(t, "published", inst.State)
}

func TestUpdateLinkOptimisticCheck(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	seed(t, database)

	tests := []struct {
		name string
		u    models.Update
	}{
		{
			name: "stale old value",
			u: models.Update{
				ID: "inst-3", Field: "downloads.csv.href",
				Old: "http://download.cmd.onsdigital.co.uk/other.csv", New: "x",
			},
		},
		{
			name: "same value on another document",
			u: models.Update{
				ID: "inst-2", Field: "downloads.csv.href",
				Old: "http://download.cmd.onsdigital.co.uk/c.csv", New: "x",
			},
		},
		{
			name: "unknown id",
			u: models.Update{
				ID: "missing", Field: "downloads.csv.href",
				Old: "http://download.cmd.onsdigital.co.uk/c.csv", New: "x",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := database.UpdateLink(ctx, tt.u)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}

	inst, err := database.Get(ctx, "inst-3")
	require.NoError(t, err)
	require.Equal(t, "http://download.cmd.onsdigital.co.uk/c.csv", inst.Downloads["csv"].HRef)
}

func TestUpdateLinkRejectsForeignID(t *testing.T) {
	database := setupTestDB(t)
	_, err := database.UpdateLink(context.Background(), models.Update{ID: 42, Field: "downloads.csv.href"})
	require.Error(t, err)
}

func TestGetNotFound(t *testing.T) {
	database := setupTestDB(t)
	_, err := database.Get(context.Background(), "nope")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestNewRejectsBadCollection(t *testing.T) {
	_, err := New(":memory:", "instances; DROP TABLE x")
	require.ErrorIs(t, err, ErrInvalidCollection)
}
