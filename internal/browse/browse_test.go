package browse

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/pgedit/internal/database/dbtest"
	"github.com/koustreak/pgedit/internal/schema"
)

func twoColumnTable() *schema.TableMetadata {
	return &schema.TableMetadata{
		Schema: "public",
		Table:  "people",
		Columns: []schema.ColumnDefinition{
			{Name: "id", Type: "integer"},
			{Name: "name", Type: "text"},
		},
		PrimaryKey: schema.PrimaryKeyInfo{Columns: []string{"id"}},
	}
}

func TestWhere_FilterAndSearch(t *testing.T) {
	where, args, err := NewSelect(twoColumnTable()).
		Filters(map[string]string{"name": "jo"}).
		Search("42").
		Where()
	require.NoError(t, err)

	assert.Equal(t,
		`(CAST("name" AS TEXT) ILIKE $1) AND (CAST("id" AS TEXT) ILIKE $2 OR CAST("name" AS TEXT) ILIKE $2)`,
		where)
	assert.Equal(t, []any{"%jo%", "%42%"}, args)
}

func TestWhere_IgnoresUnknownAndEmptyFilters(t *testing.T) {
	where, args, err := NewSelect(twoColumnTable()).
		Filters(map[string]string{"dropped_col": "x", "name": "", "id": "7"}).
		Where()
	require.NoError(t, err)

	assert.Equal(t, `(CAST("id" AS TEXT) ILIKE $1)`, where)
	assert.Equal(t, []any{"%7%"}, args)
}

func TestBuildPageQuery(t *testing.T) {
	tests := []struct {
		name      string
		state     ViewState
		wantPage  string
		wantArgs  []any
		wantCount string
	}{
		{
			name:      "defaults",
			state:     ViewState{},
			wantPage:  `SELECT "id", "name" FROM "public"."people" LIMIT $1 OFFSET $2`,
			wantArgs:  []any{100, 0},
			wantCount: `SELECT COUNT(*) FROM "public"."people"`,
		},
		{
			name:      "sorted desc, third page",
			state:     ViewState{Page: 2, PageSize: 25, Sort: &Sort{Column: "name", Direction: Desc}},
			wantPage:  `SELECT "id", "name" FROM "public"."people" ORDER BY "name" DESC LIMIT $1 OFFSET $2`,
			wantArgs:  []any{25, 50},
			wantCount: `SELECT COUNT(*) FROM "public"."people"`,
		},
		{
			name:      "stale sort column falls back to no sort",
			state:     ViewState{Sort: &Sort{Column: "renamed", Direction: Asc}},
			wantPage:  `SELECT "id", "name" FROM "public"."people" LIMIT $1 OFFSET $2`,
			wantArgs:  []any{100, 0},
			wantCount: `SELECT COUNT(*) FROM "public"."people"`,
		},
		{
			name:  "filter shares params with count",
			state: ViewState{Filters: map[string]string{"name": "jo"}, Search: "42"},
			wantPage: `SELECT "id", "name" FROM "public"."people" WHERE (CAST("name" AS TEXT) ILIKE $1) AND ` +
				`(CAST("id" AS TEXT) ILIKE $2 OR CAST("name" AS TEXT) ILIKE $2) LIMIT $3 OFFSET $4`,
			wantArgs: []any{"%jo%", "%42%", 100, 0},
			wantCount: `SELECT COUNT(*) FROM "public"."people" WHERE (CAST("name" AS TEXT) ILIKE $1) AND ` +
				`(CAST("id" AS TEXT) ILIKE $2 OR CAST("name" AS TEXT) ILIKE $2)`,
		},
		{
			name:      "oversized page clamps",
			state:     ViewState{Page: 1, PageSize: 5000},
			wantPage:  `SELECT "id", "name" FROM "public"."people" LIMIT $1 OFFSET $2`,
			wantArgs:  []any{1000, 1000},
			wantCount: `SELECT COUNT(*) FROM "public"."people"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, count, err := BuildPageQuery(twoColumnTable(), tt.state)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page.SQL)
			assert.Equal(t, tt.wantArgs, page.Args)
			assert.Equal(t, tt.wantCount, count.SQL)
			assert.Len(t, count.Args, len(tt.wantArgs)-2)
		})
	}
}

func TestParseDirection(t *testing.T) {
	d, ok := ParseDirection("desc")
	assert.True(t, ok)
	assert.Equal(t, Desc, d)

	_, ok = ParseDirection("sideways")
	assert.False(t, ok)
}

func TestNormalizeRow(t *testing.T) {
	md := &schema.TableMetadata{
		Schema: "public",
		Table:  "docs",
		Columns: []schema.ColumnDefinition{
			{Name: "meta", Type: "jsonb"},
			{Name: "bad_meta", Type: "json"},
			{Name: "tags", Type: "text[]"},
			{Name: "scores", Type: "integer[]"},
			{Name: "broken", Type: "integer[]"},
			{Name: "ref", Type: "uuid"},
			{Name: "title", Type: "text"},
		},
	}
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	got := NormalizeRow(md, map[string]any{
		"meta":     `{"a":1}`,
		"bad_meta": `{not json`,
		"tags":     `{x,"y,z",NULL}`,
		"scores":   `{1,2}`,
		"broken":   `{1,2`,
		"ref":      [16]byte(id),
		"title":    `{"looks":"like json"}`,
		"extra":    "kept",
	})

	assert.Equal(t, map[string]any{"a": float64(1)}, got["meta"])
	assert.Equal(t, `{not json`, got["bad_meta"], "failed conversion keeps the raw value")
	assert.Equal(t, []any{"x", "y,z", nil}, got["tags"])
	assert.Equal(t, []any{int64(1), int64(2)}, got["scores"])
	assert.Equal(t, `{1,2`, got["broken"])
	assert.Equal(t, id.String(), got["ref"])
	assert.Equal(t, `{"looks":"like json"}`, got["title"])
	assert.Equal(t, "kept", got["extra"])
}

func TestNormalizeRow_NativeValuesPassThrough(t *testing.T) {
	md := &schema.TableMetadata{Columns: []schema.ColumnDefinition{
		{Name: "meta", Type: "jsonb"},
		{Name: "tags", Type: "text[]"},
	}}
	native := map[string]any{"k": "v"}

	got := NormalizeRow(md, map[string]any{"meta": native, "tags": []any{"a"}})
	assert.Equal(t, native, got["meta"])
	assert.Equal(t, []any{"a"}, got["tags"])
}

func TestLoadPage(t *testing.T) {
	h := dbtest.New().
		On("COUNT(*)", []string{"count"}, []any{int64(2)}).
		On(`FROM "public"."people"`, []string{"id", "name"},
			[]any{int64(1), "Jo"},
			[]any{int64(2), "Joe"},
		)

	st := ViewState{Page: 0, Filters: map[string]string{"name": "jo"}}
	page, err := LoadPage(context.Background(), h, twoColumnTable(), st)
	require.NoError(t, err)

	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 100, page.PageSize)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "Joe", page.Rows[1]["name"])

	require.Len(t, h.Queries, 2)
	assert.Equal(t, []any{"%jo%", 100, 0}, h.Queries[0].Args)
	assert.Equal(t, []any{"%jo%"}, h.Queries[1].Args)
}
