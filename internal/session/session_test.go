package session

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/pgedit/internal/changeset"
	"github.com/koustreak/pgedit/internal/database"
	"github.com/koustreak/pgedit/internal/database/dbtest"
	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/executor"
	"github.com/koustreak/pgedit/internal/schema/schematest"
)

func usersHandle() *dbtest.Handle {
	return dbtest.New().
		On("COUNT(*)", []string{"count"}, []any{int64(2)}).
		On(`FROM "public"."users"`, []string{"id", "name", "role"},
			[]any{int64(1), "Ann", "admin"},
			[]any{int64(2), "Bob", "member"},
		)
}

func newManager(h *dbtest.Handle, src *schematest.Source) *Manager {
	p := database.ClientProviderFunc(func(context.Context, string) database.Handle {
		if h == nil {
			return nil
		}
		return h
	})
	return NewManager(p, src, executor.New(p, src), WithPageSize(50))
}

func TestManager_OpenAndClose(t *testing.T) {
	src := schematest.NewSource(schematest.Users())
	m := newManager(usersHandle(), src)

	v, md, err := m.Open(context.Background(), "local", "public", "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "role"}, md.ColumnNames())
	assert.Equal(t, []string{v.ID}, m.IDs())

	got, err := m.Get(v.ID)
	require.NoError(t, err)
	assert.Same(t, v, got)

	require.NoError(t, m.Close(v.ID))
	_, err = m.Get(v.ID)
	assert.True(t, errs.IsNotFound(err))
	assert.True(t, errs.IsNotFound(m.Close(v.ID)))

	_, err = v.Refresh(context.Background())
	assert.True(t, errs.IsNotFound(err), "closed view rejects further calls")
}

func TestManager_OpenUnknownTable(t *testing.T) {
	m := newManager(usersHandle(), schematest.NewSource())

	_, _, err := m.Open(context.Background(), "local", "public", "missing")
	assert.True(t, errs.IsNotFound(err))
	assert.Empty(t, m.IDs())

	_, _, err = m.Open(context.Background(), "local", "", "users")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestView_StateTransitions(t *testing.T) {
	h := usersHandle()
	src := schematest.NewSource(schematest.Users())
	m := newManager(h, src)
	ctx := context.Background()

	v, _, err := m.Open(ctx, "local", "public", "users")
	require.NoError(t, err)

	page, err := v.LoadPage(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 50, page.PageSize)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, []any{50, 150}, h.Queries[len(h.Queries)-2].Args)

	desc := "desc"
	page, err = v.ApplySort(ctx, "name", &desc)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Page, "sorting returns to the first page")
	assert.Contains(t, h.Queries[len(h.Queries)-2].SQL, `ORDER BY "name" DESC`)

	_, err = v.ApplyFilters(ctx, map[string]string{"role": "adm"})
	require.NoError(t, err)
	_, err = v.Search(ctx, "an")
	require.NoError(t, err)

	st := v.State()
	assert.Equal(t, map[string]string{"role": "adm"}, st.Filters)
	assert.Equal(t, "an", st.Search)
	require.NotNil(t, st.Sort)
	assert.Equal(t, "name", st.Sort.Column)

	_, err = v.ApplySort(ctx, "name", nil)
	require.NoError(t, err)
	assert.Nil(t, v.State().Sort)
	assert.NotContains(t, h.Queries[len(h.Queries)-2].SQL, "ORDER BY")

	bad := "sideways"
	_, err = v.ApplySort(ctx, "name", &bad)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = v.LoadPage(ctx, -1)
	assert.True(t, errs.IsInvalidInput(err))

	assert.Equal(t, 1, src.Calls(), "metadata is fetched once per view")
}

func TestView_StateIsCopied(t *testing.T) {
	m := newManager(usersHandle(), schematest.NewSource(schematest.Users()))
	v, _, err := m.Open(context.Background(), "local", "public", "users")
	require.NoError(t, err)

	filters := map[string]string{"name": "a"}
	_, err = v.ApplyFilters(context.Background(), filters)
	require.NoError(t, err)
	filters["name"] = "changed"

	st := v.State()
	st.Filters["name"] = "also changed"
	assert.Equal(t, "a", v.State().Filters["name"])
}

func TestView_LoadNotConnected(t *testing.T) {
	src := schematest.NewSource(schematest.Users())
	m := newManager(nil, src)

	v, _, err := m.Open(context.Background(), "prod", "public", "users")
	require.NoError(t, err)

	_, err = v.Refresh(context.Background())
	assert.True(t, errs.IsConnectionUnavailable(err))
}

func TestView_PreviewChanges(t *testing.T) {
	m := newManager(usersHandle(), schematest.NewSource(schematest.Users()))
	v, _, err := m.Open(context.Background(), "local", "public", "users")
	require.NoError(t, err)

	sql, err := v.PreviewChanges(changeset.ChangeSet{
		&changeset.Insert{Data: changeset.NewValues().Set("name", "O'Brien")},
		&changeset.Delete{Where: changeset.NewValues().Set("id", int64(3))},
	})
	require.NoError(t, err)
	lines := strings.Split(sql, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `INSERT INTO "public"."users" ("name") VALUES ('O''Brien');`, lines[0])
	assert.Equal(t, `DELETE FROM "public"."users" WHERE "id" = 3;`, lines[1])

	_, err = v.PreviewChanges(changeset.ChangeSet{&changeset.Delete{}})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestView_ExecuteRefreshesFirstPage(t *testing.T) {
	h := usersHandle()
	m := newManager(h, schematest.NewSource(schematest.Users()))
	ctx := context.Background()
	v, _, err := m.Open(ctx, "local", "public", "users")
	require.NoError(t, err)
	_, err = v.LoadPage(ctx, 4)
	require.NoError(t, err)

	res := v.ExecuteChanges(ctx, changeset.ChangeSet{
		&changeset.Update{
			Data:  changeset.NewValues().Set("role", "admin"),
			Where: changeset.NewValues().Set("id", int64(2)),
		},
	}, false)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, executor.Committed, res.State)
	require.NotNil(t, res.Page)
	assert.Equal(t, 0, res.Page.Page)
	assert.Equal(t, 0, v.State().Page)
	require.Len(t, h.Committed, 1)
}

func TestView_ExecuteRejectedKeepsPage(t *testing.T) {
	h := usersHandle()
	m := newManager(h, schematest.NewSource(schematest.Users()))
	ctx := context.Background()
	v, _, err := m.Open(ctx, "local", "public", "users")
	require.NoError(t, err)
	_, err = v.LoadPage(ctx, 2)
	require.NoError(t, err)

	res := v.ExecuteChanges(ctx, changeset.ChangeSet{
		&changeset.Insert{Data: changeset.NewValues().Set("role", "owner")},
	}, false)

	assert.False(t, res.Success)
	assert.Equal(t, executor.Rejected, res.State)
	assert.Nil(t, res.Page)
	assert.Equal(t, 2, v.State().Page)
	assert.Empty(t, h.Committed)
}

func TestView_ExecuteSingleFlight(t *testing.T) {
	h := usersHandle()
	m := newManager(h, schematest.NewSource(schematest.Users()))
	v, _, err := m.Open(context.Background(), "local", "public", "users")
	require.NoError(t, err)

	v.executing.Store(true)
	res := v.ExecuteChanges(context.Background(), changeset.ChangeSet{
		&changeset.Delete{Where: changeset.NewValues().Set("id", int64(1))},
	}, false)
	assert.False(t, res.Success)
	assert.True(t, errs.IsConflict(res.Err))
	assert.Equal(t, 0, h.Begins)

	v.executing.Store(false)
	res = v.ExecuteChanges(context.Background(), changeset.ChangeSet{
		&changeset.Delete{Where: changeset.NewValues().Set("id", int64(1))},
	}, false)
	assert.True(t, res.Success, res.Error)
}
