package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/pgedit/internal/database"
	"github.com/koustreak/pgedit/internal/database/dbtest"
	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/executor"
	"github.com/koustreak/pgedit/internal/prefs"
	"github.com/koustreak/pgedit/internal/schema"
	"github.com/koustreak/pgedit/internal/schema/schematest"
	"github.com/koustreak/pgedit/internal/session"
)

type fixture struct {
	srv *httptest.Server
	db  *dbtest.Handle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := schematest.Script(dbtest.New(), schematest.Users()).
		On("information_schema.tables", []string{"table_name"}, []any{"orders"}, []any{"users"}).
		On("COUNT(*)", []string{"count"}, []any{int64(1)}).
		On(`FROM "public"."users"`, []string{"id", "name", "role"}, []any{int64(1), "Ann", "admin"})

	clients := database.ClientProviderFunc(func(_ context.Context, id string) database.Handle {
		if id != "local" {
			return nil
		}
		return h
	})
	fetcher := schema.NewFetcher(clients, nil)
	views := session.NewManager(clients, fetcher, executor.New(clients, fetcher))

	store, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.yaml"), nil)
	require.NoError(t, err)

	srv := httptest.NewServer(New(views, fetcher, store, nil).Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, db: h}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (f *fixture) open(t *testing.T) string {
	t.Helper()
	status, body := f.do(t, http.MethodPost, "/views", `{"connectionId":"local","schema":"public","table":"users"}`)
	require.Equal(t, http.StatusCreated, status, body)
	return body["viewId"].(string)
}

func TestOpenView(t *testing.T) {
	f := newFixture(t)
	status, body := f.do(t, http.MethodPost, "/views", `{"connectionId":"local","schema":"public","table":"users"}`)
	require.Equal(t, http.StatusCreated, status)

	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["viewId"])
	assert.Equal(t, true, body["editable"])
	cols := body["columns"].([]any)
	require.Len(t, cols, 3)
	role := cols[2].(map[string]any)
	assert.Equal(t, "role", role["name"])
	assert.Equal(t, []any{"admin", "member"}, role["enumValues"])
}

func TestOpenView_Errors(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/views", `{"connectionId":"prod","schema":"public","table":"users"}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "not connected: prod", body["error"])

	status, _ = f.do(t, http.MethodPost, "/views", `{"connectionId":"local","table":"users","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMessages_ReadPath(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	status, body := f.do(t, http.MethodPost, "/views/"+id+"/messages", `{"type":"applySort","column":"name","direction":"desc"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["total"])
	assert.Len(t, body["rows"], 1)

	status, body = f.do(t, http.MethodPost, "/views/"+id+"/messages", `{"type":"loadPage","page":2}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(2), body["page"])

	for _, msg := range []string{
		`{"type":"applyFilters","filters":{"name":"an"}}`,
		`{"type":"search","term":"ann"}`,
		`{"type":"refresh"}`,
	} {
		status, body = f.do(t, http.MethodPost, "/views/"+id+"/messages", msg)
		assert.Equal(t, http.StatusOK, status, msg, body)
	}
}

func TestMessages_RejectedBeforeDispatch(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	before := len(f.db.Queries)

	for _, msg := range []string{
		`{"type":"dropTable"}`,
		`{"page":1}`,
		`{"type":"loadPage"}`,
		`{"type":"loadPage","page":-1}`,
		`{"type":"loadPage","page":1,"extra":true}`,
		`{"type":"executeChanges"}`,
		`{"type":"executeChanges","changes":[{"type":"upsert","data":{}}]}`,
		`[1,2]`,
	} {
		status, body := f.do(t, http.MethodPost, "/views/"+id+"/messages", msg)
		assert.Equal(t, http.StatusBadRequest, status, msg)
		assert.Equal(t, false, body["success"], msg)
	}
	assert.Len(t, f.db.Queries, before)
}

func TestMessages_PreviewAndExecute(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	status, body := f.do(t, http.MethodPost, "/views/"+id+"/messages",
		`{"type":"previewChanges","changes":[{"type":"update","data":{"role":"admin"},"where":{"id":5}}]}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, `UPDATE "public"."users" SET "role" = 'admin' WHERE "id" = 5;`, body["sql"])
	assert.Empty(t, f.db.Committed)

	status, body = f.do(t, http.MethodPost, "/views/"+id+"/messages",
		`{"type":"executeChanges","changes":[{"type":"update","data":{"role":"admin"},"where":{"id":5}}]}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "committed", body["state"])
	assert.NotNil(t, body["page"])
	require.Len(t, f.db.Committed, 1)
	assert.Equal(t, []any{"admin", int64(5)}, f.db.Committed[0].Args)

	status, body = f.do(t, http.MethodPost, "/views/"+id+"/messages",
		`{"type":"executeChanges","changes":[{"type":"update","data":{"role":"owner"},"where":{"id":5}}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "rejected", body["state"])
	assert.Len(t, body["validationErrors"], 1)
}

func TestPreferences(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	status, body := f.do(t, http.MethodGet, "/views/"+id+"/preferences", "")
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["columnOrder"])

	status, _ = f.do(t, http.MethodPut, "/views/"+id+"/preferences",
		`{"columnOrder":["name","id"],"hiddenColumns":["role"],"columnWidths":{"name":200}}`)
	require.Equal(t, http.StatusOK, status)

	status, body = f.do(t, http.MethodGet, "/views/"+id+"/preferences", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"name", "id"}, body["columnOrder"])
	assert.Equal(t, map[string]any{"name": float64(200)}, body["columnWidths"])
}

func TestCloseView(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	status, _ := f.do(t, http.MethodDelete, "/views/"+id, "")
	assert.Equal(t, http.StatusOK, status)

	status, body := f.do(t, http.MethodPost, "/views/"+id+"/messages", `{"type":"refresh"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, body["success"])

	status, _ = f.do(t, http.MethodDelete, "/views/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListTables(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/connections/local/tables", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "public", body["schema"])
	assert.Equal(t, []any{"orders", "users"}, body["tables"])

	status, _ = f.do(t, http.MethodGet, "/connections/prod/tables?schema=app", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(errs.New(errs.ErrKindConflict, "busy")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(errs.New(errs.ErrKindStatementFailure, "dup")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
