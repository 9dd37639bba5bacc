// Package session holds open table views. A view owns its read state
// (page, sort, filters, search) and its metadata cache, and allows one
// change-set execution at a time.
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/koustreak/pgedit/internal/browse"
	"github.com/koustreak/pgedit/internal/changeset"
	"github.com/koustreak/pgedit/internal/database"
	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/executor"
	"github.com/koustreak/pgedit/internal/logger"
	"github.com/koustreak/pgedit/internal/schema"
)

// View is one open table.
type View struct {
	ID           string
	ConnectionID string
	Schema       string
	Table        string

	clients database.ClientProvider
	cache   *schema.Cache
	exec    *executor.Executor
	log     *logger.Logger

	mu        sync.Mutex
	state     browse.ViewState
	executing atomic.Bool
	closed    atomic.Bool
}

// ExecuteResult is the outcome of an execute request plus, on success,
// the refreshed first page.
type ExecuteResult struct {
	*executor.Outcome
	Page *browse.Page `json:"page,omitempty"`
}

// State returns a copy of the current read state.
func (v *View) State() browse.ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := v.state
	if v.state.Filters != nil {
		st.Filters = make(map[string]string, len(v.state.Filters))
		for k, val := range v.state.Filters {
			st.Filters[k] = val
		}
	}
	if v.state.Sort != nil {
		s := *v.state.Sort
		st.Sort = &s
	}
	return st
}

// Metadata returns the table's cached metadata.
func (v *View) Metadata(ctx context.Context) (*schema.TableMetadata, error) {
	if v.closed.Load() {
		return nil, errs.Newf(errs.ErrKindNotFound, "view %s is closed", v.ID)
	}
	return v.cache.Fetch(ctx, v.ConnectionID, v.Schema, v.Table)
}

// LoadPage moves to page and loads it.
func (v *View) LoadPage(ctx context.Context, page int) (*browse.Page, error) {
	if page < 0 {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "page must not be negative, got %d", page)
	}
	return v.update(ctx, func(st *browse.ViewState) { st.Page = page })
}

// ApplySort sets or clears the sort and reloads from the first page.
// A nil direction clears the sort.
func (v *View) ApplySort(ctx context.Context, column string, direction *string) (*browse.Page, error) {
	if direction == nil || column == "" {
		return v.update(ctx, func(st *browse.ViewState) { st.Sort = nil; st.Page = 0 })
	}
	dir, ok := browse.ParseDirection(*direction)
	if !ok {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "sort direction must be asc or desc, got %q", *direction)
	}
	return v.update(ctx, func(st *browse.ViewState) {
		st.Sort = &browse.Sort{Column: column, Direction: dir}
		st.Page = 0
	})
}

// ApplyFilters replaces the column filters and reloads from the first page.
func (v *View) ApplyFilters(ctx context.Context, filters map[string]string) (*browse.Page, error) {
	cp := make(map[string]string, len(filters))
	for k, val := range filters {
		cp[k] = val
	}
	return v.update(ctx, func(st *browse.ViewState) { st.Filters = cp; st.Page = 0 })
}

// Search sets the global search term and reloads from the first page.
func (v *View) Search(ctx context.Context, term string) (*browse.Page, error) {
	return v.update(ctx, func(st *browse.ViewState) { st.Search = term; st.Page = 0 })
}

// Refresh reloads the current page with the current state.
func (v *View) Refresh(ctx context.Context) (*browse.Page, error) {
	return v.update(ctx, func(*browse.ViewState) {})
}

// update applies fn to the state and loads the resulting page. The state
// change sticks even when the load fails, so a refresh retries it.
func (v *View) update(ctx context.Context, fn func(*browse.ViewState)) (*browse.Page, error) {
	if v.closed.Load() {
		return nil, errs.Newf(errs.ErrKindNotFound, "view %s is closed", v.ID)
	}
	v.mu.Lock()
	fn(&v.state)
	v.mu.Unlock()
	return v.load(ctx)
}

func (v *View) load(ctx context.Context) (*browse.Page, error) {
	md, err := v.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	h := v.clients.Client(ctx, v.ConnectionID)
	if h == nil {
		return nil, errs.NotConnected(v.ConnectionID)
	}
	page, err := browse.LoadPage(ctx, h, md, v.State())
	if err != nil {
		v.log.With().Err(err).Logger().Warn("page load failed")
		return nil, err
	}
	return page, nil
}

// PreviewChanges renders the SQL a change-set would run, values inlined.
// No validation, no database access.
func (v *View) PreviewChanges(changes changeset.ChangeSet) (string, error) {
	stmts, err := changeset.GenerateAll(v.Schema, v.Table, changes)
	if err != nil {
		return "", err
	}
	return changeset.Preview(stmts), nil
}

// ExecuteChanges runs changes in one transaction. A second call while one
// is in flight fails with a Conflict error instead of queueing. After a
// commit the first page is reloaded.
func (v *View) ExecuteChanges(ctx context.Context, changes changeset.ChangeSet, bypassValidation bool) *ExecuteResult {
	if v.closed.Load() {
		err := errs.Newf(errs.ErrKindNotFound, "view %s is closed", v.ID)
		return &ExecuteResult{Outcome: &executor.Outcome{Error: errs.UserMessage(err), Err: err}}
	}
	if !v.executing.CompareAndSwap(false, true) {
		err := errs.New(errs.ErrKindConflict, "another change-set is still executing for this table")
		return &ExecuteResult{Outcome: &executor.Outcome{Error: errs.UserMessage(err), Err: err}}
	}
	defer v.executing.Store(false)

	out := v.exec.Execute(ctx, executor.Request{
		ConnectionID:     v.ConnectionID,
		Schema:           v.Schema,
		Table:            v.Table,
		Changes:          changes,
		BypassValidation: bypassValidation,
	})
	res := &ExecuteResult{Outcome: out}
	if out.State != executor.Committed {
		return res
	}

	page, err := v.update(ctx, func(st *browse.ViewState) { st.Page = 0 })
	if err != nil {
		v.log.With().Err(err).Logger().Warn("refresh after commit failed")
		return res
	}
	res.Page = page
	return res
}

// Close drops the metadata cache. Further calls on the view fail.
func (v *View) Close() {
	if v.closed.Swap(true) {
		return
	}
	v.cache.Invalidate()
}
