// Package dbtest provides an in-memory database.Handle for unit tests.
//
// Reads are answered from scripted responses matched by SQL substring.
// Writes are recorded: inside a transaction they are buffered and only
// become visible in Committed after Commit, so a rolled-back batch leaves
// no trace.
package dbtest

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/koustreak/pgedit/internal/database"
	"github.com/koustreak/pgedit/internal/errs"
)

// Statement is one recorded SQL call.
type Statement struct {
	SQL  string
	Args []any
}

type response struct {
	match   string
	columns []string
	rows    [][]any
	err     error
}

// Handle is a scripted, rollback-capable database.Handle.
type Handle struct {
	mu        sync.Mutex
	responses []response

	// Queries records every Query/QueryRow call, in order.
	Queries []Statement
	// Committed holds writes that are durable: autocommit Execs and the
	// Execs of committed transactions.
	Committed []Statement

	execCount   int
	failExecAt  map[int]error
	BeginErr    error
	CommitErr   error
	RollbackErr error
	PingErr     error

	Begins    int
	Commits   int
	Rollbacks int
	Closed    bool
}

// New returns an empty Handle.
func New() *Handle {
	return &Handle{failExecAt: make(map[int]error)}
}

// On scripts the rows returned for any query whose SQL contains match.
// Earlier registrations win.
func (h *Handle) On(match string, columns []string, rows ...[]any) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses = append(h.responses, response{match: match, columns: columns, rows: rows})
	return h
}

// OnError scripts a failure for any query whose SQL contains match.
func (h *Handle) OnError(match string, err error) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses = append(h.responses, response{match: match, err: err})
	return h
}

// FailExecAt makes the n-th Exec (1-based, counted across the handle's
// lifetime) fail with err.
func (h *Handle) FailExecAt(n int, err error) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failExecAt[n] = err
	return h
}

// ExecCount reports how many Exec calls were attempted.
func (h *Handle) ExecCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.execCount
}

func (h *Handle) lookup(sql string) (response, bool) {
	for _, r := range h.responses {
		if strings.Contains(sql, r.match) {
			return r, true
		}
	}
	return response{}, false
}

func (h *Handle) Query(_ context.Context, sql string, args ...any) (database.Rows, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Queries = append(h.Queries, Statement{SQL: sql, Args: args})

	r, ok := h.lookup(sql)
	if !ok {
		return &Rows{}, nil
	}
	if r.err != nil {
		return nil, r.err
	}
	return &Rows{columns: r.columns, rows: r.rows}, nil
}

func (h *Handle) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	rows, err := h.Query(ctx, sql, args...)
	return &row{rows: rows, err: err}
}

func (h *Handle) exec(sql string, args []any) error {
	h.execCount++
	if err, ok := h.failExecAt[h.execCount]; ok {
		return err
	}
	if r, ok := h.lookup(sql); ok && r.err != nil {
		return r.err
	}
	return nil
}

func (h *Handle) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.exec(sql, args); err != nil {
		return 0, err
	}
	h.Committed = append(h.Committed, Statement{SQL: sql, Args: args})
	return 1, nil
}

func (h *Handle) Begin(_ context.Context) (database.Tx, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.BeginErr != nil {
		return nil, h.BeginErr
	}
	h.Begins++
	return &Tx{h: h}, nil
}

func (h *Handle) Ping(context.Context) error { return h.PingErr }

func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Closed = true
}

var _ database.Handle = (*Handle)(nil)

// Tx buffers writes until Commit.
type Tx struct {
	h       *Handle
	pending []Statement
	done    bool
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	return t.h.Query(ctx, sql, args...)
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	return t.h.QueryRow(ctx, sql, args...)
}

func (t *Tx) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	if t.done {
		return 0, errs.New(errs.ErrKindQueryFailed, "transaction already closed")
	}
	if err := t.h.exec(sql, args); err != nil {
		return 0, err
	}
	t.pending = append(t.pending, Statement{SQL: sql, Args: args})
	return 1, nil
}

func (t *Tx) Commit(context.Context) error {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	if t.done {
		return errs.New(errs.ErrKindQueryFailed, "transaction already closed")
	}
	t.done = true
	if t.h.CommitErr != nil {
		return t.h.CommitErr
	}
	t.h.Commits++
	t.h.Committed = append(t.h.Committed, t.pending...)
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	t.done = true
	t.pending = nil
	t.h.Rollbacks++
	return t.h.RollbackErr
}

// Rows iterates scripted rows.
type Rows struct {
	columns []string
	rows    [][]any
	idx     int
	closed  bool
}

func (r *Rows) Next() bool {
	if r.closed || r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.rows) {
		return fmt.Errorf("dbtest: Scan called without a current row")
	}
	return assign(r.rows[r.idx-1], dest)
}

func (r *Rows) Columns() ([]string, error) { return r.columns, nil }
func (r *Rows) Close()                     { r.closed = true }
func (r *Rows) Err() error                 { return nil }

type row struct {
	rows database.Rows
	err  error
}

func (r *row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	defer r.rows.Close()
	if !r.rows.Next() {
		return errs.New(errs.ErrKindNotFound, "no rows in result set")
	}
	return r.rows.Scan(dest...)
}

// assign copies src values into dest pointers, converting where the Go
// types are convertible. A nil source zeroes the destination.
func assign(src []any, dest []any) error {
	if len(src) != len(dest) {
		return fmt.Errorf("dbtest: row has %d values, Scan got %d destinations", len(src), len(dest))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d)
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return fmt.Errorf("dbtest: destination %d is not a non-nil pointer", i)
		}
		target := dv.Elem()
		if src[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		sv := reflect.ValueOf(src[i])
		switch {
		case sv.Type().AssignableTo(target.Type()):
			target.Set(sv)
		case target.Kind() == reflect.Pointer && sv.Type().ConvertibleTo(target.Type().Elem()):
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(sv.Convert(target.Type().Elem()))
			target.Set(p)
		case sv.Type().ConvertibleTo(target.Type()):
			target.Set(sv.Convert(target.Type()))
		default:
			return fmt.Errorf("dbtest: cannot scan %T into %s", src[i], target.Type())
		}
	}
	return nil
}
