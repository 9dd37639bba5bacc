// Package executor runs one submitted change-set: validate, generate,
// execute inside a single transaction, and report.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/koustreak/pgedit/internal/audit"
	"github.com/koustreak/pgedit/internal/changeset"
	"github.com/koustreak/pgedit/internal/database"
	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/logger"
	"github.com/koustreak/pgedit/internal/schema"
	"github.com/koustreak/pgedit/internal/validate"
)

// Request is one execute call.
type Request struct {
	ConnectionID     string
	Schema           string
	Table            string
	Changes          changeset.ChangeSet
	BypassValidation bool
}

// Outcome is what the caller sees. Err keeps the classified error for
// callers that branch on kind; Error is the user-facing text.
type Outcome struct {
	State            State                 `json:"state"`
	Success          bool                  `json:"success"`
	Error            string                `json:"error,omitempty"`
	ValidationErrors []string              `json:"validationErrors,omitempty"`
	Statements       []changeset.Statement `json:"statements,omitempty"`
	RowsAffected     []int64               `json:"rowsAffected,omitempty"`
	Err              error                 `json:"-"`
}

// Executor is stateless between calls; each Execute owns its transaction.
type Executor struct {
	clients  database.ClientProvider
	metadata schema.Source
	audit    audit.Sink
	log      *logger.Logger
	txLimit  time.Duration
}

// Option customises an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Executor) { e.log = logger.OrNop(l) }
}

// WithAudit sets where terminal outcomes are recorded.
func WithAudit(s audit.Sink) Option {
	return func(e *Executor) { e.audit = s }
}

// WithTxTimeout bounds a transaction once BEGIN has been issued. Zero leaves
// it unbounded; per-statement limits still come from the pool's
// statement_timeout.
func WithTxTimeout(d time.Duration) Option {
	return func(e *Executor) { e.txLimit = d }
}

// New creates an Executor. metadata should read the catalog fresh on every
// call so validation sees the live column types.
func New(clients database.ClientProvider, metadata schema.Source, opts ...Option) *Executor {
	e := &Executor{clients: clients, metadata: metadata, log: logger.Nop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// run carries one execution through its states.
type run struct {
	req  Request
	out  *Outcome
	log  *logger.Logger
	exec *Executor
}

func (r *run) transition(to State) {
	if !canTransition(r.out.State, to) {
		// programming error: keep going but make it visible
		r.log.With().Str("from", r.out.State.String()).Str("to", to.String()).Logger().Error("illegal state transition")
	}
	r.log.With().Str("from", r.out.State.String()).Str("to", to.String()).Logger().Debug("state transition")
	r.out.State = to
}

func (r *run) fail(err error) *Outcome {
	r.out.Success = false
	r.out.Err = err
	r.out.Error = errs.UserMessage(err)
	return r.out
}

// Execute runs req to a terminal state. It never returns a nil Outcome and
// never panics on database errors; every failure is reported in the Outcome.
func (e *Executor) Execute(ctx context.Context, req Request) *Outcome {
	log := e.log.With().
		Str("connection", req.ConnectionID).
		Str("table", req.Schema+"."+req.Table).
		Int("changes", len(req.Changes)).
		Bool("bypass", req.BypassValidation).
		Logger()
	r := &run{req: req, out: &Outcome{State: Idle}, log: log, exec: e}

	if len(req.Changes) == 0 {
		r.out.Success = true
		return r.out
	}

	h := e.clients.Client(ctx, req.ConnectionID)
	if h == nil {
		return r.fail(errs.NotConnected(req.ConnectionID))
	}

	out := r.execute(ctx, h)

	auditCtx, cancel := e.detach(ctx)
	defer cancel()
	e.record(auditCtx, req, out)
	return out
}

// detach keeps ctx's values but not its cancellation. Once BEGIN is issued
// only statement success or failure ends the transaction, so a caller that
// goes away must not roll it back.
func (e *Executor) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if e.txLimit > 0 {
		return context.WithTimeout(ctx, e.txLimit)
	}
	return ctx, func() {}
}

func (r *run) execute(ctx context.Context, h database.Handle) *Outcome {
	r.transition(Validating)

	md, err := r.exec.metadata.Fetch(ctx, r.req.ConnectionID, r.req.Schema, r.req.Table)
	switch {
	case err != nil && !r.req.BypassValidation:
		r.transition(Rejected)
		return r.fail(err)
	case err != nil:
		r.log.With().Err(err).Logger().Warn("metadata unavailable, executing without type-aware binding")
		md = nil
	}

	if r.req.BypassValidation {
		r.log.Warn("schema validation bypassed")
	} else if problems := validate.Validate(md, r.req.Changes); len(problems) > 0 {
		r.transition(Rejected)
		r.out.ValidationErrors = problems
		r.log.With().Any("problems", problems).Logger().Warn("change-set rejected by validation")
		return r.fail(errs.Newf(errs.ErrKindValidationFailure, "%d validation error(s)", len(problems)))
	}

	stmts := make([]changeset.Statement, 0, len(r.req.Changes))
	for i, c := range r.req.Changes {
		st, err := changeset.Generate(r.req.Schema, r.req.Table, bindChange(md, c))
		if err != nil {
			r.transition(Rejected)
			return r.fail(errs.Wrap(errs.KindOf(err), fmt.Sprintf("change %d: %s", i, errs.UserMessage(err)), err))
		}
		stmts = append(stmts, st)
	}
	r.out.Statements = stmts

	r.transition(Executing)

	ctx, cancel := r.exec.detach(ctx)
	defer cancel()

	tx, err := h.Begin(ctx)
	if err != nil {
		r.transition(RolledBack)
		r.log.With().Err(err).Logger().Error("begin failed")
		return r.fail(err)
	}

	affected := make([]int64, 0, len(stmts))
	for i, st := range stmts {
		n, err := tx.Exec(ctx, st.Query, st.Values...)
		if err != nil {
			stmtErr := errs.Wrap(errs.ErrKindStatementFailure, errs.UserMessage(err), err)
			r.rollback(ctx, tx, i, stmtErr)
			return r.fail(stmtErr)
		}
		affected = append(affected, n)
	}

	if err := tx.Commit(ctx); err != nil {
		commitErr := errs.Wrap(errs.ErrKindStatementFailure, errs.UserMessage(err), err)
		r.transition(RolledBack)
		r.log.With().Err(err).Logger().Error("commit failed")
		return r.fail(commitErr)
	}

	r.transition(Committed)
	r.out.Success = true
	r.out.RowsAffected = affected
	r.log.With().Int("statements", len(stmts)).Any("rows_affected", affected).Logger().Info("change-set committed")
	return r.out
}

// rollback is best-effort. A rollback failure is logged with the statement
// error and never replaces it.
func (r *run) rollback(ctx context.Context, tx database.Tx, failedAt int, stmtErr error) {
	r.transition(RolledBack)
	log := r.log.With().Int("failed_statement", failedAt).Err(stmtErr).Logger()
	if err := tx.Rollback(ctx); err != nil {
		rbErr := errs.Wrap(errs.ErrKindRollbackFailure, "rollback failed", err)
		log.ErrorWith("rollback failed after statement failure", rbErr, map[string]any{
			"statement_error": stmtErr.Error(),
		})
		return
	}
	log.Error("statement failed, change-set rolled back")
}

func (e *Executor) record(ctx context.Context, req Request, out *Outcome) {
	if e.audit == nil {
		return
	}
	rec := audit.NewRecord(req.ConnectionID, req.Schema, req.Table)
	rec.BypassValidation = req.BypassValidation
	rec.State = out.State.String()
	rec.Changes = len(req.Changes)
	rec.Error = out.Error
	rec.ValidationErrors = out.ValidationErrors
	for _, st := range out.Statements {
		rec.Statements = append(rec.Statements, st.Query)
	}
	for _, n := range out.RowsAffected {
		rec.RowsAffected += n
	}
	if err := e.audit.Record(ctx, rec); err != nil {
		e.log.With().Str("audit_id", rec.ID.String()).Err(err).Logger().Warn("audit record not stored")
	}
}
