package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/pgedit/internal/errs"
)

// PostgreSQL SQLSTATE codes and classes this driver distinguishes.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgClassConnection          = "08"
	pgErrInsufficientPrivilege = "42501"
	pgErrQueryCanceled         = "57014"
	pgErrAdminShutdown         = "57P01"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
//
// For server-side errors the Message is the server's own text, unprefixed,
// so a rejected statement can be shown to the user exactly as Postgres
// phrased it. msg labels every other failure.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		kind := errs.ErrKindQueryFailed
		switch {
		case strings.HasPrefix(pgErr.Code, pgClassConnection), pgErr.Code == pgErrAdminShutdown:
			kind = errs.ErrKindConnectionFailed
		case pgErr.Code == pgErrInsufficientPrivilege:
			kind = errs.ErrKindPermissionDenied
		case pgErr.Code == pgErrQueryCanceled:
			kind = errs.ErrKindTimeout
		}
		return errs.Wrap(kind, pgErr.Message, err)
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	// Fallthrough: connection-level errors (TLS, network, auth) and
	// client-side encoding errors both land here.
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg+": "+err.Error(), err)
}
