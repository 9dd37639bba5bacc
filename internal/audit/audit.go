// Package audit records the outcome of every change-set execution, so a
// bypassed validation or a rolled-back batch can be traced afterwards.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/koustreak/pgedit/internal/logger"
)

// Record describes one terminal execution.
type Record struct {
	ID               uuid.UUID `json:"id"`
	At               time.Time `json:"at"`
	ConnectionID     string    `json:"connectionId"`
	Schema           string    `json:"schema"`
	Table            string    `json:"table"`
	BypassValidation bool      `json:"bypassValidation"`
	State            string    `json:"state"`
	Changes          int       `json:"changes"`
	Statements       []string  `json:"statements,omitempty"` // queries only, never bound values
	RowsAffected     int64     `json:"rowsAffected"`
	Error            string    `json:"error,omitempty"`
	ValidationErrors []string  `json:"validationErrors,omitempty"`
}

// NewRecord stamps a fresh id and time.
func NewRecord(connectionID, schema, table string) Record {
	return Record{
		ID:           uuid.New(),
		At:           time.Now().UTC(),
		ConnectionID: connectionID,
		Schema:       schema,
		Table:        table,
	}
}

// Sink persists records.
type Sink interface {
	Record(ctx context.Context, rec Record) error
}

// LogSink writes records to the structured log. Bypassed and failed
// executions are logged at warn.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a sink over log. A nil log discards output.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: logger.OrNop(log)}
}

func (s *LogSink) Record(_ context.Context, rec Record) error {
	fields := map[string]any{
		"audit_id":      rec.ID.String(),
		"connection":    rec.ConnectionID,
		"table":         rec.Schema + "." + rec.Table,
		"bypass":        rec.BypassValidation,
		"state":         rec.State,
		"changes":       rec.Changes,
		"rows_affected": rec.RowsAffected,
	}
	if rec.Error != "" {
		fields["error"] = rec.Error
	}
	if len(rec.ValidationErrors) > 0 {
		fields["validation_errors"] = rec.ValidationErrors
	}

	switch {
	case rec.BypassValidation:
		s.log.WarnWith("change-set executed with validation bypassed", fields)
	case rec.Error != "" || len(rec.ValidationErrors) > 0:
		s.log.WarnWith("change-set not applied", fields)
	default:
		s.log.InfoWith("change-set applied", fields)
	}
	return nil
}

// Multi fans a record out to several sinks, attempting all of them.
type Multi []Sink

func (m Multi) Record(ctx context.Context, rec Record) error {
	var errList []error
	for _, s := range m {
		if err := s.Record(ctx, rec); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
