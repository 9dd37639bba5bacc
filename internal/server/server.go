// Package server exposes table views over HTTP. Each view accepts a closed
// set of JSON messages; malformed messages are rejected before dispatch.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/pgedit/internal/browse"
	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/logger"
	"github.com/koustreak/pgedit/internal/prefs"
	"github.com/koustreak/pgedit/internal/schema"
	"github.com/koustreak/pgedit/internal/session"
)

const maxBodyBytes = 8 << 20

// TableLister lists tables of a schema on a connection.
type TableLister interface {
	ListTables(ctx context.Context, connectionID, schema string) ([]string, error)
}

type Server struct {
	views  *session.Manager
	tables TableLister
	prefs  prefs.Store
	log    *logger.Logger
	router chi.Router
}

// New wires the routes. prefs may be nil, which disables the
// preferences endpoints.
func New(views *session.Manager, tables TableLister, store prefs.Store, log *logger.Logger) *Server {
	s := &Server{views: views, tables: tables, prefs: store, log: logger.OrNop(log)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/connections/{connectionId}/tables", s.listTables)
	r.Route("/views", func(r chi.Router) {
		r.Post("/", s.openView)
		r.Route("/{viewId}", func(r chi.Router) {
			r.Delete("/", s.closeView)
			r.Post("/messages", s.handleMessage)
			r.Get("/preferences", s.getPreferences)
			r.Put("/preferences", s.putPreferences)
		})
	})
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.With().Str("addr", addr).Logger().Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read request body", err)
	}
	if len(data) > maxBodyBytes {
		return nil, errs.New(errs.ErrKindInvalidInput, "request body too large")
	}
	return data, nil
}

type openViewRequest struct {
	ConnectionID string `json:"connectionId"`
	Schema       string `json:"schema"`
	Table        string `json:"table"`
}

type openViewResponse struct {
	Success    bool                      `json:"success"`
	ViewID     string                    `json:"viewId"`
	Columns    []schema.ColumnDefinition `json:"columns"`
	PrimaryKey schema.PrimaryKeyInfo     `json:"primaryKey"`
	Editable   bool                      `json:"editable"`
}

func (s *Server) openView(w http.ResponseWriter, r *http.Request) {
	var req openViewRequest
	if err := decodeStrict(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.ConnectionID == "" {
		s.fail(w, r, errs.New(errs.ErrKindInvalidInput, "connectionId is required"))
		return
	}

	v, md, err := s.views.Open(r.Context(), req.ConnectionID, req.Schema, req.Table)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, openViewResponse{
		Success:    true,
		ViewID:     v.ID,
		Columns:    md.Columns,
		PrimaryKey: md.PrimaryKey,
		Editable:   md.Editable(),
	})
}

func (s *Server) closeView(w http.ResponseWriter, r *http.Request) {
	if err := s.views.Close(chi.URLParam(r, "viewId")); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, map[string]bool{"success": true})
}

type pageResponse struct {
	Success bool `json:"success"`
	*browse.Page
}

type previewResponse struct {
	Success bool   `json:"success"`
	SQL     string `json:"sql"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	v, err := s.views.Get(chi.URLParam(r, "viewId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	msg, err := DecodeMessage(body)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ctx := r.Context()
	var page *browse.Page
	switch m := msg.(type) {
	case *LoadPage:
		page, err = v.LoadPage(ctx, *m.Page)
	case *ApplySort:
		page, err = v.ApplySort(ctx, m.Column, m.Direction)
	case *ApplyFilters:
		page, err = v.ApplyFilters(ctx, m.Filters)
	case *Search:
		page, err = v.Search(ctx, m.Term)
	case *Refresh:
		page, err = v.Refresh(ctx)
	case *PreviewChanges:
		sql, err := v.PreviewChanges(*m.Changes)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.respond(w, r, http.StatusOK, previewResponse{Success: true, SQL: sql})
		return
	case *ExecuteChanges:
		res := v.ExecuteChanges(ctx, *m.Changes, m.BypassValidation)
		status := http.StatusOK
		if !res.Success {
			status = statusFor(res.Err)
		}
		s.respond(w, r, status, res)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, pageResponse{Success: true, Page: page})
}

type preferencesResponse struct {
	Success bool `json:"success"`
	*prefs.TablePreferences
}

func (s *Server) getPreferences(w http.ResponseWriter, r *http.Request) {
	v, ok := s.preferencesView(w, r)
	if !ok {
		return
	}
	p, err := s.prefs.Get(r.Context(), v.Schema, v.Table)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, preferencesResponse{Success: true, TablePreferences: p})
}

func (s *Server) putPreferences(w http.ResponseWriter, r *http.Request) {
	v, ok := s.preferencesView(w, r)
	if !ok {
		return
	}
	var p prefs.TablePreferences
	if err := decodeStrict(r, &p); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.prefs.Put(r.Context(), v.Schema, v.Table, &p); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, preferencesResponse{Success: true, TablePreferences: &p})
}

func (s *Server) preferencesView(w http.ResponseWriter, r *http.Request) (*session.View, bool) {
	if s.prefs == nil {
		s.fail(w, r, errs.New(errs.ErrKindNotFound, "preferences are not configured"))
		return nil, false
	}
	v, err := s.views.Get(chi.URLParam(r, "viewId"))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return v, true
}

type tablesResponse struct {
	Success bool     `json:"success"`
	Schema  string   `json:"schema"`
	Tables  []string `json:"tables"`
}

func (s *Server) listTables(w http.ResponseWriter, r *http.Request) {
	schemaName := r.URL.Query().Get("schema")
	if schemaName == "" {
		schemaName = "public"
	}
	tables, err := s.tables.ListTables(r.Context(), chi.URLParam(r, "connectionId"), schemaName)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, tablesResponse{Success: true, Schema: schemaName, Tables: tables})
}

func decodeStrict(r *http.Request, dst any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "malformed request body", err)
	}
	return nil
}
