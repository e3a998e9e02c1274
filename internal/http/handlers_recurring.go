package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
)

type tickResponse struct {
	Today core.Date `json:"today"`
	services.Summary
}

func (s *Server) handleSaveRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var rule core.RecurringRule
	if err := decodeJSON(r, &rule); err != nil {
		writeError(ctx, w, err)
		return
	}
	status := http.StatusOK
	if rule.ID == "" {
		status = http.StatusCreated
	}
	saved, err := s.svc.Ledgers.SaveRule(ctx, rule)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, status, saved)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rules, err := s.svc.Ledgers.Rules(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if rules == nil {
		rules = []core.RecurringRule{}
	}
	writeJSON(ctx, w, http.StatusOK, rules)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.svc.Ledgers.DeleteRule(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTick runs the materializer for ?date= (default today). Per-rule
// failures are reported in the body; the request itself still succeeds.
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := s.today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		today = d
	}

	var sum services.Summary
	err := s.retry(ctx, applog.OpTick, func(ctx context.Context) error {
		var err error
		sum, err = s.svc.Recurring.TickAll(ctx, today)
		return err
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, tickResponse{Today: today, Summary: sum})
}
