package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
)

type removedResponse struct {
	Removed int `json:"removed"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// handleCreateInstallment splits the submitted purchase across monthly ledgers.
func (s *Server) handleCreateInstallment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req services.InstallmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	// One group id for every attempt, so a retry after an ambiguous commit
	// lands on the same entries.
	if req.GroupID == "" {
		req.GroupID = uuid.NewString()
	}

	var res services.SplitResult
	err := s.retry(ctx, applog.OpSplit, func(ctx context.Context) error {
		var err error
		res, err = s.svc.Splitter.Split(ctx, req)
		return err
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, res)
}

func (s *Server) handleDeleteInstallment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupID := chi.URLParam(r, "groupID")

	var n int
	err := s.retry(ctx, applog.OpDeleteGroup, func(ctx context.Context) error {
		var err error
		n, err = s.svc.Splitter.DeleteGroup(ctx, groupID)
		return err
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, removedResponse{Removed: n})
}

// handleDeleteExpense removes one expense, or its whole installment group.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := ledgerKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	id := chi.URLParam(r, "id")

	var n int
	err = s.retry(ctx, applog.OpDeleteExpense, func(ctx context.Context) error {
		var err error
		n, err = s.svc.Splitter.DeleteExpense(ctx, key, id)
		return err
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, removedResponse{Removed: n})
}

func (s *Server) handleExpenseStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := ledgerKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	id := chi.URLParam(r, "id")

	err = s.retry(ctx, applog.OpSetExpenseStatus, func(ctx context.Context) error {
		return s.svc.Splitter.SetExpenseStatus(ctx, key, id, core.ExpenseStatus(req.Status))
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := ledgerKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	id := chi.URLParam(r, "id")

	err = s.retry(ctx, applog.OpDeleteIncome, func(ctx context.Context) error {
		return s.svc.Splitter.DeleteIncome(ctx, key, id)
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, removedResponse{Removed: 1})
}

func (s *Server) handleIncomeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := ledgerKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	id := chi.URLParam(r, "id")

	err = s.retry(ctx, applog.OpSetIncomeStatus, func(ctx context.Context) error {
		return s.svc.Splitter.SetIncomeStatus(ctx, key, id, core.IncomeStatus(req.Status))
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
