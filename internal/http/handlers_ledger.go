package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	applog "bilancio/internal/log"
)

// createLedgerRequest is the first-setup body of PUT /ledgers/{key}.
type createLedgerRequest struct {
	Limit           core.Money            `json:"limit"`
	BaseIncome      core.Money            `json:"baseIncome"`
	BaseCurrency    string                `json:"baseCurrency"`
	IncomeGoal      *core.Money           `json:"incomeGoal,omitempty"`
	CategoryBudgets map[string]core.Money `json:"categoryBudgets,omitempty"`
}

func (s *Server) handleCreateLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := ledgerKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var req createLedgerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	var created core.MonthlyLedger
	err = s.retry(ctx, applog.OpCreateLedger, func(ctx context.Context) error {
		var err error
		created, err = s.svc.Ledgers.CreateLedger(ctx, core.MonthlyLedger{
			Key:             key,
			Limit:           req.Limit,
			BaseIncome:      req.BaseIncome,
			BaseCurrency:    req.BaseCurrency,
			IncomeGoal:      req.IncomeGoal,
			CategoryBudgets: req.CategoryBudgets,
		})
		return err
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, created)
}

func (s *Server) handleUpdateLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := ledgerKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var patch ledger.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(ctx, w, err)
		return
	}
	updated, err := s.svc.Ledgers.UpdateLedger(ctx, key, patch)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, updated)
}

// handleGetLedger returns the ledger projected into ?display=, defaulting to
// its base currency.
func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := ledgerKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	display := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("display")))
	if display != "" && !core.ValidCurrency(display) {
		writeError(ctx, w, fmt.Errorf("%w: display %q", core.ErrInvalidCurrency, display))
		return
	}

	l, err := s.svc.Ledgers.Ledger(ctx, key)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, s.svc.Projector.Project(ctx, l, display))
}

func (s *Server) handleMonthOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := ledgerKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	ov, err := s.svc.Ledgers.MonthOverview(ctx, key)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, ov)
}

func (s *Server) handleYearOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1900 || year > 9999 {
		writeError(ctx, w, fmt.Errorf("%w: year %q", errBadRequest, chi.URLParam(r, "year")))
		return
	}
	yo, err := s.svc.Ledgers.YearOverview(ctx, year)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, yo)
}
