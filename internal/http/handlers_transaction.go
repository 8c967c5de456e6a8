package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type transactionResponse struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amountCents"`
	Amount      string    `json:"amount"`
	Date        string    `json:"date"`
	Category    string    `json:"category"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Description: t.Description,
		AmountCents: t.Amount.Cents,
		Amount:      t.Amount.String(),
		Date:        t.OccursAt.Format("2006-01-02"),
		Category:    t.Category,
		Kind:        string(t.Kind),
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
	}
}

func toTransactionResponses(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, len(txs))
	for i, t := range txs {
		out[i] = toTransactionResponse(t)
	}
	return out
}

// writeTransactionError maps store and validation failures: bad input
// 422, unknown record 404, everything else 500.
func writeTransactionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidStatus),
		errors.Is(err, core.ErrMissingStatus):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Transaction operation failed",
			"url", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "could not save transaction")
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.transactions.List(r.Context(), currentUser(r).ID)
	if err != nil {
		writeTransactionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponses(txs))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
		Amount      string `json:"amount"`
		Date        string `json:"date"`
		Category    string `json:"category"`
		Kind        string `json:"kind"`
		Status      string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
		return
	}

	user := currentUser(r)
	created, err := s.transactions.Create(r.Context(), user.ID, core.Transaction{
		Description: sanitizeInput(req.Description),
		Amount:      core.Money{Cents: cents},
		OccursAt:    date,
		Category:    sanitizeInput(req.Category),
		Kind:        core.Kind(req.Kind),
		Status:      core.Status(req.Status),
	})
	if err != nil {
		writeTransactionError(w, r, err)
		return
	}

	s.summaryCache.Delete(user.ID)
	writeJSON(w, http.StatusCreated, toTransactionResponse(created))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description *string `json:"description"`
		Amount      *string `json:"amount"`
		Date        *string `json:"date"`
		Category    *string `json:"category"`
		Kind        *string `json:"kind"`
		Status      *string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var patch core.TransactionPatch
	if req.Description != nil {
		desc := sanitizeInput(*req.Description)
		patch.Description = &desc
	}
	if req.Amount != nil {
		cents, err := core.ParseDecimalToCents(*req.Amount)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid amount")
			return
		}
		patch.AmountCents = &cents
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
			return
		}
		patch.OccursAt = &date
	}
	if req.Category != nil {
		cat := sanitizeInput(*req.Category)
		patch.Category = &cat
	}
	if req.Kind != nil {
		kind := core.Kind(*req.Kind)
		patch.Kind = &kind
	}
	if req.Status != nil {
		status := core.Status(*req.Status)
		patch.Status = &status
	}

	user := currentUser(r)
	if err := s.transactions.Update(r.Context(), user.ID, r.PathValue("id"), patch); err != nil {
		writeTransactionError(w, r, err)
		return
	}

	s.summaryCache.Delete(user.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if err := s.transactions.Delete(r.Context(), user.ID, r.PathValue("id")); err != nil {
		writeTransactionError(w, r, err)
		return
	}

	s.summaryCache.Delete(user.ID)
	w.WriteHeader(http.StatusNoContent)
}
