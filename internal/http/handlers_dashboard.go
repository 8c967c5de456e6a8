package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"fintrack/internal/core"
)

type categoryAmountResponse struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amountCents"`
	Amount      string `json:"amount"`
}

type summaryResponse struct {
	TotalIncomeCents  int64                    `json:"totalIncomeCents"`
	TotalIncome       string                   `json:"totalIncome"`
	TotalExpenseCents int64                    `json:"totalExpenseCents"`
	TotalExpense      string                   `json:"totalExpense"`
	BalanceCents      int64                    `json:"balanceCents"`
	Balance           string                   `json:"balance"`
	ExpenseByCategory []categoryAmountResponse `json:"expenseByCategory"`
	UpcomingDue       []transactionResponse    `json:"upcomingDue"`
}

func toSummaryResponse(sum core.Summary) summaryResponse {
	resp := summaryResponse{
		TotalIncomeCents:  sum.TotalIncome.Cents,
		TotalIncome:       sum.TotalIncome.String(),
		TotalExpenseCents: sum.TotalExpense.Cents,
		TotalExpense:      sum.TotalExpense.String(),
		BalanceCents:      sum.Balance.Cents,
		Balance:           sum.Balance.String(),
		ExpenseByCategory: make([]categoryAmountResponse, len(sum.ExpenseByCategory)),
		UpcomingDue:       toTransactionResponses(sum.UpcomingDue),
	}
	for i, cat := range sum.ExpenseByCategory {
		resp.ExpenseByCategory[i] = categoryAmountResponse{
			Name:        cat.Name,
			AmountCents: cat.Amount.Cents,
			Amount:      cat.Amount.String(),
		}
	}
	return resp
}

// handleDashboardSummary returns the owner's aggregates, cached per
// owner until the next transaction write.
func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	if sum, found := s.summaryCache.Get(user.ID); found {
		slog.DebugContext(r.Context(), "Summary cache hit", "user_id", user.ID)
		writeJSON(w, http.StatusOK, toSummaryResponse(sum))
		return
	}

	ctx, cancelTimeout := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancelTimeout()

	txs, err := s.transactions.List(ctx, user.ID)
	if err != nil {
		writeTransactionError(w, r, err)
		return
	}

	sum := core.Summarize(txs, core.Today())
	s.summaryCache.Set(user.ID, sum)
	slog.DebugContext(r.Context(), "Summary cached",
		"user_id", user.ID, "transactions", len(txs))
	writeJSON(w, http.StatusOK, toSummaryResponse(sum))
}
