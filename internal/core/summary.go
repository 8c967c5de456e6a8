package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Summary is the dashboard aggregate derived from a transaction list.
// It is a pure function of its input: no I/O, no retained state.
type Summary struct {
	TotalIncome  Money
	TotalExpense Money
	Balance      Money
	// ExpenseByCategory accumulates expense amounts per category, in the
	// order each category first appears in the input. Income rows never
	// contribute, and expense status does not gate accumulation.
	ExpenseByCategory []CategoryAmount
	// UpcomingDue lists pending expenses due within the next seven
	// calendar days, both bounds inclusive. Past-due pending expenses
	// are excluded: the window looks forward only.
	UpcomingDue []Transaction
}

// Summarize derives the financial summary for a transaction list as of the
// given day. An empty list yields zero totals and empty slices.
func Summarize(txs []Transaction, today Date) Summary {
	s := Summary{
		ExpenseByCategory: []CategoryAmount{},
		UpcomingDue:       []Transaction{},
	}

	windowStart := today.Calendar()
	windowEnd := today.AddDays(7).Calendar()
	catIndex := make(map[string]int)

	for _, t := range txs {
		switch t.Kind {
		case Income:
			s.TotalIncome.Cents += t.Amount.Cents
		case Expense:
			s.TotalExpense.Cents += t.Amount.Cents

			if i, ok := catIndex[t.Category]; ok {
				s.ExpenseByCategory[i].Amount.Cents += t.Amount.Cents
			} else {
				catIndex[t.Category] = len(s.ExpenseByCategory)
				s.ExpenseByCategory = append(s.ExpenseByCategory, CategoryAmount{
					Name:   t.Category,
					Amount: t.Amount,
				})
			}

			if t.Status == Pending {
				due := t.OccursAt.Calendar()
				if !due.Before(windowStart) && !due.After(windowEnd) {
					s.UpcomingDue = append(s.UpcomingDue, t)
				}
			}
		}
	}

	s.Balance.Cents = s.TotalIncome.Cents - s.TotalExpense.Cents
	return s
}
