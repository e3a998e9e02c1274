package google

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"bilancio/internal/ledger"
)

// journalHeader lists the journal columns, A to N.
var journalHeader = []any{
	"Event", "Recorded", "Action", "Ledger", "Date", "Type", "Description",
	"Category", "Amount", "Currency", "Status", "Group", "Recurring", "Entry",
}

const journalColumns = "A:N"

// changeRow renders one change as a journal row.
func changeRow(ev ledger.Event, c ledger.Change) []any {
	return []any{
		ev.ID,
		ev.OccurredAt.UTC().Format(time.RFC3339),
		string(c.Action),
		c.LedgerKey,
		c.Date.String(),
		string(c.EntryType),
		c.Description,
		c.Category,
		c.Amount.String(),
		c.Currency,
		c.Status,
		c.GroupID,
		c.RecurringID,
		c.EntryID,
	}
}

// rowsByYear groups an event's rows by the year of their ledger so each
// lands in that year's sheet. Years are returned in ascending order.
func rowsByYear(ev ledger.Event) ([]int, map[int][][]any) {
	byYear := map[int][][]any{}
	for _, c := range ev.Changes {
		year := ev.OccurredAt.Year()
		if y, err := strconv.Atoi(strings.SplitN(c.LedgerKey, "-", 2)[0]); err == nil {
			year = y
		}
		byYear[year] = append(byYear[year], changeRow(ev, c))
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, byYear
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
