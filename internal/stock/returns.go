package stock

import (
	"sort"
	"time"

	"stockbot/internal/domain"
)

// daysPerMonth approximates a calendar month for return windows.
const daysPerMonth = 30

// PeriodReturn is the percentage change over a trailing window.
// Percent is nil when it cannot be computed.
type PeriodReturn struct {
	Months  int
	Percent *float64
}

// CalculateReturns compares the latest close in hist with the most recent
// close on or before now minus months*30 days, for each period. hist must be
// chronological. Periods are returned in ascending order.
func CalculateReturns(hist []domain.PricePoint, periods []int, now time.Time) []PeriodReturn {
	periods = sortedPeriods(periods)
	out := make([]PeriodReturn, 0, len(periods))
	if len(hist) == 0 {
		for _, m := range periods {
			out = append(out, PeriodReturn{Months: m})
		}
		return out
	}

	last := hist[len(hist)-1].Close
	for _, m := range periods {
		target := now.AddDate(0, 0, -m*daysPerMonth)
		// First index strictly after target; the point before it is the past close.
		i := sort.Search(len(hist), func(i int) bool { return hist[i].Date.After(target) })
		pr := PeriodReturn{Months: m}
		if i > 0 {
			past := hist[i-1].Close
			if past != 0 {
				pct := (last - past) / past * 100
				pr.Percent = &pct
			}
		}
		out = append(out, pr)
	}
	return out
}

func sortedPeriods(periods []int) []int {
	out := append([]int(nil), periods...)
	sort.Ints(out)
	return out
}
