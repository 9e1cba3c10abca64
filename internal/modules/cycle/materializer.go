package cycle

import (
	"fmt"
	"time"

	"github.com/tkabwe/subcycle-backend/internal/modules/contract"
)

// Cycle is one billing period of a contract: a half-open [StartAt, EndAt)
// window identified by a 0-based index. Values are pure functions of the
// billing policy, the activation date and the index, so cycles can be computed
// on demand without a backing store of infinite length.
type Cycle struct {
	Index                      int       `json:"index"`
	StartAt                    time.Time `json:"cycle_start_at"`
	EndAt                      time.Time `json:"cycle_end_at"`
	BillingAttemptExpectedDate time.Time `json:"billing_attempt_expected_date"`
}

// CycleAt computes cycle number index for a policy and activation date.
// Adjacent cycles share a boundary: CycleAt(i).EndAt == CycleAt(i+1).StartAt.
func CycleAt(p contract.BillingPolicy, activation time.Time, index int) (Cycle, error) {
	if index < 0 {
		return Cycle{}, fmt.Errorf("cycle index must not be negative, got %d", index)
	}
	start := boundary(p, activation, index)
	end := boundary(p, activation, index+1)
	return Cycle{Index: index, StartAt: start, EndAt: end, BillingAttemptExpectedDate: start}, nil
}

// CycleForDate returns the cycle whose window contains the given date.
func CycleForDate(p contract.BillingPolicy, activation, date time.Time) (Cycle, error) {
	date = dateOf(date)
	first := boundary(p, activation, 0)
	if date.Before(first) {
		return Cycle{}, fmt.Errorf("date %s precedes the first cycle", date.Format("2006-01-02"))
	}
	idx := approxIndex(p, first, date)
	if idx < 0 {
		idx = 0
	}
	for idx > 0 && date.Before(boundary(p, activation, idx)) {
		idx--
	}
	for !date.Before(boundary(p, activation, idx+1)) {
		idx++
	}
	return CycleAt(p, activation, idx)
}

// boundary returns the i-th cycle boundary. Boundaries are strictly
// increasing; cycle i spans [boundary(i), boundary(i+1)).
//
// DAY intervals step from the activation date. WEEK intervals step from the
// first occurrence of the weekday anchor on/after activation. MONTH and YEAR
// intervals start their first cycle at activation and align every later
// boundary to the calendar anchor, clamping a day-of-month past the end of a
// short month to that month's last day. Clamping never loses the anchor: a
// day-31 anchor resolves to Feb 28 and back to Mar 31.
func boundary(p contract.BillingPolicy, activation time.Time, i int) time.Time {
	act := dateOf(activation)
	n := p.IntervalCount

	switch p.Interval {
	case contract.IntervalDay:
		return act.AddDate(0, 0, i*n)

	case contract.IntervalWeek:
		start := act
		if wd, ok := weekdayAnchor(p.Anchors); ok {
			start = nextWeekdayOnOrAfter(act, wd)
		}
		return start.AddDate(0, 0, 7*i*n)

	case contract.IntervalMonth:
		if i == 0 {
			return act
		}
		day := monthdayAnchor(p.Anchors, act)
		first := clampedDate(act.Year(), act.Month(), day)
		if !first.After(act) {
			first = clampedDate(act.Year(), act.Month()+time.Month(n), day)
		}
		return clampedDate(first.Year(), first.Month()+time.Month((i-1)*n), day)

	case contract.IntervalYear:
		if i == 0 {
			return act
		}
		month, day := yeardayAnchor(p.Anchors, act)
		first := clampedDate(act.Year(), month, day)
		if !first.After(act) {
			first = clampedDate(act.Year()+n, month, day)
		}
		return clampedDate(first.Year()+(i-1)*n, month, day)
	}
	return act
}

// approxIndex guesses the cycle index for a date; boundary monotonicity lets
// CycleForDate correct the guess in a couple of steps.
func approxIndex(p contract.BillingPolicy, first, date time.Time) int {
	days := int(date.Sub(first).Hours() / 24)
	switch p.Interval {
	case contract.IntervalDay:
		return days / p.IntervalCount
	case contract.IntervalWeek:
		return days / (7 * p.IntervalCount)
	case contract.IntervalMonth:
		months := (date.Year()-first.Year())*12 + int(date.Month()-first.Month())
		return months / p.IntervalCount
	case contract.IntervalYear:
		return (date.Year() - first.Year()) / p.IntervalCount
	}
	return 0
}

// ── Calendar helpers ──────────────────────────────────────────────────────────

// dateOf truncates a timestamp to a UTC calendar date. The engine schedules at
// day granularity.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// clampedDate builds a date clamping day to the length of the (normalized)
// month.
func clampedDate(year int, month time.Month, day int) time.Time {
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	if last := daysInMonth(firstOfMonth.Year(), firstOfMonth.Month()); day > last {
		day = last
	}
	return time.Date(firstOfMonth.Year(), firstOfMonth.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// isoWeekday maps time.Weekday to ISO 1 (Mon) – 7 (Sun).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func nextWeekdayOnOrAfter(t time.Time, iso int) time.Time {
	delta := (iso - isoWeekday(t) + 7) % 7
	return t.AddDate(0, 0, delta)
}

// Anchor extraction: the first anchor drives boundary computation; absent an
// anchor, the activation date fills in.

func weekdayAnchor(anchors []contract.Anchor) (int, bool) {
	for _, a := range anchors {
		if a.Type == contract.AnchorWeekday {
			return a.Day, true
		}
	}
	return 0, false
}

func monthdayAnchor(anchors []contract.Anchor, act time.Time) int {
	for _, a := range anchors {
		if a.Type == contract.AnchorMonthday {
			return a.Day
		}
	}
	return act.Day()
}

func yeardayAnchor(anchors []contract.Anchor, act time.Time) (time.Month, int) {
	for _, a := range anchors {
		if a.Type == contract.AnchorYearday {
			return time.Month(a.Month), a.Day
		}
	}
	return act.Month(), act.Day()
}
