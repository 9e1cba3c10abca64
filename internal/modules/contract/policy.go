package contract

import "fmt"

// ── Policies ──────────────────────────────────────────────────────────────────

// Interval is the granularity of a billing or delivery policy.
type Interval string

const (
	IntervalDay   Interval = "DAY"
	IntervalWeek  Interval = "WEEK"
	IntervalMonth Interval = "MONTH"
	IntervalYear  Interval = "YEAR"
)

// AnchorType discriminates which calendar rule an anchor applies.
type AnchorType string

const (
	AnchorWeekday  AnchorType = "WEEKDAY"  // Day is ISO weekday 1 (Mon) – 7 (Sun)
	AnchorMonthday AnchorType = "MONTHDAY" // Day is 1–31, clamped to month length
	AnchorYearday  AnchorType = "YEARDAY"  // Month 1–12 plus Day 1–31, clamped
)

// Anchor fixes cycle boundaries within an interval.
type Anchor struct {
	Type  AnchorType `json:"type"`
	Day   int        `json:"day"`
	Month int        `json:"month,omitempty"` // YEARDAY only
}

// BillingPolicy defines how often a contract is billed and where its cycle
// boundaries fall. Anchors are optional; without one, cycles are anchored at
// the contract activation date.
type BillingPolicy struct {
	Interval      Interval `json:"interval"`
	IntervalCount int      `json:"interval_count"`
	Anchors       []Anchor `json:"anchors,omitempty"`
	MinCycles     int      `json:"min_cycles,omitempty"`
	MaxCycles     *int     `json:"max_cycles,omitempty"`
}

// DeliveryPolicy defines how often deliveries occur. Same shape as the billing
// policy; delivery frequency may be a multiple of the billing frequency.
type DeliveryPolicy struct {
	Interval      Interval `json:"interval"`
	IntervalCount int      `json:"interval_count"`
	Anchors       []Anchor `json:"anchors,omitempty"`
}

// anchorTypeFor maps an interval to the anchor type it admits.
var anchorTypeFor = map[Interval]AnchorType{
	IntervalWeek:  AnchorWeekday,
	IntervalMonth: AnchorMonthday,
	IntervalYear:  AnchorYearday,
}

func validateInterval(interval Interval, count int, anchors []Anchor) error {
	switch interval {
	case IntervalDay, IntervalWeek, IntervalMonth, IntervalYear:
	default:
		return fmt.Errorf("unknown interval %q", interval)
	}
	if count < 1 {
		return fmt.Errorf("interval_count must be at least 1")
	}
	if interval == IntervalDay && len(anchors) > 0 {
		return fmt.Errorf("DAY interval does not take anchors")
	}
	want := anchorTypeFor[interval]
	for _, a := range anchors {
		if a.Type != want {
			return fmt.Errorf("anchor type %s does not match %s interval", a.Type, interval)
		}
		switch a.Type {
		case AnchorWeekday:
			if a.Day < 1 || a.Day > 7 {
				return fmt.Errorf("weekday anchor day must be 1-7, got %d", a.Day)
			}
		case AnchorMonthday:
			if a.Day < 1 || a.Day > 31 {
				return fmt.Errorf("monthday anchor day must be 1-31, got %d", a.Day)
			}
		case AnchorYearday:
			if a.Month < 1 || a.Month > 12 {
				return fmt.Errorf("yearday anchor month must be 1-12, got %d", a.Month)
			}
			if a.Day < 1 || a.Day > 31 {
				return fmt.Errorf("yearday anchor day must be 1-31, got %d", a.Day)
			}
		}
	}
	return nil
}

// Validate checks interval, count and anchor/interval agreement.
func (p BillingPolicy) Validate() error {
	if err := validateInterval(p.Interval, p.IntervalCount, p.Anchors); err != nil {
		return err
	}
	if p.MinCycles < 0 {
		return fmt.Errorf("min_cycles must not be negative")
	}
	if p.MaxCycles != nil {
		if *p.MaxCycles < 1 {
			return fmt.Errorf("max_cycles must be at least 1")
		}
		if p.MinCycles > *p.MaxCycles {
			return fmt.Errorf("min_cycles exceeds max_cycles")
		}
	}
	return nil
}

// Validate checks interval, count and anchor/interval agreement.
func (p DeliveryPolicy) Validate() error {
	return validateInterval(p.Interval, p.IntervalCount, p.Anchors)
}
