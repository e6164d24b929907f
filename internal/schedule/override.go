// Package schedule resolves learner-chosen review times that bypass the
// forgetting curve.
package schedule

import (
	"fmt"
	"time"

	"github.com/conorfennell/studyplan/internal/domain"
)

// Option names a manual scheduling choice.
type Option string

const (
	// Reschedule dialog options. They move the date and keep the stage.
	Tomorrow Option = "tomorrow"
	In7Days  Option = "in_7_days"
	In30Days Option = "in_30_days"
	Custom   Option = "custom"

	// Quick actions. They restart the curve.
	QuickToday    Option = "quick_today"
	QuickTomorrow Option = "quick_tomorrow"
)

var rescheduleDays = map[Option]int{
	Tomorrow: 1,
	In7Days:  7,
	In30Days: 30,
}

// ParseOption validates an option name coming from an external caller.
func ParseOption(s string) (Option, error) {
	o := Option(s)
	switch o {
	case Tomorrow, In7Days, In30Days, Custom, QuickToday, QuickTomorrow:
		return o, nil
	}
	return "", &domain.ValidationError{Field: "option", Reason: fmt.Sprintf("unknown option %q", s)}
}

// IsQuick reports whether the option is a quick action.
func (o Option) IsQuick() bool {
	return o == QuickToday || o == QuickTomorrow
}

// Request is a manual override. Date is only read for Custom.
type Request struct {
	Option Option
	Date   time.Time
}

// Result is the resolved override.
type Result struct {
	NextReviewAt time.Time
	ResetStage   bool
}

// Planner resolves requests in the learner's location so "today" and
// "tomorrow noon" follow their calendar, not the server's.
type Planner struct {
	loc *time.Location
}

// NewPlanner creates a planner for loc. A nil loc means UTC.
func NewPlanner(loc *time.Location) *Planner {
	if loc == nil {
		loc = time.UTC
	}
	return &Planner{loc: loc}
}

// Location returns the planner's calendar location.
func (p *Planner) Location() *time.Location {
	return p.loc
}

// Resolve computes the next review time for req relative to now.
func (p *Planner) Resolve(req Request, now time.Time) (Result, error) {
	local := now.In(p.loc)
	y, m, d := local.Date()

	switch req.Option {
	case QuickToday:
		// In the final second of the day this is not after now, so the item
		// is due at once.
		return Result{
			NextReviewAt: time.Date(y, m, d, 23, 59, 59, 0, p.loc).UTC(),
			ResetStage:   true,
		}, nil
	case QuickTomorrow:
		return Result{
			NextReviewAt: time.Date(y, m, d+1, 12, 0, 0, 0, p.loc).UTC(),
			ResetStage:   true,
		}, nil
	case Tomorrow, In7Days, In30Days:
		return Result{NextReviewAt: local.AddDate(0, 0, rescheduleDays[req.Option]).UTC()}, nil
	case Custom:
		if req.Date.IsZero() {
			return Result{}, &domain.ValidationError{Field: "date", Reason: "required for a custom reschedule"}
		}
		if !req.Date.After(now) {
			return Result{}, &domain.ValidationError{Field: "date", Reason: "must be after the current moment"}
		}
		return Result{NextReviewAt: req.Date.UTC()}, nil
	}
	return Result{}, &domain.ValidationError{Field: "option", Reason: fmt.Sprintf("unknown option %q", req.Option)}
}
