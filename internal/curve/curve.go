package curve

import "time"

// DefaultIntervals is the forgetting-curve table in days. Index is the stage
// being entered.
var DefaultIntervals = []int{1, 7, 16, 35}

// Model maps a stage and a recall outcome onto the next stage and review date.
type Model struct {
	Intervals []int
}

// DefaultModel provides the fixed four-step table.
func DefaultModel() *Model {
	return &Model{Intervals: DefaultIntervals}
}

// Transition is the result of recording an outcome.
type Transition struct {
	Stage        int
	NextReviewAt time.Time
}

// Advance moves one step up the curve.
func (m *Model) Advance(stage int) int {
	return clamp(stage) + 1
}

// Regress moves one step down the curve, never below zero.
func (m *Model) Regress(stage int) int {
	return max(0, clamp(stage)-1)
}

// IntervalDays returns the days until the next review for a newly entered stage.
// Every stage past the table maps to the last entry doubled once.
func (m *Model) IntervalDays(stage int) int {
	stage = clamp(stage)
	if stage < len(m.Intervals) {
		return m.Intervals[stage]
	}
	return m.Intervals[len(m.Intervals)-1] * 2
}

// NextReviewDate adds the stage interval in calendar days, keeping the
// wall-clock time of from.
func (m *Model) NextReviewDate(stage int, from time.Time) time.Time {
	return from.AddDate(0, 0, m.IntervalDays(stage))
}

// RecordOutcome advances on a correct answer and regresses otherwise.
func (m *Model) RecordOutcome(stage int, wasCorrect bool, now time.Time) Transition {
	next := m.Regress(stage)
	if wasCorrect {
		next = m.Advance(stage)
	}
	return Transition{
		Stage:        next,
		NextReviewAt: m.NextReviewDate(next, now),
	}
}

func clamp(stage int) int {
	if stage < 0 {
		return 0
	}
	return stage
}
