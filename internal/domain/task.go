package domain

import "time"

// Priority of an imported plan task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// PlanTask is one entry of an externally supplied study plan.
type PlanTask struct {
	SourceTaskID string    `json:"source_task_id" validate:"required"`
	Subject      string    `json:"subject"`
	Title        string    `json:"title" validate:"required"`
	Date         time.Time `json:"date" validate:"required"`
	Priority     Priority  `json:"priority" validate:"omitempty,oneof=low medium high"`
}
