package domain

import "time"

// Kind classifies what a review item was created from.
type Kind string

const (
	KindFlashcard      Kind = "flashcard"
	KindTestReview     Kind = "test_review"
	KindDailyChallenge Kind = "daily_challenge"
	KindTopic          Kind = "topic"
	KindPlanTask       Kind = "plan_task"
)

// Origin tells manually created items apart from items derived from a study plan.
type Origin string

const (
	OriginManual       Origin = "manual"
	OriginPlanAnchor   Origin = "plan_anchor"
	OriginPlanFollowUp Origin = "plan_follow_up"
)

// ReviewItem is the unit being scheduled for one owner.
type ReviewItem struct {
	ID             string     `json:"id" validate:"required"`
	OwnerID        string     `json:"owner_id" validate:"required"`
	Kind           Kind       `json:"kind" validate:"omitempty,oneof=flashcard test_review daily_challenge topic plan_task"`
	SubjectLabel   string     `json:"subject_label,omitempty"`
	TopicLabel     string     `json:"topic_label,omitempty"`
	Stage          int        `json:"stage" validate:"gte=0"`
	NextReviewAt   time.Time  `json:"next_review_at" validate:"required"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	Completed      bool       `json:"completed"`
	Origin         Origin     `json:"origin" validate:"required,oneof=manual plan_anchor plan_follow_up"`
	SourceTaskID   string     `json:"source_task_id,omitempty" validate:"required_unless=Origin manual"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsDue reports whether the item should be presented at asOf.
func (i *ReviewItem) IsDue(asOf time.Time) bool {
	return !i.Completed && !i.NextReviewAt.After(asOf)
}
