package model

import (
	"time"

	"care-planner/internal/timeofday"
)

// Task is a timed instruction inside a care plan.
type Task struct {
	ID        string          `json:"id"`
	Content   string          `json:"content"`
	StartTime *timeofday.Time `json:"start_time"`
	EndTime   *timeofday.Time `json:"end_time"`
	Status    bool            `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Question is a free-text question a guardian leaves for caregivers.
// An empty Answer means unanswered.
type Question struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Answered reports whether a caregiver has answered q.
func (q Question) Answered() bool {
	return q.Answer != ""
}
