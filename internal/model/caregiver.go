package model

import "time"

// CaregiverStatus tracks the invite flow of a caregiver.
type CaregiverStatus string

const (
	CaregiverInvited  CaregiverStatus = "INVITED"
	CaregiverAccepted CaregiverStatus = "ACCEPTED"
)

// Caregiver attaches a user to a care plan. UserID stays nil until the invite
// code is redeemed. InviteCode is never serialized; only the invite response
// carries it.
type Caregiver struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	CarePlanID string          `gorm:"index" json:"care_plan_id"`
	UserID     *uint           `gorm:"index" json:"user_id"`
	Name       string          `json:"name"`
	Status     CaregiverStatus `gorm:"size:16;default:INVITED" json:"status"`
	InviteCode string          `gorm:"uniqueIndex;size:32" json:"-"`
	Notes      []CaregiverNote `gorm:"type:text;serializer:json" json:"notes"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CaregiverNote is a timestamped remark a caregiver leaves on the plan.
type CaregiverNote struct {
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}
