package model

import "time"

// DateLayout is the calendar-date format of CarePlan.Date.
const DateLayout = "2006-01-02"

// Role is the relationship between a user and a care plan.
type Role string

const (
	RoleGuardian  Role = "GUARDIAN"
	RoleCaregiver Role = "CAREGIVER"
)

// CarePlan is one day of care owned by a guardian. Tasks and questions are
// stored as whole JSON columns and always replaced together with the list.
type CarePlan struct {
	ID          string      `gorm:"primaryKey" json:"id"`
	GuardianID  uint        `gorm:"index" json:"guardian_id"`
	Date        string      `gorm:"index;size:10" json:"date"`
	PatientName string      `json:"patient_name,omitempty"`
	Tasks       []Task      `gorm:"type:text;serializer:json" json:"tasks"`
	Questions   []Question  `gorm:"type:text;serializer:json" json:"questions"`
	Caregivers  []Caregiver `gorm:"foreignKey:CarePlanID" json:"caregivers"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsPast reports whether the plan's date is before the calendar day of today.
func (p CarePlan) IsPast(today time.Time) bool {
	return p.Date < today.Format(DateLayout)
}

// Day parses Date in loc.
func (p CarePlan) Day(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, p.Date, loc)
}

// RoleOf returns the role userID holds on the plan. Caregivers count only once
// they have accepted their invite.
func (p CarePlan) RoleOf(userID uint) (Role, bool) {
	if p.GuardianID == userID {
		return RoleGuardian, true
	}
	for _, cg := range p.Caregivers {
		if cg.UserID != nil && *cg.UserID == userID && cg.Status == CaregiverAccepted {
			return RoleCaregiver, true
		}
	}
	return "", false
}

// CaregiverFor returns the caregiver row of userID, accepted or not.
func (p CarePlan) CaregiverFor(userID uint) (*Caregiver, bool) {
	for i := range p.Caregivers {
		if cg := p.Caregivers[i]; cg.UserID != nil && *cg.UserID == userID {
			return &p.Caregivers[i], true
		}
	}
	return nil, false
}
