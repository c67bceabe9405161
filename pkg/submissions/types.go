package submissions

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no submission has the given id.
	ErrNotFound = errors.New("submission not found")

	// ErrNotStatusBearing is returned when a status update targets a
	// submission type without a status workflow.
	ErrNotStatusBearing = errors.New("submission type does not carry a status")
)

// Type discriminates the two public intake forms.
type Type string

const (
	TypeVictimReport         Type = "victim_report"
	TypeVolunteerApplication Type = "volunteer_application"
)

// Valid returns true for recognized submission types.
func (t Type) Valid() bool {
	return t == TypeVictimReport || t == TypeVolunteerApplication
}

// StatusBearing reports whether the type carries the triage status
// workflow. Only victim reports do.
func (t Type) StatusBearing() bool {
	return t == TypeVictimReport
}

// Status is the triage state of a victim report.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusNew, StatusInProgress, StatusResolved:
		return Status(raw), true
	}
	return "", false
}

// Submission is one record from a public form. Status is empty for
// types without a workflow.
type Submission struct {
	ID          int64  `json:"id"`
	Type        Type   `json:"type"`
	Status      Status `json:"status,omitempty"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Region      string `json:"region"`
	District    string `json:"district,omitempty"`
	Description string `json:"description,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields intake refuses to accept without.
func (s *Submission) Validate() error {
	if !s.Type.Valid() {
		return errors.New("unrecognized submission type: " + string(s.Type))
	}
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Region == "" {
		return errors.New("region is required")
	}
	return nil
}
