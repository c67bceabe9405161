package audit

import "time"

// Action identifies what an audit entry records.
type Action string

const (
	ActionUserCreate             Action = "user.create"
	ActionUserUpdate             Action = "user.update"
	ActionUserDelete             Action = "user.delete"
	ActionSubmissionStatusUpdate Action = "submission.status_update"
	ActionSignIn                 Action = "auth.signin"
	ActionSignOut                Action = "auth.signout"
	ActionPasswordReset          Action = "auth.password_reset"
)

// Entry is one audit record. ActorID is the identity UUID of the admin
// who performed the action; Metadata carries action-specific detail
// such as the target user or the before and after of a change.
type Entry struct {
	ID         int64                  `json:"id"`
	ActorID    string                 `json:"actor_id"`
	ActorEmail string                 `json:"actor_email"`
	Action     Action                 `json:"action"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Filter narrows audit queries.
type Filter struct {
	ActorID string
	Action  Action
	Since   time.Time
	Until   time.Time
}
