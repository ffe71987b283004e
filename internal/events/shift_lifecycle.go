package events

import "time"

const ShiftLifecycleTopic = "time.shift.lifecycle.v1"

const (
	ShiftClockedIn  = "shift_clocked_in"
	ShiftClockedOut = "shift_clocked_out"
	ShiftEdited     = "shift_edited"
)

type ShiftLifecycleEvent struct {
	EventType  string    `json:"event_type"`
	RequestID  string    `json:"request_id,omitempty"`
	DocID      string    `json:"doc_id"`
	UserID     string    `json:"user_id"`
	OrgID      string    `json:"org_id"`
	ShiftType  string    `json:"shift_type"`
	ShiftDate  string    `json:"shift_date"`
	OccurredAt time.Time `json:"occurred_at"`
}
