package workinghours

import "go-timetrack/internal/shiftrecord"

// Query narrows and orders an aggregation request. At least one of
// UserID/OrgID must be set; date bounds are inclusive YYYY-MM-DD.
type Query struct {
	UserID              string
	OrgID               string
	StartDate           string
	EndDate             string
	SortDatesAscending  bool
	SortShiftsAscending bool
}

// ShiftView is one shift with its derived fields attached. The duration
// pair is computed on read and stays nil while the shift is open.
type ShiftView struct {
	DocID               string                       `json:"document_id"`
	ShiftType           string                       `json:"shift_type"`
	IsComplete          bool                         `json:"is_complete"`
	Reason              string                       `json:"reason,omitempty"`
	StartTime           shiftrecord.TimeInfo         `json:"start_time"`
	EndTime             *shiftrecord.TimeInfo        `json:"end_time,omitempty"`
	ChangeLog           []shiftrecord.ChangeLogEntry `json:"change_log,omitempty"`
	ChangeLogUnreadable bool                         `json:"change_log_unreadable,omitempty"`
	ActualHours         *string                      `json:"actual_hours"`
	OfficialHours       *string                      `json:"official_hours"`
}

type DayShifts struct {
	Date  string      `json:"date"`
	Shift []ShiftView `json:"shift"`
}

type UserShifts struct {
	UserID   string      `json:"user_id"`
	OrgID    string      `json:"org_id"`
	AllShift []DayShifts `json:"all_shift"`
}

// ExportShift is the external rendering of one shift. An open shift only
// carries its id and a message; a closed one carries the clock pair in
// both actual and official form plus its narrated change history.
type ExportShift struct {
	DocID               string   `json:"document_id"`
	Message             string   `json:"message,omitempty"`
	Start               string   `json:"start,omitempty"`
	End                 string   `json:"end,omitempty"`
	StartOfficial       string   `json:"start_official,omitempty"`
	EndOfficial         string   `json:"end_official,omitempty"`
	Duration            string   `json:"duration,omitempty"`
	DurationOfficial    string   `json:"duration_official,omitempty"`
	Reason              string   `json:"reason,omitempty"`
	ChangeHistory       []string `json:"change_history,omitempty"`
	ChangeLogUnreadable bool     `json:"change_log_unreadable,omitempty"`
}

// ExportDay buckets a day's shifts by shift type, the shape downstream
// consumers (PDF export, summary UI) require.
type ExportDay struct {
	Date   string                   `json:"date"`
	Shifts map[string][]ExportShift `json:"shifts"`
}

type ExportUser struct {
	UserID         string      `json:"user_id"`
	OrgID          string      `json:"org_id"`
	WorkingSummary string      `json:"working_summary"`
	Status         string      `json:"status"`
	AllShift       []ExportDay `json:"all_shift"`
}
