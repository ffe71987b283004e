package shiftrecord

type ClockInRequest struct {
	ShiftType string   `json:"shift_type"`
	Reason    string   `json:"reason"`
	ShiftTime string   `json:"shift_time" binding:"required"`
	ImageURL  string   `json:"image_url" binding:"required"`
	Lat       *float64 `json:"lat" binding:"required"`
	Lon       *float64 `json:"lon" binding:"required"`
}

type ClockOutRequest struct {
	DocID     string   `json:"doc_id" binding:"required"`
	ShiftTime string   `json:"shift_time" binding:"required"`
	ImageURL  string   `json:"image_url" binding:"required"`
	Lat       *float64 `json:"lat" binding:"required"`
	Lon       *float64 `json:"lon" binding:"required"`
}

// EditRequest mutates any subset of the editable fields. Absent pointers
// leave the stored value untouched.
type EditRequest struct {
	DocID             string   `json:"document_id" binding:"required"`
	EditReason        string   `json:"edit_reason" binding:"required"`
	Lat               *float64 `json:"lat" binding:"required"`
	Lon               *float64 `json:"lon" binding:"required"`
	ShiftReason       *string  `json:"shift_reason"`
	ImageURLStart     *string  `json:"image_url_start"`
	ImageURLEnd       *string  `json:"image_url_end"`
	OfficialStartTime *string  `json:"official_start_time"`
	OfficialEndTime   *string  `json:"official_end_time"`
	StartTimestamp    *string  `json:"start_timestamp"`
	EndTimestamp      *string  `json:"end_timestamp"`
}

// OpenShiftSummary identifies a still-open record surfaced in advisory
// warnings.
type OpenShiftSummary struct {
	DocID string `json:"document_id"`
	Date  string `json:"date"`
}

type ClockInResponse struct {
	DocID        string             `json:"document_id"`
	Warning      string             `json:"warning,omitempty"`
	ActiveShifts []OpenShiftSummary `json:"active_shifts,omitempty"`
}

type ClockOutResponse struct {
	DocID string `json:"doc_id"`
}

type EditResponse struct {
	DocID string `json:"document_id"`
}
