package shiftrecord

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const ShiftTypeRegular = "regular"

// TimeInfo keeps the two parallel clocks of one time-point: the declared
// business instant (shift_time) and the server-observed instant (timestamp),
// plus the proof-of-presence photo and location captured with the action.
type TimeInfo struct {
	ShiftTime string  `json:"shift_time"`
	Timestamp string  `json:"timestamp"`
	ImageURL  string  `json:"image_url"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

func (t TimeInfo) Value() (driver.Value, error) {
	return json.Marshal(t)
}

func (t *TimeInfo) Scan(src any) error {
	if src == nil {
		*t = TimeInfo{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return errors.New("unsupported source type for TimeInfo")
	}
}

// EncodedChangeLog is the persisted audit trail: a jsonb array of
// self-describing JSON strings, one per entry. Append-only; partial updates
// replace the array wholesale.
type EncodedChangeLog []string

func (l EncodedChangeLog) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(l))
}

func (l *EncodedChangeLog) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, (*[]string)(l))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(l))
	default:
		return errors.New("unsupported source type for EncodedChangeLog")
	}
}

// ShiftRecord is the aggregate persisted per clock-in/clock-out cycle.
// user_id, org_id and shift_date are fixed at creation; is_complete moves
// false->true exactly once; the change log only ever grows.
type ShiftRecord struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID     string           `gorm:"column:user_id;type:varchar(64);not null;index"`
	OrgID      string           `gorm:"column:org_id;type:varchar(64);not null;index"`
	ShiftDate  string           `gorm:"column:shift_date;type:varchar(10);not null;index"`
	ShiftType  string           `gorm:"column:shift_type;type:varchar(30);not null;default:regular"`
	IsComplete bool             `gorm:"column:is_complete;not null;default:false"`
	Reason     string           `gorm:"column:reason;type:text"`
	StartTime  TimeInfo         `gorm:"column:start_time;type:jsonb;not null"`
	EndTime    *TimeInfo        `gorm:"column:end_time;type:jsonb"`
	ChangeLog  EncodedChangeLog `gorm:"column:change_log;type:jsonb;not null"`
	CreatedAt  time.Time        `gorm:"column:created_at"`
	UpdatedAt  time.Time        `gorm:"column:updated_at"`
}

func (ShiftRecord) TableName() string {
	return "shift_records"
}
