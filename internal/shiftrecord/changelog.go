package shiftrecord

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go-timetrack/internal/shared/timeutil"
)

const (
	ClockInEditReason  = "[SYSTEM] regular clock-in"
	ClockOutEditReason = "[SYSTEM] regular clock-out"
)

// Snapshot is the full record state captured immediately after the edit an
// entry describes. Diffing consecutive snapshots yields the human-readable
// change history; a shift without an end side snapshots a zeroed TimeInfo,
// never null, to stay compatible with what older writers stored.
type Snapshot struct {
	ShiftReason string   `json:"shift_reason"`
	StartTime   TimeInfo `json:"start_time"`
	EndTime     TimeInfo `json:"end_time"`
}

// ChangeLogEntry is one decoded audit entry. System entries are written by
// the engine on clock-in/clock-out; user entries by explicit edits.
type ChangeLogEntry struct {
	IsSystem   bool     `json:"is_system"`
	Timestamp  string   `json:"timestamp"`
	EditReason string   `json:"edit_reason"`
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	Data       Snapshot `json:"data"`
}

// encodedEntry mirrors the stored JSON. is_system is kept loose because
// historical writers stored it as the strings "true"/"false"; timestamp,
// edit_reason and data are pointers so absence is detectable.
type encodedEntry struct {
	IsSystem   json.RawMessage `json:"is_system"`
	Timestamp  *string         `json:"timestamp"`
	EditReason *string         `json:"edit_reason"`
	Lat        float64         `json:"lat"`
	Lon        float64         `json:"lon"`
	Data       *Snapshot       `json:"data"`
}

// BuildEntry assembles an entry stamped with the given (already
// timezone-shifted) timestamp. A nil end side encodes as a zeroed TimeInfo.
func BuildEntry(isSystem bool, timestamp, editReason string, lat, lon float64, start TimeInfo, end *TimeInfo, shiftReason string) ChangeLogEntry {
	entry := ChangeLogEntry{
		IsSystem:   isSystem,
		Timestamp:  timestamp,
		EditReason: editReason,
		Lat:        lat,
		Lon:        lon,
		Data: Snapshot{
			ShiftReason: shiftReason,
			StartTime:   start,
		},
	}
	if end != nil {
		entry.Data.EndTime = *end
	}
	return entry
}

// Encode renders the entry as its stored JSON string. is_system is written
// as a string for backward compatibility with the existing index.
func (e ChangeLogEntry) Encode() (string, error) {
	raw, err := json.Marshal(struct {
		IsSystem   string   `json:"is_system"`
		Timestamp  string   `json:"timestamp"`
		EditReason string   `json:"edit_reason"`
		Lat        float64  `json:"lat"`
		Lon        float64  `json:"lon"`
		Data       Snapshot `json:"data"`
	}{
		IsSystem:   strconv.FormatBool(e.IsSystem),
		Timestamp:  e.Timestamp,
		EditReason: e.EditReason,
		Lat:        e.Lat,
		Lon:        e.Lon,
		Data:       e.Data,
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

var ErrChangeLogUnreadable = errors.New("change log entry is structurally invalid")

// ParseEntries decodes the stored strings into typed entries. The contract
// is all-or-nothing: any entry missing timestamp, edit_reason or data fails
// the whole parse so a partially corrupt log is never silently truncated.
func ParseEntries(raw []string) ([]ChangeLogEntry, error) {
	if raw == nil {
		return nil, nil
	}

	entries := make([]ChangeLogEntry, 0, len(raw))
	for i, s := range raw {
		var enc encodedEntry
		if err := json.Unmarshal([]byte(s), &enc); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, ErrChangeLogUnreadable)
		}
		if enc.Timestamp == nil || enc.EditReason == nil || enc.Data == nil {
			return nil, fmt.Errorf("entry %d: %w", i, ErrChangeLogUnreadable)
		}

		isSystem, ok := decodeIsSystem(enc.IsSystem)
		if !ok {
			return nil, fmt.Errorf("entry %d: %w", i, ErrChangeLogUnreadable)
		}

		entries = append(entries, ChangeLogEntry{
			IsSystem:   isSystem,
			Timestamp:  *enc.Timestamp,
			EditReason: *enc.EditReason,
			Lat:        enc.Lat,
			Lon:        enc.Lon,
			Data:       *enc.Data,
		})
	}
	return entries, nil
}

// decodeIsSystem accepts both the boolean and the legacy "true"/"false"
// string encodings. Absent means user-initiated.
func decodeIsSystem(raw json.RawMessage) (bool, bool) {
	if len(raw) == 0 {
		return false, true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		parsed, err := strconv.ParseBool(s)
		if err != nil {
			return false, false
		}
		return parsed, true
	}
	return false, false
}

// Diff compares the previous entry's snapshot against the current one and
// emits one sentence per changed field, each prefixed with the edit reason
// and when it happened. Callers only invoke this for user entries that have
// a predecessor.
func Diff(current, previous ChangeLogEntry) []string {
	prefix := fmt.Sprintf("[%s @ %s] ", current.EditReason, timeutil.FormatDayTime(current.Timestamp))

	cur, prev := current.Data, previous.Data
	var lines []string

	if cur.ShiftReason != prev.ShiftReason {
		lines = append(lines, fmt.Sprintf("%sshift reason changed from %q to %q", prefix, prev.ShiftReason, cur.ShiftReason))
	}
	if cur.StartTime.ShiftTime != prev.StartTime.ShiftTime {
		lines = append(lines, fmt.Sprintf("%sstart time changed from %s to %s",
			prefix, timeutil.FormatDayTime(prev.StartTime.ShiftTime), timeutil.FormatDayTime(cur.StartTime.ShiftTime)))
	}
	if cur.StartTime.Timestamp != prev.StartTime.Timestamp {
		lines = append(lines, fmt.Sprintf("%sstart timestamp changed from %s to %s",
			prefix, timeutil.FormatDayTime(prev.StartTime.Timestamp), timeutil.FormatDayTime(cur.StartTime.Timestamp)))
	}
	if cur.EndTime.ShiftTime != prev.EndTime.ShiftTime {
		lines = append(lines, fmt.Sprintf("%send time changed from %s to %s",
			prefix, timeutil.FormatDayTime(prev.EndTime.ShiftTime), timeutil.FormatDayTime(cur.EndTime.ShiftTime)))
	}
	if cur.EndTime.Timestamp != prev.EndTime.Timestamp {
		lines = append(lines, fmt.Sprintf("%send timestamp changed from %s to %s",
			prefix, timeutil.FormatDayTime(prev.EndTime.Timestamp), timeutil.FormatDayTime(cur.EndTime.Timestamp)))
	}
	if cur.StartTime.ImageURL != prev.StartTime.ImageURL {
		lines = append(lines, fmt.Sprintf("%sstart photo changed from %q to %q", prefix, prev.StartTime.ImageURL, cur.StartTime.ImageURL))
	}
	if cur.EndTime.ImageURL != prev.EndTime.ImageURL {
		lines = append(lines, fmt.Sprintf("%send photo changed from %q to %q", prefix, prev.EndTime.ImageURL, cur.EndTime.ImageURL))
	}

	return lines
}
