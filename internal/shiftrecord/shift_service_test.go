package shiftrecord

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"go-timetrack/internal/shared/apperror"
	shifterrors "go-timetrack/internal/shiftrecord/errors"
)

type fakeRepo struct {
	createFn         func(ctx context.Context, rec *ShiftRecord) error
	getByIDFn        func(ctx context.Context, id string) (*ShiftRecord, error)
	updateByIDFn     func(ctx context.Context, id string, fields map[string]any) error
	findOpenShiftFn  func(ctx context.Context, userID, date, shiftType string) (*ShiftRecord, error)
	findOpenShiftsFn func(ctx context.Context, userID, shiftType string) ([]ShiftRecord, error)
	searchFn         func(ctx context.Context, filter SearchFilter, sort SearchSort, limit int) ([]ShiftRecord, error)
}

func (f *fakeRepo) WithTx(tx *sql.Tx) Repository { return f }
func (f *fakeRepo) Create(ctx context.Context, rec *ShiftRecord) error {
	return f.createFn(ctx, rec)
}
func (f *fakeRepo) GetByID(ctx context.Context, id string) (*ShiftRecord, error) {
	return f.getByIDFn(ctx, id)
}
func (f *fakeRepo) UpdateByID(ctx context.Context, id string, fields map[string]any) error {
	return f.updateByIDFn(ctx, id, fields)
}
func (f *fakeRepo) FindOpenShift(ctx context.Context, userID, date, shiftType string) (*ShiftRecord, error) {
	if f.findOpenShiftFn == nil {
		return nil, nil
	}
	return f.findOpenShiftFn(ctx, userID, date, shiftType)
}
func (f *fakeRepo) FindOpenShifts(ctx context.Context, userID, shiftType string) ([]ShiftRecord, error) {
	if f.findOpenShiftsFn == nil {
		return nil, nil
	}
	return f.findOpenShiftsFn(ctx, userID, shiftType)
}
func (f *fakeRepo) Search(ctx context.Context, filter SearchFilter, sort SearchSort, limit int) ([]ShiftRecord, error) {
	return f.searchFn(ctx, filter, sort, limit)
}

type fakeResolver struct {
	orgID string
	err   error
}

func (f *fakeResolver) GetOrganization(ctx context.Context, userID string) (string, error) {
	return f.orgID, f.err
}

func newTestService(t *testing.T, repo Repository) (Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(db, repo, &fakeResolver{orgID: "org-1"}, nil, 7)
	svc.(*service).nowFn = func() time.Time {
		return time.Date(2024, 1, 25, 9, 0, 0, 0, time.UTC)
	}
	return svc, mock
}

func validClockIn() ClockInRequest {
	lat, lon := 13.7563, 100.5018
	return ClockInRequest{
		Reason:    "regular workday",
		ShiftTime: "2024-01-25T08:30:45.123Z",
		ImageURL:  "https://img.example/in.jpg",
		Lat:       &lat,
		Lon:       &lon,
	}
}

func TestService_ClockIn_Success(t *testing.T) {
	var saved ShiftRecord
	repo := &fakeRepo{
		createFn: func(ctx context.Context, rec *ShiftRecord) error {
			saved = *rec
			return nil
		},
	}
	svc, mock := newTestService(t, repo)

	mock.ExpectBegin()
	mock.ExpectCommit()
	resp, err := svc.ClockIn(context.Background(), "user-1", validClockIn())
	require.NoError(t, err)

	assert.NotEmpty(t, resp.DocID)
	assert.Empty(t, resp.Warning)
	assert.Equal(t, "user-1", saved.UserID)
	assert.Equal(t, "org-1", saved.OrgID)
	assert.Equal(t, ShiftTypeRegular, saved.ShiftType)
	// The effective date follows the configured offset, not raw UTC.
	assert.Equal(t, "2024-01-25", saved.ShiftDate)
	assert.False(t, saved.IsComplete)
	assert.Nil(t, saved.EndTime)
	assert.Equal(t, "2024-01-25T08:30:45.123Z", saved.StartTime.ShiftTime)
	assert.Equal(t, "2024-01-25T16:00:00.000Z", saved.StartTime.Timestamp)

	entries, err := ParseEntries(saved.ChangeLog)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsSystem)
	assert.Equal(t, ClockInEditReason, entries[0].EditReason)
	assert.Equal(t, saved.StartTime, entries[0].Data.StartTime)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ClockIn_InvalidShiftTime(t *testing.T) {
	svc, mock := newTestService(t, &fakeRepo{})

	for _, bad := range []string{"", "2024-01-25", "2024-01-25T08:30:45Z", "not a time"} {
		req := validClockIn()
		req.ShiftTime = bad
		_, err := svc.ClockIn(context.Background(), "user-1", req)
		assert.ErrorIs(t, err, shifterrors.ErrInvalidShiftTime, "input %q", bad)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ClockIn_AlreadyClockedIn(t *testing.T) {
	open := &ShiftRecord{ID: uuid.New(), ShiftDate: "2024-01-25"}
	repo := &fakeRepo{
		findOpenShiftFn: func(ctx context.Context, userID, date, shiftType string) (*ShiftRecord, error) {
			return open, nil
		},
	}
	svc, mock := newTestService(t, repo)

	_, err := svc.ClockIn(context.Background(), "user-1", validClockIn())
	require.Error(t, err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.CodeConflict, appErr.Code)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, open.ID.String(), details["document_id"])
	assert.Equal(t, "2024-01-25", details["date"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ClockIn_WarnsOnStaleOpenShifts(t *testing.T) {
	stale := ShiftRecord{ID: uuid.New(), ShiftDate: "2024-01-23"}
	repo := &fakeRepo{
		createFn: func(ctx context.Context, rec *ShiftRecord) error { return nil },
		findOpenShiftsFn: func(ctx context.Context, userID, shiftType string) ([]ShiftRecord, error) {
			return []ShiftRecord{stale}, nil
		},
	}
	svc, mock := newTestService(t, repo)

	mock.ExpectBegin()
	mock.ExpectCommit()
	resp, err := svc.ClockIn(context.Background(), "user-1", validClockIn())
	require.NoError(t, err)

	// The stale record warns but never blocks the new clock-in.
	assert.NotEmpty(t, resp.DocID)
	assert.NotEmpty(t, resp.Warning)
	require.Len(t, resp.ActiveShifts, 1)
	assert.Equal(t, stale.ID.String(), resp.ActiveShifts[0].DocID)
	assert.Equal(t, "2024-01-23", resp.ActiveShifts[0].Date)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func openRecord(userID string) *ShiftRecord {
	return &ShiftRecord{
		ID:        uuid.New(),
		UserID:    userID,
		OrgID:     "org-1",
		ShiftDate: "2024-01-25",
		ShiftType: ShiftTypeRegular,
		Reason:    "regular workday",
		StartTime: TimeInfo{
			ShiftTime: "2024-01-25T08:30:45.123Z",
			Timestamp: "2024-01-25T15:31:02.456Z",
			ImageURL:  "https://img.example/in.jpg",
		},
		ChangeLog: EncodedChangeLog{
			`{"is_system":"true","timestamp":"2024-01-25T15:31:02.456Z","edit_reason":"[SYSTEM] regular clock-in","lat":0,"lon":0,"data":{"shift_reason":"regular workday","start_time":{"shift_time":"2024-01-25T08:30:45.123Z","timestamp":"2024-01-25T15:31:02.456Z","image_url":"https://img.example/in.jpg","lat":0,"lon":0},"end_time":{"shift_time":"","timestamp":"","image_url":"","lat":0,"lon":0}}}`,
		},
	}
}

func validClockOut(docID string) ClockOutRequest {
	lat, lon := 13.7563, 100.5018
	return ClockOutRequest{
		DocID:     docID,
		ShiftTime: "2024-01-25T17:30:00.000Z",
		ImageURL:  "https://img.example/out.jpg",
		Lat:       &lat,
		Lon:       &lon,
	}
}

func TestService_ClockOut_Success(t *testing.T) {
	rec := openRecord("user-1")
	var updated map[string]any
	repo := &fakeRepo{
		getByIDFn: func(ctx context.Context, id string) (*ShiftRecord, error) { return rec, nil },
		updateByIDFn: func(ctx context.Context, id string, fields map[string]any) error {
			updated = fields
			return nil
		},
	}
	svc, mock := newTestService(t, repo)

	mock.ExpectBegin()
	mock.ExpectCommit()
	resp, err := svc.ClockOut(context.Background(), "user-1", validClockOut(rec.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, rec.ID.String(), resp.DocID)

	require.NotNil(t, updated)
	assert.Equal(t, true, updated["is_complete"])

	end, ok := updated["end_time"].(TimeInfo)
	require.True(t, ok)
	assert.Equal(t, "2024-01-25T17:30:00.000Z", end.ShiftTime)
	assert.Equal(t, "2024-01-25T16:00:00.000Z", end.Timestamp)

	// Append-only: the original entry survives byte for byte, the system
	// clock-out entry lands behind it.
	log, ok := updated["change_log"].(EncodedChangeLog)
	require.True(t, ok)
	require.Len(t, log, 2)
	assert.Equal(t, rec.ChangeLog[0], log[0])

	entries, err := ParseEntries(log)
	require.NoError(t, err)
	assert.True(t, entries[1].IsSystem)
	assert.Equal(t, ClockOutEditReason, entries[1].EditReason)
	assert.Equal(t, end, entries[1].Data.EndTime)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ClockOut_InvalidatesExportCache(t *testing.T) {
	rec := openRecord("user-1")
	repo := &fakeRepo{
		getByIDFn:    func(ctx context.Context, id string) (*ShiftRecord, error) { return rec, nil },
		updateByIDFn: func(ctx context.Context, id string, fields map[string]any) error { return nil },
	}

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	rdb, rmock := redismock.NewClientMock()

	svc := NewService(db, repo, &fakeResolver{orgID: "org-1"}, rdb, 7)
	svc.(*service).nowFn = func() time.Time {
		return time.Date(2024, 1, 25, 9, 0, 0, 0, time.UTC)
	}

	mock.ExpectBegin()
	mock.ExpectCommit()
	// Exports can be cached under the pair or under either identity alone;
	// a successful clock-out must drop all three.
	rmock.ExpectDel(
		"workinghours:export:user-1:org-1",
		"workinghours:export:user-1:",
		"workinghours:export::org-1",
	).SetVal(3)

	_, err = svc.ClockOut(context.Background(), "user-1", validClockOut(rec.ID.String()))
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestService_ClockOut_NotOwner(t *testing.T) {
	rec := openRecord("someone-else")
	repo := &fakeRepo{
		getByIDFn: func(ctx context.Context, id string) (*ShiftRecord, error) { return rec, nil },
	}
	svc, _ := newTestService(t, repo)

	_, err := svc.ClockOut(context.Background(), "user-1", validClockOut(rec.ID.String()))
	assert.ErrorIs(t, err, shifterrors.ErrNotRecordOwner)
}

func TestService_ClockOut_NotFound(t *testing.T) {
	repo := &fakeRepo{
		getByIDFn: func(ctx context.Context, id string) (*ShiftRecord, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc, _ := newTestService(t, repo)

	_, err := svc.ClockOut(context.Background(), "user-1", validClockOut(uuid.NewString()))
	assert.ErrorIs(t, err, shifterrors.ErrRecordNotFound)
}

func TestService_ClockOut_AlreadyComplete(t *testing.T) {
	rec := openRecord("user-1")
	rec.IsComplete = true
	repo := &fakeRepo{
		getByIDFn: func(ctx context.Context, id string) (*ShiftRecord, error) { return rec, nil },
	}
	svc, _ := newTestService(t, repo)

	_, err := svc.ClockOut(context.Background(), "user-1", validClockOut(rec.ID.String()))
	assert.ErrorIs(t, err, shifterrors.ErrAlreadyComplete)
}

func TestService_ClockOut_EndNotAfterStart(t *testing.T) {
	rec := openRecord("user-1")
	persisted := false
	repo := &fakeRepo{
		getByIDFn: func(ctx context.Context, id string) (*ShiftRecord, error) { return rec, nil },
		updateByIDFn: func(ctx context.Context, id string, fields map[string]any) error {
			persisted = true
			return nil
		},
	}
	svc, _ := newTestService(t, repo)

	for _, end := range []string{"2024-01-25T07:00:00.000Z", rec.StartTime.ShiftTime} {
		req := validClockOut(rec.ID.String())
		req.ShiftTime = end
		_, err := svc.ClockOut(context.Background(), "user-1", req)
		require.Error(t, err, "end %q", end)
		assert.Contains(t, err.Error(), end)
		assert.Contains(t, err.Error(), rec.StartTime.ShiftTime)
	}
	// Rejected clock-outs must leave the record untouched.
	assert.False(t, persisted)
}

func completedRecord(userID string) *ShiftRecord {
	rec := openRecord(userID)
	rec.IsComplete = true
	rec.EndTime = &TimeInfo{
		ShiftTime: "2024-01-25T17:30:00.000Z",
		Timestamp: "2024-01-26T00:31:00.000Z",
		ImageURL:  "https://img.example/out.jpg",
	}
	rec.ChangeLog = append(rec.ChangeLog,
		`{"is_system":"true","timestamp":"2024-01-26T00:31:00.000Z","edit_reason":"[SYSTEM] regular clock-out","lat":0,"lon":0,"data":{"shift_reason":"regular workday","start_time":{"shift_time":"2024-01-25T08:30:45.123Z","timestamp":"2024-01-25T15:31:02.456Z","image_url":"https://img.example/in.jpg","lat":0,"lon":0},"end_time":{"shift_time":"2024-01-25T17:30:00.000Z","timestamp":"2024-01-26T00:31:00.000Z","image_url":"https://img.example/out.jpg","lat":0,"lon":0}}}`,
	)
	return rec
}

func validEdit(docID string) EditRequest {
	lat, lon := 13.7563, 100.5018
	return EditRequest{
		DocID:      docID,
		EditReason: "corrected leave time",
		Lat:        &lat,
		Lon:        &lon,
	}
}

func TestService_Edit_EndTime(t *testing.T) {
	rec := completedRecord("user-1")
	var updated map[string]any
	repo := &fakeRepo{
		getByIDFn: func(ctx context.Context, id string) (*ShiftRecord, error) { return rec, nil },
		updateByIDFn: func(ctx context.Context, id string, fields map[string]any) error {
			updated = fields
			return nil
		},
	}
	svc, mock := newTestService(t, repo)

	newEnd := "2024-01-25T18:45:00.000Z"
	req := validEdit(rec.ID.String())
	req.OfficialEndTime = &newEnd

	mock.ExpectBegin()
	mock.ExpectCommit()
	resp, err := svc.Edit(context.Background(), "user-1", req)
	require.NoError(t, err)
	assert.Equal(t, rec.ID.String(), resp.DocID)

	// Only the touched side and the log are written; completion state and
	// the start side stay out of the update.
	require.NotNil(t, updated)
	assert.NotContains(t, updated, "is_complete")
	assert.NotContains(t, updated, "start_time")
	assert.NotContains(t, updated, "reason")

	end, ok := updated["end_time"].(TimeInfo)
	require.True(t, ok)
	assert.Equal(t, newEnd, end.ShiftTime)
	// Untouched sub-fields of the end side carry over.
	assert.Equal(t, rec.EndTime.Timestamp, end.Timestamp)
	assert.Equal(t, rec.EndTime.ImageURL, end.ImageURL)

	log, ok := updated["change_log"].(EncodedChangeLog)
	require.True(t, ok)
	require.Len(t, log, 3)
	assert.Equal(t, rec.ChangeLog[0], log[0])
	assert.Equal(t, rec.ChangeLog[1], log[1])

	entries, err := ParseEntries(log)
	require.NoError(t, err)
	last := entries[2]
	assert.False(t, last.IsSystem)
	assert.Equal(t, "corrected leave time", last.EditReason)
	assert.Equal(t, newEnd, last.Data.EndTime.ShiftTime)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Edit_MissingEndGuard(t *testing.T) {
	rec := openRecord("user-1")
	repo := &fakeRepo{
		getByIDFn: func(ctx context.Context, id string) (*ShiftRecord, error) { return rec, nil },
	}
	svc, _ := newTestService(t, repo)

	newEnd := "2024-01-25T18:45:00.000Z"
	req := validEdit(rec.ID.String())
	req.OfficialEndTime = &newEnd

	_, err := svc.Edit(context.Background(), "user-1", req)
	assert.ErrorIs(t, err, shifterrors.ErrCannotEditMissingEnd)
}

func TestService_Edit_MissingReasonGuard(t *testing.T) {
	rec := completedRecord("user-1")
	rec.Reason = ""
	repo := &fakeRepo{
		getByIDFn: func(ctx context.Context, id string) (*ShiftRecord, error) { return rec, nil },
	}
	svc, _ := newTestService(t, repo)

	reason := "late train"
	req := validEdit(rec.ID.String())
	req.ShiftReason = &reason

	_, err := svc.Edit(context.Background(), "user-1", req)
	assert.ErrorIs(t, err, shifterrors.ErrCannotEditMissingReason)
}

func TestService_Edit_InvalidTimeField(t *testing.T) {
	svc, _ := newTestService(t, &fakeRepo{})

	bad := "2024-01-25T18:45:00Z"
	req := validEdit(uuid.NewString())
	req.OfficialEndTime = &bad

	_, err := svc.Edit(context.Background(), "user-1", req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "official_end_time")
}

func TestService_Edit_RejectsReversedBounds(t *testing.T) {
	rec := completedRecord("user-1")
	repo := &fakeRepo{
		getByIDFn: func(ctx context.Context, id string) (*ShiftRecord, error) { return rec, nil },
	}
	svc, _ := newTestService(t, repo)

	// Moving the start past the stored end must fail even though only the
	// start side is being edited.
	newStart := "2024-01-25T19:00:00.000Z"
	req := validEdit(rec.ID.String())
	req.OfficialStartTime = &newStart

	_, err := svc.Edit(context.Background(), "user-1", req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), newStart)
	assert.Contains(t, err.Error(), rec.EndTime.ShiftTime)
}

func TestService_Edit_OfficialTimeWinsOverTimestamp(t *testing.T) {
	rec := completedRecord("user-1")
	var updated map[string]any
	repo := &fakeRepo{
		getByIDFn: func(ctx context.Context, id string) (*ShiftRecord, error) { return rec, nil },
		updateByIDFn: func(ctx context.Context, id string, fields map[string]any) error {
			updated = fields
			return nil
		},
	}
	svc, mock := newTestService(t, repo)

	official := "2024-01-25T19:00:00.000Z"
	observed := "2024-01-25T19:05:00.000Z"
	req := validEdit(rec.ID.String())
	req.OfficialEndTime = &official
	req.EndTimestamp = &observed

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := svc.Edit(context.Background(), "user-1", req)
	require.NoError(t, err)

	end, ok := updated["end_time"].(TimeInfo)
	require.True(t, ok)
	assert.Equal(t, official, end.ShiftTime)
	assert.Equal(t, observed, end.Timestamp)

	assert.NoError(t, mock.ExpectationsWereMet())
}
