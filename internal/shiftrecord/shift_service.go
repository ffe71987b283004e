package shiftrecord

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go-timetrack/internal/events"
	"go-timetrack/internal/messaging/kafka"
	"go-timetrack/internal/shared/apperror"
	"go-timetrack/internal/shared/cachekey"
	"go-timetrack/internal/shared/contextutil"
	"go-timetrack/internal/shared/timeutil"
	shifterrors "go-timetrack/internal/shiftrecord/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Resolver is the identity collaborator the engine needs: user -> org id.
// Declared here so the engine states its own dependency surface.
type Resolver interface {
	GetOrganization(ctx context.Context, userID string) (string, error)
}

//go:generate mockgen -source=shift_service.go -destination=mock/shift_service_mock.go -package=mock
type Service interface {
	ClockIn(ctx context.Context, userID string, req ClockInRequest) (ClockInResponse, error)
	ClockOut(ctx context.Context, userID string, req ClockOutRequest) (ClockOutResponse, error)
	Edit(ctx context.Context, userID string, req EditRequest) (EditResponse, error)
}

type service struct {
	db       *sql.DB
	repo     Repository
	resolver Resolver
	outbox   kafka.OutboxRepository
	rdb      *redis.Client
	tzOffset int
	nowFn    func() time.Time
	logger   *zap.Logger
}

func NewService(db *sql.DB, repo Repository, resolver Resolver, rdb *redis.Client, tzOffset int, logger ...*zap.Logger) Service {
	return NewServiceWithOutbox(db, repo, resolver, nil, rdb, tzOffset, logger...)
}

func NewServiceWithOutbox(
	db *sql.DB,
	repo Repository,
	resolver Resolver,
	outboxRepo kafka.OutboxRepository,
	rdb *redis.Client,
	tzOffset int,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("shiftrecord.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("shiftrecord.service")
	}
	return &service{
		db:       db,
		repo:     repo,
		resolver: resolver,
		outbox:   outboxRepo,
		rdb:      rdb,
		tzOffset: tzOffset,
		nowFn:    time.Now,
		logger:   l,
	}
}

// shiftedNow renders the current instant already moved into the configured
// display offset, which is how observed timestamps are stored.
func (s *service) shiftedNow() string {
	now := s.nowFn().UTC().Format(timeutil.UTCDateTimeLayout)
	return timeutil.ShiftTimezone(now, s.tzOffset)
}

// log prefers the request-scoped logger attached by the middleware, which
// already carries request_id and user_id.
func (s *service) log(ctx context.Context) *zap.Logger {
	return contextutil.GetLogger(ctx, s.logger)
}

func (s *service) ClockIn(ctx context.Context, userID string, req ClockInRequest) (ClockInResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.log(ctx).Debug("clock-in requested",
		zap.String("user_id", userID),
		zap.String("shift_type", req.ShiftType),
	)

	if !timeutil.IsValidUTCDateTime(req.ShiftTime) {
		return ClockInResponse{}, shifterrors.ErrInvalidShiftTime
	}

	orgID, err := s.resolver.GetOrganization(ctx, userID)
	if err != nil {
		return ClockInResponse{}, err
	}

	shiftType := req.ShiftType
	if shiftType == "" {
		shiftType = ShiftTypeRegular
	}

	date, ok := timeutil.DateInOffset(req.ShiftTime, s.tzOffset)
	if !ok {
		return ClockInResponse{}, shifterrors.ErrInvalidShiftTime
	}

	// An open regular shift on the same effective date is a hard conflict.
	// Open shifts of the same type on other dates are advisory only.
	if shiftType == ShiftTypeRegular {
		existing, err := s.repo.FindOpenShift(ctx, userID, date, ShiftTypeRegular)
		if err != nil {
			return ClockInResponse{}, s.mapStoreError(err)
		}
		if existing != nil {
			return ClockInResponse{}, shifterrors.ErrAlreadyClockedIn.WithDetails(map[string]string{
				"document_id": existing.ID.String(),
				"date":        existing.ShiftDate,
			})
		}
	}

	var stale []OpenShiftSummary
	if open, err := s.repo.FindOpenShifts(ctx, userID, shiftType); err != nil {
		s.log(ctx).Warn("open shift lookup failed, skipping warning", zap.Error(err))
	} else {
		for _, rec := range open {
			if rec.ShiftDate != date {
				stale = append(stale, OpenShiftSummary{DocID: rec.ID.String(), Date: rec.ShiftDate})
			}
		}
	}

	local := s.shiftedNow()
	startInfo := TimeInfo{
		ShiftTime: req.ShiftTime,
		Timestamp: local,
		ImageURL:  req.ImageURL,
		Lat:       deref(req.Lat),
		Lon:       deref(req.Lon),
	}

	entry := BuildEntry(true, local, ClockInEditReason, startInfo.Lat, startInfo.Lon, startInfo, nil, req.Reason)
	encoded, err := entry.Encode()
	if err != nil {
		return ClockInResponse{}, apperror.Wrap(err, apperror.CodeInternalError, "encode change log entry failed", http.StatusInternalServerError)
	}

	rec := &ShiftRecord{
		ID:         uuid.New(),
		UserID:     userID,
		OrgID:      orgID,
		ShiftDate:  date,
		ShiftType:  shiftType,
		IsComplete: false,
		Reason:     req.Reason,
		StartTime:  startInfo,
		ChangeLog:  EncodedChangeLog{encoded},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ClockInResponse{}, s.mapStoreError(err)
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	if err := qtx.Create(ctx, rec); err != nil {
		if IsUniqueViolation(err) {
			return ClockInResponse{}, shifterrors.ErrAlreadyClockedIn
		}
		s.log(ctx).Error("clock-in persist failed", zap.Error(err))
		return ClockInResponse{}, s.mapStoreError(err)
	}

	if err := s.queueEvent(ctx, tx, rid, events.ShiftClockedIn, rec); err != nil {
		return ClockInResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return ClockInResponse{}, s.mapStoreError(err)
	}

	s.invalidateExportCache(ctx, userID, orgID)

	s.log(ctx).Info("clock-in success",
		zap.String("document_id", rec.ID.String()),
		zap.String("shift_date", date),
	)

	resp := ClockInResponse{DocID: rec.ID.String()}
	if len(stale) > 0 {
		resp.Warning = "you have incomplete " + shiftType + " shifts from other days"
		resp.ActiveShifts = stale
	}
	return resp, nil
}

func (s *service) ClockOut(ctx context.Context, userID string, req ClockOutRequest) (ClockOutResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.log(ctx).Debug("clock-out requested",
		zap.String("user_id", userID),
		zap.String("document_id", req.DocID),
	)

	if !timeutil.IsValidUTCDateTime(req.ShiftTime) {
		return ClockOutResponse{}, shifterrors.ErrInvalidShiftTime
	}

	rec, err := s.repo.GetByID(ctx, req.DocID)
	if err != nil {
		return ClockOutResponse{}, s.mapStoreError(err)
	}
	if rec.UserID != userID {
		return ClockOutResponse{}, shifterrors.ErrNotRecordOwner
	}
	// Optimistic check against the fresh fetch. Two racing clock-outs can
	// still both pass under weak store isolation; see DESIGN.md.
	if rec.IsComplete {
		return ClockOutResponse{}, shifterrors.ErrAlreadyComplete
	}

	if !isStrictlyAfter(rec.StartTime.ShiftTime, req.ShiftTime) {
		return ClockOutResponse{}, shifterrors.InvalidTimeOrder(rec.StartTime.ShiftTime, req.ShiftTime)
	}

	local := s.shiftedNow()
	endInfo := TimeInfo{
		ShiftTime: req.ShiftTime,
		Timestamp: local,
		ImageURL:  req.ImageURL,
		Lat:       deref(req.Lat),
		Lon:       deref(req.Lon),
	}

	entry := BuildEntry(true, local, ClockOutEditReason, endInfo.Lat, endInfo.Lon, rec.StartTime, &endInfo, rec.Reason)
	encoded, err := entry.Encode()
	if err != nil {
		return ClockOutResponse{}, apperror.Wrap(err, apperror.CodeInternalError, "encode change log entry failed", http.StatusInternalServerError)
	}

	fields := map[string]any{
		"end_time":    endInfo,
		"is_complete": true,
		"change_log":  append(rec.ChangeLog, encoded),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ClockOutResponse{}, s.mapStoreError(err)
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	if err := qtx.UpdateByID(ctx, req.DocID, fields); err != nil {
		s.log(ctx).Error("clock-out persist failed", zap.Error(err))
		return ClockOutResponse{}, s.mapStoreError(err)
	}

	if err := s.queueEvent(ctx, tx, rid, events.ShiftClockedOut, rec); err != nil {
		return ClockOutResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return ClockOutResponse{}, s.mapStoreError(err)
	}

	s.invalidateExportCache(ctx, rec.UserID, rec.OrgID)

	s.log(ctx).Info("clock-out success",
		zap.String("document_id", req.DocID),
	)

	return ClockOutResponse{DocID: req.DocID}, nil
}

func (s *service) Edit(ctx context.Context, userID string, req EditRequest) (EditResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.log(ctx).Debug("edit requested",
		zap.String("user_id", userID),
		zap.String("document_id", req.DocID),
	)

	for field, v := range map[string]*string{
		"official_start_time": req.OfficialStartTime,
		"official_end_time":   req.OfficialEndTime,
		"start_timestamp":     req.StartTimestamp,
		"end_timestamp":       req.EndTimestamp,
	} {
		if v != nil && !timeutil.IsValidUTCDateTime(*v) {
			return EditResponse{}, shifterrors.InvalidTimeField(field)
		}
	}

	rec, err := s.repo.GetByID(ctx, req.DocID)
	if err != nil {
		return EditResponse{}, s.mapStoreError(err)
	}
	if rec.UserID != userID {
		return EditResponse{}, shifterrors.ErrNotRecordOwner
	}

	startEdited := req.OfficialStartTime != nil || req.StartTimestamp != nil || req.ImageURLStart != nil
	endEdited := req.OfficialEndTime != nil || req.EndTimestamp != nil || req.ImageURLEnd != nil
	reasonEdited := req.ShiftReason != nil

	if startEdited && rec.StartTime.ShiftTime == "" {
		return EditResponse{}, shifterrors.ErrCannotEditMissingStart
	}
	if endEdited && rec.EndTime == nil {
		return EditResponse{}, shifterrors.ErrCannotEditMissingEnd
	}
	if reasonEdited && rec.Reason == "" {
		return EditResponse{}, shifterrors.ErrCannotEditMissingReason
	}

	// Effective bounds after the edit: an official time wins over a
	// timestamp edit, and an untouched side keeps its stored value.
	newStart := rec.StartTime.ShiftTime
	if req.StartTimestamp != nil {
		newStart = *req.StartTimestamp
	}
	if req.OfficialStartTime != nil {
		newStart = *req.OfficialStartTime
	}

	newEnd := ""
	if rec.EndTime != nil {
		newEnd = rec.EndTime.ShiftTime
	}
	if req.EndTimestamp != nil {
		newEnd = *req.EndTimestamp
	}
	if req.OfficialEndTime != nil {
		newEnd = *req.OfficialEndTime
	}

	if newEnd != "" && !isStrictlyAfter(newStart, newEnd) {
		return EditResponse{}, shifterrors.InvalidTimeOrder(newStart, newEnd)
	}

	start := rec.StartTime
	if req.OfficialStartTime != nil {
		start.ShiftTime = *req.OfficialStartTime
	}
	if req.StartTimestamp != nil {
		start.Timestamp = *req.StartTimestamp
	}
	if req.ImageURLStart != nil {
		start.ImageURL = *req.ImageURLStart
	}

	var end *TimeInfo
	if rec.EndTime != nil {
		merged := *rec.EndTime
		if req.OfficialEndTime != nil {
			merged.ShiftTime = *req.OfficialEndTime
		}
		if req.EndTimestamp != nil {
			merged.Timestamp = *req.EndTimestamp
		}
		if req.ImageURLEnd != nil {
			merged.ImageURL = *req.ImageURLEnd
		}
		end = &merged
	}

	reason := rec.Reason
	if req.ShiftReason != nil {
		reason = *req.ShiftReason
	}

	// The user entry snapshots the record state after the merge.
	entry := BuildEntry(false, s.shiftedNow(), req.EditReason, deref(req.Lat), deref(req.Lon), start, end, reason)
	encoded, err := entry.Encode()
	if err != nil {
		return EditResponse{}, apperror.Wrap(err, apperror.CodeInternalError, "encode change log entry failed", http.StatusInternalServerError)
	}

	fields := map[string]any{
		"change_log": append(rec.ChangeLog, encoded),
	}
	if startEdited {
		fields["start_time"] = start
	}
	if endEdited && end != nil {
		fields["end_time"] = *end
	}
	if reasonEdited {
		fields["reason"] = reason
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return EditResponse{}, s.mapStoreError(err)
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	if err := qtx.UpdateByID(ctx, req.DocID, fields); err != nil {
		s.log(ctx).Error("edit persist failed", zap.Error(err))
		return EditResponse{}, s.mapStoreError(err)
	}

	if err := s.queueEvent(ctx, tx, rid, events.ShiftEdited, rec); err != nil {
		return EditResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return EditResponse{}, s.mapStoreError(err)
	}

	s.invalidateExportCache(ctx, rec.UserID, rec.OrgID)

	s.log(ctx).Info("edit success",
		zap.String("document_id", req.DocID),
	)

	return EditResponse{DocID: req.DocID}, nil
}

func (s *service) queueEvent(ctx context.Context, tx *sql.Tx, rid, eventType string, rec *ShiftRecord) error {
	if s.outbox == nil {
		return nil
	}

	event := events.ShiftLifecycleEvent{
		EventType:  eventType,
		RequestID:  rid,
		DocID:      rec.ID.String(),
		UserID:     rec.UserID,
		OrgID:      rec.OrgID,
		ShiftType:  rec.ShiftType,
		ShiftDate:  rec.ShiftDate,
		OccurredAt: s.nowFn().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.log(ctx).Error("marshal event failed", zap.Error(err))
		return apperror.Wrap(err, apperror.CodeInternalError, "marshal shift event failed", http.StatusInternalServerError)
	}

	outboxRepo := s.outbox.WithTx(tx)
	if err := outboxRepo.Create(ctx, kafka.OutboxEvent{
		ID:            uuid.NewString(),
		RequestID:     rid,
		AggregateType: "shift_record",
		AggregateID:   rec.ID.String(),
		EventType:     eventType,
		Topic:         events.ShiftLifecycleTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	}); err != nil {
		s.log(ctx).Error("shift outbox persist failed",
			zap.String("document_id", rec.ID.String()),
			zap.Error(err),
		)
		return s.mapStoreError(err)
	}
	return nil
}

func (s *service) invalidateExportCache(ctx context.Context, userID, orgID string) {
	if s.rdb == nil {
		return
	}
	// A cached export covering this record can live under the combined
	// pair or under either identity alone; all three shapes go.
	keys := []string{
		cachekey.ExportView(userID, orgID),
		cachekey.ExportView(userID, ""),
		cachekey.ExportView("", orgID),
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.log(ctx).Error("failed to invalidate export cache",
			zap.Error(err),
			zap.Strings("keys", keys),
		)
	}
}

func (s *service) mapStoreError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shifterrors.ErrRecordNotFound
	}
	return apperror.Wrap(err, apperror.CodeServiceUnavailable, "time record store unavailable", http.StatusServiceUnavailable)
}

// isStrictlyAfter reports end > start on parsed instants. Unparseable
// inputs fail closed.
func isStrictlyAfter(start, end string) bool {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return false
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return false
	}
	return e.After(s)
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
