package workinghours

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go-timetrack/internal/shared/cachekey"
	"go-timetrack/internal/shared/contextutil"
	"go-timetrack/internal/shared/timeutil"
	"go-timetrack/internal/shiftrecord"
	workinghourserrors "go-timetrack/internal/workinghours/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	IncompleteShiftMessage = "shift incomplete, cannot summarize"
	noReasonPlaceholder    = "(no reason provided)"

	exportCacheTTL = 5 * time.Minute
)

// ShiftSearcher is the slice of the record store the aggregation layer
// reads through.
type ShiftSearcher interface {
	Search(ctx context.Context, filter shiftrecord.SearchFilter, sort shiftrecord.SearchSort, limit int) ([]shiftrecord.ShiftRecord, error)
}

//go:generate mockgen -source=workinghours_service.go -destination=mock/workinghours_service_mock.go -package=mock
type Service interface {
	QueryShifts(ctx context.Context, q Query) ([]UserShifts, error)
	ExportView(ctx context.Context, q Query) ([]ExportUser, error)
}

type service struct {
	store    ShiftSearcher
	rdb      *redis.Client
	sf       *singleflight.Group
	tzOffset int
	logger   *zap.Logger
}

func NewService(store ShiftSearcher, rdb *redis.Client, tzOffset int, logger ...*zap.Logger) Service {
	l := zap.L().Named("workinghours.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("workinghours.service")
	}
	return &service{
		store:    store,
		rdb:      rdb,
		sf:       &singleflight.Group{},
		tzOffset: tzOffset,
		logger:   l,
	}
}

func validateQuery(q Query) error {
	if q.UserID == "" && q.OrgID == "" {
		return workinghourserrors.ErrInvalidQuery
	}
	if q.StartDate != "" && !timeutil.IsValidDateFormat(q.StartDate) {
		return workinghourserrors.InvalidDateField("start_date")
	}
	if q.EndDate != "" && !timeutil.IsValidDateFormat(q.EndDate) {
		return workinghourserrors.InvalidDateField("end_date")
	}
	return nil
}

func (s *service) QueryShifts(ctx context.Context, q Query) ([]UserShifts, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	records, err := s.store.Search(ctx,
		shiftrecord.SearchFilter{
			UserID:    q.UserID,
			OrgID:     q.OrgID,
			StartDate: q.StartDate,
			EndDate:   q.EndDate,
		},
		shiftrecord.SearchSort{
			DatesAscending:  q.SortDatesAscending,
			ShiftsAscending: q.SortShiftsAscending,
		},
		0,
	)
	if err != nil {
		contextutil.GetLogger(ctx, s.logger).Error("shift search failed", zap.Error(err))
		return nil, err
	}

	return s.group(records, q), nil
}

// group partitions raw records user -> date and re-sorts everything
// in memory; the store's result order is never trusted.
func (s *service) group(records []shiftrecord.ShiftRecord, q Query) []UserShifts {
	type userBucket struct {
		orgID string
		days  map[string][]ShiftView
	}
	byUser := make(map[string]*userBucket)

	for _, rec := range records {
		bucket, ok := byUser[rec.UserID]
		if !ok {
			bucket = &userBucket{orgID: rec.OrgID, days: make(map[string][]ShiftView)}
			byUser[rec.UserID] = bucket
		}
		bucket.days[rec.ShiftDate] = append(bucket.days[rec.ShiftDate], s.toView(rec))
	}

	userIDs := make([]string, 0, len(byUser))
	for id := range byUser {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)

	out := make([]UserShifts, 0, len(byUser))
	for _, userID := range userIDs {
		bucket := byUser[userID]

		dates := make([]string, 0, len(bucket.days))
		for d := range bucket.days {
			dates = append(dates, d)
		}
		sort.Slice(dates, func(i, j int) bool {
			if q.SortDatesAscending {
				return dates[i] < dates[j]
			}
			return dates[i] > dates[j]
		})

		days := make([]DayShifts, 0, len(dates))
		for _, d := range dates {
			shifts := bucket.days[d]
			sort.SliceStable(shifts, func(i, j int) bool {
				if q.SortShiftsAscending {
					return shifts[i].StartTime.ShiftTime < shifts[j].StartTime.ShiftTime
				}
				return shifts[i].StartTime.ShiftTime > shifts[j].StartTime.ShiftTime
			})
			days = append(days, DayShifts{Date: d, Shift: shifts})
		}

		out = append(out, UserShifts{UserID: userID, OrgID: bucket.orgID, AllShift: days})
	}
	return out
}

func (s *service) toView(rec shiftrecord.ShiftRecord) ShiftView {
	view := ShiftView{
		DocID:      rec.ID.String(),
		ShiftType:  rec.ShiftType,
		IsComplete: rec.IsComplete,
		Reason:     rec.Reason,
		StartTime:  rec.StartTime,
		EndTime:    rec.EndTime,
	}

	entries, err := shiftrecord.ParseEntries(rec.ChangeLog)
	if err != nil {
		// A corrupt log is surfaced as-is; an empty history would lie.
		view.ChangeLogUnreadable = true
		s.logger.Warn("unreadable change log",
			zap.String("document_id", view.DocID),
			zap.Error(err),
		)
	} else {
		view.ChangeLog = entries
	}

	if rec.IsComplete && rec.EndTime != nil {
		if d, ok := timeutil.Duration(rec.StartTime.Timestamp, rec.EndTime.Timestamp); ok {
			view.ActualHours = &d
		}
		if d, ok := timeutil.Duration(rec.StartTime.ShiftTime, rec.EndTime.ShiftTime); ok {
			view.OfficialHours = &d
		}
	}
	return view
}

func (s *service) ExportView(ctx context.Context, q Query) ([]ExportUser, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	// Only the unbounded default-ordered view is cached; it is the one the
	// mutation path knows how to invalidate.
	cacheable := q.StartDate == "" && q.EndDate == "" &&
		!q.SortDatesAscending && !q.SortShiftsAscending
	key := cachekey.ExportView(q.UserID, q.OrgID)

	if cacheable && s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, key).Result(); err == nil {
			var out []ExportUser
			if err := json.Unmarshal([]byte(cached), &out); err == nil {
				return out, nil
			}
		}
	}

	if !cacheable {
		return s.buildExport(ctx, q)
	}

	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		out, err := s.buildExport(ctx, q)
		if err != nil {
			return nil, err
		}
		if s.rdb != nil {
			if jsonData, err := json.Marshal(out); err == nil {
				s.rdb.Set(ctx, key, string(jsonData), exportCacheTTL)
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]ExportUser), nil
}

func (s *service) buildExport(ctx context.Context, q Query) ([]ExportUser, error) {
	users, err := s.QueryShifts(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]ExportUser, 0, len(users))
	for _, user := range users {
		var totalOfficialSecs int64
		var closedDays int

		days := make([]ExportDay, 0, len(user.AllShift))
		for _, day := range user.AllShift {
			buckets := make(map[string][]ExportShift)
			dayHasClosed := false

			for _, view := range day.Shift {
				exported := s.toExportShift(view)
				buckets[view.ShiftType] = append(buckets[view.ShiftType], exported)

				if view.IsComplete {
					dayHasClosed = true
					if view.OfficialHours != nil {
						totalOfficialSecs += durationSeconds(*view.OfficialHours)
					}
				}
			}

			if dayHasClosed {
				closedDays++
			}
			days = append(days, ExportDay{Date: day.Date, Shifts: buckets})
		}

		out = append(out, ExportUser{
			UserID:         user.UserID,
			OrgID:          user.OrgID,
			WorkingSummary: fmt.Sprintf("%dhrs/%ddays", totalOfficialSecs/3600, closedDays),
			Status:         s.presence(ctx, user.UserID),
			AllShift:       days,
		})
	}
	return out, nil
}

func (s *service) toExportShift(view ShiftView) ExportShift {
	if !view.IsComplete {
		return ExportShift{DocID: view.DocID, Message: IncompleteShiftMessage}
	}

	exported := ExportShift{
		DocID:               view.DocID,
		Reason:              view.Reason,
		ChangeLogUnreadable: view.ChangeLogUnreadable,
	}
	if exported.Reason == "" {
		exported.Reason = noReasonPlaceholder
	}

	// Observed timestamps are stored already shifted into the display
	// offset; declared shift times are raw UTC and get shifted here.
	exported.Start = timeutil.FormatClock(view.StartTime.Timestamp)
	exported.StartOfficial = timeutil.FormatClock(timeutil.ShiftTimezone(view.StartTime.ShiftTime, s.tzOffset))
	if view.EndTime != nil {
		exported.End = timeutil.FormatClock(view.EndTime.Timestamp)
		exported.EndOfficial = timeutil.FormatClock(timeutil.ShiftTimezone(view.EndTime.ShiftTime, s.tzOffset))
	}
	if view.ActualHours != nil {
		exported.Duration = *view.ActualHours
	}
	if view.OfficialHours != nil {
		exported.DurationOfficial = *view.OfficialHours
	}

	for i := 1; i < len(view.ChangeLog); i++ {
		if view.ChangeLog[i].IsSystem {
			continue
		}
		exported.ChangeHistory = append(exported.ChangeHistory,
			shiftrecord.Diff(view.ChangeLog[i], view.ChangeLog[i-1])...)
	}
	return exported
}

func (s *service) presence(ctx context.Context, userID string) string {
	if s.rdb == nil {
		return "offline"
	}
	val, err := s.rdb.Get(ctx, cachekey.Presence(userID)).Result()
	if err != nil || val != "online" {
		return "offline"
	}
	return "online"
}

// durationSeconds inverts the HH:MM:SS rendering back into seconds for
// summary totals. Negative or malformed strings contribute nothing.
func durationSeconds(d string) int64 {
	var h, m, sec int64
	if _, err := fmt.Sscanf(d, "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0
	}
	if h < 0 {
		return 0
	}
	return h*3600 + m*60 + sec
}
