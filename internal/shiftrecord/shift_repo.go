package shiftrecord

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// SearchFilter narrows a shift search. UserID/OrgID are term-equality
// filters; the date bounds are inclusive and optional.
type SearchFilter struct {
	UserID    string
	OrgID     string
	StartDate string
	EndDate   string
}

type SearchSort struct {
	DatesAscending  bool
	ShiftsAscending bool
}

const defaultSearchLimit = 10000

//go:generate mockgen -source=shift_repo.go -destination=mock/shift_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, rec *ShiftRecord) error
	GetByID(ctx context.Context, id string) (*ShiftRecord, error)
	// UpdateByID merges only the listed columns into the stored document.
	// jsonb array columns are replaced wholesale, not merged element-wise.
	UpdateByID(ctx context.Context, id string, fields map[string]any) error
	FindOpenShift(ctx context.Context, userID, date, shiftType string) (*ShiftRecord, error)
	FindOpenShifts(ctx context.Context, userID, shiftType string) ([]ShiftRecord, error)
	Search(ctx context.Context, filter SearchFilter, sort SearchSort, limit int) ([]ShiftRecord, error)
}

type repository struct {
	db *gorm.DB
	tx *sql.Tx
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{db: r.db, tx: tx}
}

func (r *repository) Create(ctx context.Context, rec *ShiftRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *repository) GetByID(ctx context.Context, id string) (*ShiftRecord, error) {
	var rec ShiftRecord
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repository) UpdateByID(ctx context.Context, id string, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&ShiftRecord{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) FindOpenShift(ctx context.Context, userID, date, shiftType string) (*ShiftRecord, error) {
	if shiftType == "" {
		shiftType = ShiftTypeRegular
	}
	var rec ShiftRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("shift_date = ?", date).
		Where("shift_type = ?", shiftType).
		Where("is_complete = ?", false).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repository) FindOpenShifts(ctx context.Context, userID, shiftType string) ([]ShiftRecord, error) {
	var rows []ShiftRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("shift_type = ?", shiftType).
		Where("is_complete = ?", false).
		Order("shift_date ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Search(ctx context.Context, filter SearchFilter, sort SearchSort, limit int) ([]ShiftRecord, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	q := r.db.WithContext(ctx).Model(&ShiftRecord{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.OrgID != "" {
		q = q.Where("org_id = ?", filter.OrgID)
	}
	if filter.StartDate != "" {
		q = q.Where("shift_date >= ?", filter.StartDate)
	}
	if filter.EndDate != "" {
		q = q.Where("shift_date <= ?", filter.EndDate)
	}

	dateDir := "DESC"
	if sort.DatesAscending {
		dateDir = "ASC"
	}
	shiftDir := "DESC"
	if sort.ShiftsAscending {
		shiftDir = "ASC"
	}

	var rows []ShiftRecord
	err := q.
		Order("shift_date " + dateDir).
		Order("start_time->>'shift_time' " + shiftDir).
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// IsUniqueViolation reports whether err is a postgres unique-constraint
// violation, e.g. from the partial index guarding one open regular shift
// per user and date.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
