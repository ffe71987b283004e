package identity

import (
	"context"

	"gorm.io/gorm"
)

//go:generate mockgen -source=identity_repo.go -destination=mock/identity_repo_mock.go -package=mock
type Repository interface {
	FindByUserID(ctx context.Context, userID string) (*OrgMembership, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByUserID(ctx context.Context, userID string) (*OrgMembership, error) {
	var m OrgMembership
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("deleted_at IS NULL").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}
