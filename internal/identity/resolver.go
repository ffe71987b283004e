package identity

import (
	"context"
	"errors"
	"net/http"

	"go-timetrack/internal/shared/apperror"

	"gorm.io/gorm"
)

var ErrOrganizationNotFound = apperror.New(
	apperror.CodeNotFound,
	"could not find organization for this user",
	http.StatusNotFound,
)

// Resolver answers which organization a user belongs to. The lifecycle
// engine depends on this interface, not on the backing store.
type Resolver interface {
	GetOrganization(ctx context.Context, userID string) (string, error)
}

type resolver struct {
	repo Repository
}

func NewResolver(repo Repository) Resolver {
	return &resolver{repo: repo}
}

func (r *resolver) GetOrganization(ctx context.Context, userID string) (string, error) {
	m, err := r.repo.FindByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrOrganizationNotFound
	}
	if err != nil {
		return "", apperror.Wrap(err, apperror.CodeServiceUnavailable, "identity lookup failed", http.StatusServiceUnavailable)
	}
	return m.OrgID, nil
}
