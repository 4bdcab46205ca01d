package repository

import (
	"context"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// ProfileRepository persists the role/company association of a user.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.UserProfile) error
	GetByUserID(ctx context.Context, userID string) (*domain.UserProfile, error)
}

type profileRepository struct {
	db DBTX
}

// NewProfileRepository instantiates the repository.
func NewProfileRepository(db DBTX) ProfileRepository {
	return &profileRepository{db: db}
}

// Create inserts the profile; a second profile for the same user violates the primary key.
func (r *profileRepository) Create(ctx context.Context, profile *domain.UserProfile) error {
	const query = `
        INSERT INTO user_profiles (user_id, company_id, role)
        VALUES ($1,$2,$3)`
	_, err := r.db.Exec(ctx, query, profile.UserID, profile.CompanyID, profile.Role)
	return err
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID string) (*domain.UserProfile, error) {
	const query = `
        SELECT user_id, company_id, role
        FROM user_profiles WHERE user_id=$1`
	var profile domain.UserProfile
	if err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.CompanyID,
		&profile.Role,
	); err != nil {
		return nil, err
	}
	return &profile, nil
}
