package repository

import (
	"context"
	"errors"
	"time"

	"reliefnet/internal/models"
)

var ErrNotFound = errors.New("not found")

type HelpRequestFilter struct {
	Limit        int
	Since        *time.Time
	DisasterType *string
	Ungeocoded   bool // only rows whose coordinates are still null
}

type HelpRequestRepository interface {
	AddHelpRequest(ctx context.Context, r *models.HelpRequest) (int64, error)
	ListHelpRequests(ctx context.Context, opts HelpRequestFilter) ([]models.HelpRequest, error)
	CountHelpRequests(ctx context.Context) (int64, error)
	UpdateCoordinates(ctx context.Context, id int64, coords models.Coordinates) error
}

type UserRepository interface {
	AddUser(ctx context.Context, u *models.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}
