package preference

import (
	"context"
	"errors"

	"PeerMatch/internal/matchmaker"
)

var ErrPreferenceNotFound = errors.New("preference not found")

// Repository stores the last preference each user saved. Save is an upsert.
type Repository interface {
	Save(ctx context.Context, p matchmaker.Preference) error
	FindByID(ctx context.Context, userID string) (matchmaker.Preference, error)
	DeleteByID(ctx context.Context, userID string) error
	ExistsByID(ctx context.Context, userID string) (bool, error)
}
