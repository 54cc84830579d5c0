package storage

import (
	"context"
	"errors"

	"github.com/fitstack/coach/pkg/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// ProfileStore persists user fitness profiles.
type ProfileStore interface {
	Create(ctx context.Context, profile *models.Profile) error
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
}

// PlanStore persists generated plan snapshots, one per (user, plan kind).
type PlanStore interface {
	Put(ctx context.Context, userID string, plan *models.PlanSnapshot) error
	List(ctx context.Context, userID string) ([]models.PlanSnapshot, error)
}

// ConversationStore persists conversation turns.
type ConversationStore interface {
	Append(ctx context.Context, userID string, turn *models.ConversationTurn) error

	// Recent returns up to limit of the newest turns for a user, ordered
	// oldest-first. A user with no history yields an empty slice, not an error.
	Recent(ctx context.Context, userID string, limit int) ([]models.ConversationTurn, error)
}

// StoreSet groups the storage dependencies handed to the service.
type StoreSet struct {
	Profiles      ProfileStore
	Plans         PlanStore
	Conversations ConversationStore

	closer func() error
}

// Close releases any underlying resources.
func (s StoreSet) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
