package coach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fitstack/coach/internal/storage"
	"github.com/fitstack/coach/pkg/models"
)

// DefaultHistoryLimit bounds the conversation turns loaded into a session
// context when no explicit limit is configured.
const DefaultHistoryLimit = 20

// ContextLoader assembles the immutable SessionContext for a route call by
// reading the profile, plan, and conversation stores exactly once each.
type ContextLoader struct {
	profiles      storage.ProfileStore
	plans         storage.PlanStore
	conversations storage.ConversationStore
	historyLimit  int
}

// NewContextLoader creates a loader over the given stores. A historyLimit
// of zero or less falls back to DefaultHistoryLimit.
func NewContextLoader(stores storage.StoreSet, historyLimit int) *ContextLoader {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &ContextLoader{
		profiles:      stores.Profiles,
		plans:         stores.Plans,
		conversations: stores.Conversations,
		historyLimit:  historyLimit,
	}
}

// Load builds the session context for userID. A missing profile is the only
// hard failure; absent plans or history degrade to empty values.
func (l *ContextLoader) Load(ctx context.Context, userID string) (*models.SessionContext, error) {
	profile, err := l.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &ProfileNotFoundError{UserID: userID}
		}
		return nil, fmt.Errorf("load profile for %s: %w", userID, err)
	}

	plans, err := l.plans.List(ctx, userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load plans for %s: %w", userID, err)
	}
	if plans == nil {
		plans = []models.PlanSnapshot{}
	}

	turns, err := l.conversations.Recent(ctx, userID, l.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", userID, err)
	}
	if turns == nil {
		turns = []models.ConversationTurn{}
	}

	return &models.SessionContext{
		UserID:      userID,
		Profile:     profile.Summary(),
		Plans:       plans,
		RecentTurns: turns,
		LoadedAt:    time.Now().UTC(),
	}, nil
}
