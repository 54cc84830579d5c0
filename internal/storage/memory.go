package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fitstack/coach/pkg/models"
)

// MemoryProfileStore provides an in-memory ProfileStore.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.Profile
}

// NewMemoryProfileStore creates an in-memory profile store.
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]*models.Profile)}
}

func (s *MemoryProfileStore) Create(ctx context.Context, profile *models.Profile) error {
	if profile == nil || profile.UserID == "" {
		return fmt.Errorf("profile with user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[profile.UserID]; exists {
		return ErrAlreadyExists
	}
	clone := *profile
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	clone.UpdatedAt = clone.CreatedAt
	s.profiles[profile.UserID] = &clone
	return nil
}

func (s *MemoryProfileStore) Get(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *profile
	return &clone, nil
}

func (s *MemoryProfileStore) Update(ctx context.Context, profile *models.Profile) error {
	if profile == nil || profile.UserID == "" {
		return fmt.Errorf("profile with user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.profiles[profile.UserID]
	if !ok {
		return ErrNotFound
	}
	clone := *profile
	clone.CreatedAt = existing.CreatedAt
	clone.UpdatedAt = time.Now()
	s.profiles[profile.UserID] = &clone
	return nil
}

// MemoryPlanStore provides an in-memory PlanStore.
type MemoryPlanStore struct {
	mu    sync.RWMutex
	plans map[string]map[models.PlanKind]models.PlanSnapshot
}

// NewMemoryPlanStore creates an in-memory plan store.
func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{plans: make(map[string]map[models.PlanKind]models.PlanSnapshot)}
}

func (s *MemoryPlanStore) Put(ctx context.Context, userID string, plan *models.PlanSnapshot) error {
	if userID == "" || plan == nil {
		return fmt.Errorf("user id and plan are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byKind, ok := s.plans[userID]
	if !ok {
		byKind = make(map[models.PlanKind]models.PlanSnapshot)
		s.plans[userID] = byKind
	}
	byKind[plan.Kind] = *plan
	return nil
}

func (s *MemoryPlanStore) List(ctx context.Context, userID string) ([]models.PlanSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byKind, ok := s.plans[userID]
	if !ok {
		return nil, nil
	}
	plans := make([]models.PlanSnapshot, 0, len(byKind))
	for _, kind := range []models.PlanKind{models.PlanWorkout, models.PlanMeal} {
		if plan, ok := byKind[kind]; ok {
			plans = append(plans, plan)
		}
	}
	return plans, nil
}

// MemoryConversationStore provides an in-memory ConversationStore.
type MemoryConversationStore struct {
	mu    sync.RWMutex
	turns map[string][]models.ConversationTurn
}

// NewMemoryConversationStore creates an in-memory conversation store.
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{turns: make(map[string][]models.ConversationTurn)}
}

func (s *MemoryConversationStore) Append(ctx context.Context, userID string, turn *models.ConversationTurn) error {
	if userID == "" || turn == nil {
		return fmt.Errorf("user id and turn are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *turn
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	s.turns[userID] = append(s.turns[userID], clone)
	return nil
}

func (s *MemoryConversationStore) Recent(ctx context.Context, userID string, limit int) ([]models.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.turns[userID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]models.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}

// NewMemoryStoreSet groups fresh in-memory stores.
func NewMemoryStoreSet() StoreSet {
	return StoreSet{
		Profiles:      NewMemoryProfileStore(),
		Plans:         NewMemoryPlanStore(),
		Conversations: NewMemoryConversationStore(),
	}
}
