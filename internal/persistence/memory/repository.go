// Package memory keeps schedules in process memory for local development
// and tests. Nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/domain"
)

// Repository implements domain.Repository.
type Repository struct {
	mu         sync.RWMutex
	groups     map[string]domain.Group
	activities map[string]domain.Activity
}

func NewRepository() *Repository {
	return &Repository{
		groups:     make(map[string]domain.Group),
		activities: make(map[string]domain.Activity),
	}
}

// ListGroups orders by (created_at, id) and pages after the cursor.
func (r *Repository) ListGroups(ctx context.Context, ownerID string, cursor *domain.Cursor, limit int) ([]domain.Group, *domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owned := make([]domain.Group, 0)
	for _, g := range r.groups {
		if g.OwnerID == ownerID {
			owned = append(owned, g)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.Before(owned[j].CreatedAt)
		}
		return owned[i].ID < owned[j].ID
	})

	results := make([]domain.Group, 0, limit)
	for _, g := range owned {
		if cursor != nil && !after(g, cursor) {
			continue
		}
		results = append(results, g)
		if len(results) == limit {
			break
		}
	}

	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

func after(g domain.Group, c *domain.Cursor) bool {
	if g.CreatedAt.Equal(c.CreatedAt) {
		return g.ID > c.ID
	}
	return g.CreatedAt.After(c.CreatedAt)
}

func (r *Repository) GetGroup(ctx context.Context, ownerID, groupID string) (*domain.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[groupID]
	if !ok || g.OwnerID != ownerID {
		return nil, nil
	}
	return &g, nil
}

func (r *Repository) CreateGroup(ctx context.Context, group domain.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if group.IsDefault {
		for _, g := range r.groups {
			if g.OwnerID == group.OwnerID && g.IsDefault {
				return domain.ErrDefaultGroupExists
			}
		}
	}
	r.groups[group.ID] = group
	return nil
}

func (r *Repository) RenameGroup(ctx context.Context, group domain.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.groups[group.ID]
	if !ok || existing.OwnerID != group.OwnerID {
		return domain.ErrGroupNotFound
	}
	existing.Name = group.Name
	existing.UpdatedAt = group.UpdatedAt
	r.groups[group.ID] = existing
	return nil
}

// DeleteGroup removes the group and cascades to its activities.
func (r *Repository) DeleteGroup(ctx context.Context, group domain.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.groups[group.ID]
	if !ok || existing.OwnerID != group.OwnerID {
		return domain.ErrGroupNotFound
	}
	delete(r.groups, group.ID)
	for id, a := range r.activities {
		if a.GroupID == group.ID {
			delete(r.activities, id)
		}
	}
	return nil
}

func (r *Repository) ListActivities(ctx context.Context, ownerID, groupID string) ([]domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Activity, 0)
	for _, a := range r.activities {
		if a.OwnerID == ownerID && a.GroupID == groupID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *Repository) GetActivity(ctx context.Context, ownerID, activityID string) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.activities[activityID]
	if !ok || a.OwnerID != ownerID {
		return nil, nil
	}
	return &a, nil
}

func (r *Repository) CreateActivity(ctx context.Context, activity domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[activity.GroupID]
	if !ok || g.OwnerID != activity.OwnerID {
		return domain.ErrGroupNotFound
	}
	r.activities[activity.ID] = activity
	return nil
}

func (r *Repository) UpdateActivity(ctx context.Context, activity domain.Activity, previousGroupID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.activities[activity.ID]
	if !ok || existing.OwnerID != activity.OwnerID {
		return domain.ErrActivityNotFound
	}
	g, ok := r.groups[activity.GroupID]
	if !ok || g.OwnerID != activity.OwnerID {
		return domain.ErrGroupNotFound
	}
	activity.CreatedAt = existing.CreatedAt
	r.activities[activity.ID] = activity
	return nil
}

func (r *Repository) DeleteActivity(ctx context.Context, activity domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.activities[activity.ID]
	if !ok || existing.OwnerID != activity.OwnerID {
		return domain.ErrActivityNotFound
	}
	delete(r.activities, activity.ID)
	return nil
}
