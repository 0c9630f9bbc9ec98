// Package domain holds the schedule group and activity workflows.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/cache"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/observability"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/timetable"
)

// GroupRepository persists schedule groups. Getters return nil, nil when the
// row does not exist for the owner.
type GroupRepository interface {
	ListGroups(ctx context.Context, ownerID string, cursor *Cursor, limit int) ([]Group, *Cursor, error)
	GetGroup(ctx context.Context, ownerID, groupID string) (*Group, error)
	CreateGroup(ctx context.Context, group Group) error
	RenameGroup(ctx context.Context, group Group) error
	DeleteGroup(ctx context.Context, group Group) error
}

// ActivityRepository persists activities.
type ActivityRepository interface {
	ListActivities(ctx context.Context, ownerID, groupID string) ([]Activity, error)
	GetActivity(ctx context.Context, ownerID, activityID string) (*Activity, error)
	CreateActivity(ctx context.Context, activity Activity) error
	UpdateActivity(ctx context.Context, activity Activity, previousGroupID string) error
	DeleteActivity(ctx context.Context, activity Activity) error
}

// Repository captures persistence operations.
type Repository interface {
	GroupRepository
	ActivityRepository
}

// Service orchestrates schedule workflows.
type Service struct {
	repo     Repository
	layouts  cache.LayoutStore
	defaults timetable.Options
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithLayoutDefaults sets the row height and policy used when a request leaves them empty.
func WithLayoutDefaults(opts timetable.Options) Option {
	return func(s *Service) { s.defaults = opts }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a Service. A nil layout store disables caching.
func NewService(repo Repository, layouts cache.LayoutStore, opts ...Option) *Service {
	if layouts == nil {
		layouts = cache.NoopLayoutStore{}
	}
	s := &Service{
		repo:     repo,
		layouts:  layouts,
		defaults: timetable.Options{RowHeightPx: timetable.DefaultRowHeightPx, Policy: timetable.PolicyOverlapGroup},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListGroups pages through an owner's groups, creating the default group on
// the first page of an owner that has none.
func (s *Service) ListGroups(ctx context.Context, ownerID string, cursor *Cursor, limit int) ([]Group, *Cursor, error) {
	groups, next, err := s.repo.ListGroups(ctx, ownerID, cursor, limit)
	if err != nil || cursor != nil || len(groups) > 0 {
		return groups, next, err
	}

	now := s.now()
	group := Group{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      DefaultGroupName,
		IsDefault: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateGroup(ctx, group); err != nil {
		if !errors.Is(err, ErrDefaultGroupExists) {
			return nil, nil, err
		}
		// A concurrent request won the race; list what it created.
		return s.repo.ListGroups(ctx, ownerID, nil, limit)
	}
	observability.RecordScheduleMutation(now)
	return []Group{group}, nil, nil
}

// GetGroup fetches by ID.
func (s *Service) GetGroup(ctx context.Context, ownerID, groupID string) (*Group, error) {
	group, err := s.repo.GetGroup(ctx, ownerID, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

func (s *Service) CreateGroup(ctx context.Context, ownerID, name string) (*Group, error) {
	name, err := normalizeGroupName(name)
	if err != nil {
		return nil, err
	}
	now := s.now()
	group := Group{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateGroup(ctx, group); err != nil {
		return nil, err
	}
	observability.RecordScheduleMutation(now)
	return &group, nil
}

func (s *Service) RenameGroup(ctx context.Context, ownerID, groupID, name string) (*Group, error) {
	name, err := normalizeGroupName(name)
	if err != nil {
		return nil, err
	}
	group, err := s.GetGroup(ctx, ownerID, groupID)
	if err != nil {
		return nil, err
	}
	if group.IsDefault {
		return nil, ErrDefaultGroupImmutable
	}
	group.Name = name
	group.UpdatedAt = s.now()
	if err := s.repo.RenameGroup(ctx, *group); err != nil {
		return nil, err
	}
	observability.RecordScheduleMutation(group.UpdatedAt)
	s.invalidate(ctx, ownerID, groupID)
	return group, nil
}

// DeleteGroup removes a group together with its activities.
func (s *Service) DeleteGroup(ctx context.Context, ownerID, groupID string) error {
	group, err := s.GetGroup(ctx, ownerID, groupID)
	if err != nil {
		return err
	}
	if group.IsDefault {
		return ErrDefaultGroupImmutable
	}
	if err := s.repo.DeleteGroup(ctx, *group); err != nil {
		return err
	}
	observability.RecordScheduleMutation(s.now())
	s.invalidate(ctx, ownerID, groupID)
	return nil
}

// ListActivities returns a group's activities ordered by day, start and id.
func (s *Service) ListActivities(ctx context.Context, ownerID, groupID string) ([]Activity, error) {
	if _, err := s.GetGroup(ctx, ownerID, groupID); err != nil {
		return nil, err
	}
	activities, err := s.repo.ListActivities(ctx, ownerID, groupID)
	if err != nil {
		return nil, err
	}
	sortActivities(activities)
	return activities, nil
}

// Week returns a group's activities bucketed by day.
func (s *Service) Week(ctx context.Context, ownerID, groupID string) (map[timetable.Day][]Activity, error) {
	activities, err := s.ListActivities(ctx, ownerID, groupID)
	if err != nil {
		return nil, err
	}
	week := make(map[timetable.Day][]Activity, timetable.DaysPerWeek)
	for _, a := range activities {
		week[a.Day] = append(week[a.Day], a)
	}
	return week, nil
}

// CreateActivityInput captures the payload from the API layer. Day and times
// stay strings until validation.
type CreateActivityInput struct {
	OwnerID   string
	GroupID   string
	Day       string
	StartTime string
	EndTime   string
	Label     string
	Color     string
	Details   string
}

func (s *Service) CreateActivity(ctx context.Context, input CreateActivityInput) (*Activity, error) {
	day, err := parseDay(input.Day)
	if err != nil {
		return nil, err
	}
	start, err := parseClock("start_time", input.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseClock("end_time", input.EndTime)
	if err != nil {
		return nil, err
	}
	now := s.now()
	activity := Activity{
		ID:        uuid.NewString(),
		OwnerID:   input.OwnerID,
		GroupID:   input.GroupID,
		Day:       day,
		Start:     start,
		End:       end,
		Label:     input.Label,
		Color:     input.Color,
		Details:   input.Details,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validateActivity(&activity); err != nil {
		return nil, err
	}
	if _, err := s.GetGroup(ctx, input.OwnerID, input.GroupID); err != nil {
		return nil, err
	}
	if err := s.repo.CreateActivity(ctx, activity); err != nil {
		return nil, err
	}
	observability.RecordScheduleMutation(now)
	s.invalidate(ctx, activity.OwnerID, activity.GroupID)
	return &activity, nil
}

// UpdateActivityInput carries a partial update; nil fields are left unchanged.
type UpdateActivityInput struct {
	OwnerID    string
	ActivityID string
	GroupID    *string
	Day        *string
	StartTime  *string
	EndTime    *string
	Label      *string
	Color      *string
	Details    *string
}

func (s *Service) UpdateActivity(ctx context.Context, input UpdateActivityInput) (*Activity, error) {
	activity, err := s.GetActivity(ctx, input.OwnerID, input.ActivityID)
	if err != nil {
		return nil, err
	}
	previousGroup := activity.GroupID

	if input.Day != nil {
		if activity.Day, err = parseDay(*input.Day); err != nil {
			return nil, err
		}
	}
	if input.StartTime != nil {
		if activity.Start, err = parseClock("start_time", *input.StartTime); err != nil {
			return nil, err
		}
	}
	if input.EndTime != nil {
		if activity.End, err = parseClock("end_time", *input.EndTime); err != nil {
			return nil, err
		}
	}
	if input.Label != nil {
		activity.Label = *input.Label
	}
	if input.Color != nil {
		activity.Color = *input.Color
	}
	if input.Details != nil {
		activity.Details = *input.Details
	}
	if input.GroupID != nil && *input.GroupID != previousGroup {
		if _, err := s.GetGroup(ctx, input.OwnerID, *input.GroupID); err != nil {
			return nil, err
		}
		activity.GroupID = *input.GroupID
	}
	if err := validateActivity(activity); err != nil {
		return nil, err
	}

	activity.UpdatedAt = s.now()
	if err := s.repo.UpdateActivity(ctx, *activity, previousGroup); err != nil {
		return nil, err
	}
	observability.RecordScheduleMutation(activity.UpdatedAt)
	s.invalidate(ctx, activity.OwnerID, activity.GroupID)
	if previousGroup != activity.GroupID {
		s.invalidate(ctx, activity.OwnerID, previousGroup)
	}
	return activity, nil
}

// GetActivity fetches by ID.
func (s *Service) GetActivity(ctx context.Context, ownerID, activityID string) (*Activity, error) {
	activity, err := s.repo.GetActivity(ctx, ownerID, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

func (s *Service) DeleteActivity(ctx context.Context, ownerID, activityID string) error {
	activity, err := s.GetActivity(ctx, ownerID, activityID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteActivity(ctx, *activity); err != nil {
		return err
	}
	observability.RecordScheduleMutation(s.now())
	s.invalidate(ctx, ownerID, activity.GroupID)
	return nil
}

// Timetable is a group's week ready for rendering.
type Timetable struct {
	Group      Group                `json:"group"`
	Activities []Activity           `json:"activities"`
	Layout     timetable.WeekLayout `json:"layout"`
}

// Activity finds an activity of the timetable by ID.
func (t *Timetable) Activity(id string) (Activity, bool) {
	for _, a := range t.Activities {
		if a.ID == id {
			return a, true
		}
	}
	return Activity{}, false
}

// LayoutOptions fills empty request options from the service defaults.
func (s *Service) LayoutOptions(opts timetable.Options) timetable.Options {
	if opts.RowHeightPx <= 0 {
		opts.RowHeightPx = s.defaults.RowHeightPx
	}
	if opts.Policy == "" {
		opts.Policy = s.defaults.Policy
	}
	return opts
}

// Timetable lays out a group's week. Results are cached per owner, group and
// layout options until the group changes.
func (s *Service) Timetable(ctx context.Context, ownerID, groupID string, opts timetable.Options) (*Timetable, error) {
	opts = s.LayoutOptions(opts)
	key := cache.LayoutKey{
		OwnerID:         ownerID,
		GroupID:         groupID,
		Policy:          opts.Policy,
		RowHeightPx:     opts.RowHeightPx,
		ActiveHoursOnly: opts.ActiveHoursOnly,
	}

	if data, err := s.layouts.Get(ctx, key); err == nil {
		var cached Timetable
		if err := json.Unmarshal(data, &cached); err == nil {
			observability.RecordLayoutCache("hit")
			return &cached, nil
		}
		observability.RecordLayoutCache("error")
	} else if errors.Is(err, cache.ErrMiss) {
		observability.RecordLayoutCache("miss")
	} else {
		observability.RecordLayoutCache("error")
		log.Printf("layout cache lookup failed: %v", err)
	}

	group, err := s.GetGroup(ctx, ownerID, groupID)
	if err != nil {
		return nil, err
	}
	activities, err := s.repo.ListActivities(ctx, ownerID, groupID)
	if err != nil {
		return nil, err
	}
	sortActivities(activities)

	result := &Timetable{
		Group:      *group,
		Activities: activities,
		Layout:     s.LayoutWeek(Entries(activities), opts),
	}

	if data, err := json.Marshal(result); err != nil {
		log.Printf("encode timetable for cache: %v", err)
	} else if err := s.layouts.Set(ctx, key, data); err != nil {
		log.Printf("layout cache store failed: %v", err)
	}
	return result, nil
}

// LayoutWeek runs the layout engine and records how long it took.
func (s *Service) LayoutWeek(entries []timetable.Entry, opts timetable.Options) timetable.WeekLayout {
	opts = s.LayoutOptions(opts)
	started := time.Now()
	week := timetable.LayoutWeek(entries, opts)
	observability.RecordLayout(string(opts.Policy), time.Since(started))
	return week
}

// ValidateEntries rejects entries the layout engine must never see.
func ValidateEntries(entries []timetable.Entry) error {
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return invalid(fmt.Sprintf("activities[%d].id", i), "is required")
		}
		if _, dup := seen[e.ID]; dup {
			return invalid(fmt.Sprintf("activities[%d].id", i), "is duplicated")
		}
		seen[e.ID] = struct{}{}
		if err := e.Validate(); err != nil {
			if errors.Is(err, timetable.ErrEmptyInterval) {
				return invalid(fmt.Sprintf("activities[%d].end_time", i), "end time must be after start time")
			}
			return invalid(fmt.Sprintf("activities[%d]", i), err.Error())
		}
	}
	return nil
}

// invalidate drops cached layouts. The write has already committed, so a
// failure is logged and left to the cache TTL.
func (s *Service) invalidate(ctx context.Context, ownerID, groupID string) {
	if err := s.layouts.InvalidateGroup(ctx, ownerID, groupID); err != nil {
		log.Printf("layout cache invalidation for group %s failed: %v", groupID, err)
	}
}

func sortActivities(activities []Activity) {
	sort.Slice(activities, func(i, j int) bool {
		a, b := activities[i], activities[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.ID < b.ID
	})
}
