package domain_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/cache"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/domain"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/persistence/memory"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/timetable"
)

type recordingStore struct {
	mu          sync.Mutex
	entries     map[string][]byte
	gets        int
	invalidated []string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{entries: make(map[string][]byte)}
}

func (s *recordingStore) Get(_ context.Context, key cache.LayoutKey) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	data, ok := s.entries[key.String()]
	if !ok {
		return nil, cache.ErrMiss
	}
	return data, nil
}

func (s *recordingStore) Set(_ context.Context, key cache.LayoutKey, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key.String()] = payload
	return nil
}

func (s *recordingStore) InvalidateGroup(_ context.Context, ownerID, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, ownerID+"/"+groupID)
	for k := range s.entries {
		delete(s.entries, k)
	}
	return nil
}

func newService(t *testing.T) (*domain.Service, *recordingStore) {
	t.Helper()
	store := newRecordingStore()
	tick := time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return domain.NewService(memory.NewRepository(), store, domain.WithClock(clock)), store
}

func TestListGroupsCreatesDefaultOnce(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	groups, next, err := svc.ListGroups(ctx, "user-1", nil, 10)
	require.NoError(t, err)
	require.Nil(t, next)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].IsDefault)
	assert.Equal(t, domain.DefaultGroupName, groups[0].Name)

	again, _, err := svc.ListGroups(ctx, "user-1", nil, 10)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, groups[0].ID, again[0].ID)

	other, _, err := svc.ListGroups(ctx, "user-2", nil, 10)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.NotEqual(t, groups[0].ID, other[0].ID)
}

func TestListGroupsPaginates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, _, err := svc.ListGroups(ctx, "user-1", nil, 10)
	require.NoError(t, err)
	for _, name := range []string{"Gym", "Work"} {
		_, err := svc.CreateGroup(ctx, "user-1", name)
		require.NoError(t, err)
	}

	page, next, err := svc.ListGroups(ctx, "user-1", nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	assert.True(t, page[0].IsDefault)

	rest, next, err := svc.ListGroups(ctx, "user-1", next, 2)
	require.NoError(t, err)
	require.Nil(t, next)
	require.Len(t, rest, 1)
	assert.Equal(t, "Gym", page[1].Name)
	assert.Equal(t, "Work", rest[0].Name)
}

func TestDefaultGroupIsImmutable(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	groups, _, err := svc.ListGroups(ctx, "user-1", nil, 10)
	require.NoError(t, err)
	def := groups[0]

	_, err = svc.RenameGroup(ctx, "user-1", def.ID, "Renamed")
	require.ErrorIs(t, err, domain.ErrDefaultGroupImmutable)
	require.ErrorIs(t, svc.DeleteGroup(ctx, "user-1", def.ID), domain.ErrDefaultGroupImmutable)
}

func TestGroupNameValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateGroup(ctx, "user-1", "   ")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
	assert.ErrorIs(t, err, domain.ErrValidation)

	g, err := svc.CreateGroup(ctx, "user-1", "  Uni  ")
	require.NoError(t, err)
	assert.Equal(t, "Uni", g.Name)

	renamed, err := svc.RenameGroup(ctx, "user-1", g.ID, "College")
	require.NoError(t, err)
	assert.Equal(t, "College", renamed.Name)
	assert.True(t, renamed.UpdatedAt.After(g.UpdatedAt))
}

func TestGroupsAreScopedToOwner(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "user-1", "Private")
	require.NoError(t, err)

	_, err = svc.RenameGroup(ctx, "intruder", g.ID, "Mine now")
	require.ErrorIs(t, err, domain.ErrGroupNotFound)
	_, err = svc.ListActivities(ctx, "intruder", g.ID)
	require.ErrorIs(t, err, domain.ErrGroupNotFound)
	_, err = svc.CreateActivity(ctx, domain.CreateActivityInput{
		OwnerID: "intruder", GroupID: g.ID, Day: "Monday", StartTime: "09:00", EndTime: "10:00", Label: "x",
	})
	require.ErrorIs(t, err, domain.ErrGroupNotFound)
}

func TestCreateActivityValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	g, err := svc.CreateGroup(ctx, "user-1", "Week")
	require.NoError(t, err)

	base := domain.CreateActivityInput{OwnerID: "user-1", GroupID: g.ID, Day: "Monday", StartTime: "09:00", EndTime: "10:00", Label: "Lecture"}

	cases := map[string]struct {
		mutate func(*domain.CreateActivityInput)
		field  string
	}{
		"end before start": {func(in *domain.CreateActivityInput) { in.EndTime = "08:00" }, "end_time"},
		"zero duration":    {func(in *domain.CreateActivityInput) { in.EndTime = "09:00" }, "end_time"},
		"bad day":          {func(in *domain.CreateActivityInput) { in.Day = "Someday" }, "day"},
		"bad start":        {func(in *domain.CreateActivityInput) { in.StartTime = "9am" }, "start_time"},
		"missing label":    {func(in *domain.CreateActivityInput) { in.Label = " " }, "activity"},
		"bad colour":       {func(in *domain.CreateActivityInput) { in.Color = "red" }, "color"},
	}
	for name, tc := range cases {
		in := base
		tc.mutate(&in)
		_, err := svc.CreateActivity(ctx, in)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr, name)
		assert.Equal(t, tc.field, verr.Field, name)
	}

	_, err = svc.CreateActivity(ctx, domain.CreateActivityInput{OwnerID: "user-1", GroupID: g.ID, Day: "Monday", StartTime: "11:00", EndTime: "10:00", Label: "x"})
	require.EqualError(t, err, "end_time: end time must be after start time")
}

func TestCreateActivityDefaults(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	g, err := svc.CreateGroup(ctx, "user-1", "Week")
	require.NoError(t, err)

	a, err := svc.CreateActivity(ctx, domain.CreateActivityInput{
		OwnerID: "user-1", GroupID: g.ID, Day: "tue", StartTime: "13:15", EndTime: "14:45", Label: " Lab ", Color: "#e8f5e9",
	})
	require.NoError(t, err)
	assert.Equal(t, timetable.Tuesday, a.Day)
	assert.Equal(t, "13:15", a.Start.String())
	assert.Equal(t, "Lab", a.Label)
	assert.Equal(t, "#E8F5E9", a.Color)
	assert.Contains(t, store.invalidated, "user-1/"+g.ID)

	b, err := svc.CreateActivity(ctx, domain.CreateActivityInput{
		OwnerID: "user-1", GroupID: g.ID, Day: "Friday", StartTime: "08:00", EndTime: "09:00", Label: "Run",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Palette[0], b.Color)
}

func TestUpdateActivityMergesAndRevalidates(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	g1, err := svc.CreateGroup(ctx, "user-1", "One")
	require.NoError(t, err)
	g2, err := svc.CreateGroup(ctx, "user-1", "Two")
	require.NoError(t, err)

	a, err := svc.CreateActivity(ctx, domain.CreateActivityInput{
		OwnerID: "user-1", GroupID: g1.ID, Day: "Monday", StartTime: "09:00", EndTime: "10:00", Label: "Math",
	})
	require.NoError(t, err)

	late := "08:30"
	_, err = svc.UpdateActivity(ctx, domain.UpdateActivityInput{OwnerID: "user-1", ActivityID: a.ID, EndTime: &late})
	require.ErrorIs(t, err, domain.ErrValidation)

	end, details, target := "11:30", "Room 101", g2.ID
	updated, err := svc.UpdateActivity(ctx, domain.UpdateActivityInput{
		OwnerID: "user-1", ActivityID: a.ID, EndTime: &end, Details: &details, GroupID: &target,
	})
	require.NoError(t, err)
	assert.Equal(t, "11:30", updated.End.String())
	assert.Equal(t, "Room 101", updated.Details)
	assert.Equal(t, g2.ID, updated.GroupID)
	assert.Equal(t, "Math", updated.Label)
	assert.Contains(t, store.invalidated, "user-1/"+g1.ID)
	assert.Contains(t, store.invalidated, "user-1/"+g2.ID)

	left, err := svc.ListActivities(ctx, "user-1", g1.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	missing := "nope"
	_, err = svc.UpdateActivity(ctx, domain.UpdateActivityInput{OwnerID: "user-1", ActivityID: a.ID, GroupID: &missing})
	require.ErrorIs(t, err, domain.ErrGroupNotFound)

	_, err = svc.UpdateActivity(ctx, domain.UpdateActivityInput{OwnerID: "user-2", ActivityID: a.ID})
	require.ErrorIs(t, err, domain.ErrActivityNotFound)
}

func TestDeleteActivityAndGroupCascade(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	g, err := svc.CreateGroup(ctx, "user-1", "Temp")
	require.NoError(t, err)
	a, err := svc.CreateActivity(ctx, domain.CreateActivityInput{OwnerID: "user-1", GroupID: g.ID, Day: "Monday", StartTime: "09:00", EndTime: "10:00", Label: "A"})
	require.NoError(t, err)
	b, err := svc.CreateActivity(ctx, domain.CreateActivityInput{OwnerID: "user-1", GroupID: g.ID, Day: "Monday", StartTime: "10:00", EndTime: "11:00", Label: "B"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteActivity(ctx, "user-1", a.ID))
	require.ErrorIs(t, svc.DeleteActivity(ctx, "user-1", a.ID), domain.ErrActivityNotFound)

	require.NoError(t, svc.DeleteGroup(ctx, "user-1", g.ID))
	_, err = svc.GetActivity(ctx, "user-1", b.ID)
	require.ErrorIs(t, err, domain.ErrActivityNotFound)
	require.ErrorIs(t, svc.DeleteGroup(ctx, "user-1", g.ID), domain.ErrGroupNotFound)
}

func TestTimetableUsesCacheUntilChange(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	g, err := svc.CreateGroup(ctx, "user-1", "Week")
	require.NoError(t, err)
	for _, in := range []domain.CreateActivityInput{
		{Day: "Monday", StartTime: "09:00", EndTime: "10:00", Label: "A"},
		{Day: "Monday", StartTime: "09:30", EndTime: "10:30", Label: "B"},
		{Day: "Monday", StartTime: "10:00", EndTime: "11:00", Label: "C"},
	} {
		in.OwnerID, in.GroupID = "user-1", g.ID
		_, err := svc.CreateActivity(ctx, in)
		require.NoError(t, err)
	}

	first, err := svc.Timetable(ctx, "user-1", g.ID, timetable.Options{})
	require.NoError(t, err)
	require.Len(t, first.Activities, 3)
	require.Len(t, store.entries, 1)

	widths := map[string]float64{}
	for _, a := range first.Activities {
		p, ok := first.Layout.Placement(a.ID)
		require.True(t, ok)
		widths[a.Label] = p.Width
	}
	assert.Equal(t, 50.0, widths["A"])
	assert.InDelta(t, 100.0/3, widths["B"], 1e-9)
	assert.Equal(t, 50.0, widths["C"])

	second, err := svc.Timetable(ctx, "user-1", g.ID, timetable.Options{})
	require.NoError(t, err)
	assert.Equal(t, first.Layout, second.Layout)

	lanes, err := svc.Timetable(ctx, "user-1", g.ID, timetable.Options{Policy: timetable.PolicyLanes})
	require.NoError(t, err)
	assert.Equal(t, timetable.PolicyLanes, lanes.Layout.Policy)
	require.Len(t, store.entries, 2)

	_, err = svc.CreateActivity(ctx, domain.CreateActivityInput{OwnerID: "user-1", GroupID: g.ID, Day: "Sunday", StartTime: "18:00", EndTime: "19:00", Label: "D"})
	require.NoError(t, err)
	require.Empty(t, store.entries)

	third, err := svc.Timetable(ctx, "user-1", g.ID, timetable.Options{})
	require.NoError(t, err)
	require.Len(t, third.Activities, 4)
	require.Len(t, store.entries, 1)

	_, err = svc.RenameGroup(ctx, "user-1", g.ID, "Term 2")
	require.NoError(t, err)
	require.Empty(t, store.entries)

	renamed, err := svc.Timetable(ctx, "user-1", g.ID, timetable.Options{})
	require.NoError(t, err)
	assert.Equal(t, "Term 2", renamed.Group.Name)
}

type failingStore struct{ cache.NoopLayoutStore }

func (failingStore) Get(context.Context, cache.LayoutKey) ([]byte, error) {
	return nil, errors.New("redis down")
}

func (failingStore) InvalidateGroup(context.Context, string, string) error {
	return errors.New("redis down")
}

func TestCacheFailuresDoNotFailRequests(t *testing.T) {
	svc := domain.NewService(memory.NewRepository(), failingStore{})
	ctx := context.Background()
	g, err := svc.CreateGroup(ctx, "user-1", "Week")
	require.NoError(t, err)
	_, err = svc.CreateActivity(ctx, domain.CreateActivityInput{OwnerID: "user-1", GroupID: g.ID, Day: "Monday", StartTime: "09:00", EndTime: "10:00", Label: "A"})
	require.NoError(t, err)

	tt, err := svc.Timetable(ctx, "user-1", g.ID, timetable.Options{RowHeightPx: 30})
	require.NoError(t, err)
	assert.Equal(t, 30.0, tt.Layout.RowHeightPx)
}

func TestWeekBucketsByDay(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	g, err := svc.CreateGroup(ctx, "user-1", "Week")
	require.NoError(t, err)
	for _, in := range []domain.CreateActivityInput{
		{Day: "Wednesday", StartTime: "12:00", EndTime: "13:00", Label: "Lunch"},
		{Day: "Wednesday", StartTime: "08:00", EndTime: "09:00", Label: "Gym"},
		{Day: "Monday", StartTime: "08:00", EndTime: "09:00", Label: "Gym"},
	} {
		in.OwnerID, in.GroupID = "user-1", g.ID
		_, err := svc.CreateActivity(ctx, in)
		require.NoError(t, err)
	}

	week, err := svc.Week(ctx, "user-1", g.ID)
	require.NoError(t, err)
	require.Len(t, week[timetable.Wednesday], 2)
	assert.Equal(t, "Gym", week[timetable.Wednesday][0].Label)
	assert.Len(t, week[timetable.Monday], 1)
	assert.Empty(t, week[timetable.Sunday])
}

func TestValidateEntries(t *testing.T) {
	ok := []timetable.Entry{{ID: "a", Day: timetable.Monday, Start: 60, End: 120}}
	require.NoError(t, domain.ValidateEntries(ok))

	dup := append(ok, timetable.Entry{ID: "a", Day: timetable.Monday, Start: 0, End: 10})
	require.ErrorIs(t, domain.ValidateEntries(dup), domain.ErrValidation)

	backwards := []timetable.Entry{{ID: "b", Day: timetable.Monday, Start: 120, End: 60}}
	require.EqualError(t, domain.ValidateEntries(backwards), "activities[0].end_time: end time must be after start time")
}
