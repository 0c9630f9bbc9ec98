package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/auth"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/domain"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/persistence/memory"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/timetable"
)

var (
	readScope  = []string{auth.ScopeSchedulesRead}
	writeScope = []string{auth.ScopeSchedulesWrite}
)

type stubPNG struct {
	svg           []byte
	width, height float64
	err           error
}

func (s *stubPNG) Render(_ context.Context, svg []byte, width, height float64) ([]byte, error) {
	s.svg, s.width, s.height = svg, width, height
	if s.err != nil {
		return nil, s.err
	}
	return []byte("\x89PNG"), nil
}

func newTestMux(t *testing.T, opts ...Option) *http.ServeMux {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, time.January, 3, 8, 0, 0, 0, time.UTC) }
	service := domain.NewService(memory.NewRepository(), nil, domain.WithClock(clock))
	handler := NewHandler(service, opts...)
	handler.now = clock
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path string, body interface{}, subject string, scopes []string) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}
	reader := bytes.NewReader(payload)
	req := httptest.NewRequest(method, path, reader)
	if subject != "" {
		claims := &auth.Claims{
			Subject:   subject,
			Scopes:    make(map[string]struct{}),
			ExpiresAt: time.Now().Add(time.Hour),
		}
		for _, s := range scopes {
			claims.Scopes[s] = struct{}{}
		}
		req = req.WithContext(auth.WithClaims(req.Context(), claims))
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rr)["type"]
}

func createGroup(t *testing.T, mux http.Handler, owner, name string) GroupView {
	t.Helper()
	rr := do(t, mux, http.MethodPost, "/v1/groups", GroupRequest{Name: name}, owner, writeScope)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[GroupView](t, rr)
}

func createActivity(t *testing.T, mux http.Handler, owner, groupID string, req CreateActivityRequest) ActivityView {
	t.Helper()
	rr := do(t, mux, http.MethodPost, "/v1/groups/"+groupID+"/activities", req, owner, writeScope)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[ActivityView](t, rr)
}

func TestHealthz(t *testing.T) {
	mux := newTestMux(t)
	rr := do(t, mux, http.MethodGet, "/healthz", nil, "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestAuthorization(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, http.MethodGet, "/v1/groups", nil, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthorized", errorType(t, rr))

	rr = do(t, mux, http.MethodPost, "/v1/groups", GroupRequest{Name: "Work"}, "user-1", readScope)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "forbidden", errorType(t, rr))

	// write implies read
	rr = do(t, mux, http.MethodGet, "/v1/groups", nil, "user-1", writeScope)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestListGroupsCreatesDefaultGroup(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, http.MethodGet, "/v1/groups", nil, "user-1", readScope)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[ListGroupsResponse](t, rr)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, domain.DefaultGroupName, resp.Items[0].Name)
	assert.True(t, resp.Items[0].IsDefault)
	assert.Empty(t, resp.NextCursor)

	defaultID := resp.Items[0].ID
	rr = do(t, mux, http.MethodPatch, "/v1/groups/"+defaultID, GroupRequest{Name: "Renamed"}, "user-1", writeScope)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "default_group_immutable", errorType(t, rr))

	rr = do(t, mux, http.MethodDelete, "/v1/groups/"+defaultID, nil, "user-1", writeScope)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestListGroupsPagination(t *testing.T) {
	mux := newTestMux(t)
	do(t, mux, http.MethodGet, "/v1/groups", nil, "user-1", readScope)
	createGroup(t, mux, "user-1", "Lectures")
	createGroup(t, mux, "user-1", "Gym")

	rr := do(t, mux, http.MethodGet, "/v1/groups?limit=2", nil, "user-1", readScope)
	require.Equal(t, http.StatusOK, rr.Code)
	first := decode[ListGroupsResponse](t, rr)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	rr = do(t, mux, http.MethodGet, "/v1/groups?limit=2&cursor="+first.NextCursor, nil, "user-1", readScope)
	require.Equal(t, http.StatusOK, rr.Code)
	second := decode[ListGroupsResponse](t, rr)
	require.Len(t, second.Items, 1)

	seen := map[string]bool{}
	for _, g := range append(first.Items, second.Items...) {
		assert.False(t, seen[g.ID], "group %s listed twice", g.ID)
		seen[g.ID] = true
	}

	rr = do(t, mux, http.MethodGet, "/v1/groups?cursor=%25%25%25", nil, "user-1", readScope)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_cursor", errorType(t, rr))

	rr = do(t, mux, http.MethodGet, "/v1/groups?limit=abc", nil, "user-1", readScope)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGroupLifecycle(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, http.MethodPost, "/v1/groups", GroupRequest{Name: "   "}, "user-1", writeScope)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_error", errorType(t, rr))

	group := createGroup(t, mux, "user-1", "  Lectures ")
	assert.Equal(t, "Lectures", group.Name)
	assert.False(t, group.IsDefault)

	rr = do(t, mux, http.MethodPatch, "/v1/groups/"+group.ID, GroupRequest{Name: "Semester 2"}, "user-1", writeScope)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Semester 2", decode[GroupView](t, rr).Name)

	// another owner cannot see it
	rr = do(t, mux, http.MethodPatch, "/v1/groups/"+group.ID, GroupRequest{Name: "Mine"}, "user-2", writeScope)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	createActivity(t, mux, "user-1", group.ID, CreateActivityRequest{Day: "Monday", StartTime: "09:00", EndTime: "10:00", Activity: "Calculus"})

	rr = do(t, mux, http.MethodDelete, "/v1/groups/"+group.ID, nil, "user-1", writeScope)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, mux, http.MethodGet, "/v1/groups/"+group.ID+"/activities", nil, "user-1", readScope)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, mux, http.MethodPost, "/v1/groups", "{", "user-1", writeScope)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestActivityLifecycle(t *testing.T) {
	mux := newTestMux(t)
	lectures := createGroup(t, mux, "user-1", "Lectures")
	gym := createGroup(t, mux, "user-1", "Gym")

	rr := do(t, mux, http.MethodPost, "/v1/groups/"+lectures.ID+"/activities",
		CreateActivityRequest{Day: "Monday", StartTime: "10:00", EndTime: "09:00", Activity: "Calculus"}, "user-1", writeScope)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "end time must be after start time")

	rr = do(t, mux, http.MethodPost, "/v1/groups/"+lectures.ID+"/activities",
		CreateActivityRequest{Day: "Funday", StartTime: "09:00", EndTime: "10:00", Activity: "Calculus"}, "user-1", writeScope)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_error", errorType(t, rr))

	calc := createActivity(t, mux, "user-1", lectures.ID, CreateActivityRequest{
		Day: "monday", StartTime: "09:00", EndTime: "10:30", Activity: "Calculus", Details: "Room 2.1",
	})
	assert.Equal(t, "Monday", calc.Day)
	assert.Equal(t, "09:00", calc.StartTime)
	assert.Equal(t, "10:30", calc.EndTime)
	assert.Equal(t, domain.Palette[0], calc.Color)
	createActivity(t, mux, "user-1", lectures.ID, CreateActivityRequest{
		Day: "Monday", StartTime: "08:00", EndTime: "09:00", Activity: "Physics", Color: "#fff4e5",
	})

	rr = do(t, mux, http.MethodGet, "/v1/groups/"+lectures.ID+"/activities", nil, "user-1", readScope)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[ListActivitiesResponse](t, rr)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "Physics", list.Items[0].Activity)
	assert.Equal(t, "#FFF4E5", list.Items[0].Color)

	label := "Weights"
	rr = do(t, mux, http.MethodPatch, "/v1/activities/"+calc.ID, UpdateActivityRequest{GroupID: &gym.ID, Activity: &label}, "user-1", writeScope)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	moved := decode[ActivityView](t, rr)
	assert.Equal(t, gym.ID, moved.GroupID)
	assert.Equal(t, "Weights", moved.Activity)
	assert.Equal(t, "09:00", moved.StartTime)

	end := "08:00"
	rr = do(t, mux, http.MethodPatch, "/v1/activities/"+calc.ID, UpdateActivityRequest{EndTime: &end}, "user-1", writeScope)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, mux, http.MethodDelete, "/v1/activities/"+calc.ID, nil, "user-2", writeScope)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, mux, http.MethodDelete, "/v1/activities/"+calc.ID, nil, "user-1", writeScope)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, mux, http.MethodDelete, "/v1/activities/"+calc.ID, nil, "user-1", writeScope)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", errorType(t, rr))
}

func seedOverlap(t *testing.T, mux http.Handler) GroupView {
	t.Helper()
	group := createGroup(t, mux, "user-1", "Lectures")
	createActivity(t, mux, "user-1", group.ID, CreateActivityRequest{Day: "Monday", StartTime: "09:00", EndTime: "10:30", Activity: "Calculus & Co"})
	createActivity(t, mux, "user-1", group.ID, CreateActivityRequest{Day: "Monday", StartTime: "09:30", EndTime: "10:00", Activity: "Physics"})
	return group
}

func TestTimetableJSON(t *testing.T) {
	mux := newTestMux(t)
	group := seedOverlap(t, mux)

	rr := do(t, mux, http.MethodGet, "/v1/groups/"+group.ID+"/timetable?row_height=80&active_hours=true", nil, "user-1", readScope)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[TimetableResponse](t, rr)
	assert.Equal(t, "Lectures", resp.Group.Name)
	require.Len(t, resp.Activities, 2)
	assert.Equal(t, timetable.PolicyOverlapGroup, resp.Layout.Policy)
	assert.Equal(t, 80.0, resp.Layout.RowHeightPx)
	assert.Equal(t, 9, resp.Layout.FirstHour)
	assert.Equal(t, 11, resp.Layout.LastHour)

	for _, a := range resp.Activities {
		p, ok := resp.Layout.Placement(a.ID)
		require.True(t, ok)
		assert.InDelta(t, 50.0, p.Width, 1e-9)
	}

	rr = do(t, mux, http.MethodGet, "/v1/groups/"+group.ID+"/timetable?policy=zigzag", nil, "user-1", readScope)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_error", errorType(t, rr))

	rr = do(t, mux, http.MethodGet, "/v1/groups/"+group.ID+"/timetable?row_height=-1", nil, "user-1", readScope)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "row_height: must be between 0 and 480 (0 uses the default)", decode[map[string]string](t, rr)["detail"])

	rr = do(t, mux, http.MethodGet, "/v1/groups/"+group.ID+"/timetable?row_height=0", nil, "user-1", readScope)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, timetable.DefaultRowHeightPx, decode[TimetableResponse](t, rr).Layout.RowHeightPx)

	rr = do(t, mux, http.MethodGet, "/v1/groups/"+group.ID+"/timetable", nil, "user-2", readScope)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTimetableSVG(t *testing.T) {
	mux := newTestMux(t)
	group := seedOverlap(t, mux)

	rr := do(t, mux, http.MethodGet, "/v1/groups/"+group.ID+"/timetable.svg", nil, "user-1", readScope)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "image/svg+xml", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, "Calculus &amp; Co")
	assert.Contains(t, body, "Physics")
}

func TestTimetablePNG(t *testing.T) {
	disabled := newTestMux(t)
	group := seedOverlap(t, disabled)
	rr := do(t, disabled, http.MethodGet, "/v1/groups/"+group.ID+"/timetable.png", nil, "user-1", readScope)
	assert.Equal(t, http.StatusNotImplemented, rr.Code)

	renderer := &stubPNG{}
	mux := newTestMux(t, WithPNGRenderer(renderer))
	group = seedOverlap(t, mux)
	rr = do(t, mux, http.MethodGet, "/v1/groups/"+group.ID+"/timetable.png", nil, "user-1", readScope)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG", rr.Body.String())
	assert.Contains(t, string(renderer.svg), "Physics")
	assert.Greater(t, renderer.width, 0.0)
	assert.Greater(t, renderer.height, 0.0)

	renderer.err = errors.New("chrome missing")
	rr = do(t, mux, http.MethodGet, "/v1/groups/"+group.ID+"/timetable.png", nil, "user-1", readScope)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestTimetableICS(t *testing.T) {
	mux := newTestMux(t)
	group := seedOverlap(t, mux)

	rr := do(t, mux, http.MethodGet, "/v1/groups/"+group.ID+"/timetable.ics?from=2024-01-01", nil, "user-1", readScope)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "text/calendar; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), group.ID+".ics")
	body := rr.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "X-WR-CALNAME:Lectures")
	assert.Contains(t, body, "DTSTART:20240101T090000Z")
	assert.Contains(t, body, "RRULE:FREQ=WEEKLY;BYDAY=MO")
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))

	rr = do(t, mux, http.MethodGet, "/v1/groups/"+group.ID+"/timetable.ics?from=01/01/2024", nil, "user-1", readScope)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, mux, http.MethodGet, "/v1/groups/"+group.ID+"/timetable.ics?weeks=-2", nil, "user-1", readScope)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatelessLayout(t *testing.T) {
	mux := newTestMux(t)

	req := LayoutRequest{
		Policy: "lanes",
		Activities: []LayoutEntry{
			{ID: "a", Day: "Tuesday", StartTime: "09:00", EndTime: "11:00"},
			{ID: "b", Day: "Tuesday", StartTime: "10:00", EndTime: "12:00"},
			{ID: "c", Day: "Tuesday", StartTime: "11:00", EndTime: "12:00"},
		},
	}
	rr := do(t, mux, http.MethodPost, "/v1/timetable/layout", req, "user-1", readScope)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	layout := decode[timetable.WeekLayout](t, rr)
	assert.Equal(t, timetable.PolicyLanes, layout.Policy)
	assert.Equal(t, timetable.DefaultRowHeightPx, layout.RowHeightPx)

	a, ok := layout.Placement("a")
	require.True(t, ok)
	c, ok := layout.Placement("c")
	require.True(t, ok)
	assert.Equal(t, 2, a.Lanes)
	assert.Equal(t, a.Lane, c.Lane)

	dup := LayoutRequest{Activities: []LayoutEntry{
		{ID: "a", Day: "Monday", StartTime: "09:00", EndTime: "10:00"},
		{ID: "a", Day: "Monday", StartTime: "11:00", EndTime: "12:00"},
	}}
	rr = do(t, mux, http.MethodPost, "/v1/timetable/layout", dup, "user-1", readScope)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "activities[1].id")

	bad := LayoutRequest{Activities: []LayoutEntry{{ID: "x", Day: "Monday", StartTime: "9am", EndTime: "10:00"}}}
	rr = do(t, mux, http.MethodPost, "/v1/timetable/layout", bad, "user-1", readScope)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "activities[0].start_time")

	rr = do(t, mux, http.MethodPost, "/v1/timetable/layout", req, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
