// Package api exposes HTTP handlers for schedule groups, activities and
// timetables.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/auth"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/domain"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/persistence"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/render"
)

const maxBodyBytes = 1 << 20

// pngRenderer captures an SVG document as a PNG image.
type pngRenderer interface {
	Render(ctx context.Context, svg []byte, width, height float64) ([]byte, error)
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service  *domain.Service
	theme    render.Theme
	png      pngRenderer
	location *time.Location
	now      func() time.Time
}

// Option customises a Handler.
type Option func(*Handler)

// WithTheme sets the theme used for SVG and PNG output.
func WithTheme(theme render.Theme) Option {
	return func(h *Handler) { h.theme = theme }
}

// WithPNGRenderer enables PNG export. Without it the PNG route answers 501.
func WithPNGRenderer(r pngRenderer) Option {
	return func(h *Handler) { h.png = r }
}

// WithLocation sets the time zone activity clock times are exported in.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) {
		if loc != nil {
			h.location = loc
		}
	}
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...Option) *Handler {
	h := &Handler{
		service:  service,
		theme:    render.DefaultTheme(),
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)

	mux.HandleFunc("GET /v1/groups", h.listGroups)
	mux.HandleFunc("POST /v1/groups", h.createGroup)
	mux.HandleFunc("PATCH /v1/groups/{id}", h.renameGroup)
	mux.HandleFunc("DELETE /v1/groups/{id}", h.deleteGroup)

	mux.HandleFunc("GET /v1/groups/{id}/activities", h.listActivities)
	mux.HandleFunc("POST /v1/groups/{id}/activities", h.createActivity)
	mux.HandleFunc("PATCH /v1/activities/{id}", h.updateActivity)
	mux.HandleFunc("DELETE /v1/activities/{id}", h.deleteActivity)

	mux.HandleFunc("GET /v1/groups/{id}/timetable", h.timetable)
	mux.HandleFunc("GET /v1/groups/{id}/timetable.svg", h.timetableSVG)
	mux.HandleFunc("GET /v1/groups/{id}/timetable.png", h.timetablePNG)
	mux.HandleFunc("GET /v1/groups/{id}/timetable.ics", h.timetableICS)
	mux.HandleFunc("POST /v1/timetable/layout", h.layout)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// authorize resolves the caller. Reads are allowed with either scope.
func authorize(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if claims.HasScope(scope) {
		return claims, true
	}
	if scope == auth.ScopeSchedulesRead && claims.HasScope(auth.ScopeSchedulesWrite) {
		return claims, true
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
	return nil, false
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeSchedulesRead)
	if !ok {
		return
	}

	query := r.URL.Query()
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	cursor, err := persistence.DecodeCursor(query.Get("cursor"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	groups, next, err := h.service.ListGroups(r.Context(), claims.Subject, cursor, persistence.ClampLimit(limit))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := ListGroupsResponse{Items: make([]GroupView, 0, len(groups))}
	for _, g := range groups {
		resp.Items = append(resp.Items, toGroupView(g))
	}
	if next != nil {
		resp.NextCursor = persistence.EncodeCursor(next)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeSchedulesWrite)
	if !ok {
		return
	}
	var req GroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	group, err := h.service.CreateGroup(r.Context(), claims.Subject, req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupView(*group))
}

func (h *Handler) renameGroup(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeSchedulesWrite)
	if !ok {
		return
	}
	var req GroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	group, err := h.service.RenameGroup(r.Context(), claims.Subject, r.PathValue("id"), req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupView(*group))
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeSchedulesWrite)
	if !ok {
		return
	}
	if err := h.service.DeleteGroup(r.Context(), claims.Subject, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeSchedulesRead)
	if !ok {
		return
	}
	activities, err := h.service.ListActivities(r.Context(), claims.Subject, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := ListActivitiesResponse{Items: make([]ActivityView, 0, len(activities))}
	for _, a := range activities {
		resp.Items = append(resp.Items, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeSchedulesWrite)
	if !ok {
		return
	}
	var req CreateActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	activity, err := h.service.CreateActivity(r.Context(), domain.CreateActivityInput{
		OwnerID:   claims.Subject,
		GroupID:   r.PathValue("id"),
		Day:       req.Day,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Label:     req.Activity,
		Color:     req.Color,
		Details:   req.Details,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityView(*activity))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeSchedulesWrite)
	if !ok {
		return
	}
	var req UpdateActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	activity, err := h.service.UpdateActivity(r.Context(), domain.UpdateActivityInput{
		OwnerID:    claims.Subject,
		ActivityID: r.PathValue("id"),
		GroupID:    req.GroupID,
		Day:        req.Day,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Label:      req.Activity,
		Color:      req.Color,
		Details:    req.Details,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeSchedulesWrite)
	if !ok {
		return
	}
	if err := h.service.DeleteActivity(r.Context(), claims.Subject, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

// writeServiceError maps domain errors onto problem responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "validation_error", validation.Error())
	case errors.Is(err, domain.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, "invalid_cursor", "cursor is not valid")
	case errors.Is(err, domain.ErrGroupNotFound):
		writeError(w, http.StatusNotFound, "not_found", "schedule group not found")
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.Is(err, domain.ErrDefaultGroupImmutable):
		writeError(w, http.StatusConflict, "default_group_immutable", err.Error())
	default:
		log.Printf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
