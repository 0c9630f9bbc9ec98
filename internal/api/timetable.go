package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/auth"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/domain"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/export"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/observability"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/render"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/timetable"
)

const (
	maxRowHeightPx   = 480
	maxLayoutEntries = 1000
	maxExportWeeks   = 520
)

// layoutOptions reads policy, row_height and active_hours from the query.
func layoutOptions(query url.Values) (timetable.Options, error) {
	var opts timetable.Options
	if raw := query.Get("policy"); raw != "" {
		policy, err := timetable.ParsePolicy(raw)
		if err != nil {
			return opts, &domain.ValidationError{Field: "policy", Message: "must be overlap-group or lanes"}
		}
		opts.Policy = policy
	}
	if raw := query.Get("row_height"); raw != "" {
		height, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return opts, &domain.ValidationError{Field: "row_height", Message: "must be a number"}
		}
		if err := checkRowHeight(height); err != nil {
			return opts, err
		}
		opts.RowHeightPx = height
	}
	if raw := query.Get("active_hours"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, &domain.ValidationError{Field: "active_hours", Message: "must be true or false"}
		}
		opts.ActiveHoursOnly = active
	}
	return opts, nil
}

func checkRowHeight(height float64) error {
	if math.IsNaN(height) || height < 0 || height > maxRowHeightPx {
		return &domain.ValidationError{Field: "row_height", Message: fmt.Sprintf("must be between 0 and %d (0 uses the default)", maxRowHeightPx)}
	}
	return nil
}

func (h *Handler) loadTimetable(w http.ResponseWriter, r *http.Request) (*domain.Timetable, bool) {
	claims, ok := authorize(w, r, auth.ScopeSchedulesRead)
	if !ok {
		return nil, false
	}
	opts, err := layoutOptions(r.URL.Query())
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	tt, err := h.service.Timetable(r.Context(), claims.Subject, r.PathValue("id"), opts)
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return tt, true
}

func (h *Handler) timetable(w http.ResponseWriter, r *http.Request) {
	tt, ok := h.loadTimetable(w, r)
	if !ok {
		return
	}
	resp := TimetableResponse{
		Group:      toGroupView(tt.Group),
		Activities: make([]ActivityView, 0, len(tt.Activities)),
		Layout:     tt.Layout,
	}
	for _, a := range tt.Activities {
		resp.Activities = append(resp.Activities, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) timetableSVG(w http.ResponseWriter, r *http.Request) {
	tt, ok := h.loadTimetable(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	err := render.SVG(&buf, renderWeek(tt), h.theme)
	observability.RecordExport("svg", err)
	if err != nil {
		writeServiceError(w, fmt.Errorf("render svg: %w", err))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) timetablePNG(w http.ResponseWriter, r *http.Request) {
	if h.png == nil {
		writeError(w, http.StatusNotImplemented, "not_implemented", export.ErrPNGDisabled.Error())
		return
	}
	tt, ok := h.loadTimetable(w, r)
	if !ok {
		return
	}
	week := renderWeek(tt)
	var svg bytes.Buffer
	if err := render.SVG(&svg, week, h.theme); err != nil {
		observability.RecordExport("png", err)
		writeServiceError(w, fmt.Errorf("render svg: %w", err))
		return
	}
	width, height := render.Size(week, h.theme)
	png, err := h.png.Render(r.Context(), svg.Bytes(), width, height)
	observability.RecordExport("png", err)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", contentDisposition(tt.Group, "png"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) timetableICS(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeSchedulesRead)
	if !ok {
		return
	}
	query := r.URL.Query()
	from := h.now().In(h.location)
	if raw := query.Get("from"); raw != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, raw, h.location)
		if err != nil {
			writeServiceError(w, &domain.ValidationError{Field: "from", Message: "must be a date formatted YYYY-MM-DD"})
			return
		}
		from = parsed
	}
	weeks := 0
	if raw := query.Get("weeks"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 || parsed > maxExportWeeks {
			writeServiceError(w, &domain.ValidationError{Field: "weeks", Message: fmt.Sprintf("must be between 0 and %d", maxExportWeeks)})
			return
		}
		weeks = parsed
	}

	groupID := r.PathValue("id")
	group, err := h.service.GetGroup(r.Context(), claims.Subject, groupID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	activities, err := h.service.ListActivities(r.Context(), claims.Subject, groupID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	err = export.ICS(&buf, blocks(activities), export.ICSOptions{
		Name:     group.Name,
		From:     from,
		Location: h.location,
		Weeks:    weeks,
	})
	observability.RecordExport("ics", err)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", contentDisposition(*group, "ics"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// layout places posted activities without touching storage.
func (h *Handler) layout(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, auth.ScopeSchedulesRead); !ok {
		return
	}
	var req LayoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Activities) > maxLayoutEntries {
		writeServiceError(w, &domain.ValidationError{Field: "activities", Message: fmt.Sprintf("at most %d entries", maxLayoutEntries)})
		return
	}

	var opts timetable.Options
	if req.Policy != "" {
		policy, err := timetable.ParsePolicy(req.Policy)
		if err != nil {
			writeServiceError(w, &domain.ValidationError{Field: "policy", Message: "must be overlap-group or lanes"})
			return
		}
		opts.Policy = policy
	}
	if err := checkRowHeight(req.RowHeight); err != nil {
		writeServiceError(w, err)
		return
	}
	opts.RowHeightPx = req.RowHeight
	opts.ActiveHoursOnly = req.ActiveHours

	entries := make([]timetable.Entry, 0, len(req.Activities))
	for i, a := range req.Activities {
		entry, err := parseEntry(i, a)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		entries = append(entries, entry)
	}
	if err := domain.ValidateEntries(entries); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.LayoutWeek(entries, opts))
}

func parseEntry(i int, a LayoutEntry) (timetable.Entry, error) {
	field := func(name string) string { return fmt.Sprintf("activities[%d].%s", i, name) }
	day, err := timetable.ParseDay(a.Day)
	if err != nil {
		return timetable.Entry{}, &domain.ValidationError{Field: field("day"), Message: "must be a weekday name such as Monday"}
	}
	start, err := timetable.ParseClock(a.StartTime)
	if err != nil {
		return timetable.Entry{}, &domain.ValidationError{Field: field("start_time"), Message: "must be a time formatted HH:MM"}
	}
	end, err := timetable.ParseClock(a.EndTime)
	if err != nil {
		return timetable.Entry{}, &domain.ValidationError{Field: field("end_time"), Message: "must be a time formatted HH:MM"}
	}
	return timetable.Entry{ID: a.ID, Day: day, Start: start, End: end}, nil
}

func renderWeek(tt *domain.Timetable) render.Week {
	return render.Week{
		Title:  tt.Group.Name,
		Layout: tt.Layout,
		Blocks: blocks(tt.Activities),
	}
}

func blocks(activities []domain.Activity) []render.Block {
	out := make([]render.Block, 0, len(activities))
	for _, a := range activities {
		out = append(out, render.Block{
			ID:      a.ID,
			Day:     a.Day,
			Start:   a.Start,
			End:     a.End,
			Label:   a.Label,
			Details: a.Details,
			Color:   a.Color,
		})
	}
	return out
}

func contentDisposition(g domain.Group, ext string) string {
	return fmt.Sprintf("attachment; filename=%q", "timetable-"+g.ID+"."+ext)
}
