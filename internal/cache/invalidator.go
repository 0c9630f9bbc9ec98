package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Invalidator drops cached timetables of one schedule group.
type Invalidator interface {
	InvalidateGroup(ctx context.Context, ownerID, groupID string) error
}

// NoopInvalidator is a no-op implementation.
type NoopInvalidator struct{}

func (NoopInvalidator) InvalidateGroup(context.Context, string, string) error { return nil }

// HTTPInvalidator asks an edge cache in front of the API to purge the
// group's timetable responses.
type HTTPInvalidator struct {
	client *http.Client
	url    string
	token  string
}

func NewHTTPInvalidator(endpoint, token string, timeout time.Duration) *HTTPInvalidator {
	return &HTTPInvalidator{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimRight(endpoint, "/"),
		token:  token,
	}
}

type purgeRequest struct {
	OwnerID string `json:"owner_id"`
	GroupID string `json:"group_id"`
}

// InvalidateGroup POSTs the owner and group identifiers as JSON.
func (h *HTTPInvalidator) InvalidateGroup(ctx context.Context, ownerID, groupID string) error {
	body, err := json.Marshal(purgeRequest{OwnerID: ownerID, GroupID: groupID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &InvalidationError{Status: resp.StatusCode}
	}
	return nil
}

// InvalidationError represents a non-successful invalidation response.
type InvalidationError struct {
	Status int
}

func (e *InvalidationError) Error() string {
	return "cache invalidation failed with status " + http.StatusText(e.Status)
}

// Fanout invalidates every wrapped invalidator and joins their errors.
type Fanout []Invalidator

func (f Fanout) InvalidateGroup(ctx context.Context, ownerID, groupID string) error {
	var errs []error
	for _, inv := range f {
		if inv == nil {
			continue
		}
		if err := inv.InvalidateGroup(ctx, ownerID, groupID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
