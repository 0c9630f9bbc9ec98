package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx response from the schedule API.
type APIError struct {
	Status int
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Type, e.Detail)
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Type == "" {
		apiErr.Detail = strings.TrimSpace(string(body))
	}
	return apiErr
}

type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupPage is one page of ListGroups. NextCursor is empty on the last page.
type GroupPage struct {
	Items      []Group `json:"items"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

type Activity struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	Day       string    `json:"day"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Activity  string    `json:"activity"`
	Color     string    `json:"color"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewActivity is the body for CreateActivity.
type NewActivity struct {
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Activity  string `json:"activity"`
	Color     string `json:"color,omitempty"`
	Details   string `json:"details,omitempty"`
}

// ActivityPatch changes only the non-nil fields.
type ActivityPatch struct {
	GroupID   *string `json:"group_id,omitempty"`
	Day       *string `json:"day,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	Activity  *string `json:"activity,omitempty"`
	Color     *string `json:"color,omitempty"`
	Details   *string `json:"details,omitempty"`
}

type Placement struct {
	Top      float64 `json:"top"`
	HeightPx float64 `json:"height_px"`
	Width    float64 `json:"width"`
	Left     float64 `json:"left"`
	Lane     int     `json:"lane"`
	Lanes    int     `json:"lanes"`
}

type DayLayout struct {
	Day        string               `json:"day"`
	Placements map[string]Placement `json:"placements"`
}

type WeekLayout struct {
	Policy      string      `json:"policy"`
	RowHeightPx float64     `json:"row_height_px"`
	FirstHour   int         `json:"first_hour"`
	LastHour    int         `json:"last_hour"`
	Days        []DayLayout `json:"days"`
}

type Timetable struct {
	Group      Group      `json:"group"`
	Activities []Activity `json:"activities"`
	Layout     WeekLayout `json:"layout"`
}

// LayoutOptions are the optional timetable query parameters.
type LayoutOptions struct {
	Policy      string
	RowHeightPx float64
	ActiveHours bool
}

func (o LayoutOptions) query() url.Values {
	q := url.Values{}
	if o.Policy != "" {
		q.Set("policy", o.Policy)
	}
	if o.RowHeightPx > 0 {
		q.Set("row_height", strconv.FormatFloat(o.RowHeightPx, 'f', -1, 64))
	}
	if o.ActiveHours {
		q.Set("active_hours", "true")
	}
	return q
}

// Client wraps the schedule HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a Client. httpClient carries authentication, typically
// Session.HTTPClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (c *Client) ListGroups(ctx context.Context, cursor string, limit int) (GroupPage, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var page GroupPage
	err := c.do(ctx, http.MethodGet, "/v1/groups", q, nil, &page)
	return page, err
}

func (c *Client) CreateGroup(ctx context.Context, name string) (Group, error) {
	var g Group
	err := c.do(ctx, http.MethodPost, "/v1/groups", nil, map[string]string{"name": name}, &g)
	return g, err
}

func (c *Client) RenameGroup(ctx context.Context, groupID, name string) (Group, error) {
	var g Group
	err := c.do(ctx, http.MethodPatch, "/v1/groups/"+url.PathEscape(groupID), nil, map[string]string{"name": name}, &g)
	return g, err
}

func (c *Client) DeleteGroup(ctx context.Context, groupID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/groups/"+url.PathEscape(groupID), nil, nil, nil)
}

func (c *Client) ListActivities(ctx context.Context, groupID string) ([]Activity, error) {
	var resp struct {
		Items []Activity `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/groups/"+url.PathEscape(groupID)+"/activities", nil, nil, &resp)
	return resp.Items, err
}

func (c *Client) CreateActivity(ctx context.Context, groupID string, in NewActivity) (Activity, error) {
	var a Activity
	err := c.do(ctx, http.MethodPost, "/v1/groups/"+url.PathEscape(groupID)+"/activities", nil, in, &a)
	return a, err
}

func (c *Client) UpdateActivity(ctx context.Context, activityID string, patch ActivityPatch) (Activity, error) {
	var a Activity
	err := c.do(ctx, http.MethodPatch, "/v1/activities/"+url.PathEscape(activityID), nil, patch, &a)
	return a, err
}

func (c *Client) DeleteActivity(ctx context.Context, activityID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/activities/"+url.PathEscape(activityID), nil, nil, nil)
}

func (c *Client) Timetable(ctx context.Context, groupID string, opts LayoutOptions) (Timetable, error) {
	var tt Timetable
	err := c.do(ctx, http.MethodGet, "/v1/groups/"+url.PathEscape(groupID)+"/timetable", opts.query(), nil, &tt)
	return tt, err
}

// Export downloads the group's timetable as "svg", "png" or "ics".
func (c *Client) Export(ctx context.Context, groupID, format string, query url.Values) ([]byte, error) {
	switch format {
	case "svg", "png", "ics":
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	resp, err := c.send(ctx, http.MethodGet, "/v1/groups/"+url.PathEscape(groupID)+"/timetable."+format, query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// send returns the response only for 2xx statuses; the caller closes it.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}
