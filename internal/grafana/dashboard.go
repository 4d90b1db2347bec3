package grafana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
)

// DataURLPlaceholder is the substitution point in the dashboard template
// that receives the externally reachable location of the published data.
const DataURLPlaceholder = "YOUR_DATA_URL_HERE"

// Definition is an opaque dashboard layout plus the small set of fields the
// synchronizer parameterizes: data source URL, title, and UID. Identity for
// upsert purposes is the UID/title pair, not a content hash.
type Definition struct {
	Dashboard map[string]any
	Title     string
	UID       string
}

// LoadDefinition reads the dashboard template, substitutes the data URL
// placeholder, and applies the configured title and UID. The rest of the
// layout is published verbatim.
func LoadDefinition(path, title, uid, dataURL string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dashboard template: %w", err)
	}

	if dataURL != "" {
		raw = bytes.ReplaceAll(raw, []byte(DataURLPlaceholder), []byte(dataURL))
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON in dashboard template %s: %w", path, err)
	}

	// Templates exported from Grafana may carry the {"dashboard": ...}
	// wrapper; accept both forms.
	dashboard := parsed
	if inner, ok := parsed["dashboard"].(map[string]any); ok {
		dashboard = inner
	}

	if title != "" {
		dashboard["title"] = title
	}
	if uid != "" {
		dashboard["uid"] = uid
	}

	defTitle, _ := dashboard["title"].(string)
	defUID, _ := dashboard["uid"].(string)
	if defTitle == "" && defUID == "" {
		return nil, fmt.Errorf("dashboard template %s has neither a title nor a uid; upsert needs an identity", path)
	}

	return &Definition{
		Dashboard: dashboard,
		Title:     defTitle,
		UID:       defUID,
	}, nil
}

// UpsertResult describes the dashboard resource after synchronization.
type UpsertResult struct {
	UID     string `json:"uid"`
	URL     string `json:"url"`
	Status  string `json:"status"`
	Version int    `json:"version"`
	Slug    string `json:"slug"`
	Created bool   `json:"-"`
}

// remoteDashboard is the subset of an existing dashboard needed to update
// it in place: the numeric id, the uid, and the version token Grafana uses
// as its optimistic-concurrency check.
type remoteDashboard struct {
	ID      int64
	UID     string
	Version int
}

// Upsert creates the dashboard if absent and updates it in place if
// present. The lookup goes by UID first, falling back to an exact title
// match when no UID is configured. Updates carry the remote resource's
// current version so a concurrent edit fails loudly instead of being
// silently overwritten.
func (c *Client) Upsert(ctx context.Context, def *Definition) (*UpsertResult, error) {
	uid := def.UID
	if uid == "" {
		found, err := c.searchByTitle(ctx, def.Title)
		if err != nil {
			return nil, err
		}
		uid = found
	}

	var existing *remoteDashboard
	if uid != "" {
		found, err := c.getByUID(ctx, uid)
		if err != nil {
			return nil, err
		}
		existing = found
	}

	dashboard := make(map[string]any, len(def.Dashboard)+2)
	for k, v := range def.Dashboard {
		dashboard[k] = v
	}

	if existing != nil {
		dashboard["id"] = existing.ID
		dashboard["uid"] = existing.UID
		dashboard["version"] = existing.Version
	} else {
		delete(dashboard, "id")
		delete(dashboard, "version")
	}

	payload := map[string]any{
		"dashboard": dashboard,
		"overwrite": false,
		"message":   "deploytrack dashboard sync",
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/dashboards/db", nil, payload)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, apiError(resp)
	}

	var result UpsertResult
	if err := json.Unmarshal(resp.body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode upsert response: %w", err)
	}
	result.Created = existing == nil

	if result.Created {
		c.logger.Info("Created dashboard", "uid", result.UID, "url", result.URL, "version", result.Version)
	} else {
		c.logger.Info("Updated dashboard", "uid", result.UID, "url", result.URL, "version", result.Version)
	}

	return &result, nil
}

// getByUID fetches an existing dashboard. Returns nil without error when
// the UID does not exist yet.
func (c *Client) getByUID(ctx context.Context, uid string) (*remoteDashboard, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/dashboards/uid/"+url.PathEscape(uid), nil, nil)
	if err != nil {
		return nil, err
	}

	switch resp.status {
	case http.StatusOK:
		// Parsed below.
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, apiError(resp)
	}

	var out struct {
		Dashboard struct {
			ID      int64  `json:"id"`
			UID     string `json:"uid"`
			Version int    `json:"version"`
		} `json:"dashboard"`
	}
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode dashboard lookup response: %w", err)
	}

	return &remoteDashboard{
		ID:      out.Dashboard.ID,
		UID:     out.Dashboard.UID,
		Version: out.Dashboard.Version,
	}, nil
}

// searchByTitle returns the UID of the dashboard whose title matches
// exactly, or empty string when none does.
func (c *Client) searchByTitle(ctx context.Context, title string) (string, error) {
	if title == "" {
		return "", nil
	}

	query := url.Values{}
	query.Set("query", title)
	query.Set("type", "dash-db")

	resp, err := c.do(ctx, http.MethodGet, "/api/search", query, nil)
	if err != nil {
		return "", err
	}
	if resp.status != http.StatusOK {
		return "", apiError(resp)
	}

	var hits []struct {
		UID   string `json:"uid"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(resp.body, &hits); err != nil {
		return "", fmt.Errorf("failed to decode search response: %w", err)
	}

	// The search is a substring match on the server side; require an exact
	// title so "Deployments" never claims "Deployments (staging)".
	for _, hit := range hits {
		if hit.Title == title {
			return hit.UID, nil
		}
	}

	return "", nil
}
