package modrinth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"mc-resource-manager/config"
)

const (
	modrinthAPIURL = "https://api.modrinth.com/v2"
	defaultTimeout = 5 * time.Second
)

// ErrNotFound is returned when Modrinth does not know the requested object.
var ErrNotFound = errors.New("not found on modrinth")

// Client handles communication with the Modrinth API.
type Client struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	HTTPClient *http.Client
}

// NewClient creates a new Modrinth API client using the provided configuration.
func NewClient(cfg config.Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("USERAGENT is not configured")
	}

	return &Client{
		BaseURL:   modrinthAPIURL,
		APIKey:    cfg.ModrinthAPIKey,
		UserAgent: cfg.UserAgent,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}, nil
}

func (c *Client) makeRequest(ctx context.Context, method, path string, queryParams url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if queryParams != nil {
		req.URL.RawQuery = queryParams.Encode()
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api request failed: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode json response: %w", err)
		}
	}
	return nil
}

// GetVersionByHash retrieves the version a file belongs to from its SHA-1 hash.
func (c *Client) GetVersionByHash(ctx context.Context, hash string) (*Version, error) {
	var version Version
	params := url.Values{"algorithm": {"sha1"}}
	if err := c.makeRequest(ctx, http.MethodGet, "/version_file/"+url.PathEscape(hash), params, &version); err != nil {
		return nil, fmt.Errorf("failed to get version by hash '%s': %w", hash, err)
	}
	return &version, nil
}

// GetProject retrieves details for a project by id or slug.
func (c *Client) GetProject(ctx context.Context, idOrSlug string) (*Project, error) {
	var project Project
	if err := c.makeRequest(ctx, http.MethodGet, "/project/"+url.PathEscape(idOrSlug), nil, &project); err != nil {
		return nil, fmt.Errorf("failed to get project '%s': %w", idOrSlug, err)
	}
	return &project, nil
}

// Project represents a Modrinth project
type Project struct {
	Slug        string `json:"slug"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IconURL     string `json:"icon_url"`
	Color       int    `json:"color"`
	ProjectType string `json:"project_type"` // e.g., "mod"
	ClientSide  string `json:"client_side"`
	ServerSide  string `json:"server_side"`
}

// Version represents a Modrinth project version (simplified).
type Version struct {
	ID            string   `json:"id"`
	ProjectID     string   `json:"project_id"`
	Name          string   `json:"name"`
	VersionNumber string   `json:"version_number"`
	GameVersions  []string `json:"game_versions"`
	Loaders       []string `json:"loaders"`
	Files         []File   `json:"files"`
}

// File represents a file within a Modrinth version (simplified).
type File struct {
	Filename string            `json:"filename"`
	URL      string            `json:"url"`
	Primary  bool              `json:"primary"`
	Size     int               `json:"size"`
	Hashes   map[string]string `json:"hashes"` // e.g., {"sha512": "...", "sha1": "..."}
}
