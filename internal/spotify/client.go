// Package spotify is a small client for the Spotify Web API endpoints
// Wrapify needs: the current profile and the user's top artists and tracks.
//
// TOKENS AND ERRORS:
// Every call takes an oauth2.TokenSource, so the caller decides how tokens
// are loaded, refreshed and persisted. A non-2xx answer is returned as an
// *APIError, which callers treat as "no data" rather than a failure.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultAPIURL      = "https://api.spotify.com/v1"
	DefaultAccountsURL = "https://accounts.spotify.com"

	// MaxLimit is the largest page size the top-items endpoints accept.
	MaxLimit = 50
)

// Scopes requested at login.
var Scopes = []string{
	"user-read-email",
	"user-read-private",
	"user-top-read",
	"user-read-recently-played",
}

// Endpoint returns the OAuth endpoints under accountsURL.
// An empty accountsURL means the public Spotify accounts service.
func Endpoint(accountsURL string) oauth2.Endpoint {
	if accountsURL == "" {
		accountsURL = DefaultAccountsURL
	}
	accountsURL = strings.TrimRight(accountsURL, "/")
	return oauth2.Endpoint{
		AuthURL:   accountsURL + "/authorize",
		TokenURL:  accountsURL + "/api/token",
		AuthStyle: oauth2.AuthStyleInHeader,
	}
}

// APIError is a non-2xx response from the Web API, or a refresh the
// accounts service rejected.
type APIError struct {
	Status int
	Path   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify: %s returned status %d", e.Path, e.Status)
}

// IsAPIError reports whether err carries an *APIError.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// Client calls the Web API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a Client for baseURL. A nil httpClient gets a client
// with a 15 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Me returns the profile of the token's owner.
func (c *Client) Me(ctx context.Context, ts oauth2.TokenSource) (*User, error) {
	var u User
	if err := c.doRequest(ctx, ts, "/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// TopArtists returns up to limit of the user's top artists in rank order.
func (c *Client) TopArtists(ctx context.Context, ts oauth2.TokenSource, limit int, tr TimeRange) ([]Artist, error) {
	var page paging[Artist]
	if err := c.doRequest(ctx, ts, "/me/top/artists", topQuery(limit, tr), &page); err != nil {
		return nil, err
	}
	return nonNil(page.Items), nil
}

// TopTracks returns up to limit of the user's top tracks in rank order.
func (c *Client) TopTracks(ctx context.Context, ts oauth2.TokenSource, limit int, tr TimeRange) ([]Track, error) {
	var page paging[Track]
	if err := c.doRequest(ctx, ts, "/me/top/tracks", topQuery(limit, tr), &page); err != nil {
		return nil, err
	}
	return nonNil(page.Items), nil
}

func topQuery(limit int, tr TimeRange) url.Values {
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	if tr == "" {
		tr = LongTerm
	}
	return url.Values{
		"limit":      {strconv.Itoa(limit)},
		"time_range": {string(tr)},
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// doRequest performs an authenticated GET and decodes the JSON body into result.
func (c *Client) doRequest(ctx context.Context, ts oauth2.TokenSource, path string, query url.Values, result any) error {
	tok, err := ts.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := http.StatusUnauthorized
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return fmt.Errorf("spotify: refreshing token: %w", &APIError{Status: status, Path: path})
		}
		return fmt.Errorf("spotify: obtaining token: %w", err)
	}

	apiURL := c.baseURL + path
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("spotify: creating request: %w", err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("spotify: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Path: path}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("spotify: decoding %s response: %w", path, err)
		}
	}
	return nil
}
