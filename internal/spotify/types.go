package spotify

// Spotify Web API response types, trimmed to the fields Wrapify reads or
// passes through to the dashboard.
// Reference: https://developer.spotify.com/documentation/web-api/reference/

// Image is a cover or profile picture.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}

type ExternalURLs struct {
	Spotify string `json:"spotify,omitempty"`
}

// User is the current user's profile from GET /me.
type User struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Email       string  `json:"email"`
	Country     string  `json:"country,omitempty"`
	Product     string  `json:"product,omitempty"`
	Images      []Image `json:"images"`
}

// PhotoURL returns the first profile image, or "" when the account has none.
func (u *User) PhotoURL() string {
	if len(u.Images) == 0 {
		return ""
	}
	return u.Images[0].URL
}

// Artist is a full artist object from GET /me/top/artists.
type Artist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Genres       []string     `json:"genres"`
	Images       []Image      `json:"images,omitempty"`
	Popularity   int          `json:"popularity"`
	URI          string       `json:"uri"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// SimpleArtist is the artist reference embedded in tracks and albums.
type SimpleArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type Album struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Artists     []SimpleArtist `json:"artists"`
	ReleaseDate string         `json:"release_date,omitempty"`
	Images      []Image        `json:"images,omitempty"`
	URI         string         `json:"uri"`
}

// Track is a full track object from GET /me/top/tracks.
type Track struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Artists      []SimpleArtist `json:"artists"`
	Album        Album          `json:"album"`
	DurationMS   int            `json:"duration_ms"`
	Explicit     bool           `json:"explicit"`
	Popularity   int            `json:"popularity"`
	PreviewURL   *string        `json:"preview_url"`
	URI          string         `json:"uri"`
	ExternalURLs ExternalURLs   `json:"external_urls"`
}

// paging is the envelope of every list endpoint.
type paging[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

// TimeRange selects the affinity window for top items.
type TimeRange string

const (
	ShortTerm  TimeRange = "short_term"
	MediumTerm TimeRange = "medium_term"
	LongTerm   TimeRange = "long_term"
)
