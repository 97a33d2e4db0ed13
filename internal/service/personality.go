package service

import (
	"slices"
	"time"

	"github.com/wrapify/wrapify/internal/model"
	"github.com/wrapify/wrapify/internal/spotify"
)

// Personality labels, in rule order.
const (
	PersonalityPop     = "Pop Connoisseur"
	PersonalityRock    = "Rock Rebel"
	PersonalityIndie   = "Indie Explorer"
	PersonalityDefault = "Music Explorer"

	// TopGenresCount caps WrapData.TopGenres and Stats.Genres.
	TopGenresCount = 5
	// UnknownArtist is used when there is no top artist.
	UnknownArtist = "Unknown"

	// generatedAtLayout is RFC 3339 with millisecond precision, UTC.
	generatedAtLayout = "2006-01-02T15:04:05.000Z07:00"
)

// personalityRules is checked top to bottom; the first genre present wins.
var personalityRules = []struct {
	genre string
	label string
}{
	{"pop", PersonalityPop},
	{"rock", PersonalityRock},
	{"indie", PersonalityIndie},
}

// FlattenGenres concatenates every artist's genres in artist rank order.
// Duplicates are kept.
func FlattenGenres(artists []spotify.Artist) []string {
	genres := []string{}
	for _, a := range artists {
		genres = append(genres, a.Genres...)
	}
	return genres
}

// Personality picks a label from the full genre list. Matching is exact:
// "dance pop" does not count as "pop".
func Personality(genres []string) string {
	for _, r := range personalityRules {
		if slices.Contains(genres, r.genre) {
			return r.label
		}
	}
	return PersonalityDefault
}

// TopGenres returns the first n genres, never nil.
func TopGenres(genres []string, n int) []string {
	if len(genres) > n {
		genres = genres[:n]
	}
	return append([]string{}, genres...)
}

// TopArtistName returns the first artist's name, or UnknownArtist.
func TopArtistName(artists []spotify.Artist) string {
	if len(artists) == 0 || artists[0].Name == "" {
		return UnknownArtist
	}
	return artists[0].Name
}

// BuildWrapData derives the wrap payload from ranked top artists.
func BuildWrapData(artists []spotify.Artist, now time.Time) model.WrapData {
	genres := FlattenGenres(artists)
	return model.WrapData{
		Personality:   Personality(genres),
		TopGenres:     TopGenres(genres, TopGenresCount),
		TopArtistName: TopArtistName(artists),
		GeneratedAt:   now.UTC().Format(generatedAtLayout),
	}
}
