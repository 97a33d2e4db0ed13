package spotify

import (
	"sync"

	"golang.org/x/oauth2"
)

// RefreshFunc receives a token the underlying source minted to replace
// an expired one.
type RefreshFunc func(*oauth2.Token) error

// NotifyingTokenSource wraps src and calls onRefresh once for every new
// access token it hands out. The first token is compared against initial,
// so an unexpired stored token never triggers a write.
func NotifyingTokenSource(src oauth2.TokenSource, initial *oauth2.Token, onRefresh RefreshFunc) oauth2.TokenSource {
	last := ""
	if initial != nil {
		last = initial.AccessToken
	}
	return &notifyingSource{src: src, last: last, onRefresh: onRefresh}
}

type notifyingSource struct {
	mu        sync.Mutex
	src       oauth2.TokenSource
	last      string
	onRefresh RefreshFunc
}

func (s *notifyingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == s.last {
		return tok, nil
	}
	if err := s.onRefresh(tok); err != nil {
		return nil, err
	}
	s.last = tok.AccessToken
	return tok, nil
}
