// Package catalog checks tracks against the music provider's catalog.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const trackURIPrefix = "spotify:track:"

// TokenSource yields the provider access token of a user.
type TokenSource interface {
	AccessToken(ctx context.Context, username string) (string, error)
}

// Spotify verifies tracks through the Web API with the caller's own token.
type Spotify struct {
	base   string
	tokens TokenSource
	client *http.Client
}

func NewSpotify(apiBase string, tokens TokenSource) *Spotify {
	return &Spotify{
		base:   strings.TrimRight(apiBase, "/"),
		tokens: tokens,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// TrackID accepts a bare id or a spotify:track: URI.
func TrackID(track string) string {
	return strings.TrimPrefix(strings.TrimSpace(track), trackURIPrefix)
}

// VerifyTrack reports whether trackID names an existing track. A lookup the
// provider rejects as unknown or malformed is false, not an error.
func (s *Spotify) VerifyTrack(ctx context.Context, username, trackID string) (bool, error) {
	id := TrackID(trackID)
	if id == "" || strings.ContainsAny(id, "/?#") {
		return false, nil
	}
	token, err := s.tokens.AccessToken(ctx, username)
	if err != nil {
		return false, fmt.Errorf("access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/tracks/"+url.PathEscape(id), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("catalog: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusBadRequest, http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("catalog: status %d", resp.StatusCode)
}
