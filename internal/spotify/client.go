// Spotify implementation of the playback source contract.
//
// API response types based on https://developer.spotify.com/documentation/web-api/reference/
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nbrennan/huesic/internal/models"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultRetryAfter = 30 * time.Second
	requestTimeout    = 5 * time.Second
)

type tokenStore interface {
	SaveServiceToken(token []byte) error
	LoadServiceToken() ([]byte, error)
}

// Image represents an image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Artist represents a Spotify artist.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album represents a Spotify album.
type Album struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []Artist `json:"artists"`
	Images  []Image  `json:"images"`
}

// TrackItem represents the track object inside a currently-playing response.
type TrackItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Album Album  `json:"album"`
}

type currentlyPlaying struct {
	IsPlaying bool       `json:"is_playing"`
	Item      *TrackItem `json:"item"`
}

// Client implements the playback source contract against the Spotify Web
// API using the OAuth2 authorization-code grant. Tokens are persisted
// through the token store and refreshed transparently.
type Client struct {
	// overridable for tests
	BaseURL string

	logger     *log.Logger
	config     *oauth2.Config
	store      tokenStore
	httpClient *http.Client

	mu     sync.Mutex
	source oauth2.TokenSource
}

func NewClient(logger *log.Logger, clientID string, clientSecret string, redirectURI string, store tokenStore) *Client {

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"user-read-currently-playing", "user-read-playback-state"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	c := &Client{
		BaseURL:    spotifyBaseURL,
		logger:     logger,
		config:     config,
		store:      store,
		httpClient: &http.Client{Timeout: requestTimeout},
	}

	// restore a previously persisted token so authorization survives restarts
	if store != nil {
		if data, err := store.LoadServiceToken(); err != nil {
			logger.Error(err)
		} else if data != nil {
			token := &oauth2.Token{}
			if err := json.Unmarshal(data, token); err != nil {
				logger.Error(fmt.Errorf("error parsing persisted token: %w", err))
			} else {
				c.source = c.persistingSource(token)
			}
		}
	}

	return c
}

// Authorized reports whether a token has been obtained.
func (s *Client) Authorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source != nil
}

// AuthURL returns the URL the user must visit to grant access.
func (s *Client) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades the authorization code for tokens and persists them.
func (s *Client) Exchange(ctx context.Context, code string) error {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: code exchange failed: %s", models.ErrAuthorizationDenied, err)
	}

	s.mu.Lock()
	s.source = s.persistingSource(token)
	s.mu.Unlock()

	s.persistToken(token)
	return nil
}

// CurrentTrack polls the currently playing track. A nil track with a nil
// error means playback is paused or no device is active.
func (s *Client) CurrentTrack(ctx context.Context) (*models.Track, error) {

	token, err := s.token()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.BaseURL+"/me/player/currently-playing", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrServiceUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to parsing
	case http.StatusNoContent:
		return nil, nil
	case http.StatusUnauthorized:
		return nil, models.ErrAuthorizationExpired
	case http.StatusForbidden:
		return nil, models.ErrAuthorizationDenied
	case http.StatusTooManyRequests:
		return nil, &models.RateLimitError{RetryAfter: retryAfter(resp)}
	default:
		return nil, fmt.Errorf("%w: unexpected status %s", models.ErrServiceUnavailable, resp.Status)
	}

	var playing currentlyPlaying
	if err := json.NewDecoder(resp.Body).Decode(&playing); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrServiceUnavailable, err)
	}
	if playing.Item == nil {
		return nil, nil
	}

	return trackFromItem(playing.Item, playing.IsPlaying), nil
}

func trackFromItem(item *TrackItem, isPlaying bool) *models.Track {
	track := &models.Track{
		ID:         item.ID,
		Name:       item.Name,
		Album:      item.Album.Name,
		Playing:    isPlaying,
		ArtworkURL: artworkURL(item.Album.Images),
	}
	if len(item.Album.Artists) > 0 {
		track.Artist = item.Album.Artists[0].Name
	}
	return track
}

// artworkURL prefers the mid-size image; extraction does not need the
// full-resolution one.
func artworkURL(images []Image) string {
	if len(images) > 1 {
		return images[1].URL
	}
	if len(images) == 1 {
		return images[0].URL
	}
	return ""
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultRetryAfter
}

func (s *Client) token() (*oauth2.Token, error) {
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()

	if source == nil {
		return nil, models.ErrAuthorizationExpired
	}

	token, err := source.Token()
	if err != nil {
		// a failed refresh means the session is over; the user must re-authorize
		return nil, fmt.Errorf("%w: token refresh failed: %s", models.ErrAuthorizationExpired, err)
	}
	return token, nil
}

// persistingSource wraps the refreshing token source so refreshed tokens
// are written back to the store.
func (s *Client) persistingSource(token *oauth2.Token) oauth2.TokenSource {
	return &storedTokenSource{
		client: s,
		inner:  s.config.TokenSource(context.Background(), token),
		last:   token.AccessToken,
	}
}

func (s *Client) persistToken(token *oauth2.Token) {
	if s.store == nil {
		return
	}
	data, err := json.Marshal(token)
	if err != nil {
		s.logger.Error(err)
		return
	}
	if err := s.store.SaveServiceToken(data); err != nil {
		s.logger.Error(err)
	}
}

type storedTokenSource struct {
	client *Client
	inner  oauth2.TokenSource

	mu   sync.Mutex
	last string
}

func (t *storedTokenSource) Token() (*oauth2.Token, error) {
	token, err := t.inner.Token()
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	changed := token.AccessToken != t.last
	t.last = token.AccessToken
	t.mu.Unlock()

	if changed {
		t.client.persistToken(token)
	}
	return token, nil
}
