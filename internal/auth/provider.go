package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Vasu1712/listenparty-backend/internal/models"
	"golang.org/x/oauth2"
)

// ProviderConfig locates the music provider's OAuth and Web API endpoints.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	APIBase      string
	Scopes       []string
}

// Provider runs the authorization code flow against the music provider and
// refreshes its tokens.
type Provider struct {
	oauth   *oauth2.Config
	apiBase string
}

func NewProvider(cfg ProviderConfig) *Provider {
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
	}
}

// AuthCodeURL is where the browser is sent to log in.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a provider token.
func (p *Provider) Exchange(ctx context.Context, code string) (*models.Token, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return fromOAuth(tok), nil
}

// Refresh implements Refresher with the refresh_token grant.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*models.Token, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token")
	}
	tok, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return fromOAuth(tok), nil
}

type profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Images      []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// Profile reads the account the token belongs to.
func (p *Provider) Profile(ctx context.Context, tok *models.Token) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := p.oauth.Client(ctx, &oauth2.Token{AccessToken: tok.AccessToken, TokenType: "Bearer"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+"/me", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider profile: status %d", resp.StatusCode)
	}
	var me profile
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if me.ID == "" {
		return nil, errors.New("provider profile without id")
	}
	u := &models.User{Username: me.ID, DisplayName: me.DisplayName}
	if len(me.Images) > 0 {
		u.Img = me.Images[0].URL
	}
	return u, nil
}

func fromOAuth(tok *oauth2.Token) *models.Token {
	t := &models.Token{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if !tok.Expiry.IsZero() {
		t.ExpiresAt = tok.Expiry.Unix()
	}
	return t
}
