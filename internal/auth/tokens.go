package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Vasu1712/listenparty-backend/internal/errs"
	"github.com/Vasu1712/listenparty-backend/internal/models"
	"github.com/Vasu1712/listenparty-backend/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// refreshMargin refreshes tokens slightly before the provider expires them.
const refreshMargin = time.Minute

// Refresher exchanges a refresh token for a new provider token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*models.Token, error)
}

// TokenStore reads and writes the sealed provider token of a user and
// refreshes it when it expired.
type TokenStore struct {
	users     storage.UserStore
	sealer    *Sealer
	refresher Refresher
	refreshes singleflight.Group
	log       *zap.Logger
	now       func() time.Time
}

func NewTokenStore(users storage.UserStore, sealer *Sealer, refresher Refresher, log *zap.Logger) *TokenStore {
	return &TokenStore{
		users:     users,
		sealer:    sealer,
		refresher: refresher,
		log:       log.Named("tokens"),
		now:       time.Now,
	}
}

// Save seals tok and stores it on the user.
func (s *TokenStore) Save(ctx context.Context, username string, tok *models.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	sealed, err := s.sealer.Seal(raw)
	if err != nil {
		return err
	}
	return s.users.SaveToken(ctx, username, sealed)
}

// Token returns a usable provider token of username. Concurrent callers of
// the same user share one refresh.
func (s *TokenStore) Token(ctx context.Context, username string) (*models.Token, error) {
	tok, err := s.load(ctx, username)
	if err != nil || s.valid(tok) {
		return tok, err
	}

	v, err, _ := s.refreshes.Do(username, func() (any, error) {
		// A refresh that finished since our read already stored a new token.
		cur, err := s.load(ctx, username)
		if err != nil || s.valid(cur) {
			return cur, err
		}
		fresh, err := s.refresher.Refresh(ctx, cur.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("refresh token of %s: %w", username, err)
		}
		if fresh.RefreshToken == "" {
			fresh.RefreshToken = cur.RefreshToken
		}
		if err := s.Save(ctx, username, fresh); err != nil {
			return nil, err
		}
		s.log.Debug("provider token refreshed", zap.String("user", username))
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	c := *v.(*models.Token)
	return &c, nil
}

func (s *TokenStore) valid(tok *models.Token) bool {
	return tok.ExpiresAt == 0 || s.now().Add(refreshMargin).Unix() < tok.ExpiresAt
}

func (s *TokenStore) load(ctx context.Context, username string) (*models.Token, error) {
	u, err := s.users.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(u.SealedToken) == 0 {
		return nil, errs.NotFound("No provider token, log in again.")
	}
	raw, err := s.sealer.Open(u.SealedToken)
	if err != nil {
		return nil, err
	}
	var tok models.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &tok, nil
}

// AccessToken returns only the bearer part of Token.
func (s *TokenStore) AccessToken(ctx context.Context, username string) (string, error) {
	tok, err := s.Token(ctx, username)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
