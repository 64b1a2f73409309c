// Package token issues and exchanges the access+refresh pairs that carry a
// principal's (uid, username, domain) identity. Refresh tokens are single
// use: the exchange rides a compare-and-set on the token row so concurrent
// refreshes of the same token produce exactly one winner.
package token

import (
	"context"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/db/models"
	"github.com/authplane/authplane/internal/dto"
	"github.com/authplane/authplane/internal/outbox"
	"github.com/authplane/authplane/internal/repository"
	"github.com/authplane/authplane/internal/rolecache"
	"github.com/authplane/authplane/internal/rolegraph"
)

// RequestContext carries the request metadata recorded on token rows.
type RequestContext struct {
	IP        string
	Address   string
	UserAgent string
	RequestID string
	Port      *int
}

// Service is the principal-facing authentication surface.
type Service struct {
	users  repository.UserRepository
	tokens repository.TokenRepository
	rules  repository.RuleReader
	cache  rolecache.Cache
	signer *Signer

	// cacheTTL bounds role-cache entries; equals the access-token lifetime.
	cacheTTL time.Duration
}

func NewService(users repository.UserRepository, tokens repository.TokenRepository, rules repository.RuleReader, cache rolecache.Cache, signer *Signer, cacheTTL time.Duration) *Service {
	return &Service{
		users:    users,
		tokens:   tokens,
		rules:    rules,
		cache:    cache,
		signer:   signer,
		cacheTTL: cacheTTL,
	}
}

// PasswordLogin authenticates by identifier (username, email, or phone
// number) and password, persists the issued pair, and primes the role cache
// with the principal's transitive role closure.
func (s *Service) PasswordLogin(ctx context.Context, identifier, password string, rc RequestContext) (*dto.TokenPairDTO, []outbox.Event, error) {
	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, apperr.BadRequest("invalid credentials")
	}
	if !user.Enabled() {
		return nil, nil, apperr.Forbidden("account %s is disabled", user.Username)
	}

	uid := user.UID()
	access, refresh, err := s.signer.IssuePair(uid, user.Username, user.Domain)
	if err != nil {
		return nil, nil, apperr.Internal("issue token pair: %v", err)
	}

	row := &models.AuthToken{
		AccessToken:  access,
		RefreshToken: refresh,
		Status:       models.TokenStatusUnused,
		UserID:       uid,
		Username:     user.Username,
		Domain:       user.Domain,
		IP:           rc.IP,
		Address:      rc.Address,
		UserAgent:    rc.UserAgent,
		RequestID:    rc.RequestID,
		Port:         rc.Port,
		LoginType:    models.LoginTypePassword,
		CreatedBy:    uid,
	}
	if err := s.tokens.Create(ctx, row); err != nil {
		return nil, nil, err
	}

	s.primeRoleCache(ctx, uid, user.Domain)

	pair := &dto.TokenPairDTO{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       uid,
		Username:     user.Username,
		Domain:       user.Domain,
	}
	events := []outbox.Event{
		{
			AggregateType: outbox.AggregatePrincipal,
			AggregateID:   uid,
			Type:          outbox.EventUserLoggedIn,
			Payload:       map[string]any{"username": user.Username, "domain": user.Domain, "ip": rc.IP, "loginType": models.LoginTypePassword},
		},
		{
			AggregateType: outbox.AggregatePrincipal,
			AggregateID:   uid,
			Type:          outbox.EventTokenGenerated,
			Payload:       map[string]any{"username": user.Username, "loginType": models.LoginTypePassword},
		},
	}
	return pair, events, nil
}

// Refresh exchanges an unused refresh token for a fresh pair, retiring the
// old one atomically. A token that already lost the race fails Conflict.
func (s *Service) Refresh(ctx context.Context, refreshToken string, rc RequestContext) (*dto.TokenPairDTO, []outbox.Event, error) {
	row, err := s.tokens.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.signer.VerifyRefresh(refreshToken); err != nil {
		return nil, nil, err
	}
	if row.Status != models.TokenStatusUnused {
		return nil, nil, apperr.Conflict("refresh token already used")
	}

	access, refresh, err := s.signer.IssuePair(row.UserID, row.Username, row.Domain)
	if err != nil {
		return nil, nil, apperr.Internal("issue token pair: %v", err)
	}

	replacement := &models.AuthToken{
		AccessToken:  access,
		RefreshToken: refresh,
		Status:       models.TokenStatusUnused,
		UserID:       row.UserID,
		Username:     row.Username,
		Domain:       row.Domain,
		IP:           rc.IP,
		Address:      rc.Address,
		UserAgent:    rc.UserAgent,
		RequestID:    rc.RequestID,
		Port:         rc.Port,
		LoginType:    models.LoginTypeRefresh,
		CreatedBy:    row.UserID,
	}
	if err := s.tokens.Exchange(ctx, refreshToken, replacement); err != nil {
		return nil, nil, err
	}

	pair := &dto.TokenPairDTO{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       row.UserID,
		Username:     row.Username,
		Domain:       row.Domain,
	}
	events := []outbox.Event{
		{
			AggregateType: outbox.AggregatePrincipal,
			AggregateID:   row.UserID,
			Type:          outbox.EventRefreshTokenUsed,
			Payload:       map[string]any{"username": row.Username, "ip": rc.IP},
		},
		{
			AggregateType: outbox.AggregatePrincipal,
			AggregateID:   row.UserID,
			Type:          outbox.EventTokenGenerated,
			Payload:       map[string]any{"username": row.Username, "loginType": models.LoginTypeRefresh},
		},
	}
	return pair, events, nil
}

// SignOut retires the refresh token and clears the principal's cached
// roles. Idempotent: an unknown token succeeds with no state change.
func (s *Service) SignOut(ctx context.Context, refreshToken string) ([]outbox.Event, error) {
	row, err := s.tokens.GetByRefreshToken(ctx, refreshToken)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// A lost race means someone already retired it; still clear the cache.
	if _, err := s.tokens.MarkUsed(ctx, refreshToken); err != nil {
		return nil, err
	}
	if err := s.cache.Delete(ctx, row.UserID); err != nil {
		log.Printf("WARNING: sign-out: clear role cache for %s: %v", row.UserID, err)
	}

	return []outbox.Event{{
		AggregateType: outbox.AggregatePrincipal,
		AggregateID:   row.UserID,
		Type:          outbox.EventUserSignedOut,
		Payload:       map[string]any{"username": row.Username},
	}}, nil
}

// VerifyEmail flags the user's email address as verified.
func (s *Service) VerifyEmail(ctx context.Context, userID int64, uid string) (outbox.Event, error) {
	if err := s.users.MarkEmailVerified(ctx, userID); err != nil {
		return outbox.Event{}, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: outbox.AggregatePrincipal,
		AggregateID:   user.UID(),
		Type:          outbox.EventUserEmailVerified,
		Payload:       map[string]any{"username": user.Username, "verifiedBy": uid},
	}, nil
}

// Roles resolves the principal's transitive role closure straight from the
// rule store, bypassing the cache. Used to rebuild missing cache entries.
func (s *Service) Roles(ctx context.Context, uid, domain string) ([]string, error) {
	relations, err := s.rules.ListRelations(ctx, domain)
	if err != nil {
		return nil, err
	}
	return rolegraph.Closure(relations, uid, domain), nil
}

// primeRoleCache computes the closure and writes it through. Cache trouble
// never fails a login; enforcement falls back to zero roles until the next
// successful write.
func (s *Service) primeRoleCache(ctx context.Context, uid, domain string) {
	roles, err := s.Roles(ctx, uid, domain)
	if err != nil {
		log.Printf("WARNING: login: resolve roles for %s: %v", uid, err)
		return
	}
	if err := s.cache.Put(ctx, uid, roles, s.cacheTTL); err != nil {
		log.Printf("WARNING: login: prime role cache for %s: %v", uid, err)
	}
}
