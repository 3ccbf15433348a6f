package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/sessiongate/internal/rate"
	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/password"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

// actorState is owned by exactly one mailbox goroutine.
type actorState struct {
	ns    *Namespace
	email string
	user  *Record
}

func (s *actorState) validateCredentials(email, pass string) error {
	normalized := NormalizeEmail(email)
	if normalized != s.email {
		return &AuthError{Code: CodeInvalid}
	}
	if err := validation.Validate(normalized, validation.Required, is.Email); err != nil {
		return &AuthError{Code: CodeInvalid}
	}
	if pass == "" {
		return &AuthError{Code: CodeInvalid}
	}
	return nil
}

// load returns the cached record, reading through to the store once.
func (s *actorState) load(ctx context.Context) (*Record, error) {
	if s.user != nil {
		return s.user, nil
	}
	rec, err := s.ns.store.GetUser(ctx, s.email)
	if err != nil {
		return nil, err
	}
	s.user = rec
	return rec, nil
}

func (s *actorState) signup(ctx context.Context, email, pass string) (Grant, error) {
	if err := s.validateCredentials(email, pass); err != nil {
		return Grant{}, err
	}

	encoded, err := s.ns.hasher.Hash(pass)
	if err != nil {
		if errors.Is(err, password.ErrEmptyPassword) || errors.Is(err, password.ErrPasswordTooLong) {
			return Grant{}, &AuthError{Code: CodeInvalid}
		}
		return Grant{}, err
	}

	rec := &Record{
		ID:           uuid.NewString(),
		Email:        s.email,
		PasswordHash: encoded,
		CreatedAt:    s.ns.now().UTC(),
	}
	created, err := s.ns.store.CreateUser(ctx, rec)
	if err != nil {
		return Grant{}, err
	}
	if !created {
		return Grant{}, &AuthError{Code: CodeExists}
	}
	s.user = rec

	return s.grant(ctx, rec)
}

func (s *actorState) login(ctx context.Context, email, pass string) (Grant, error) {
	if NormalizeEmail(email) != s.email || pass == "" {
		return Grant{}, &AuthError{Code: CodeInvalidCredentials}
	}

	if err := s.ns.limiter.Check(ctx, s.email); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			return Grant{}, &AuthError{Code: CodeRateLimited}
		}
		return Grant{}, err
	}

	rec, err := s.load(ctx)
	if errors.Is(err, ErrUserNotFound) {
		s.recordFailure(ctx)
		return Grant{}, &AuthError{Code: CodeInvalidCredentials}
	}
	if err != nil {
		return Grant{}, err
	}

	ok, err := s.ns.hasher.Verify(pass, rec.PasswordHash)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			s.recordFailure(ctx)
			return Grant{}, &AuthError{Code: CodeInvalidCredentials}
		}
		return Grant{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.recordFailure(ctx)
		return Grant{}, &AuthError{Code: CodeInvalidCredentials}
	}

	if err := s.ns.limiter.Reset(ctx, s.email); err != nil {
		s.ns.logger.Warn("login limiter reset failed", "email", s.email, "error", err)
	}
	s.maybeRehash(ctx, pass, rec)

	return s.grant(ctx, rec)
}

func (s *actorState) recordFailure(ctx context.Context) {
	if err := s.ns.limiter.Fail(ctx, s.email); err != nil {
		s.ns.logger.Warn("login limiter update failed", "email", s.email, "error", err)
	}
}

func (s *actorState) maybeRehash(ctx context.Context, pass string, rec *Record) {
	stale, err := s.ns.hasher.NeedsRehash(rec.PasswordHash)
	if err != nil || !stale {
		return
	}
	encoded, err := s.ns.hasher.Hash(pass)
	if err != nil {
		return
	}
	if err := s.ns.store.UpdatePasswordHash(ctx, s.email, encoded); err != nil {
		s.ns.logger.Warn("password rehash failed", "email", s.email, "error", err)
		return
	}
	rec.PasswordHash = encoded
}

func (s *actorState) grant(ctx context.Context, rec *Record) (Grant, error) {
	access, _, err := s.ns.tokens.Issue(jwt.TypeAccess, rec.ID, rec.Email)
	if err != nil {
		return Grant{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, claims, err := s.ns.tokens.Issue(jwt.TypeRefresh, rec.ID, rec.Email)
	if err != nil {
		return Grant{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.ns.store.SaveRefresh(ctx, rec.Email, claims.ID, s.ns.tokens.RefreshTTL()); err != nil {
		return Grant{}, err
	}
	return Grant{User: rec.User(), Token: access, RefreshToken: refresh}, nil
}

func (s *actorState) verify(ctx context.Context, token string) (Verification, error) {
	claims, err := s.ns.tokens.Parse(jwt.TypeAccess, token)
	if err != nil || claims.Email != s.email {
		return Verification{}, nil
	}

	rec, err := s.load(ctx)
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrUserCorrupt) {
		return Verification{}, nil
	}
	if err != nil {
		return Verification{}, err
	}
	if rec.ID != claims.Subject {
		return Verification{}, nil
	}

	u := rec.User()
	return Verification{OK: true, User: &u}, nil
}

func (s *actorState) refresh(ctx context.Context, refreshToken string) (Refreshed, error) {
	claims, err := s.ns.tokens.Parse(jwt.TypeRefresh, refreshToken)
	if err != nil || claims.Email != s.email {
		return Refreshed{}, nil
	}

	live, err := s.ns.store.RefreshLive(ctx, s.email, claims.ID)
	if err != nil {
		return Refreshed{}, err
	}
	if !live {
		return Refreshed{}, nil
	}

	rec, err := s.load(ctx)
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrUserCorrupt) {
		return Refreshed{}, nil
	}
	if err != nil {
		return Refreshed{}, err
	}
	if rec.ID != claims.Subject {
		return Refreshed{}, nil
	}

	access, _, err := s.ns.tokens.Issue(jwt.TypeAccess, rec.ID, rec.Email)
	if err != nil {
		return Refreshed{}, fmt.Errorf("issue access token: %w", err)
	}
	return Refreshed{Token: access}, nil
}

func (s *actorState) get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}
	return s.ns.store.GetValue(ctx, s.email, key)
}

func (s *actorState) set(ctx context.Context, key, value string) (SetResult, error) {
	if key == "" || len(value) > s.ns.config.MaxValueBytes {
		return SetResult{}, nil
	}

	_, err := s.load(ctx)
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrUserCorrupt) {
		return SetResult{}, nil
	}
	if err != nil {
		return SetResult{}, err
	}

	if err := s.ns.store.SetValue(ctx, s.email, key, value); err != nil {
		return SetResult{}, err
	}
	return SetResult{OK: true}, nil
}
