package session

import (
	"context"
	"errors"

	"rerolab/models"
	"rerolab/utils"

	"go.uber.org/zap"
)

// DefaultSessionService is the production implementation.
type DefaultSessionService struct {
	Auth   AuthService
	Store  CredentialStore
	Holder *Holder
	Clock  utils.Clock
	Logger *zap.Logger
}

func NewSessionService(auth AuthService, store CredentialStore, holder *Holder, logger *zap.Logger) *DefaultSessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultSessionService{Auth: auth, Store: store, Holder: holder, Clock: utils.RealClock(), Logger: logger}
}

func (s *DefaultSessionService) Current() (models.Session, bool) {
	return s.Holder.Current()
}

func (s *DefaultSessionService) Login(ctx context.Context, email, secret string) (models.Session, error) {
	sess, err := s.Auth.Login(ctx, email, secret)
	if err != nil {
		s.Logger.Warn("login failed", zap.String("email", email), zap.Error(err))
		return models.Session{}, err
	}
	s.adopt(ctx, sess, "login")
	return sess, nil
}

func (s *DefaultSessionService) Register(ctx context.Context, email, secret string) (models.Session, error) {
	sess, err := s.Auth.Register(ctx, email, secret)
	if err != nil {
		s.Logger.Warn("registration failed", zap.String("email", email), zap.Error(err))
		return models.Session{}, err
	}
	s.adopt(ctx, sess, "register")
	return sess, nil
}

// Logout forgets the session here and in the store.
func (s *DefaultSessionService) Logout(ctx context.Context) error {
	s.Holder.Clear()
	if err := s.Store.Delete(ctx); err != nil {
		s.Logger.Warn("failed to delete stored session", zap.Error(err))
		return err
	}
	s.Logger.Info("logged out")
	return nil
}

// Bootstrap restores a session at startup. A stored credential is used when
// the protected probe accepts it; otherwise email and secret, when given, are
// used to log in. Without either the client runs unauthenticated and
// ErrNotAuthenticated is returned.
func (s *DefaultSessionService) Bootstrap(ctx context.Context, email, secret string) (models.Session, error) {
	stored, err := s.Store.Load(ctx)
	switch {
	case err == nil && stored.Valid(s.Clock.Now()):
		identity, perr := s.Auth.Probe(ctx, stored.Credential)
		switch {
		case perr == nil:
			if identity != "" {
				stored.Identity = identity
			}
			s.Holder.Set(stored)
			s.Logger.Info("restored stored session", zap.String("identity", stored.Identity))
			return stored, nil
		case errors.Is(perr, ErrUnauthorized):
			s.Logger.Info("stored session rejected", zap.Error(perr))
			_ = s.Store.Delete(ctx)
		default:
			// The backend is unreachable; the booking server will reject the
			// credential later if it is bad.
			s.Holder.Set(stored)
			s.Logger.Warn("could not verify stored session, using it anyway", zap.Error(perr))
			return stored, nil
		}
	case err == nil:
		s.Logger.Info("stored session expired")
		_ = s.Store.Delete(ctx)
	case !errors.Is(err, ErrNoStoredSession):
		s.Logger.Warn("failed to load stored session", zap.Error(err))
	}

	if email == "" || secret == "" {
		return models.Session{}, ErrNotAuthenticated
	}
	return s.Login(ctx, email, secret)
}

func (s *DefaultSessionService) adopt(ctx context.Context, sess models.Session, how string) {
	s.Holder.Set(sess)
	if err := s.Store.Save(ctx, sess); err != nil {
		s.Logger.Warn("failed to store session", zap.Error(err))
	}
	s.Logger.Info("session established",
		zap.String("via", how),
		zap.String("identity", sess.Identity),
		zap.String("credential", utils.HashToken(sess.Credential)[:12]),
		zap.Time("expires_at", sess.ExpiresAt))
}
