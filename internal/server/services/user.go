// Package services contains the server-side business logic. UserService
// registers users, checks passwords at login (upgrading outdated hashes),
// issues and verifies bearer tokens and revokes them by rotating the
// per-user token salt.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkit/internal/auth/pwd"
	"github.com/dmitrijs2005/authkit/internal/auth/token"
	"github.com/dmitrijs2005/authkit/internal/common"
	"github.com/dmitrijs2005/authkit/internal/dbx"
	"github.com/dmitrijs2005/authkit/internal/logging"
	"github.com/dmitrijs2005/authkit/internal/server/models"
	"github.com/dmitrijs2005/authkit/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkit/internal/server/saltcache"
	"github.com/google/uuid"
)

// PasswordHasher is satisfied by *pwd.Hasher.
type PasswordHasher interface {
	Hash(ctx context.Context, c pwd.ContentToHash) (string, error)
	Validate(ctx context.Context, c pwd.ContentToHash, stored string) (pwd.SchemeStatus, error)
}

// Session is an issued access token.
type Session struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

type UserService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	hasher        PasswordHasher
	codec         *token.Codec
	salts         *saltcache.Cache
	tokenDuration time.Duration
	logger        logging.Logger

	dummyMu   sync.Mutex
	dummyHash string
}

// NewUserService wires the service. salts may be nil to disable caching.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher, codec *token.Codec,
	salts *saltcache.Cache, tokenDuration time.Duration, logger logging.Logger) *UserService {
	return &UserService{
		db:            db,
		repomanager:   m,
		hasher:        hasher,
		codec:         codec,
		salts:         salts,
		tokenDuration: tokenDuration,
		logger:        logger.With("module", "users"),
	}
}

func validatePassword(password string) error {
	if password == "" || len(password) > pwd.MaxContentBytes {
		return fmt.Errorf("%w: password must be 1..%d bytes", common.ErrorValidation, pwd.MaxContentBytes)
	}
	return nil
}

func validateEmail(email string) error {
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}
	return nil
}

// Register creates a user with fresh password and token salts.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	pwdSalt, err := pwd.NewSalt()
	if err != nil {
		return nil, common.ErrorInternal
	}
	tokenSalt, err := pwd.NewSalt()
	if err != nil {
		return nil, common.ErrorInternal
	}

	hash, err := s.hasher.Hash(ctx, pwd.ContentToHash{Content: password, Salt: pwdSalt})
	if err != nil {
		s.logger.Error(ctx, "password hashing failed", "error", err)
		return nil, common.ErrorInternal
	}

	user, err := dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		repo := s.repomanager.Users(tx)

		u, err := repo.Create(ctx, &models.User{Name: name, Email: email})
		if err != nil {
			return nil, err
		}

		err = repo.CreateCredentials(ctx, &models.Credentials{
			UserID:    u.ID,
			Pwd:       hash,
			PwdSalt:   pwdSalt,
			TokenSalt: tokenSalt,
		})
		if err != nil {
			return nil, err
		}
		return u, nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login checks the password and issues a token. A hash made with an older
// scheme is replaced by one made with the latest scheme.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	if err := validatePassword(password); err != nil {
		return nil, common.ErrorUnauthorized
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnHash(ctx, password)
			s.logger.Warn(ctx, "login denied", "email", email, "reason", "unknown user")
			return nil, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "login lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	content := pwd.ContentToHash{Content: password, Salt: user.PwdSalt}
	status, err := s.hasher.Validate(ctx, content, user.Pwd)
	if err != nil {
		if errors.Is(err, pwd.ErrPasswordNotMatching) || errors.Is(err, pwd.ErrMalformedStoredHash) {
			s.logger.Warn(ctx, "login denied", "user_id", user.ID, "reason", err)
			return nil, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "password validation failed", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	if status == pwd.StatusOutdated {
		s.upgradeHash(ctx, user.ID, content)
	}

	return s.issue(ctx, user.ID, user.TokenSalt)
}

func (s *UserService) upgradeHash(ctx context.Context, userID string, content pwd.ContentToHash) {
	hash, err := s.hasher.Hash(ctx, content)
	if err != nil {
		s.logger.Warn(ctx, "password upgrade skipped", "user_id", userID, "error", err)
		return
	}
	if err := s.repomanager.Users(s.db).UpdatePassword(ctx, userID, hash, content.Salt); err != nil {
		s.logger.Warn(ctx, "password upgrade not saved", "user_id", userID, "error", err)
		return
	}
	s.logger.Info(ctx, "password hash upgraded", "user_id", userID, "scheme", string(pwd.LatestScheme))
}

// burnHash spends roughly the time of a real check so unknown emails are
// not distinguishable by latency.
func (s *UserService) burnHash(ctx context.Context, password string) {
	dummy := s.dummy(ctx)
	if dummy != "" {
		_, _ = s.hasher.Validate(ctx, pwd.ContentToHash{Content: password, Salt: uuid.New()}, dummy)
	}
}

// dummy returns the hash burnHash validates against, building it on first
// use. A failed build is retried by the next caller.
func (s *UserService) dummy(ctx context.Context) string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()

	if s.dummyHash != "" {
		return s.dummyHash
	}

	filler, err := common.MakeRandHexString(16)
	if err != nil {
		return ""
	}
	h, err := s.hasher.Hash(context.WithoutCancel(ctx), pwd.ContentToHash{Content: filler, Salt: uuid.New()})
	if err != nil {
		s.logger.Warn(ctx, "dummy hash not built", "error", err)
		return ""
	}
	s.dummyHash = h
	return h
}

func (s *UserService) issue(ctx context.Context, userID string, salt uuid.UUID) (*Session, error) {
	str, err := s.codec.Issue(userID, salt, s.tokenDuration)
	if err != nil {
		s.logger.Error(ctx, "token issue failed", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}

	tok, err := token.Parse(str)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &Session{UserID: userID, Token: str, ExpiresAt: tok.ExpiresAt}, nil
}

// lookupSalt resolves the token salt of userID. User ids are uuids, so any
// other subject is unknown without asking the store.
func (s *UserService) lookupSalt(ctx context.Context, userID string) (uuid.UUID, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a user id", common.ErrorNotFound)
	}
	return s.salts.Lookup(ctx, userID, s.repomanager.Users(s.db).GetTokenSalt)
}

// VerifyToken returns the user id a token was issued for. Denials wrap
// common.ErrorUnauthorized; an expired token also matches
// common.ErrTokenExpired.
func (s *UserService) VerifyToken(ctx context.Context, tokenString string) (string, error) {
	tok, err := s.codec.ParseAndVerify(ctx, tokenString, s.lookupSalt)
	if err == nil {
		return tok.SubjectID, nil
	}

	switch {
	case errors.Is(err, token.ErrExpired):
		s.logger.Debug(ctx, "token expired", "error", err)
		return "", fmt.Errorf("%w: %w", common.ErrorUnauthorized, common.ErrTokenExpired)
	case errors.Is(err, token.ErrSaltLookup) && !errors.Is(err, common.ErrorNotFound):
		s.logger.Error(ctx, "token salt lookup failed", "error", err)
		return "", common.ErrorInternal
	case errors.Is(err, token.ErrKeyInit):
		s.logger.Error(ctx, "token key unusable", "error", err)
		return "", common.ErrorInternal
	default:
		s.logger.Warn(ctx, "token rejected", "reason", err)
		return "", fmt.Errorf("%w: %w", common.ErrorUnauthorized, common.ErrInvalidToken)
	}
}

// Authenticate verifies a token and loads its user.
func (s *UserService) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	userID, err := s.VerifyToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}

// RefreshToken issues a new token for an already authenticated user.
func (s *UserService) RefreshToken(ctx context.Context, userID string) (*Session, error) {
	salt, err := s.lookupSalt(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	return s.issue(ctx, userID, salt)
}

// ChangePassword stores a new hash under a new password salt.
func (s *UserService) ChangePassword(ctx context.Context, userID, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	salt, err := pwd.NewSalt()
	if err != nil {
		return common.ErrorInternal
	}

	hash, err := s.hasher.Hash(ctx, pwd.ContentToHash{Content: newPassword, Salt: salt})
	if err != nil {
		s.logger.Error(ctx, "password hashing failed", "user_id", userID, "error", err)
		return common.ErrorInternal
	}

	if err := s.repomanager.Users(s.db).UpdatePassword(ctx, userID, hash, salt); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("error updating password: %w", err)
	}
	return nil
}

// InvalidateTokens rotates the user's token salt, which revokes every
// token issued so far.
func (s *UserService) InvalidateTokens(ctx context.Context, userID string) error {
	salt, err := pwd.NewSalt()
	if err != nil {
		return common.ErrorInternal
	}

	if err := s.repomanager.Users(s.db).UpdateTokenSalt(ctx, userID, salt); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("error rotating token salt: %w", err)
	}

	if err := s.salts.Store(ctx, userID, salt); err != nil {
		s.logger.Error(ctx, "salt cache store failed", "user_id", userID, "error", err)
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "tokens invalidated", "user_id", userID)
	return nil
}

func (s *UserService) Delete(ctx context.Context, userID string) error {
	if err := s.repomanager.Users(s.db).Delete(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("error deleting user: %w", err)
	}

	if err := s.salts.Evict(ctx, userID); err != nil {
		s.logger.Warn(ctx, "salt cache evict failed", "user_id", userID, "error", err)
	}
	return nil
}
