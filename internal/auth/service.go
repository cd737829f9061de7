package auth

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/siftlog/sift/internal/errors"
	"github.com/siftlog/sift/pkg/types"
)

// dummyHash is a bcrypt hash of an unguessable value, compared against
// when the username is unknown so both failure paths cost one bcrypt
// verification.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// claims is the JWT claims shape for session tokens.
type claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Config holds token issuance parameters.
type Config struct {
	Secret   []byte
	TokenTTL time.Duration
	Issuer   string

	// Now overrides the clock for tests; nil means time.Now.
	Now func() time.Time
}

// Service validates credentials and issues session tokens.
type Service struct {
	store  *Store
	cfg    Config
	logger *zap.Logger
}

// NewService creates an auth service.
func NewService(store *Store, cfg Config, logger *zap.Logger) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, cfg: cfg, logger: logger}
}

// Login verifies the credential pair and issues a signed session token.
// Unknown usernames and wrong passwords both return INVALID_CREDENTIALS;
// neither the response nor the logs reveal which field was wrong, and
// the raw secret is never logged.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", errors.NewValidationError(errors.CodeInvalidRequest, "username and password are required")
	}

	cred, err := s.store.Lookup(ctx, username)
	if err != nil {
		return "", err
	}
	if cred == nil {
		// Burn a bcrypt comparison so the unknown-user path costs the
		// same as a wrong-password one.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		s.logger.Info("login rejected", zap.String("username", username))
		return "", errors.NewInvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login rejected", zap.String("username", username))
		return "", errors.NewInvalidCredentials()
	}

	token, err := s.issue(cred)
	if err != nil {
		return "", errors.NewInternalError("failed to sign token", err)
	}

	s.logger.Info("login accepted", zap.String("username", username), zap.String("subject", cred.SubjectID))
	return token, nil
}

// issue signs an HS256 token bound to the credential's subject.
func (s *Service) issue(cred *Credential) (string, error) {
	now := s.cfg.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   cred.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
			ID:        uuid.NewString(),
		},
		Username: cred.Username,
	})
	return tok.SignedString(s.cfg.Secret)
}

// Authenticate verifies a session token and returns the subject it is
// bound to. Expired tokens fail with TOKEN_EXPIRED; everything else
// malformed fails with TOKEN_INVALID. Stateless and lock-free.
func (s *Service) Authenticate(ctx context.Context, token string) (types.Subject, error) {
	if token == "" {
		return types.Subject{}, errors.NewTokenInvalid(nil)
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c,
		func(t *jwt.Token) (interface{}, error) { return s.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.cfg.Now),
	)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return types.Subject{}, errors.NewTokenExpired()
		}
		return types.Subject{}, errors.NewTokenInvalid(err)
	}
	if !parsed.Valid || c.Subject == "" {
		return types.Subject{}, errors.NewTokenInvalid(nil)
	}

	return types.Subject{ID: c.Subject, Username: c.Username}, nil
}
