// Package service contains application services for accounts, rooms and chats.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/drawrhq/drawr/internal/crypto"
	"github.com/drawrhq/drawr/internal/errs"
	"github.com/drawrhq/drawr/internal/limiter"
	"github.com/drawrhq/drawr/internal/model"
	"github.com/drawrhq/drawr/internal/repository"
)

// AuthService defines account and token operations.
type AuthService interface {
	// Register creates a new user with secure password hashing.
	Register(ctx context.Context, email, username, password string) (userID string, err error)
	// LoginWithIP applies rate-limiting and authenticates the user.
	LoginWithIP(ctx context.Context, email, password, ip string) (token string, user model.User, err error)
	// Identify validates a token and loads the user it belongs to.
	Identify(ctx context.Context, token string) (*model.User, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, lim: lim}
}

// Register creates a new user record with a per-user salt.
func (s *AuthServiceImpl) Register(ctx context.Context, email, username, password string) (string, error) {
	if email == "" || username == "" || password == "" {
		return "", errors.New("empty email/username/password")
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	salt, err := pkgcrypto.NewSalt()
	if err != nil {
		return "", err
	}

	u := &model.User{
		ID:        uid,
		Email:     email,
		Username:  username,
		PwdHash:   pkgcrypto.HashPassword([]byte(password), salt),
		Salt:      salt,
		CreatedAt: time.Now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return "", err
	}
	return uid.String(), nil
}

// LoginWithIP authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, email, password, ip string) (string, model.User, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return "", model.User{}, err
	}
	if !allowed {
		return "", model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.Salt, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return "", model.User{}, errs.ErrRateLimited
		}
		// a wrong password and an unknown email look the same to the caller
		return "", model.User{}, errs.ErrUnauthorized
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, email, ipHash)

	token, err := s.issueToken(u.ID)
	if err != nil {
		return "", model.User{}, err
	}
	return token, *u, nil
}

// claims carries the user id under the key clients expect.
type claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// issueToken creates a signed HS256 JWT for the given user.
func (s *AuthServiceImpl) issueToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	c := claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.signKey)
}

// Identify parses and verifies a token, then loads its user.
// Any parsing or signature problem maps to errs.ErrUnauthorized.
func (s *AuthServiceImpl) Identify(ctx context.Context, token string) (*model.User, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errs.ErrUnauthorized
	}
	uid, err := uuid.FromString(c.UserID)
	if err != nil {
		return nil, errs.ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUnauthorized
		}
		return nil, err
	}
	return u, nil
}
