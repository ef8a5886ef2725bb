package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TypeAccess            = "access"
	TypeRefresh           = "refresh"
	TypeEmailVerification = "email_verification"
)

var (
	ErrNoSecret     = errors.New("signing secret is empty")
	ErrMalformed    = errors.New("malformed token")
	ErrTypeMismatch = errors.New("unexpected token type")
	ErrExpired      = errors.New("token expired")
	ErrMissingClaim = errors.New("token is missing a required claim")
)

// Claims is the payload carried by every token the service signs. The
// TokenType discriminator prevents a validly signed token of one kind from
// being accepted as another.
type Claims struct {
	jwt.RegisteredClaims
	UserID    uint   `json:"user_id,omitempty"`
	TokenType string `json:"type"`
}

// Service signs and verifies the three token kinds with a single symmetric
// HS256 secret. Issuance and verification share the same clock.
type Service struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	EmailTTL   time.Duration

	now func() time.Time
}

func New(secret []byte) (*Service, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	return &Service{
		Secret:     secret,
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		EmailTTL:   15 * time.Minute,
		now:        time.Now,
	}, nil
}

func (s *Service) sign(email string, userID uint, typ string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    userID,
		TokenType: typ,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.Secret)
}

// IssuePair issues a fresh access+refresh token pair for the identity.
func (s *Service) IssuePair(email string, userID uint) (string, string, error) {
	access, err := s.sign(email, userID, TypeAccess, s.AccessTTL)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.sign(email, userID, TypeRefresh, s.RefreshTTL)
	if err != nil {
		return "", "", fmt.Errorf("sign refresh token: %w", err)
	}
	return access, refresh, nil
}

func (s *Service) IssueEmailToken(email string) (string, error) {
	return s.sign(email, 0, TypeEmailVerification, s.EmailTTL)
}

// Verify checks signature and structure, then the type discriminator, then
// expiry, so a wrong-type token reports ErrTypeMismatch even when it is also
// expired. A token is rejected only when now is strictly past expires_at at
// second resolution.
func (s *Service) Verify(raw, expectedType string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.Secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, ErrMalformed
	}

	if claims.TokenType == "" || claims.ExpiresAt == nil {
		return nil, ErrMissingClaim
	}
	if claims.Subject == "" && claims.UserID == 0 {
		return nil, ErrMissingClaim
	}
	if claims.TokenType != expectedType {
		return nil, ErrTypeMismatch
	}
	if s.now().Unix() > claims.ExpiresAt.Unix() {
		return nil, ErrExpired
	}

	return claims, nil
}

// Refresh verifies the refresh token and issues a brand-new pair from its
// claims. Nothing is persisted: the old refresh token stays valid until its
// natural expiry.
func (s *Service) Refresh(raw string) (string, string, error) {
	claims, err := s.Verify(raw, TypeRefresh)
	if err != nil {
		return "", "", err
	}
	return s.IssuePair(claims.Subject, claims.UserID)
}
