package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"

	"gorm.io/gorm"

	"github.com/daypage/backend/internal/hash"
	"github.com/daypage/backend/internal/mail"
	"github.com/daypage/backend/internal/models"
	"github.com/daypage/backend/internal/token"
)

const (
	StrategyLink = "link"
	StrategyCode = "code"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrAlreadyRegistered = errors.New("a user with this email already exists")
	ErrInvalidCode       = errors.New("invalid verification code")
	ErrNoPendingSignup   = errors.New("no pending signup for this code")
)

// Service drives both email-verification strategies. The token-link strategy
// verifies an existing account post-signup; the code strategy gates account
// creation itself behind a mailed numeric code.
type Service struct {
	DB      *gorm.DB
	Tokens  *token.Service
	Mailer  mail.Mailer
	Store   CodeStore
	BaseURL string
}

// RequestLink issues a short-lived email_verification token and mails the
// verification URL to the account's address.
func (s *Service) RequestLink(ctx context.Context, email string) error {
	var user models.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	tok, err := s.Tokens.IssueEmailToken(email)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}

	link := fmt.Sprintf("%s/api/v1/verify-email?token=%s", s.BaseURL, url.QueryEscape(tok))
	subject, textBody, htmlBody := mail.VerificationLinkMessage(link)
	return s.Mailer.Send(ctx, email, subject, textBody, htmlBody)
}

// ConfirmToken validates the link token and marks the account verified.
// Confirming an already verified account is a no-op success.
func (s *Service) ConfirmToken(ctx context.Context, raw string) (*models.User, error) {
	claims, err := s.Tokens.Verify(raw, token.TypeEmailVerification)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.DB.Where("email = ?", claims.Subject).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if user.IsVerified {
		return &user, nil
	}

	user.IsVerified = true
	if err := s.DB.Save(&user).Error; err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &user, nil
}

// RequestCode parks the signup payload and mails a numeric code. No account
// row exists until the code is confirmed, so a delivery failure leaves
// nothing behind.
func (s *Service) RequestCode(ctx context.Context, pending PendingSignup) (string, error) {
	var existing models.User
	err := s.DB.Where("email = ?", pending.Email).First(&existing).Error
	if err == nil {
		return "", ErrAlreadyRegistered
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("db error: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	subject, textBody := mail.VerificationCodeMessage(code)
	if err := s.Mailer.Send(ctx, pending.Email, subject, textBody, ""); err != nil {
		return "", err
	}

	// re-requesting a code overwrites the previous mapping: last writer wins
	s.Store.SetCode(pending.Email, code)
	s.Store.SetPending(pending.Email, pending)
	return code, nil
}

// ConfirmCode consumes a code and creates the account it gates. Lookups are
// keyed by the (email, code) pair; when the caller supplies only the code the
// store is scanned, but a scan hit must still match both fields, so two
// pending signups sharing a code cannot consume each other's payload.
func (s *Service) ConfirmCode(ctx context.Context, email, code string) (*models.User, error) {
	if email == "" {
		s.Store.ScanCodes(func(e, c string) bool {
			if c == code {
				email = e
				return false
			}
			return true
		})
		if email == "" {
			return nil, ErrInvalidCode
		}
	}

	stored, ok := s.Store.Code(email)
	if !ok || stored != code {
		return nil, ErrInvalidCode
	}

	pending, ok := s.Store.Pending(email)
	if !ok {
		return nil, ErrNoPendingSignup
	}

	passwordHash, err := hash.HashPassword(pending.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        pending.Email,
		Username:     pending.Username,
		PasswordHash: passwordHash,
		IsVerified:   true,
	}
	if err := s.DB.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	s.Store.Delete(email)
	return &user, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
