package verification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/daypage/backend/internal/hash"
	"github.com/daypage/backend/internal/mail"
	"github.com/daypage/backend/internal/models"
	"github.com/daypage/backend/internal/token"
)

type fakeMailer struct {
	recipients []string
	subjects   []string
	bodies     []string
	fail       bool
}

func (m *fakeMailer) Send(_ context.Context, recipient, subject, textBody, _ string) error {
	if m.fail {
		return mail.ErrDelivery
	}
	m.recipients = append(m.recipients, recipient)
	m.subjects = append(m.subjects, subject)
	m.bodies = append(m.bodies, textBody)
	return nil
}

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return db
}

func newTestService(t *testing.T) (*Service, *fakeMailer) {
	tokens, err := token.New([]byte("test-secret"))
	require.NoError(t, err)

	mailer := &fakeMailer{}
	svc := &Service{
		DB:      initTestDB(t),
		Tokens:  tokens,
		Mailer:  mailer,
		Store:   NewMemoryStore(),
		BaseURL: "http://localhost:8080",
	}
	return svc, mailer
}

func TestRequestLinkUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.RequestLink(context.Background(), "nobody@x.com")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestLinkFlow(t *testing.T) {
	svc, mailer := newTestService(t)

	user := models.User{Email: "a@x.com", Username: "a", PasswordHash: "x"}
	require.NoError(t, svc.DB.Create(&user).Error)

	require.NoError(t, svc.RequestLink(context.Background(), "a@x.com"))
	require.Len(t, mailer.recipients, 1)
	require.Equal(t, "a@x.com", mailer.recipients[0])
	require.Contains(t, mailer.bodies[0], "/api/v1/verify-email?token=")

	// pull the token back out of the mailed link
	body := mailer.bodies[0]
	idx := strings.Index(body, "token=")
	require.Positive(t, idx)
	raw := strings.Fields(body[idx+len("token="):])[0]

	verified, err := svc.ConfirmToken(context.Background(), raw)
	require.NoError(t, err)
	require.True(t, verified.IsVerified)

	var fromDB models.User
	require.NoError(t, svc.DB.First(&fromDB, user.ID).Error)
	require.True(t, fromDB.IsVerified)

	// confirming again is an idempotent success
	again, err := svc.ConfirmToken(context.Background(), raw)
	require.NoError(t, err)
	require.True(t, again.IsVerified)
}

func TestConfirmTokenRejectsAccessToken(t *testing.T) {
	svc, _ := newTestService(t)

	user := models.User{Email: "a@x.com", Username: "a", PasswordHash: "x"}
	require.NoError(t, svc.DB.Create(&user).Error)

	access, _, err := svc.Tokens.IssuePair(user.Email, user.ID)
	require.NoError(t, err)

	_, err = svc.ConfirmToken(context.Background(), access)
	require.ErrorIs(t, err, token.ErrTypeMismatch)
}

func TestCodeFlow(t *testing.T) {
	svc, mailer := newTestService(t)

	pending := PendingSignup{Email: "b@x.com", Username: "b", Password: "secret"}
	code, err := svc.RequestCode(context.Background(), pending)
	require.NoError(t, err)
	require.Len(t, code, 6)
	require.Len(t, mailer.bodies, 1)
	require.Contains(t, mailer.bodies[0], code)

	stored, ok := svc.Store.Code("b@x.com")
	require.True(t, ok)
	require.Equal(t, code, stored)
	_, ok = svc.Store.Pending("b@x.com")
	require.True(t, ok)

	user, err := svc.ConfirmCode(context.Background(), "b@x.com", code)
	require.NoError(t, err)
	require.Equal(t, "b@x.com", user.Email)
	require.True(t, user.IsVerified)

	match, err := hash.CheckPassword(user.PasswordHash, "secret")
	require.NoError(t, err)
	require.True(t, match)

	var count int64
	require.NoError(t, svc.DB.Model(&models.User{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	_, ok = svc.Store.Code("b@x.com")
	require.False(t, ok)
	_, ok = svc.Store.Pending("b@x.com")
	require.False(t, ok)

	// the consumed code is gone
	_, err = svc.ConfirmCode(context.Background(), "b@x.com", code)
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestConfirmCodeByScanWithoutEmail(t *testing.T) {
	svc, _ := newTestService(t)

	pending := PendingSignup{Email: "c@x.com", Username: "c", Password: "secret"}
	code, err := svc.RequestCode(context.Background(), pending)
	require.NoError(t, err)

	user, err := svc.ConfirmCode(context.Background(), "", code)
	require.NoError(t, err)
	require.Equal(t, "c@x.com", user.Email)
}

func TestConfirmCodeWrongCode(t *testing.T) {
	svc, _ := newTestService(t)

	pending := PendingSignup{Email: "d@x.com", Username: "d", Password: "secret"}
	code, err := svc.RequestCode(context.Background(), pending)
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, err = svc.ConfirmCode(context.Background(), "d@x.com", wrong)
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestConfirmCodeNoPendingSignup(t *testing.T) {
	svc, _ := newTestService(t)

	// a code with no corresponding payload is invalid even when it matches
	svc.Store.SetCode("e@x.com", "123456")

	_, err := svc.ConfirmCode(context.Background(), "e@x.com", "123456")
	require.ErrorIs(t, err, ErrNoPendingSignup)
}

func TestRequestCodeDeliveryFailureLeavesNoState(t *testing.T) {
	svc, mailer := newTestService(t)
	mailer.fail = true

	pending := PendingSignup{Email: "f@x.com", Username: "f", Password: "secret"}
	_, err := svc.RequestCode(context.Background(), pending)
	require.True(t, errors.Is(err, mail.ErrDelivery))

	_, ok := svc.Store.Code("f@x.com")
	require.False(t, ok)
	_, ok = svc.Store.Pending("f@x.com")
	require.False(t, ok)

	var count int64
	require.NoError(t, svc.DB.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRequestCodeDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)

	user := models.User{Email: "g@x.com", Username: "g", PasswordHash: "x"}
	require.NoError(t, svc.DB.Create(&user).Error)

	_, err := svc.RequestCode(context.Background(), PendingSignup{Email: "g@x.com", Username: "g", Password: "p"})
	require.ErrorIs(t, err, ErrAlreadyRegistered)
}
