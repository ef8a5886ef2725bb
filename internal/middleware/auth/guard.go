package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/daypage/backend/internal/models"
	"github.com/daypage/backend/internal/token"
)

const userContextKey = "user"

var (
	ErrMissingCredential = errors.New("missing access token")
	ErrIdentityNotFound  = errors.New("identity not found")
	ErrForbidden         = errors.New("forbidden")
	ErrCannotSelfDelete  = errors.New("you cannot delete yourself")
)

// Guard resolves an inbound access token to an authenticated user.
type Guard struct {
	DB     *gorm.DB
	Tokens *token.Service
}

// Authenticate extracts the bearer token (Authorization header, falling back
// to the accessToken cookie), verifies it as an access token and loads the
// identity it references.
func (g *Guard) Authenticate(c echo.Context) (*models.User, error) {
	raw := extractToken(c)
	if raw == "" {
		return nil, ErrMissingCredential
	}

	claims, err := g.Tokens.Verify(raw, token.TypeAccess)
	if err != nil {
		return nil, err
	}

	q := g.DB
	if claims.UserID != 0 {
		q = q.Where("id = ?", claims.UserID)
	} else {
		q = q.Where("email = ?", claims.Subject)
	}

	var user models.User
	if err := q.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	return &user, nil
}

func extractToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie("accessToken"); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireLogin rejects unauthenticated requests with 401. Verification
// details are never echoed back to the caller.
func (g *Guard) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := g.Authenticate(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing access token")
		}
		c.Set(userContextKey, user)
		return next(c)
	}
}

func (g *Guard) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return g.RequireLogin(func(c echo.Context) error {
		if !CurrentUser(c).IsAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
		}
		return next(c)
	})
}

// CurrentUser returns the identity stashed by RequireLogin, or nil.
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get(userContextKey).(*models.User)
	return user
}

// CheckOwnership permits access when the user owns the resource or is an
// admin.
func CheckOwnership(ownerID uint, user *models.User) error {
	if user == nil {
		return ErrForbidden
	}
	if user.ID == ownerID || user.IsAdmin {
		return nil
	}
	return ErrForbidden
}
