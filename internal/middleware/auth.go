package middleware

import (
	"context"
	"errors"
	"strings"

	"spamguard/server/internal/apperr"
	"spamguard/server/internal/models"
	"spamguard/server/internal/repository"
	"spamguard/server/internal/utils"

	"github.com/gofiber/fiber/v2"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	localsUser = "user"

	// UserIDLocal is the Locals key holding the caller's user ID. Upgraded
	// websocket connections read it from their copied locals.
	UserIDLocal = "userID"
)

// UserFinder loads the user a token was issued to.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AuthMiddleware validates the access token from the accessToken cookie or
// the Authorization bearer header and stores the caller in the context.
func AuthMiddleware(tokens *utils.TokenService, users UserFinder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(AccessTokenCookie)
		if tokenString == "" {
			tokenString = bearerToken(c.Get(fiber.HeaderAuthorization))
		}
		if tokenString == "" {
			return apperr.New(apperr.Unauthorized, "Unauthorized request: No token provided")
		}

		claims, err := tokens.VerifyAccessToken(tokenString)
		if err != nil {
			if errors.Is(err, utils.ErrTokenExpired) {
				return apperr.New(apperr.Unauthorized, "Session expired. Please log in again.")
			}
			return apperr.Wrap(apperr.Unauthorized, "Invalid token. Authentication failed.", err)
		}

		user, err := users.FindByID(c.UserContext(), claims.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.New(apperr.Unauthorized, "Unauthorized: User not found or token invalid")
			}
			return apperr.Wrap(apperr.Internal, "Internal server error", err)
		}

		// Never keep secrets on the request
		user.PasswordHash = ""
		user.RefreshToken = nil

		c.Locals(localsUser, user)
		c.Locals(UserIDLocal, user.ID)
		return c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// GetUser gets the authenticated user from context
func GetUser(c *fiber.Ctx) *models.User {
	user, ok := c.Locals(localsUser).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetUserID gets user ID from context
func GetUserID(c *fiber.Ctx) string {
	userID, ok := c.Locals(UserIDLocal).(string)
	if !ok {
		return ""
	}
	return userID
}
