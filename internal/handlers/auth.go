package handlers

import (
	"time"

	"spamguard/server/internal/middleware"
	"spamguard/server/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler serves the session endpoints and manages the token cookies.
type AuthHandler struct {
	sessions     *services.SessionService
	cookieSecure bool
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

func NewAuthHandler(sessions *services.SessionService, cookieSecure bool, accessTTL, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		cookieSecure: cookieSecure,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
	}
}

// Register handles user registration
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	contacts := make([]services.ContactInput, 0, len(req.Contacts))
	for _, ct := range req.Contacts {
		contacts = append(contacts, services.ContactInput{Name: ct.Name, Phone: ct.Phone})
	}

	user, err := h.sessions.Register(c.UserContext(), services.RegisterInput{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
		Contacts: contacts,
	})
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusCreated, user, "User registered successfully")
}

// Login handles user login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.sessions.Login(c.UserContext(), services.LoginInput{
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	h.setTokenCookies(c, result.TokenPair)
	return respond(c, fiber.StatusOK, result, "Login successful")
}

// Logout ends the caller's session
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.sessions.Logout(c.UserContext(), middleware.GetUserID(c)); err != nil {
		return err
	}

	h.clearCookie(c, middleware.AccessTokenCookie)
	h.clearCookie(c, middleware.RefreshTokenCookie)
	return respond(c, fiber.StatusOK, fiber.Map{}, "Logout successful")
}

// RefreshToken rotates the session. The refresh token comes from the cookie,
// or from the JSON body when no cookie is sent.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	token := c.Cookies(middleware.RefreshTokenCookie)
	if token == "" && len(c.Body()) > 0 {
		var req RefreshRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		token = req.RefreshToken
	}

	pair, err := h.sessions.RefreshAccessToken(c.UserContext(), token)
	if err != nil {
		return err
	}

	h.setTokenCookies(c, *pair)
	return respond(c, fiber.StatusOK, pair, "Token refreshed")
}

func (h *AuthHandler) setTokenCookies(c *fiber.Ctx, pair services.TokenPair) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: "Lax",
		MaxAge:   int(h.accessTTL.Seconds()),
	})
	c.Cookie(&fiber.Cookie{
		Name:     middleware.RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: "Lax",
		MaxAge:   int(h.refreshTTL.Seconds()),
	})
}

func (h *AuthHandler) clearCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: "Lax",
		MaxAge:   -1, // Delete cookie
		Expires:  time.Unix(0, 0),
	})
}
