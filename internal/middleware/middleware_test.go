package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"spamguard/server/internal/apperr"
	"spamguard/server/internal/models"
	"spamguard/server/internal/repository"
	"spamguard/server/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return c.Status(ae.Kind.Status()).JSON(fiber.Map{"message": ae.Message})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
}

type gateFixture struct {
	app    *fiber.App
	tokens *utils.TokenService
	user   *models.User
}

func newGate(t *testing.T) *gateFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	email := "ann@example.com"
	user, err := store.Users().Create(context.Background(), &models.User{
		Name: "ann", Phone: "+1000", Email: &email, PasswordHash: "hash",
	})
	require.NoError(t, err)
	require.NoError(t, store.Users().SetRefreshToken(context.Background(), user.ID, "rt"))

	tokens := utils.NewTokenService("access", "refresh", time.Minute, time.Hour)
	app := fiber.New(fiber.Config{ErrorHandler: testErrorHandler})
	app.Get("/me", AuthMiddleware(tokens, store.Users()), func(c *fiber.Ctx) error {
		u := GetUser(c)
		return c.JSON(fiber.Map{
			"id":       u.ID,
			"userID":   GetUserID(c),
			"phone":    u.Phone,
			"hash":     u.PasswordHash,
			"hasToken": u.RefreshToken != nil,
		})
	})
	return &gateFixture{app: app, tokens: tokens, user: user}
}

func (g *gateFixture) do(t *testing.T, mutate func(*http.Request)) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if mutate != nil {
		mutate(req)
	}
	resp, err := g.app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(body, &out))
	return resp.StatusCode, out
}

func TestAuthMiddleware_CookieToken(t *testing.T) {
	g := newGate(t)
	tok, err := g.tokens.IssueAccessToken(g.user.ID, "ann@example.com", "ann")
	require.NoError(t, err)

	status, body := g.do(t, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tok})
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, g.user.ID, body["id"])
	assert.Equal(t, g.user.ID, body["userID"])
	assert.Equal(t, "+1000", body["phone"])
	assert.Equal(t, "", body["hash"])
	assert.Equal(t, false, body["hasToken"])
}

func TestAuthMiddleware_BearerToken(t *testing.T) {
	g := newGate(t)
	tok, err := g.tokens.IssueAccessToken(g.user.ID, "", "ann")
	require.NoError(t, err)

	status, _ := g.do(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})
	assert.Equal(t, http.StatusOK, status)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	g := newGate(t)

	expiredIssuer := utils.NewTokenService("access", "refresh", time.Minute, time.Hour).
		WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
	expired, err := expiredIssuer.IssueAccessToken(g.user.ID, "", "ann")
	require.NoError(t, err)

	refresh, err := g.tokens.IssueRefreshToken(g.user.ID)
	require.NoError(t, err)

	ghost, err := g.tokens.IssueAccessToken("6f1c1c1e-8f43-4b55-9a53-35d0e7d2a001", "", "ghost")
	require.NoError(t, err)

	cases := []struct {
		name    string
		header  string
		message string
	}{
		{"missing", "", "Unauthorized request: No token provided"},
		{"not bearer", "Basic abc", "Unauthorized request: No token provided"},
		{"expired", "Bearer " + expired, "Session expired. Please log in again."},
		{"garbage", "Bearer not-a-jwt", "Invalid token. Authentication failed."},
		{"refresh used as access", "Bearer " + refresh, "Invalid token. Authentication failed."},
		{"unknown user", "Bearer " + ghost, "Unauthorized: User not found or token invalid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := g.do(t, func(r *http.Request) {
				if tc.header != "" {
					r.Header.Set("Authorization", tc.header)
				}
			})
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, tc.message, body["message"])
		})
	}
}

func TestRateLimiter_Blocks(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: testErrorHandler})
	app.Get("/", RateLimiter(2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestGetters_EmptyContext(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		assert.Nil(t, GetUser(c))
		assert.Equal(t, "", GetUserID(c))
		return c.SendStatus(http.StatusNoContent)
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
