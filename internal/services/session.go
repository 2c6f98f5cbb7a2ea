// Package services contains the business logic behind the HTTP handlers.
// This file implements SessionService: registration, login, logout and
// refresh-token rotation. Each user holds at most one refresh token.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"spamguard/server/internal/apperr"
	"spamguard/server/internal/logging"
	"spamguard/server/internal/metrics"
	"spamguard/server/internal/models"
	"spamguard/server/internal/repository"
	"spamguard/server/internal/telemetry"
	"spamguard/server/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

const (
	msgRegisterRequired   = "Name, phone, and password are required"
	msgContactRequired    = "Contact name and phone are required"
	msgUserExists         = "User with this phone or email already exists"
	msgLoginIdentifier    = "Phone or email is required"
	msgPasswordRequired   = "Password is required"
	msgUserNotFound       = "User does not exist"
	msgInvalidCredentials = "Invalid credentials"
	msgRefreshMissing     = "Unauthorized request"
	msgRefreshInvalid     = "Invalid refresh token"
	msgRefreshExpired     = "Refresh token expired"
	msgInternal           = "Internal server error"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// ContactInput is one address-book entry submitted at registration.
type ContactInput struct {
	Name  string
	Phone string
}

type RegisterInput struct {
	Name     string
	Phone    string
	Email    string
	Password string
	Contacts []ContactInput
}

type LoginInput struct {
	Phone    string
	Email    string
	Password string
}

// LoginResult is the sanitized user plus the freshly issued tokens.
type LoginResult struct {
	User models.UserResponse `json:"user"`
	TokenPair
}

type SessionService struct {
	users    repository.UserRepository
	contacts repository.ContactRepository
	tokens   *utils.TokenService
	logger   logging.Logger
	metrics  *metrics.Metrics
	hashCost int
}

func NewSessionService(
	users repository.UserRepository,
	contacts repository.ContactRepository,
	tokens *utils.TokenService,
	logger logging.Logger,
	m *metrics.Metrics,
	hashCost int,
) *SessionService {
	if hashCost == 0 {
		hashCost = utils.DefaultHashCost
	}
	return &SessionService{
		users:    users,
		contacts: contacts,
		tokens:   tokens,
		logger:   logger,
		metrics:  m,
		hashCost: hashCost,
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}

// Register creates a user and then inserts the submitted contacts one at a
// time. A contact without a name or phone, or one that fails to insert, is
// logged and skipped; the user and the contacts inserted before it are kept.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (_ *models.UserResponse, err error) {
	ctx, span := telemetry.Start(ctx, "session.Register", attribute.Int("contacts", len(in.Contacts)))
	defer func() {
		telemetry.End(span, err)
		s.metrics.AuthEvent("register", outcome(err))
	}()

	name := utils.NormalizeName(in.Name)
	phone := utils.NormalizePhone(in.Phone)
	email := utils.NormalizeEmail(in.Email)
	if name == "" || phone == "" || in.Password == "" {
		return nil, apperr.New(apperr.Validation, msgRegisterRequired)
	}
	exists, err := s.users.ExistsByPhoneOrEmail(ctx, phone, email)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, msgInternal, err)
	}
	if exists {
		return nil, apperr.New(apperr.Conflict, msgUserExists)
	}

	hash, err := utils.HashPassword(in.Password, s.hashCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, msgInternal, err)
	}

	user := &models.User{Name: name, Phone: phone, PasswordHash: hash}
	if email != "" {
		user.Email = &email
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Wrap(apperr.Conflict, msgUserExists, err)
		}
		return nil, apperr.Wrap(apperr.Internal, msgInternal, err)
	}

	for _, c := range in.Contacts {
		contact := &models.Contact{
			Name:    strings.TrimSpace(c.Name),
			Phone:   utils.NormalizePhone(c.Phone),
			OwnerID: created.ID,
		}
		if contact.Name == "" || contact.Phone == "" {
			s.logger.Warn(ctx, "skipping contact on registration",
				"owner", created.ID, "phone", contact.Phone, "error", msgContactRequired)
			continue
		}
		if _, cerr := s.contacts.Create(ctx, contact); cerr != nil {
			s.logger.Warn(ctx, "skipping contact on registration",
				"owner", created.ID, "phone", contact.Phone, "error", cerr)
		}
	}

	s.logger.Info(ctx, "user registered", "user_id", created.ID)
	resp := created.ToResponse()
	return &resp, nil
}

// Login looks the user up by phone when one is given, otherwise by email,
// checks the password and starts a new session. Any earlier refresh token of
// the user stops working.
func (s *SessionService) Login(ctx context.Context, in LoginInput) (_ *LoginResult, err error) {
	ctx, span := telemetry.Start(ctx, "session.Login")
	defer func() {
		telemetry.End(span, err)
		s.metrics.AuthEvent("login", outcome(err))
	}()

	phone := utils.NormalizePhone(in.Phone)
	email := utils.NormalizeEmail(in.Email)
	if phone == "" && email == "" {
		return nil, apperr.New(apperr.Validation, msgLoginIdentifier)
	}
	if in.Password == "" {
		return nil, apperr.New(apperr.Validation, msgPasswordRequired)
	}

	var user *models.User
	if phone != "" {
		user, err = s.users.FindByPhone(ctx, phone)
	} else {
		user, err = s.users.FindByEmail(ctx, email)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, msgUserNotFound)
		}
		return nil, apperr.Wrap(apperr.Internal, msgInternal, err)
	}

	if !utils.CheckPassword(user.PasswordHash, in.Password) {
		return nil, apperr.New(apperr.Unauthorized, msgInvalidCredentials)
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, apperr.Wrap(apperr.Internal, msgInternal, err)
	}

	return &LoginResult{User: user.ToResponse(), TokenPair: *pair}, nil
}

// Logout clears the stored refresh token. Calling it twice is harmless.
func (s *SessionService) Logout(ctx context.Context, userID string) (err error) {
	ctx, span := telemetry.Start(ctx, "session.Logout")
	defer func() {
		telemetry.End(span, err)
		s.metrics.AuthEvent("logout", outcome(err))
	}()

	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		return apperr.Wrap(apperr.Internal, msgInternal, err)
	}
	return nil
}

// RefreshAccessToken exchanges a valid refresh token for a new pair. The
// stored token is swapped only if it is still the one presented, so of two
// concurrent refreshes with the same token exactly one succeeds.
func (s *SessionService) RefreshAccessToken(ctx context.Context, refreshToken string) (_ *TokenPair, err error) {
	ctx, span := telemetry.Start(ctx, "session.Refresh")
	defer func() {
		telemetry.End(span, err)
		s.metrics.AuthEvent("refresh", outcome(err))
	}()

	if refreshToken == "" {
		return nil, apperr.New(apperr.Unauthorized, msgRefreshMissing)
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, utils.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.Unauthorized, msgRefreshExpired, err)
		}
		return nil, apperr.Wrap(apperr.Unauthorized, msgRefreshInvalid, err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.Unauthorized, msgRefreshInvalid)
		}
		return nil, apperr.Wrap(apperr.Internal, msgInternal, err)
	}
	if user.RefreshToken == nil ||
		subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(refreshToken)) != 1 {
		return nil, apperr.New(apperr.Unauthorized, msgRefreshInvalid)
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	swapped, err := s.users.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, msgInternal, err)
	}
	if !swapped {
		return nil, apperr.New(apperr.Unauthorized, msgRefreshInvalid)
	}
	return pair, nil
}

func (s *SessionService) issuePair(user *models.User) (*TokenPair, error) {
	var email string
	if user.Email != nil {
		email = *user.Email
	}
	access, err := s.tokens.IssueAccessToken(user.ID, email, user.Name)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, msgInternal, err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, msgInternal, err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
