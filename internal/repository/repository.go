// Package repository is the credential store: users and contacts persisted
// in PostgreSQL through pgx, plus an in-memory implementation of the same
// contracts used by tests and by `serve --store=memory`.
package repository

import (
	"context"
	"errors"
	"strings"

	"spamguard/server/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// DBTX is the subset of pgx used by the repositories. *pgxpool.Pool, pgx.Tx
// and pgxmock pools all satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository persists users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByPhoneOrEmail(ctx context.Context, phone, email string) (bool, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	ClearRefreshToken(ctx context.Context, id string) error
	// RotateRefreshToken replaces current with next only if current is
	// still the stored token. It reports whether the swap happened.
	RotateRefreshToken(ctx context.Context, id, current, next string) (bool, error)
	Search(ctx context.Context, query string) ([]models.User, error)
	MarkSpamByPhone(ctx context.Context, phone string) error
}

// ContactRepository persists address-book entries.
type ContactRepository interface {
	Create(ctx context.Context, contact *models.Contact) (*models.Contact, error)
	FindByID(ctx context.Context, id string) (*models.Contact, error)
	// FindCanonicalByPhone returns preferredOwner's contact for phone if it
	// exists, otherwise the oldest contact for phone under any owner.
	FindCanonicalByPhone(ctx context.Context, phone, preferredOwner string) (*models.Contact, error)
	MarkSpam(ctx context.Context, id string) (*models.Contact, error)
	ExistsForOwner(ctx context.Context, ownerID, phone string) (bool, error)
	OwnersByPhone(ctx context.Context, phone string) ([]string, error)
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching s anywhere, with LIKE
// metacharacters in s taken literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
