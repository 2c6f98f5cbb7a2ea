package repository

import (
	"context"
	"fmt"

	"spamguard/server/internal/models"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id::text, name, phone, email, password_hash, refresh_token, spam, created_at, updated_at`

type PostgresUserRepository struct {
	db DBTX
}

func NewPostgresUserRepository(db DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.Email, &u.PasswordHash,
		&u.RefreshToken, &u.Spam, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (name, phone, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, spam, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, user.Name, user.Phone, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.Spam, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if mapped := mapError(err); mapped == ErrDuplicate {
			return nil, mapped
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepository) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if mapped := mapError(err); mapped == ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *PostgresUserRepository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.findOne(ctx, `phone = $1`, phone)
}

func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `email = $1`, email)
}

func (r *PostgresUserRepository) ExistsByPhoneOrEmail(ctx context.Context, phone, email string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM users
			WHERE phone = $1 OR ($2::text <> '' AND email = $2::text)
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, phone, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresUserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	query := `UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	query := `UPDATE users SET refresh_token = NULL, updated_at = now() WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) RotateRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	query := `
		UPDATE users SET refresh_token = $3, updated_at = now()
		WHERE id = $1 AND refresh_token = $2
	`
	tag, err := r.db.Exec(ctx, query, id, current, next)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Search matches query case-insensitively as a substring of name or phone.
// A user matching both appears once.
func (r *PostgresUserRepository) Search(ctx context.Context, query string) ([]models.User, error) {
	sql := `
		SELECT id::text, name, phone, spam FROM users
		WHERE name ILIKE $1 ESCAPE '\' OR phone ILIKE $1 ESCAPE '\'
		ORDER BY name, id
	`
	rows, err := r.db.Query(ctx, sql, containsPattern(query))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Phone, &u.Spam); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

func (r *PostgresUserRepository) MarkSpamByPhone(ctx context.Context, phone string) error {
	query := `UPDATE users SET spam = TRUE, updated_at = now() WHERE phone = $1`
	if _, err := r.db.Exec(ctx, query, phone); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
