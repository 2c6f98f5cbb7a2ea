package repository

import (
	"context"
	"fmt"

	"spamguard/server/internal/models"

	"github.com/jackc/pgx/v5"
)

const contactColumns = `id::text, name, phone, spam, owner_id::text, created_at, updated_at`

type PostgresContactRepository struct {
	db DBTX
}

func NewPostgresContactRepository(db DBTX) *PostgresContactRepository {
	return &PostgresContactRepository{db: db}
}

func scanContact(row pgx.Row) (*models.Contact, error) {
	c := &models.Contact{}
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Spam, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresContactRepository) Create(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	query := `
		INSERT INTO contacts (name, phone, spam, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, contact.Name, contact.Phone, contact.Spam, contact.OwnerID).
		Scan(&contact.ID, &contact.CreatedAt, &contact.UpdatedAt)
	if err != nil {
		if mapped := mapError(err); mapped == ErrDuplicate {
			return nil, mapped
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return contact, nil
}

func (r *PostgresContactRepository) one(row pgx.Row) (*models.Contact, error) {
	c, err := scanContact(row)
	if err != nil {
		if mapped := mapError(err); mapped == ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresContactRepository) FindByID(ctx context.Context, id string) (*models.Contact, error) {
	return r.one(r.db.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id))
}

func (r *PostgresContactRepository) FindCanonicalByPhone(ctx context.Context, phone, preferredOwner string) (*models.Contact, error) {
	query := `
		SELECT ` + contactColumns + ` FROM contacts
		WHERE phone = $1
		ORDER BY (owner_id::text = $2) DESC, created_at, id
		LIMIT 1
	`
	return r.one(r.db.QueryRow(ctx, query, phone, preferredOwner))
}

func (r *PostgresContactRepository) MarkSpam(ctx context.Context, id string) (*models.Contact, error) {
	query := `
		UPDATE contacts SET spam = TRUE, updated_at = now()
		WHERE id = $1
		RETURNING ` + contactColumns
	return r.one(r.db.QueryRow(ctx, query, id))
}

func (r *PostgresContactRepository) ExistsForOwner(ctx context.Context, ownerID, phone string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM contacts WHERE owner_id = $1 AND phone = $2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, ownerID, phone).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresContactRepository) OwnersByPhone(ctx context.Context, phone string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT owner_id::text FROM contacts WHERE phone = $1`, phone)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		owners = append(owners, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return owners, nil
}
