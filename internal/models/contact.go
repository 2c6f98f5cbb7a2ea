package models

import "time"

// Contact is an entry in a user's address book. The same phone may appear in
// many address books but at most once per owner.
type Contact struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone" db:"phone"`
	Spam      bool      `json:"spam" db:"spam"`
	OwnerID   string    `json:"owner" db:"owner_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ContactDetails is a contact as seen by another user. Email belongs to the
// contact's owner and is nil unless disclosure is allowed.
type ContactDetails struct {
	Name  string  `json:"name"`
	Phone string  `json:"phone"`
	Spam  bool    `json:"spam"`
	Email *string `json:"email"`
}
