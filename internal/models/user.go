package models

import "time"

// User represents a registered user
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Phone        string    `json:"phone" db:"phone"`
	Email        *string   `json:"email,omitempty" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // Never expose in JSON
	RefreshToken *string   `json:"-" db:"refresh_token"`
	Spam         bool      `json:"spam" db:"spam"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// UserResponse is what we send to clients (without password or refresh token)
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     *string   `json:"email,omitempty"`
	Spam      bool      `json:"spam"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Phone:     u.Phone,
		Email:     u.Email,
		Spam:      u.Spam,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// HasEmail reports whether the user registered an email address
func (u *User) HasEmail() bool {
	return u.Email != nil && *u.Email != ""
}

// SearchResult is the public projection returned by user search
type SearchResult struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Spam  bool   `json:"spam"`
}
