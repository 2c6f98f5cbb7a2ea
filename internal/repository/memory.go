package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"spamguard/server/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps users and contacts in process memory with the same
// uniqueness rules as the PostgreSQL schema. Records are copied on the way in
// and out so callers never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	contacts map[string]*models.Contact
	seq      int64
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    map[string]*models.User{},
		contacts: map[string]*models.Contact{},
		now:      time.Now,
	}
}

// Users returns a UserRepository view of the store.
func (s *MemoryStore) Users() *MemoryUserRepository { return &MemoryUserRepository{s: s} }

// Contacts returns a ContactRepository view of the store.
func (s *MemoryStore) Contacts() *MemoryContactRepository { return &MemoryContactRepository{s: s} }

// stamp returns a strictly increasing timestamp so ordering by creation time
// is deterministic even within one clock tick.
func (s *MemoryStore) stamp() time.Time {
	s.seq++
	return s.now().Add(time.Duration(s.seq))
}

func copyUser(u *models.User) *models.User {
	c := *u
	if u.Email != nil {
		e := *u.Email
		c.Email = &e
	}
	if u.RefreshToken != nil {
		t := *u.RefreshToken
		c.RefreshToken = &t
	}
	return &c
}

func copyContact(c *models.Contact) *models.Contact {
	out := *c
	return &out
}

type MemoryUserRepository struct {
	s *MemoryStore
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Phone == user.Phone {
			return nil, ErrDuplicate
		}
		if user.HasEmail() && u.HasEmail() && *u.Email == *user.Email {
			return nil, ErrDuplicate
		}
	}

	stored := copyUser(user)
	stored.ID = uuid.NewString()
	stored.RefreshToken = nil
	stored.CreatedAt = r.s.stamp()
	stored.UpdatedAt = stored.CreatedAt
	r.s.users[stored.ID] = stored
	return copyUser(stored), nil
}

func (r *MemoryUserRepository) find(match func(*models.User) bool) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *MemoryUserRepository) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Phone == phone })
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.HasEmail() && *u.Email == email })
}

func (r *MemoryUserRepository) ExistsByPhoneOrEmail(_ context.Context, phone, email string) (bool, error) {
	_, err := r.find(func(u *models.User) bool {
		return u.Phone == phone || (email != "" && u.HasEmail() && *u.Email == email)
	})
	return err == nil, nil
}

func (r *MemoryUserRepository) update(id string, fn func(*models.User) bool) bool {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok || !fn(u) {
		return false
	}
	u.UpdatedAt = r.s.stamp()
	return true
}

func (r *MemoryUserRepository) SetRefreshToken(_ context.Context, id, token string) error {
	r.update(id, func(u *models.User) bool {
		u.RefreshToken = &token
		return true
	})
	return nil
}

func (r *MemoryUserRepository) ClearRefreshToken(_ context.Context, id string) error {
	r.update(id, func(u *models.User) bool {
		u.RefreshToken = nil
		return true
	})
	return nil
}

func (r *MemoryUserRepository) RotateRefreshToken(_ context.Context, id, current, next string) (bool, error) {
	return r.update(id, func(u *models.User) bool {
		if u.RefreshToken == nil || *u.RefreshToken != current {
			return false
		}
		u.RefreshToken = &next
		return true
	}), nil
}

func (r *MemoryUserRepository) Search(_ context.Context, query string) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	q := strings.ToLower(query)
	out := []models.User{}
	for _, u := range r.s.users {
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Phone), q) {
			out = append(out, models.User{ID: u.ID, Name: u.Name, Phone: u.Phone, Spam: u.Spam})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryUserRepository) MarkSpamByPhone(_ context.Context, phone string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Phone == phone {
			u.Spam = true
			u.UpdatedAt = r.s.stamp()
		}
	}
	return nil
}

type MemoryContactRepository struct {
	s *MemoryStore
}

func (r *MemoryContactRepository) Create(_ context.Context, contact *models.Contact) (*models.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.contacts {
		if c.Phone == contact.Phone && c.OwnerID == contact.OwnerID {
			return nil, ErrDuplicate
		}
	}

	stored := copyContact(contact)
	stored.ID = uuid.NewString()
	stored.CreatedAt = r.s.stamp()
	stored.UpdatedAt = stored.CreatedAt
	r.s.contacts[stored.ID] = stored
	return copyContact(stored), nil
}

func (r *MemoryContactRepository) FindByID(_ context.Context, id string) (*models.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.contacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyContact(c), nil
}

func (r *MemoryContactRepository) FindCanonicalByPhone(_ context.Context, phone, preferredOwner string) (*models.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var best *models.Contact
	for _, c := range r.s.contacts {
		if c.Phone != phone {
			continue
		}
		if best == nil || canonicalBefore(c, best, preferredOwner) {
			best = c
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return copyContact(best), nil
}

func canonicalBefore(a, b *models.Contact, preferredOwner string) bool {
	ap, bp := a.OwnerID == preferredOwner, b.OwnerID == preferredOwner
	if ap != bp {
		return ap
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (r *MemoryContactRepository) MarkSpam(_ context.Context, id string) (*models.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.contacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Spam = true
	c.UpdatedAt = r.s.stamp()
	return copyContact(c), nil
}

func (r *MemoryContactRepository) ExistsForOwner(_ context.Context, ownerID, phone string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, c := range r.s.contacts {
		if c.OwnerID == ownerID && c.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryContactRepository) OwnersByPhone(_ context.Context, phone string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	seen := map[string]bool{}
	var owners []string
	for _, c := range r.s.contacts {
		if c.Phone == phone && !seen[c.OwnerID] {
			seen[c.OwnerID] = true
			owners = append(owners, c.OwnerID)
		}
	}
	sort.Strings(owners)
	return owners, nil
}

var (
	_ UserRepository    = (*PostgresUserRepository)(nil)
	_ UserRepository    = (*MemoryUserRepository)(nil)
	_ ContactRepository = (*PostgresContactRepository)(nil)
	_ ContactRepository = (*MemoryContactRepository)(nil)
)
