package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"spamguard/server/internal/logging"
	"spamguard/server/internal/models"
	"spamguard/server/internal/repository"
	"spamguard/server/internal/utils"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var errDB = errors.New("db down")

type fixture struct {
	store     *repository.MemoryStore
	users     repository.UserRepository
	contacts  repository.ContactRepository
	tokens    *utils.TokenService
	sessions  *SessionService
	directory *DirectoryService
	alerts    *recordingAlerter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	f := &fixture{
		store:    store,
		users:    store.Users(),
		contacts: store.Contacts(),
		tokens:   utils.NewTokenService("access-secret", "refresh-secret", time.Minute, time.Hour),
		alerts:   &recordingAlerter{},
	}
	f.rebuild()
	return f
}

// rebuild recreates the services after users or contacts were swapped for
// a fault-injecting wrapper.
func (f *fixture) rebuild() {
	f.sessions = NewSessionService(f.users, f.contacts, f.tokens, logging.Nop(), nil, bcrypt.MinCost)
	f.directory = NewDirectoryService(f.users, f.contacts, logging.Nop(), nil, f.alerts)
}

func (f *fixture) register(t *testing.T, name, phone, email string, contacts ...ContactInput) *models.User {
	t.Helper()
	resp, err := f.sessions.Register(context.Background(), RegisterInput{
		Name: name, Phone: phone, Email: email, Password: "secret", Contacts: contacts,
	})
	require.NoError(t, err)
	u, err := f.users.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	return u
}

type recordingAlerter struct {
	mu    sync.Mutex
	calls []alertCall
}

type alertCall struct {
	owners []string
	phone  string
}

func (r *recordingAlerter) SpamReported(ownerIDs []string, phone string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, alertCall{owners: append([]string(nil), ownerIDs...), phone: phone})
}

// faultyUsers fails the operations whose error field is set and delegates the
// rest.
type faultyUsers struct {
	repository.UserRepository
	existsErr error
	createErr error
	findErr   error
	rotateErr error
	searchErr error
	searchOut []models.User
	noSwap    bool
}

func (f *faultyUsers) ExistsByPhoneOrEmail(ctx context.Context, phone, email string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.UserRepository.ExistsByPhoneOrEmail(ctx, phone, email)
}

func (f *faultyUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.UserRepository.Create(ctx, u)
}

func (f *faultyUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.UserRepository.FindByID(ctx, id)
}

func (f *faultyUsers) RotateRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	if f.rotateErr != nil {
		return false, f.rotateErr
	}
	if f.noSwap {
		return false, nil
	}
	return f.UserRepository.RotateRefreshToken(ctx, id, current, next)
}

func (f *faultyUsers) Search(ctx context.Context, q string) ([]models.User, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.searchOut != nil {
		return f.searchOut, nil
	}
	return f.UserRepository.Search(ctx, q)
}

// faultyContacts fails Create for the listed phones and can fail lookups.
type faultyContacts struct {
	repository.ContactRepository
	failPhones map[string]bool
	findErr    error
	calls      int
}

func (f *faultyContacts) Create(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	f.calls++
	if f.failPhones[c.Phone] {
		return nil, errDB
	}
	return f.ContactRepository.Create(ctx, c)
}

func (f *faultyContacts) FindByID(ctx context.Context, id string) (*models.Contact, error) {
	f.calls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.ContactRepository.FindByID(ctx, id)
}
