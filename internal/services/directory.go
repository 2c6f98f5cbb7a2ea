package services

import (
	"context"
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
	msgPhoneRequired   = "Phone number is required"
	msgQueryRequired   = "Search Query is required"
	msgInvalidContact  = "Invalid contact ID format"
	msgContactNotFound = "Contact not found"

	unknownContactName = "Unknown"
)

// SpamAlerter is told which address-book owners hold a number that was just
// reported as spam.
type SpamAlerter interface {
	SpamReported(ownerIDs []string, phone string)
}

// DirectoryService implements spam reporting, user search and contact lookup
// with conditional email disclosure.
type DirectoryService struct {
	users    repository.UserRepository
	contacts repository.ContactRepository
	logger   logging.Logger
	metrics  *metrics.Metrics
	alerter  SpamAlerter
}

// NewDirectoryService builds the service. alerter may be nil.
func NewDirectoryService(
	users repository.UserRepository,
	contacts repository.ContactRepository,
	logger logging.Logger,
	m *metrics.Metrics,
	alerter SpamAlerter,
) *DirectoryService {
	return &DirectoryService{
		users:    users,
		contacts: contacts,
		logger:   logger,
		metrics:  m,
		alerter:  alerter,
	}
}

// MarkSpam flags phone as spam on behalf of reporter.
//
// The reporter's own contact for phone is flagged if there is one, otherwise
// the oldest contact for phone in any address book. When no contact exists a
// new "Unknown" contact owned by the reporter is created already flagged. The
// registered user holding phone, if any, gets the global spam flag.
func (s *DirectoryService) MarkSpam(ctx context.Context, reporter *models.User, phone string) (_ *models.Contact, err error) {
	ctx, span := telemetry.Start(ctx, "directory.MarkSpam")
	defer func() { telemetry.End(span, err) }()

	phone = utils.NormalizePhone(phone)
	if phone == "" {
		return nil, apperr.New(apperr.Validation, msgPhoneRequired)
	}

	contact, err := s.flagContact(ctx, reporter.ID, phone)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, msgInternal, err)
	}
	if err := s.users.MarkSpamByPhone(ctx, phone); err != nil {
		return nil, apperr.Wrap(apperr.Internal, msgInternal, err)
	}

	s.metrics.SpamReported()
	s.logger.Info(ctx, "number marked as spam", "reporter", reporter.ID, "contact_id", contact.ID)
	s.notify(ctx, reporter.ID, phone)
	return contact, nil
}

func (s *DirectoryService) flagContact(ctx context.Context, reporterID, phone string) (*models.Contact, error) {
	existing, err := s.contacts.FindCanonicalByPhone(ctx, phone, reporterID)
	if err == nil {
		return s.contacts.MarkSpam(ctx, existing.ID)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	created, err := s.contacts.Create(ctx, &models.Contact{
		Name:    unknownContactName,
		Phone:   phone,
		Spam:    true,
		OwnerID: reporterID,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// a concurrent report by the same user created it first
		existing, err = s.contacts.FindCanonicalByPhone(ctx, phone, reporterID)
		if err != nil {
			return nil, err
		}
		return s.contacts.MarkSpam(ctx, existing.ID)
	}
	return created, err
}

func (s *DirectoryService) notify(ctx context.Context, reporterID, phone string) {
	if s.alerter == nil {
		return
	}
	owners, err := s.contacts.OwnersByPhone(ctx, phone)
	if err != nil {
		s.logger.Warn(ctx, "spam alert skipped", "phone", phone, "error", err)
		return
	}
	targets := owners[:0]
	for _, id := range owners {
		if id != reporterID {
			targets = append(targets, id)
		}
	}
	if len(targets) > 0 {
		s.alerter.SpamReported(targets, phone)
	}
}

// Search returns every user whose name or phone contains query,
// case-insensitively, each listed once.
func (s *DirectoryService) Search(ctx context.Context, query string) (_ []models.SearchResult, err error) {
	ctx, span := telemetry.Start(ctx, "directory.Search")
	defer func() { telemetry.End(span, err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.New(apperr.Validation, msgQueryRequired)
	}

	users, err := s.users.Search(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, msgInternal, err)
	}

	seen := make(map[string]struct{}, len(users))
	results := make([]models.SearchResult, 0, len(users))
	for _, u := range users {
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		results = append(results, models.SearchResult{Name: u.Name, Phone: u.Phone, Spam: u.Spam})
	}

	s.metrics.Searched()
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

// GetContactDetails returns a contact as seen by viewer. The owner's email is
// included only when Disclose allows it.
func (s *DirectoryService) GetContactDetails(ctx context.Context, viewer *models.User, contactID string) (_ *models.ContactDetails, err error) {
	if !utils.ValidateID(contactID) {
		return nil, apperr.New(apperr.InvalidID, msgInvalidContact)
	}

	ctx, span := telemetry.Start(ctx, "directory.GetContactDetails")
	defer func() { telemetry.End(span, err) }()

	contact, err := s.contacts.FindByID(ctx, contactID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, msgContactNotFound)
		}
		return nil, apperr.Wrap(apperr.Internal, msgInternal, err)
	}

	details := &models.ContactDetails{Name: contact.Name, Phone: contact.Phone, Spam: contact.Spam}

	owner, err := s.users.FindByID(ctx, contact.OwnerID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// orphaned contact, nothing to disclose
	case err != nil:
		return nil, apperr.Wrap(apperr.Internal, msgInternal, err)
	default:
		ok, err := s.Disclose(ctx, viewer, owner)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, msgInternal, err)
		}
		if ok {
			details.Email = owner.Email
		}
	}

	s.metrics.ContactLookup(details.Email != nil)
	return details, nil
}

// Disclose reports whether viewer may see owner's email: the owner must have
// one and must hold viewer's phone in their own address book. It is evaluated
// against the store on every call.
func (s *DirectoryService) Disclose(ctx context.Context, viewer, owner *models.User) (bool, error) {
	if !owner.HasEmail() {
		return false, nil
	}
	return s.contacts.ExistsForOwner(ctx, owner.ID, viewer.Phone)
}
