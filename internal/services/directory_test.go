package services

import (
	"context"
	"testing"

	"spamguard/server/internal/apperr"
	"spamguard/server/internal/models"
	"spamguard/server/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkSpam_UnknownNumberCreatesContact(t *testing.T) {
	f := newFixture(t)
	ann := f.register(t, "ann", "+1000", "")

	c, err := f.directory.MarkSpam(context.Background(), ann, " +5555 ")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", c.Name)
	assert.Equal(t, "+5555", c.Phone)
	assert.True(t, c.Spam)
	assert.Equal(t, ann.ID, c.OwnerID)
	assert.Empty(t, f.alerts.calls)
}

func TestMarkSpam_FlagsReportersOwnContactFirst(t *testing.T) {
	f := newFixture(t)
	bob := f.register(t, "bob", "+2000", "", ContactInput{Name: "spammer", Phone: "+5555"})
	ann := f.register(t, "ann", "+1000", "", ContactInput{Name: "caller", Phone: "+5555"})

	c, err := f.directory.MarkSpam(context.Background(), ann, "+5555")
	require.NoError(t, err)
	assert.Equal(t, ann.ID, c.OwnerID)
	assert.Equal(t, "caller", c.Name)
	assert.True(t, c.Spam)

	require.Len(t, f.alerts.calls, 1)
	assert.Equal(t, []string{bob.ID}, f.alerts.calls[0].owners)
	assert.Equal(t, "+5555", f.alerts.calls[0].phone)
}

func TestMarkSpam_FlagsOldestContactOtherwise(t *testing.T) {
	f := newFixture(t)
	bob := f.register(t, "bob", "+2000", "", ContactInput{Name: "first", Phone: "+5555"})
	f.register(t, "cat", "+3000", "", ContactInput{Name: "second", Phone: "+5555"})
	ann := f.register(t, "ann", "+1000", "")

	c, err := f.directory.MarkSpam(context.Background(), ann, "+5555")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, c.OwnerID)
	assert.Equal(t, "first", c.Name)
	assert.True(t, c.Spam)

	require.Len(t, f.alerts.calls, 1)
	assert.Len(t, f.alerts.calls[0].owners, 2)
}

func TestMarkSpam_SetsGlobalFlagOnRegisteredUser(t *testing.T) {
	f := newFixture(t)
	ann := f.register(t, "ann", "+1000", "")
	bob := f.register(t, "bob", "+2000", "")

	_, err := f.directory.MarkSpam(context.Background(), ann, "+2000")
	require.NoError(t, err)

	got, err := f.users.FindByID(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.True(t, got.Spam)

	res, err := f.directory.Search(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.True(t, res[0].Spam)
}

func TestMarkSpam_Idempotent(t *testing.T) {
	f := newFixture(t)
	ann := f.register(t, "ann", "+1000", "")
	ctx := context.Background()

	first, err := f.directory.MarkSpam(ctx, ann, "+5555")
	require.NoError(t, err)
	second, err := f.directory.MarkSpam(ctx, ann, "+5555")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestMarkSpam_PhoneRequired(t *testing.T) {
	f := newFixture(t)
	ann := f.register(t, "ann", "+1000", "")

	_, err := f.directory.MarkSpam(context.Background(), ann, "  ")
	assert.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestSearch_SubstringOnNameOrPhone(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Joanna", "+1000", "")
	f.register(t, "bob", "+2ann0", "")
	f.register(t, "Annie", "+3ann", "")
	f.register(t, "carl", "+4000", "")

	res, err := f.directory.Search(context.Background(), "ANN")
	require.NoError(t, err)
	require.Len(t, res, 3)

	names := []string{res[0].Name, res[1].Name, res[2].Name}
	assert.ElementsMatch(t, []string{"joanna", "bob", "annie"}, names)
	for _, r := range res {
		assert.Equal(t, models.SearchResult{Name: r.Name, Phone: r.Phone, Spam: false}, r)
	}
}

func TestSearch_DeduplicatesByID(t *testing.T) {
	f := newFixture(t)
	f.users = &faultyUsers{UserRepository: f.users, searchOut: []models.User{
		{ID: "1", Name: "ann", Phone: "+1"},
		{ID: "1", Name: "ann", Phone: "+1"},
		{ID: "2", Name: "anna", Phone: "+2", Spam: true},
	}}
	f.rebuild()

	res, err := f.directory.Search(context.Background(), "ann")
	require.NoError(t, err)
	assert.Equal(t, []models.SearchResult{
		{Name: "ann", Phone: "+1"},
		{Name: "anna", Phone: "+2", Spam: true},
	}, res)
}

func TestSearch_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.directory.Search(context.Background(), "")
	assert.True(t, apperr.IsKind(err, apperr.Validation))

	f.users = &faultyUsers{UserRepository: f.users, searchErr: errDB}
	f.rebuild()
	_, err = f.directory.Search(context.Background(), "ann")
	assert.True(t, apperr.IsKind(err, apperr.Internal))
}

func TestSearch_NoMatchIsEmptyList(t *testing.T) {
	f := newFixture(t)
	res, err := f.directory.Search(context.Background(), "zzz")
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
}

func TestGetContactDetails_Disclosure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	viewer := f.register(t, "viewer", "+9000", "")
	// owner keeps viewer in their address book and has an email
	owner := f.register(t, "owner", "+1000", "owner@example.com",
		ContactInput{Name: "viewer", Phone: "+9000"},
		ContactInput{Name: "dave", Phone: "+4000"},
	)
	// stranger has an email but not the viewer's number
	stranger := f.register(t, "stranger", "+2000", "stranger@example.com",
		ContactInput{Name: "dave", Phone: "+4000"},
	)
	// quiet has the viewer's number but no email
	quiet := f.register(t, "quiet", "+3000", "",
		ContactInput{Name: "dave", Phone: "+4000"},
		ContactInput{Name: "viewer", Phone: "+9000"},
	)

	contactOf := func(u *models.User) string {
		c, err := f.contacts.FindCanonicalByPhone(ctx, "+4000", u.ID)
		require.NoError(t, err)
		require.Equal(t, u.ID, c.OwnerID)
		return c.ID
	}

	d, err := f.directory.GetContactDetails(ctx, viewer, contactOf(owner))
	require.NoError(t, err)
	require.NotNil(t, d.Email)
	assert.Equal(t, "owner@example.com", *d.Email)
	assert.Equal(t, "dave", d.Name)
	assert.Equal(t, "+4000", d.Phone)

	d, err = f.directory.GetContactDetails(ctx, viewer, contactOf(stranger))
	require.NoError(t, err)
	assert.Nil(t, d.Email)

	d, err = f.directory.GetContactDetails(ctx, viewer, contactOf(quiet))
	require.NoError(t, err)
	assert.Nil(t, d.Email)
}

func TestDisclose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	viewer := f.register(t, "viewer", "+9000", "")
	owner := f.register(t, "owner", "+1000", "owner@example.com")
	other := f.register(t, "other", "+2000", "other@example.com", ContactInput{Name: "viewer", Phone: "+9000"})

	ok, err := f.directory.Disclose(ctx, viewer, owner)
	require.NoError(t, err)
	assert.False(t, ok, "viewer only in a different user's list")

	ok, err = f.directory.Disclose(ctx, viewer, other)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetContactDetails_InvalidIDTouchesNoStore(t *testing.T) {
	f := newFixture(t)
	viewer := f.register(t, "viewer", "+9000", "")
	fc := &faultyContacts{ContactRepository: f.contacts}
	f.contacts = fc
	f.rebuild()

	for _, id := range []string{"", "abc", "507f1f77bcf86cd799439011", uuid.NewString() + "x"} {
		_, err := f.directory.GetContactDetails(context.Background(), viewer, id)
		assert.True(t, apperr.IsKind(err, apperr.InvalidID), "id %q", id)
	}
	assert.Zero(t, fc.calls)
}

func TestGetContactDetails_NotFoundAndErrors(t *testing.T) {
	f := newFixture(t)
	viewer := f.register(t, "viewer", "+9000", "")

	_, err := f.directory.GetContactDetails(context.Background(), viewer, uuid.NewString())
	assert.True(t, apperr.IsKind(err, apperr.NotFound))

	f.contacts = &faultyContacts{ContactRepository: f.contacts, findErr: errDB}
	f.rebuild()
	_, err = f.directory.GetContactDetails(context.Background(), viewer, uuid.NewString())
	assert.True(t, apperr.IsKind(err, apperr.Internal))
}

func TestGetContactDetails_OrphanedContact(t *testing.T) {
	f := newFixture(t)
	viewer := f.register(t, "viewer", "+9000", "")
	c, err := f.contacts.Create(context.Background(), &models.Contact{
		Name: "ghost", Phone: "+4000", OwnerID: uuid.NewString(),
	})
	require.NoError(t, err)

	d, err := f.directory.GetContactDetails(context.Background(), viewer, c.ID)
	require.NoError(t, err)
	assert.Nil(t, d.Email)
}

var _ repository.ContactRepository = (*faultyContacts)(nil)
