package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_ToResponseHidesSecrets(t *testing.T) {
	email := "ann@example.com"
	token := "refresh"
	u := &User{ID: "1", Name: "ann", Phone: "+1000", Email: &email, PasswordHash: "hash", RefreshToken: &token}

	raw, err := json.Marshal(u.ToResponse())
	require.NoError(t, err)

	body := string(raw)
	assert.NotContains(t, body, "hash")
	assert.NotContains(t, body, "refresh")
	assert.Contains(t, body, `"email":"ann@example.com"`)
}

func TestUser_HasEmail(t *testing.T) {
	empty := ""
	set := "a@x.com"

	assert.False(t, (&User{}).HasEmail())
	assert.False(t, (&User{Email: &empty}).HasEmail())
	assert.True(t, (&User{Email: &set}).HasEmail())
}

func TestContactDetails_NullEmail(t *testing.T) {
	raw, err := json.Marshal(ContactDetails{Name: "bob", Phone: "+2000"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"bob","phone":"+2000","spam":false,"email":null}`, string(raw))
}
