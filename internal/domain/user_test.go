package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestUser_PasswordHashExcludedFromJSON(t *testing.T) {
	u := User{ID: "user-1", Email: "jane@example.com", PasswordHash: "$2a$12$secret"}

	raw, err := json.Marshal(u)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "secret")
	assert.NotContains(t, string(raw), "password")
}

func TestUser_CartOmittedWhenNotLoaded(t *testing.T) {
	raw, err := json.Marshal(User{ID: "user-1"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "cart")

	raw, err = json.Marshal(User{ID: "user-1", Cart: &Cart{ID: "cart-1", UserID: "user-1"}})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"cart":{"id":"cart-1"`)
}

func TestUser_FullName(t *testing.T) {
	u := User{FirstName: "Jane", LastName: "Doe"}
	assert.Equal(t, "Jane Doe", u.FullName())
}

func TestUserPatch_IsEmpty(t *testing.T) {
	assert.True(t, UserPatch{}.IsEmpty())
	assert.False(t, UserPatch{Phone: strPtr("")}.IsEmpty())
}

func TestUserPatch_ApplyOnlyPresentFields(t *testing.T) {
	u := &User{FirstName: "Jane", LastName: "Doe", Email: "old@example.com", Phone: "+15550100"}

	UserPatch{Email: strPtr("new@example.com")}.Apply(u)

	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, "Jane", u.FirstName)
	assert.Equal(t, "Doe", u.LastName)
	assert.Equal(t, "+15550100", u.Phone)
}

func TestUserPatch_ApplyEmptyIsNoop(t *testing.T) {
	u := &User{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"}
	before := *u

	UserPatch{}.Apply(u)

	assert.Equal(t, before, *u)
}

func TestUserPage_NilNeighborsSerializeAsNull(t *testing.T) {
	raw, err := json.Marshal(UserPage{Page: 1, Users: []*User{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"prev_page":null,"page":1,"next_page":null,"users":[]}`, string(raw))
}
