package auth

import (
	"testing"
	"time"

	"cityreport/models"
	"cityreport/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(expires time.Time) *models.Session {
	return &models.Session{
		User:      models.SessionUser{ID: "admin-1", Email: "admin@ville.fr", Role: models.RoleAdmin},
		Token:     "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		ExpiresAt: expires,
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	sess := testSession(time.Now().Add(8 * time.Hour))

	token, err := issuer.Issue(sess)
	require.NoError(t, err)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
	assert.Equal(t, "admin@ville.fr", claims.Email)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, session.TokenDigest(sess.Token), claims.SessionID)
	assert.NotContains(t, token, sess.Token, "raw session token must not leak into the JWT")
	assert.Equal(t, sess.ExpiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestTokenIssuer_ExpiresWithSession(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	now := time.Now()
	issuer.now = func() time.Time { return now }

	token, err := issuer.Issue(testSession(now.Add(time.Hour)))
	require.NoError(t, err)

	issuer.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = issuer.Validate(token)
	assert.Error(t, err)
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("one").Issue(testSession(time.Now().Add(time.Hour)))
	require.NoError(t, err)

	_, err = NewTokenIssuer("two").Validate(token)
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	_, err := ExtractToken("")
	assert.Error(t, err)

	_, err = ExtractToken("Basic abc")
	assert.Error(t, err)

	_, err = ExtractToken("Bearer ")
	assert.Error(t, err)

	token, err := ExtractToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)
}
