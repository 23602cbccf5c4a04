package webchat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsRoundTrip(t *testing.T) {
	sessions, err := NewSessions("secret", time.Hour)
	require.NoError(t, err)

	id, token, err := sessions.NewUser()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, id, webUserIDFloor)
	assert.Less(t, id, 2*webUserIDFloor)

	got, err := sessions.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = sessions.Verify("")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionsWithoutSecretDoNotTrustEachOther(t *testing.T) {
	a, err := NewSessions("", 0)
	require.NoError(t, err)
	b, err := NewSessions("", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultSessionTTL, a.ttl)

	token, err := a.Issue(7)
	require.NoError(t, err)
	_, err = b.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}
