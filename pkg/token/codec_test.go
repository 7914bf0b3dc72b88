package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func newTestCodec(t *testing.T, clock *fakeClock) *Codec {
	t.Helper()
	codec, err := NewCodec(Config{Secret: "test-secret", Issuer: "academy-api"}, WithClock(clock.Now))
	require.NoError(t, err)
	return codec
}

func TestNewCodecRequiresSecret(t *testing.T) {
	_, err := NewCodec(Config{})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	codec := newTestCodec(t, clock)

	for _, tc := range []struct{ userID, role string }{
		{"u-1", "student"},
		{"u-2", "parent"},
		{"3f0c7a8e-2b1d-4c55-9d3e-0a1b2c3d4e5f", "admin"},
		{"t-9", "teacher"},
	} {
		raw, issued, err := codec.IssueAccessToken(tc.userID, tc.role)
		require.NoError(t, err)
		assert.Len(t, strings.Split(raw, "."), 3)

		claims, err := codec.Verify(raw)
		require.NoError(t, err)
		assert.Equal(t, tc.userID, claims.UserID)
		assert.Equal(t, tc.role, claims.Role)
		assert.False(t, claims.IsRefresh())
		assert.Equal(t, issued.TokenID(), claims.TokenID())
		assert.True(t, claims.ExpiresAtTime().After(claims.IssuedAtTime()))
		assert.Equal(t, DefaultAccessTTL, claims.ExpiresAtTime().Sub(claims.IssuedAt.Time))
	}
}

func TestRefreshTokenIsTagged(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	codec := newTestCodec(t, clock)

	raw, _, err := codec.IssueRefreshToken("u-1", "student")
	require.NoError(t, err)

	claims, err := codec.Verify(raw)
	require.NoError(t, err)
	assert.True(t, claims.IsRefresh())
	assert.Equal(t, DefaultRefreshTTL, claims.ExpiresAtTime().Sub(claims.IssuedAt.Time))
}

func TestVerifyRejectsTamperedSegments(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	codec := newTestCodec(t, clock)

	raw, _, err := codec.IssueAccessToken("u-1", "student")
	require.NoError(t, err)
	parts := strings.Split(raw, ".")
	payloadStart := len(parts[0]) + 1

	for i := payloadStart; i < len(raw); i++ {
		if raw[i] == '.' {
			continue
		}
		replacement := byte('A')
		if raw[i] == 'A' {
			replacement = 'B'
		}
		tampered := raw[:i] + string(replacement) + raw[i+1:]

		_, err := codec.Verify(tampered)
		assert.ErrorIs(t, err, ErrInvalidToken, "position %d", i)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	clock := &fakeClock{now: time.Now().Add(-time.Hour)}
	codec := newTestCodec(t, clock)

	raw, _, err := codec.IssueAccessToken("u-1", "student")
	require.NoError(t, err)

	clock.now = clock.now.Add(DefaultAccessTTL - time.Second)
	_, err = codec.Verify(raw)
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Second)
	_, err = codec.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMalformedTokens(t *testing.T) {
	codec := newTestCodec(t, &fakeClock{now: time.Now()})

	for _, raw := range []string{"", "abc", "a.b", "a.b.c.d", "..", "not.a.token"} {
		_, err := codec.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, raw)
	}
}

func TestVerifyRejectsForeignSecretAndAlgorithm(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	codec := newTestCodec(t, clock)

	other, err := NewCodec(Config{Secret: "other-secret", Issuer: "academy-api"}, WithClock(clock.Now))
	require.NoError(t, err)
	raw, _, err := other.IssueAccessToken("u-1", "admin")
	require.NoError(t, err)
	_, err = codec.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims := &Claims{UserID: "u-1", Role: "admin", RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "academy-api",
		IssuedAt:  jwt.NewNumericDate(clock.now),
		ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Minute)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = codec.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRequiresExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	codec := newTestCodec(t, clock)

	claims := &Claims{UserID: "u-1", Role: "admin", RegisteredClaims: jwt.RegisteredClaims{
		Issuer:   "academy-api",
		IssuedAt: jwt.NewNumericDate(clock.now),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = codec.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuedAtKeepsMilliseconds(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 100*int(time.Millisecond), time.UTC)}
	codec := newTestCodec(t, clock)

	raw, _, err := codec.IssueAccessToken("u-1", "student")
	require.NoError(t, err)

	claims, err := codec.Verify(raw)
	require.NoError(t, err)
	assert.True(t, claims.IssuedAtTime().Equal(clock.now), "got %s", claims.IssuedAtTime())
	assert.Equal(t, clock.now.Truncate(time.Second), claims.IssuedAt.Time.UTC())
}

func TestIssuedAtFallsBackToSeconds(t *testing.T) {
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(at)}}
	assert.True(t, claims.IssuedAtTime().Equal(at))
}
