package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/food-cart/internal/infrastructure/store"
	"github.com/example/food-cart/internal/infrastructure/store/mocks"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	id    string
	err   error
	calls int
}

func (g *stubGenerator) GenerateID(ctx context.Context) (string, error) {
	g.calls++
	return g.id, g.err
}

func signToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key"))
	require.NoError(t, err)
	return token
}

func userToken(t *testing.T, userID string, expiresIn time.Duration) string {
	return signToken(t, Claims{
		Email: userID + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	})
}

// ============================================
// ParseAccessToken Tests
// ============================================

func TestParseAccessToken(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		userID  string
		wantErr error
	}{
		{"subject only", func(t *testing.T) string { return userToken(t, "user-1", time.Hour) }, "user-1", nil},
		{"user_id claim wins", func(t *testing.T) string {
			return signToken(t, Claims{UserID: "user-2", RegisteredClaims: jwt.RegisteredClaims{Subject: "other"}})
		}, "user-2", nil},
		{"no expiry", func(t *testing.T) string {
			return signToken(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-3"}})
		}, "user-3", nil},
		{"expired", func(t *testing.T) string { return userToken(t, "user-4", -time.Minute) }, "", ErrExpiredToken},
		{"no subject", func(t *testing.T) string { return signToken(t, Claims{Email: "a@b.c"}) }, "", ErrInvalidToken},
		{"garbage", func(t *testing.T) string { return "not-a-jwt" }, "", ErrInvalidToken},
		{"empty", func(t *testing.T) string { return "" }, "", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseAccessToken(tt.token(t), now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.userID, claims.UserID)
		})
	}
}

func TestParseAccessToken_SignatureNotChecked(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-9"},
	}).SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	claims, err := ParseAccessToken(token, time.Now())

	require.NoError(t, err)
	assert.Equal(t, "user-9", claims.UserID)
}

// ============================================
// Resolver Tests
// ============================================

func TestResolver_AuthenticatedFromToken(t *testing.T) {
	st := mocks.NewMockStore()
	st.SetData(KeyAccessToken, []byte(userToken(t, "user-123", time.Hour)))
	gen := &stubGenerator{id: "remote-cart"}
	r := NewResolver(st, gen, true)

	id, err := r.Current(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Authenticated, id.Kind)
	assert.Equal(t, "user-123", id.UserID)
	assert.Equal(t, "user-123@example.com", id.Email)
	assert.Equal(t, "user:user-123", id.Key())
	assert.Equal(t, "user-123", id.Scope())
	assert.Zero(t, gen.calls)
	assert.Empty(t, st.SetCalls)
}

func TestResolver_AnonymousGeneratedRemotely(t *testing.T) {
	st := mocks.NewMockStore()
	gen := &stubGenerator{id: "remote-cart"}
	r := NewResolver(st, gen, true)
	ctx := context.Background()

	id, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, Anonymous, id.Kind)
	assert.Equal(t, "remote-cart", id.CartID)
	assert.Equal(t, "anon:remote-cart", id.Key())

	stored, ok := st.Data(KeyAnonymousCartID)
	require.True(t, ok)
	assert.Equal(t, "remote-cart", string(stored))

	// Second read reuses the persisted id.
	again, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "remote-cart", again.CartID)
	assert.Equal(t, 1, gen.calls)
}

func TestResolver_AnonymousFallsBackToLocalID(t *testing.T) {
	st := mocks.NewMockStore()
	gen := &stubGenerator{err: errors.New("connection refused")}
	r := NewResolver(st, gen, true)

	id, err := r.Current(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Anonymous, id.Kind)
	assert.Len(t, id.CartID, 36) // uuid
	assert.True(t, st.Has(KeyAnonymousCartID))
}

func TestResolver_ExpiredTokenFallsBackToAnonymous(t *testing.T) {
	st := mocks.NewMockStore()
	st.SetData(KeyAccessToken, []byte(userToken(t, "user-1", -time.Hour)))
	st.SetData(KeyAnonymousCartID, []byte("anon-1"))
	r := NewResolver(st, nil, true)

	id, err := r.Current(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Anonymous, id.Kind)
	assert.Equal(t, "anon-1", id.CartID)
}

func TestResolver_AnonymousDisallowed(t *testing.T) {
	r := NewResolver(mocks.NewMockStore(), nil, false)

	_, err := r.Current(context.Background())

	assert.ErrorIs(t, err, ErrNoSession)
}

func TestResolver_StoreFailureIsNoSession(t *testing.T) {
	st := mocks.NewMockStore()
	st.GetErr = errors.New("disk on fire")
	r := NewResolver(st, nil, true)

	_, err := r.Current(context.Background())

	assert.ErrorIs(t, err, ErrNoSession)
}

func TestResolver_LoginAndLogout(t *testing.T) {
	st := mocks.NewMockStore()
	st.SetData(KeyAnonymousCartID, []byte("anon-1"))
	r := NewResolver(st, &stubGenerator{id: "anon-2"}, true)
	ctx := context.Background()

	id, err := r.Login(ctx, userToken(t, "user-7", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "user-7", id.UserID)

	current, err := r.Current(ctx)
	require.NoError(t, err)
	assert.True(t, current.IsAuthenticated())

	require.NoError(t, r.Logout(ctx))
	assert.False(t, st.Has(KeyAccessToken))
	assert.False(t, st.Has(KeyAnonymousCartID))

	fresh, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, Anonymous, fresh.Kind)
	assert.Equal(t, "anon-2", fresh.CartID)
}

func TestResolver_LoginRejectsBadToken(t *testing.T) {
	st := mocks.NewMockStore()
	r := NewResolver(st, nil, true)

	_, err := r.Login(context.Background(), "garbage")

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.False(t, st.Has(KeyAccessToken))
}

func TestResolver_AnonymousIDAndDiscard(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewResolver(st, nil, true)
	ctx := context.Background()

	_, ok, err := r.AnonymousID(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Set(ctx, KeyAnonymousCartID, []byte("anon-5")))
	id, ok, err := r.AnonymousID(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "anon-5", id)

	require.NoError(t, r.DiscardAnonymous(ctx))
	_, ok, err = r.AnonymousID(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
