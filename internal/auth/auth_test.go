package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"evalreport/internal/config"
	"evalreport/internal/evaluation"
)

func testDirectory(t *testing.T) *Directory {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("loja123"), bcrypt.MinCost)
	require.NoError(t, err)

	return NewDirectory([]config.UserConfig{
		{Username: "Monitoramento", PasswordHash: string(hash), Role: config.RoleAdmin},
		{Username: "carioca", Name: "Carioca", PasswordHash: string(hash), Role: config.RoleStore, Store: "Carioca"},
	})
}

func TestAuthenticate(t *testing.T) {
	dir := testDirectory(t)
	assert.Equal(t, 2, dir.Len())

	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
		wantName string
	}{
		{name: "admin", username: "Monitoramento", password: "loja123", wantName: "Monitoramento"},
		{name: "store", username: "carioca", password: "loja123", wantName: "Carioca"},
		{name: "wrong password", username: "carioca", password: "nope", wantErr: true},
		{name: "unknown user", username: "ghost", password: "loja123", wantErr: true},
		{name: "empty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := dir.Authenticate(tt.username, tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCredentials)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, u.Name)
		})
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("loja123", bcrypt.MinCost)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, config.MinPasswordCost, cost)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("loja123")))

	_, err = HashPassword("", 12)
	assert.Error(t, err)
}

func TestSessionStoreLifecycle(t *testing.T) {
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	store := NewSessionStore(time.Hour, func() time.Time { return now })

	session := store.Create(User{Username: "carioca", Name: "Carioca", Role: config.RoleStore, Store: "Carioca"})
	require.NotEmpty(t, session.Token)
	assert.Equal(t, now.Add(time.Hour), session.ExpiresAt)

	got, ok := store.Get(session.Token)
	require.True(t, ok)
	assert.Same(t, session, got)

	_, ok = store.Get("bogus")
	assert.False(t, ok)

	now = now.Add(time.Hour)
	_, ok = store.Get(session.Token)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestSessionStoreRevokeAndPurge(t *testing.T) {
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	store := NewSessionStore(time.Minute, func() time.Time { return now })

	a := store.Create(User{Username: "a", Role: config.RoleAdmin})
	store.Create(User{Username: "b", Role: config.RoleAdmin})

	store.Revoke(a.Token)
	store.Revoke("unknown")
	assert.Equal(t, 1, store.Len())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, store.Purge())
	assert.Equal(t, 0, store.Len())
}

func TestSessionScopesRecords(t *testing.T) {
	records := []evaluation.Record{{Store: "Carioca"}, {Store: "Mauá"}, {Store: "Carioca"}}

	admin := &Session{Role: config.RoleAdmin}
	store := &Session{Role: config.RoleStore, Store: "Carioca"}

	assert.Len(t, evaluation.ScopeToSession(records, admin), 3)
	assert.Len(t, evaluation.ScopeToSession(records, store), 2)
	assert.Nil(t, admin.Stores())
	assert.Equal(t, []string{"Carioca"}, store.Stores())

	var none *Session
	assert.False(t, none.CanViewAllStores())
	assert.Empty(t, none.StoreScope())
}

func TestSessionContext(t *testing.T) {
	_, ok := SessionFromContext(context.Background())
	assert.False(t, ok)

	s := &Session{Username: "a"}
	got, ok := SessionFromContext(WithSession(context.Background(), s))
	require.True(t, ok)
	assert.Same(t, s, got)
}
