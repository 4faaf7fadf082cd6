package provision

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/musichub/server/internal/storage"
)

var provisionedAt = time.Date(2025, time.July, 4, 8, 30, 0, 0, time.UTC)

func testOpts() []Option {
	return []Option{
		WithBcryptCost(bcrypt.MinCost),
		WithClock(func() time.Time { return provisionedAt }),
	}
}

func passwordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func TestEnsureAdmin_Creates(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	res, err := EnsureAdmin(ctx, store, AdminAccount{Email: " Admin@MusicHub.test ", Password: "s3cret-pass"}, testOpts()...)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)

	rec, err := store.Get(ctx, "users", res.UserID)
	require.NoError(t, err)
	assert.Equal(t, "admin@musichub.test", rec.Data["email"])
	assert.Equal(t, "Administrator", rec.Data["name"])
	assert.Equal(t, RoleAdmin, rec.Data["role"])
	assert.Equal(t, "2025-07-04T08:30:00.000Z", rec.Data["createdAt"])

	hash, _ := rec.Data["passwordHash"].(string)
	assert.NotEqual(t, "s3cret-pass", hash)
	assert.True(t, passwordMatches(hash, "s3cret-pass"))
	assert.False(t, passwordMatches(hash, "wrong"))
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	acct := AdminAccount{Email: "admin@musichub.test", Name: "Ops", Password: "s3cret-pass"}

	first, err := EnsureAdmin(ctx, store, acct, testOpts()...)
	require.NoError(t, err)

	acct.Password = "a-different-pass"
	second, err := EnsureAdmin(ctx, store, acct, testOpts()...)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExisted, second.Outcome)
	assert.Equal(t, first.UserID, second.UserID)

	recs, _ := store.Query(ctx, "users", storage.Query{})
	require.Len(t, recs, 1)
	hash, _ := recs[0].Data["passwordHash"].(string)
	assert.True(t, passwordMatches(hash, "s3cret-pass"), "existing password must not be replaced")
}

func TestEnsureAdmin_PromotesExistingUser(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	id, err := store.Insert(ctx, "accounts", storage.Document{"email": "ops@musichub.test", "name": "Ops", "role": "user"})
	require.NoError(t, err)

	opts := append(testOpts(), WithUsersCollection("accounts"))
	res, err := EnsureAdmin(ctx, store, AdminAccount{Email: "ops@musichub.test", Password: "s3cret-pass"}, opts...)
	require.NoError(t, err)
	assert.Equal(t, Result{UserID: id, Outcome: OutcomePromoted}, res)

	rec, _ := store.Get(ctx, "accounts", id)
	assert.Equal(t, RoleAdmin, rec.Data["role"])
	assert.Equal(t, "Ops", rec.Data["name"])
}

func TestEnsureAdmin_RejectsBadCredentials(t *testing.T) {
	store := storage.NewMemoryStore()
	tests := []struct {
		name string
		acct AdminAccount
		want error
	}{
		{"no email", AdminAccount{Password: "long-enough"}, ErrMissingCredentials},
		{"no password", AdminAccount{Email: "a@b.test"}, ErrMissingCredentials},
		{"short password", AdminAccount{Email: "a@b.test", Password: "short"}, ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EnsureAdmin(context.Background(), store, tt.acct, testOpts()...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	recs, _ := store.Query(context.Background(), "users", storage.Query{})
	assert.Empty(t, recs)
}
