package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/geoquiz/internal/domain"
	"github.com/victornm/geoquiz/internal/errors"
	"github.com/victornm/geoquiz/internal/session"
)

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) session.Store{
		"redis": func(t *testing.T) session.Store {
			s, _ := makeRedisStore(t, time.Hour)
			return s
		},
		"memory": func(t *testing.T) session.Store {
			return session.NewMemoryStore()
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			_, found, err := s.Load(ctx, "s1")
			require.NoError(t, err)
			assert.False(t, found)

			st := playedState(t)
			require.NoError(t, s.Save(ctx, "s1", st))

			got, found, err := s.Load(ctx, "s1")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, st, got)

			// Mutating a loaded state does not touch the stored one.
			got.Score = 99
			again, _, err := s.Load(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, st.Score, again.Score)

			_, found, err = s.Load(ctx, "s2")
			require.NoError(t, err)
			assert.False(t, found, "sessions are independent")

			require.NoError(t, s.Delete(ctx, "s1"))
			_, found, err = s.Load(ctx, "s1")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Delete(ctx, "unknown"))
		})
	}
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	s, mr := makeRedisStore(t, time.Hour)

	require.NoError(t, s.Save(ctx, "s1", session.Begin()))
	assert.True(t, mr.Exists("geoquiz:session:s1"))
	assert.Equal(t, time.Hour, mr.TTL("geoquiz:session:s1"))

	mr.FastForward(30 * time.Minute)
	require.NoError(t, s.Save(ctx, "s1", session.Begin()))
	assert.Equal(t, time.Hour, mr.TTL("geoquiz:session:s1"), "save refreshes the TTL")

	mr.FastForward(2 * time.Hour)
	_, found, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_CorruptState(t *testing.T) {
	s, mr := makeRedisStore(t, time.Hour)
	require.NoError(t, mr.Set("geoquiz:session:s1", "{not json"))

	_, _, err := s.Load(context.Background(), "s1")

	assert.ErrorContains(t, err, "decode session s1")
}

func TestRedisStore_Lock(t *testing.T) {
	ctx := context.Background()
	s, mr := makeRedisStore(t, time.Hour)

	unlock, err := s.Lock(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("geoquiz:session:s1:lock"))

	busy, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = s.Lock(busy, "s1")
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnavailable, errors.Convert(err).Code)
	assert.True(t, errors.Convert(err).Retriable)

	other, err := s.Lock(ctx, "s2")
	require.NoError(t, err, "sessions lock independently")
	other()

	unlock()
	assert.False(t, mr.Exists("geoquiz:session:s1:lock"))

	again, err := s.Lock(ctx, "s1")
	require.NoError(t, err)
	again()
}

func TestRedisStore_LockExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr := makeRedisStore(t, time.Hour)

	stale, err := s.Lock(ctx, "s1")
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)
	fresh, err := s.Lock(ctx, "s1")
	require.NoError(t, err, "an abandoned lock expires")

	stale()
	assert.True(t, mr.Exists("geoquiz:session:s1:lock"), "an expired holder cannot release the new holder's lock")

	fresh()
	assert.False(t, mr.Exists("geoquiz:session:s1:lock"))
}

func makeRedisStore(t *testing.T, ttl time.Duration) (*session.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	return newRedisStore(t, mr, ttl), mr
}

// newRedisStore opens a store with its own client, as another process would.
func newRedisStore(t *testing.T, mr *miniredis.Miniredis, ttl time.Duration) *session.RedisStore {
	t.Helper()

	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	t.Cleanup(func() { _ = rc.Close() })

	return session.NewRedisStore(session.RedisStoreConfig{
		Redis:  rc,
		Prefix: "geoquiz",
		TTL:    ttl,
	})
}

func playedState(t *testing.T) *domain.SessionState {
	t.Helper()

	st := session.Begin()
	session.IssueQuestion(st, newQuestion("What is the capital of Brazil?", "Brasília"), "https://img/b.jpg", t0)
	_, err := session.SubmitAnswer(st, "Brasília", t1)
	require.NoError(t, err)
	session.IssueQuestion(st, newQuestion("Which desert is the largest in the world?", "Antarctic"), "", t1)

	return st
}
