package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/geoquiz/internal/domain"
	"github.com/victornm/geoquiz/internal/errors"
)

const (
	defaultTTL        = 24 * time.Hour
	defaultLockTTL    = 30 * time.Second
	lockRetryInterval = 50 * time.Millisecond
)

// unlockScript deletes the lock only while it still holds the caller's token, so a
// holder whose lock expired cannot release the next holder's lock.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is implemented by stores shared by several processes. The Service holds the
// lock around every load, mutate and save of a session.
type Locker interface {
	Lock(ctx context.Context, id string) (unlock func(), err error)
}

// Store persists session states by session id.
type Store interface {
	// Load returns found == false when the session does not exist or has expired.
	Load(ctx context.Context, id string) (s *domain.SessionState, found bool, err error)
	Save(ctx context.Context, id string, s *domain.SessionState) error
	Delete(ctx context.Context, id string) error
}

type RedisStoreConfig struct {
	Redis  redis.UniversalClient
	Prefix string
	// TTL is refreshed on every save.
	TTL time.Duration
	// LockTTL bounds how long a crashed holder can keep a session locked.
	LockTTL time.Duration
}

// RedisStore keeps each session as a JSON document under {prefix}:session:{id}.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration

	lockTTL time.Duration
}

func NewRedisStore(c RedisStoreConfig) *RedisStore {
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaultLockTTL
	}

	return &RedisStore{
		redis:   c.Redis,
		prefix:  c.Prefix,
		ttl:     c.TTL,
		lockTTL: c.LockTTL,
	}
}

func (s *RedisStore) Load(ctx context.Context, id string) (*domain.SessionState, bool, error) {
	b, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get session: %w", err)
	}

	var st domain.SessionState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, false, fmt.Errorf("decode session %s: %w", id, err)
	}

	return &st, true, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, st *domain.SessionState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}

	if err := s.redis.Set(ctx, s.key(id), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Lock takes {prefix}:session:{id}:lock with SETNX, polling until it is free or ctx
// is done. The lock expires after LockTTL if it is never released.
func (s *RedisStore) Lock(ctx context.Context, id string) (func(), error) {
	key := s.key(id) + ":lock"
	token := uuid.NewString()

	for {
		ok, err := s.redis.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("lock session: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.New(errors.CodeUnavailable,
				errors.WithMessagef("session %s is busy", id),
				errors.WithCause(ctx.Err()),
				errors.WithRetriable(),
			)
		case <-time.After(lockRetryInterval):
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if err := unlockScript.Run(ctx, s.redis, []string{key}, token).Err(); err != nil {
			slog.WarnContext(ctx, "session: release lock failed", "session_id", id, "error", err)
		}
	}, nil
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

// MemoryStore is a process-local Store. States are copied on the way in and out so
// callers never share memory with the store. Entries do not expire.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, id string) (*domain.SessionState, bool, error) {
	s.mu.RLock()
	b, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	var st domain.SessionState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &st, true, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, st *domain.SessionState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}

	s.mu.Lock()
	s.sessions[id] = b
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}
