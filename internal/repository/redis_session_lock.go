package repository

import (
	"context"
	"fmt"
	"time"

	"drama-server/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionLocker serializes pipeline runs per session. Without it, concurrent
// requests against one session race on the read-modify-write of AgentState.
type SessionLocker interface {
	// Acquire takes the session's lock or returns domain.ErrSessionBusy.
	// The returned release function is safe to call exactly once.
	Acquire(ctx context.Context, sessionID uuid.UUID) (release func(), err error)
}

// Compile-time check
var _ SessionLocker = (*redisSessionLock)(nil)

type redisSessionLock struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// releaseScript deletes the lock only if the caller still owns it, so an
// expired-and-reacquired lock is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisSessionLock создает распределенную блокировку сессий поверх Redis.
func NewRedisSessionLock(client *redis.Client, ttl time.Duration, logger *zap.Logger) SessionLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisSessionLock{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisSessionLock"),
	}
}

func (l *redisSessionLock) Acquire(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	key := fmt.Sprintf("session_lock:%s", sessionID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка захвата блокировки сессии: %w", err)
	}
	if !ok {
		return nil, domain.ErrSessionBusy
	}

	release := func() {
		// Best effort: the TTL reclaims the lock if the release fails.
		if _, err := releaseScript.Run(context.Background(), l.client, []string{key}, token).Result(); err != nil {
			l.logger.Warn("Failed to release session lock",
				zap.String("sessionID", sessionID.String()),
				zap.Error(err))
		}
	}
	return release, nil
}
