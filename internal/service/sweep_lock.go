package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SweepLock не допускает одновременных прогонов жизненного цикла.
type SweepLock interface {
	// TryAcquire захватывает блокировку без ожидания.
	// ok = false — блокировку держит другой прогон.
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// LocalSweepLock — блокировка внутри процесса.
type LocalSweepLock struct {
	mu   sync.Mutex
	held bool
}

// NewLocalSweepLock создаёт блокировку внутри процесса.
func NewLocalSweepLock() *LocalSweepLock {
	return &LocalSweepLock{}
}

// TryAcquire захватывает блокировку.
func (l *LocalSweepLock) TryAcquire(context.Context) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		return nil, false, nil
	}
	l.held = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.held = false
			l.mu.Unlock()
		})
	}, true, nil
}

// releaseScript удаляет ключ, только если он принадлежит владельцу токена.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript продлевает TTL ключа, только если он принадлежит владельцу токена.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisSweepLock — распределённая блокировка (SET NX PX) между репликами.
// Пока блокировка удерживается, TTL продлевается каждую треть TTL;
// при аварийном завершении процесса ключ истекает сам.
type RedisSweepLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisSweepLock создаёт распределённую блокировку.
func NewRedisSweepLock(client redis.UniversalClient, key string, ttl time.Duration, logger *slog.Logger) *RedisSweepLock {
	return &RedisSweepLock{
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "sweep_lock")),
	}
}

// TryAcquire выполняет SET key token NX PX ttl.
func (l *RedisSweepLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("ошибка захвата блокировки %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(token, stop, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done
			// Прогон мог быть отменён, снимаем блокировку независимо от его контекста
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
				l.logger.Warn("Ошибка снятия блокировки прогона, истечёт по TTL",
					slog.String("key", l.key),
					slog.String("error", err.Error()),
				)
			}
		})
	}
	return release, true, nil
}

// keepAlive продлевает блокировку до закрытия stop.
func (l *RedisSweepLock) keepAlive(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := extendScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			switch {
			case err != nil:
				l.logger.Warn("Ошибка продления блокировки прогона",
					slog.String("key", l.key),
					slog.String("error", err.Error()),
				)
			case n == 0:
				l.logger.Error("Блокировка прогона потеряна, возможен параллельный прогон",
					slog.String("key", l.key),
				)
				return
			}
		}
	}
}
