package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestLocalSweepLock(t *testing.T) {
	lock := NewLocalSweepLock()
	ctx := context.Background()

	release, ok, err := lock.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("первый захват: ok=%v err=%v", ok, err)
	}

	if _, ok, _ := lock.TryAcquire(ctx); ok {
		t.Fatal("повторный захват удался при удерживаемой блокировке")
	}

	release()
	// Повторный вызов release безопасен
	release()

	release2, ok, _ := lock.TryAcquire(ctx)
	if !ok {
		t.Fatal("захват после release не удался")
	}
	release2()
}

// setupRedis запускает Redis контейнер.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Не удалось запустить Redis контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Ошибка получения адреса Redis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisSweepLock_Integration(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	const key = "lifecycle:sweep:test"

	replicaA := NewRedisSweepLock(client, key, time.Minute, testLogger())
	replicaB := NewRedisSweepLock(client, key, time.Minute, testLogger())

	releaseA, ok, err := replicaA.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("захват реплики A: ok=%v err=%v", ok, err)
	}

	if _, ok, err := replicaB.TryAcquire(ctx); err != nil || ok {
		t.Fatalf("реплика B захватила занятую блокировку: ok=%v err=%v", ok, err)
	}

	ttl, err := client.PTTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		t.Errorf("PTTL = %v, err = %v: у блокировки должен быть TTL", ttl, err)
	}

	releaseA()

	releaseB, ok, err := replicaB.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("захват реплики B после release: ok=%v err=%v", ok, err)
	}

	// Release реплики A не снимает чужую блокировку
	releaseA()
	if n, _ := client.Exists(ctx, key).Result(); n != 1 {
		t.Error("release с чужим токеном снял блокировку")
	}
	releaseB()
}

func TestRedisSweepLock_Expiry_Integration(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	const key = "lifecycle:sweep:expiry"

	// Реплика «упала», не сняв блокировку: ключ с чужим токеном без продления
	if err := client.SetNX(ctx, key, "crashed-replica", 200*time.Millisecond).Err(); err != nil {
		t.Fatalf("SetNX: %v", err)
	}

	lock := NewRedisSweepLock(client, key, time.Minute, testLogger())
	if _, ok, err := lock.TryAcquire(ctx); err != nil || ok {
		t.Fatalf("захват занятой блокировки: ok=%v err=%v", ok, err)
	}

	time.Sleep(400 * time.Millisecond)
	release, ok, err := lock.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("захват после истечения TTL: ok=%v err=%v", ok, err)
	}
	release()
}

func TestRedisSweepLock_ExtendedWhileHeld_Integration(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	const key = "lifecycle:sweep:keepalive"
	const ttl = 300 * time.Millisecond

	replicaA := NewRedisSweepLock(client, key, ttl, testLogger())
	replicaB := NewRedisSweepLock(client, key, ttl, testLogger())

	releaseA, ok, err := replicaA.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("захват реплики A: ok=%v err=%v", ok, err)
	}

	// Прогон A длится дольше нескольких TTL
	time.Sleep(4 * ttl)
	if _, ok, err := replicaB.TryAcquire(ctx); err != nil || ok {
		t.Fatalf("реплика B захватила блокировку во время прогона A: ok=%v err=%v", ok, err)
	}

	releaseA()
	if n, _ := client.Exists(ctx, key).Result(); n != 0 {
		t.Fatal("блокировка не снята после release")
	}

	releaseB, ok, err := replicaB.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("захват реплики B после release: ok=%v err=%v", ok, err)
	}
	releaseB()
}
