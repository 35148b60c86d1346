// Пакет objectstore — удаление объектов медиафайлов из blob-хранилища.
// Бэкенды: S3-совместимое хранилище (minio-go) и локальный каталог.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/config"
)

// ErrInvalidPath — путь объекта пустой или выходит за пределы хранилища.
var ErrInvalidPath = errors.New("недопустимый путь объекта")

// Store — blob-хранилище медиафайлов.
type Store interface {
	// DeleteObject удаляет объект. Отсутствующий объект — не ошибка.
	DeleteObject(ctx context.Context, path string) error
	// Name — имя хранилища для логов и /health/ready.
	Name() string
	// CheckReady проверяет доступность хранилища.
	CheckReady(ctx context.Context) (status string, message string)
}

// New создаёт хранилище по конфигурации.
func New(cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.ObjectStore {
	case config.ObjectStoreS3:
		s, err := NewS3(S3Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Blob-хранилище S3",
			slog.String("endpoint", cfg.S3Endpoint),
			slog.String("bucket", cfg.S3Bucket),
		)
		return s, nil
	case config.ObjectStoreFS:
		s, err := NewFS(cfg.FSDataDir)
		if err != nil {
			return nil, err
		}
		logger.Info("Blob-хранилище в локальном каталоге", slog.String("data_dir", cfg.FSDataDir))
		return s, nil
	}
	return nil, fmt.Errorf("неизвестный бэкенд blob-хранилища: %q", cfg.ObjectStore)
}
