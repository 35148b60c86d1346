package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSStore — бэкенд на локальном каталоге (dev-окружение, NFS-тома).
type FSStore struct {
	// dataDir — корневая директория объектов
	dataDir string
}

// NewFS создаёт FSStore. Каталог создаётся, если не существует.
func NewFS(dataDir string) (*FSStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}
	return &FSStore{dataDir: dataDir}, nil
}

// DeleteObject удаляет файл. Возвращает nil, если файла уже нет.
func (s *FSStore) DeleteObject(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := s.fullPath(path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", path, err)
	}
	return nil
}

// Name возвращает имя проверки.
func (s *FSStore) Name() string { return "filesystem" }

// CheckReady проверяет, что каталог данных доступен.
func (s *FSStore) CheckReady(_ context.Context) (string, string) {
	info, err := os.Stat(s.dataDir)
	if err != nil {
		return "fail", fmt.Sprintf("каталог данных недоступен: %v", err)
	}
	if !info.IsDir() {
		return "fail", fmt.Sprintf("%s не является каталогом", s.dataDir)
	}
	return "ok", "каталог данных доступен"
}

// fullPath возвращает абсолютный путь объекта внутри dataDir.
func (s *FSStore) fullPath(path string) (string, error) {
	if path == "" {
		return "", ErrInvalidPath
	}
	clean := filepath.Clean("/" + path)
	full := filepath.Join(s.dataDir, clean)
	root := filepath.Clean(s.dataDir) + string(filepath.Separator)
	if !strings.HasPrefix(full, root) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	return full, nil
}
