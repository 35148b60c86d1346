package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options — параметры подключения к S3-совместимому хранилищу.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// S3Store — бэкенд на minio-go.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3 создаёт клиента S3. Сетевых запросов не выполняет.
func NewS3(opts S3Options) (*S3Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента S3: %w", err)
	}
	return &S3Store{client: client, bucket: opts.Bucket}, nil
}

// DeleteObject удаляет объект из бакета. NoSuchKey считается успехом.
func (s *S3Store) DeleteObject(ctx context.Context, path string) error {
	key := strings.TrimPrefix(path, "/")
	if key == "" {
		return ErrInvalidPath
	}

	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || (resp.StatusCode == http.StatusNotFound && resp.Code != "NoSuchBucket") {
			return nil
		}
		return fmt.Errorf("ошибка удаления объекта %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Name возвращает имя проверки.
func (s *S3Store) Name() string { return "s3" }

// CheckReady проверяет существование бакета.
func (s *S3Store) CheckReady(ctx context.Context) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return "fail", fmt.Sprintf("S3 недоступен: %v", err)
	}
	if !ok {
		return "fail", fmt.Sprintf("бакет %s не найден", s.bucket)
	}
	return "ok", "бакет доступен"
}

// EndpointURL возвращает URL endpoint для проверки зависимости.
func (s *S3Store) EndpointURL() string {
	return s.client.EndpointURL().String()
}
