package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const stagingPrefix = ".staging/"

// S3Config — параметры подключения к S3-совместимому хранилищу.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// S3 публикует объекты в S3-совместимый бакет через minio-go.
// Staging-объекты лежат под префиксом .staging/, коммит — серверный
// CopyObject на конечный ключ плюс удаление staging-ключа.
type S3 struct {
	cli    *minio.Client
	bucket string
}

// NewS3 создаёт клиент и проверяет, что бакет существует.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	ok, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !ok {
		return nil, fmt.Errorf("bucket %s does not exist", cfg.Bucket)
	}

	return &S3{cli: cli, bucket: cfg.Bucket}, nil
}

var _ Store = (*S3)(nil)

// stagedWriter гонит поток в PutObject через io.Pipe; Close дожидается
// окончания загрузки и возвращает её ошибку.
type stagedWriter struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *stagedWriter) Write(p []byte) (int, error) { return w.pw.Write(p) }

func (w *stagedWriter) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}

// StageWrite начинает потоковую загрузку staging-объекта.
func (s *S3) StageWrite(ctx context.Context, tempID string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	done := make(chan error, 1)

	go func() {
		// Размер неизвестен заранее — minio сам поведёт multipart-загрузку.
		_, err := s.cli.PutObject(ctx, s.bucket, stagingPrefix+tempID, pr, -1,
			minio.PutObjectOptions{ContentType: "application/octet-stream"})
		if err != nil {
			_ = pr.CloseWithError(err)
		}
		done <- err
	}()

	return &stagedWriter{pw: pw, done: done}, nil
}

// CommitStaged копирует staging-объект на конечный ключ и удаляет исходник.
func (s *S3) CommitStaged(ctx context.Context, tempID, finalID string) error {
	src := minio.CopySrcOptions{Bucket: s.bucket, Object: stagingPrefix + tempID}
	dst := minio.CopyDestOptions{Bucket: s.bucket, Object: finalID}

	if _, err := s.cli.CopyObject(ctx, dst, src); err != nil {
		return fmt.Errorf("commit staged object: %w", err)
	}

	if err := s.cli.RemoveObject(ctx, s.bucket, stagingPrefix+tempID, minio.RemoveObjectOptions{}); err != nil {
		// Объект уже опубликован; осиротевший staging-ключ подберёт
		// lifecycle-политика бакета.
		return nil
	}

	return nil
}

// DiscardStaged удаляет staging-объект.
func (s *S3) DiscardStaged(ctx context.Context, tempID string) error {
	if err := s.cli.RemoveObject(ctx, s.bucket, stagingPrefix+tempID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("discard staged object: %w", err)
	}
	return nil
}
