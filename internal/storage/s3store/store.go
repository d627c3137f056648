// Пакет s3store — хранилище содержимого в S3-совместимом объектном хранилище.
// Объект задания хранится по ключу {prefix}{sha256(job_id)}.zip.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/bigkaa/simple-storage/internal/storage/blob"
)

// Config — параметры подключения к S3.
type Config struct {
	// Bucket — имя бакета (обязательный)
	Bucket string
	// Region — регион AWS (по умолчанию us-east-1)
	Region string
	// Endpoint — URL S3-совместимого endpoint (пусто — AWS по региону)
	Endpoint string
	// AccessKeyID и SecretAccessKey — статические ключи (пусто — цепочка по умолчанию)
	AccessKeyID     string
	SecretAccessKey string
	// UsePathStyle — адресация http://endpoint/bucket/key (MinIO и аналоги)
	UsePathStyle bool
	// Prefix — префикс ключей объектов внутри бакета
	Prefix string
}

// Store — хранилище содержимого в S3.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ blob.Store = (*Store)(nil)

// New создаёт клиент S3 по конфигурации.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: не задано имя бакета")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: ошибка загрузки конфигурации AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Контрольные суммы только там, где их требует API:
		// S3-совместимые хранилища не всегда поддерживают trailing checksum.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		o.DisableLogOutputChecksumValidationSkipped = true
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Bucket возвращает имя бакета.
func (s *Store) Bucket() string {
	return s.bucket
}

// Locate возвращает ключ объекта задания в бакете.
func (s *Store) Locate(key string) string {
	return s.prefix + blob.ObjectName(key) + ".zip"
}

// Put записывает содержимое в S3.
// Поток буферизуется во временный файл: PutObject требует известной длины.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) (*blob.Info, error) {
	if err := blob.ValidateKey(key); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "simple-storage-s3-*")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return nil, fmt.Errorf("ошибка буферизации данных: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("ошибка перемотки временного файла: %w", err)
	}

	objectKey := s.Locate(key)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          tmp,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/zip"),
	})
	if err != nil {
		return nil, s.wrapError("Put", objectKey, err)
	}

	return &blob.Info{Locator: objectKey, Size: size}, nil
}

// Open открывает объект на чтение.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := blob.ValidateKey(key); err != nil {
		return nil, err
	}

	objectKey := s.Locate(key)
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, s.wrapError("Open", objectKey, err)
	}

	return output.Body, nil
}

// Exists проверяет наличие объекта через HeadObject.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := blob.ValidateKey(key); err != nil {
		return false, err
	}

	objectKey := s.Locate(key)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		wrapped := s.wrapError("Exists", objectKey, err)
		if errors.Is(wrapped, blob.ErrNotFound) {
			return false, nil
		}
		return false, wrapped
	}
	return true, nil
}

// Delete удаляет объект. DeleteObject в S3 идемпотентен,
// поэтому наличие проверяется отдельным HeadObject.
func (s *Store) Delete(ctx context.Context, key string) error {
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return err
	}

	objectKey := s.Locate(key)
	if !exists {
		return &blob.ObjectError{Op: "Delete", Key: objectKey, Err: blob.ErrNotFound}
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return s.wrapError("Delete", objectKey, err)
	}
	return nil
}

// wrapError приводит ошибки SDK к ошибкам пакета blob.
func (s *Store) wrapError(op, key string, err error) error {
	if err == nil {
		return nil
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return &blob.ObjectError{Op: op, Key: key, Err: blob.ErrNotFound}
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return &blob.ObjectError{Op: op, Key: key, Err: blob.ErrNotFound}
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return &blob.ObjectError{Op: op, Key: key, Err: blob.ErrNotFound}
	}

	return &blob.ObjectError{Op: op, Key: key, Err: err}
}
