package chunkstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/sir_venger/chunkload/internal/models"
)

// S3API — подмножество клиента S3, которым пользуется хранилище.
type S3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// ArtifactUploader загружает поток неизвестной длины (multipart при необходимости).
type ArtifactUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Store хранит части как объекты uploads/<session>/chunk-N.bin в бакете.
type S3Store struct {
	client   S3API
	uploader ArtifactUploader
	bucket   string
	prefix   string

	logger *zap.Logger
}

var _ Store = (*S3Store)(nil)

// NewS3Store создаёт хранилище поверх клиента S3.
func NewS3Store(client *s3.Client, bucket, prefix string, logger *zap.Logger) *S3Store {
	return newS3Store(client, manager.NewUploader(client), bucket, prefix, logger)
}

func newS3Store(client S3API, uploader ArtifactUploader, bucket, prefix string, logger *zap.Logger) *S3Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Store{
		client:   client,
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		logger:   logger,
	}
}

func (s *S3Store) sessionPrefix(sessionID string) (string, error) {
	if err := checkSessionID(sessionID); err != nil {
		return "", err
	}
	return s.prefix + "uploads/" + sessionID + "/", nil
}

// ListChunks постранично читает префикс сессии. S3 отдаёт ключи в лексикографическом порядке.
func (s *S3Store) ListChunks(ctx context.Context, sessionID string) ([]Key, error) {
	prefix, err := s.sessionPrefix(sessionID)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("listing chunks", zap.String("prefix", prefix))

	var keys []Key
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if !isChunkName(name) {
				continue
			}
			keys = append(keys, Key{Name: name, Size: aws.ToInt64(obj.Size)})
		}
	}

	return keys, nil
}

func (s *S3Store) ReadChunk(ctx context.Context, sessionID string, index int) (io.ReadCloser, error) {
	prefix, err := s.sessionPrefix(sessionID)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, prefix+models.ChunkName(index))
}

// WriteChunk читает часть целиком: её размер ограничен потолком запроса,
// а PutObject нужен поток с известной длиной.
func (s *S3Store) WriteChunk(ctx context.Context, sessionID string, index int, r io.Reader) (int64, error) {
	if index < 0 {
		return 0, fmt.Errorf("%w: negative index %d", models.ErrInvalidChunk, index)
	}
	prefix, err := s.sessionPrefix(sessionID)
	if err != nil {
		return 0, err
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	key := prefix + models.ChunkName(index)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(b),
		ContentLength: aws.Int64(int64(len(b))),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to put chunk %s: %w", key, err)
	}

	return int64(len(b)), nil
}

func (s *S3Store) WriteArtifact(ctx context.Context, sessionID string, r io.Reader) (int64, error) {
	prefix, err := s.sessionPrefix(sessionID)
	if err != nil {
		return 0, err
	}

	key := prefix + models.ArtifactName
	body := &countingReader{r: r}
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload artifact %s: %w", key, err)
	}

	s.logger.Info("artifact stored", zap.String("key", key), zap.Int64("size", body.n))
	return body.n, nil
}

func (s *S3Store) OpenArtifact(ctx context.Context, sessionID string) (io.ReadCloser, error) {
	prefix, err := s.sessionPrefix(sessionID)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, prefix+models.ArtifactName)
}

func (s *S3Store) DeleteSession(ctx context.Context, sessionID string) error {
	prefix, err := s.sessionPrefix(sessionID)
	if err != nil {
		return err
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	totalDeleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects for deletion: %w", err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}

		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects: %w", err)
		}
		totalDeleted += len(objects)
	}

	s.logger.Info("session objects deleted", zap.String("prefix", prefix), zap.Int("total_deleted", totalDeleted))
	return nil
}

func (s *S3Store) Ready(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func (s *S3Store) get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return out.Body, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
