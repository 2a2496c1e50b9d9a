package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/framedrop/framedrop/pkg/config"
)

// S3Storage implements ObjectStore and MultipartStore against an
// S3-compatible API (AWS S3, MinIO, DigitalOcean Spaces)
type S3Storage struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
}

// NewS3Storage creates an S3 storage backend from configuration
func NewS3Storage(cfg *config.StorageConfig) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing is required by most S3-compatible services
		o.UsePathStyle = true
	})

	log.Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.Bucket).Msg("s3 storage initialized")

	return &S3Storage{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
	}, nil
}

// Kind identifies the backend
func (s *S3Storage) Kind() string { return "s3" }

// GenerateKey derives the canonical destination for an upload
func (s *S3Storage) GenerateKey(clientCode, projectName, filename string) string {
	return GenerateKey(clientCode, projectName, filename)
}

// Exists checks for an object at key via a head request
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %s: %w", key, err)
	}
	return true, nil
}

// Move re-keys an object via copy+delete. A source that no longer exists was
// already relocated by a prior attempt and is treated as success.
func (s *S3Storage) Move(ctx context.Context, src, dst string) error {
	exists, err := s.Exists(ctx, src)
	if err != nil {
		return err
	}
	if !exists {
		log.Debug().Str("src", src).Str("dst", dst).Msg("source object already relocated")
		return nil
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + url.PathEscape(src)),
		Key:        aws.String(dst),
	})
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(src),
	}); err != nil {
		// The copy landed; an undeleted source is recoverable garbage
		log.Warn().Err(err).Str("src", src).Msg("failed to delete source after copy")
	}

	log.Info().Str("src", src).Str("dst", dst).Msg("object relocated")
	return nil
}

// ReadAll returns the full content at key
func (s *S3Storage) ReadAll(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// Store writes content at key
func (s *S3Storage) Store(ctx context.Context, key string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return fmt.Errorf("failed to read content for %s: %w", key, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// Delete removes the object at key; S3 deletes are idempotent
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// CreateMultipart starts a multipart upload and returns its upload id
func (s *S3Storage) CreateMultipart(ctx context.Context, key, contentType string) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	out, err := s.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart upload for %s: %w", key, err)
	}
	return aws.ToString(out.UploadId), nil
}

// PresignPart returns a presigned URL for uploading one part directly
func (s *S3Storage) PresignPart(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (string, error) {
	req, err := s.presignClient.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign part %d for %s: %w", partNumber, key, err)
	}
	return req.URL, nil
}

// CompleteMultipart commits the upload from the given parts, sorted by part
// number before the commit as the API requires
func (s *S3Storage) CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) error {
	sorted := make([]CompletedPart, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	completed := make([]s3types.CompletedPart, len(sorted))
	for i, p := range sorted {
		completed[i] = s3types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		}
	}

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return fmt.Errorf("failed to complete multipart upload for %s: %w", key, err)
	}

	log.Info().Str("key", key).Int("parts", len(completed)).Msg("multipart upload completed")
	return nil
}

// AbortMultipart releases server-side resources for a cancelled upload
func (s *S3Storage) AbortMultipart(ctx context.Context, key, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return fmt.Errorf("failed to abort multipart upload for %s: %w", key, err)
	}
	return nil
}
