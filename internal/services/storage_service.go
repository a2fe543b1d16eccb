// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/escrow-ledger/internal/config"
)

// ObjectStore persists export artifacts.
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) (*StoredObject, error)
}

type StoredObject struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// StorageService writes to S3 when credentials are configured and to a local
// directory otherwise.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

func NewStorageService(config *config.Config) (*StorageService, error) {
	if config.AWS.AccessKeyID == "" {
		return &StorageService{config: config}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AWS.AccessKeyID,
			config.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   config,
	}, nil
}

func (s *StorageService) PutObject(ctx context.Context, key, contentType string, body []byte) (*StoredObject, error) {
	if s.s3Client != nil {
		return s.putS3(ctx, key, contentType, body)
	}
	return s.putLocal(key, contentType, body)
}

func (s *StorageService) putS3(ctx context.Context, key, contentType string, body []byte) (*StoredObject, error) {
	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &StoredObject{
		Key:      key,
		Location: fmt.Sprintf("s3://%s/%s", s.config.AWS.S3Bucket, key),
		Size:     int64(len(body)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) putLocal(key, contentType string, body []byte) (*StoredObject, error) {
	path := filepath.Join(s.config.Storage.LocalPath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0o640); err != nil {
		return nil, fmt.Errorf("failed to write export: %w", err)
	}

	logrus.WithField("path", path).Debug("Stored object on local disk")

	return &StoredObject{
		Key:      key,
		Location: path,
		Size:     int64(len(body)),
		MimeType: contentType,
	}, nil
}

// GeneratePresignedURL is only available when S3 is configured.
func (s *StorageService) GeneratePresignedURL(key string, expiration time.Duration) (string, error) {
	if s.s3Client == nil {
		return "", fmt.Errorf("S3 client not configured")
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url, nil
}
