package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"campusconnect/internal/cctypes"
	"campusconnect/internal/config"
)

// S3StorageService implements cctypes.StorageService on an S3 bucket.
type S3StorageService struct {
	client     *s3.Client
	bucketName string
	baseURL    string
}

// NewS3StorageService creates an S3-backed storage service.
// Credentials come from the default AWS credential chain.
func NewS3StorageService(ctx context.Context, cfg config.S3Config) (cctypes.StorageService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.BucketName, cfg.Region)
	}
	return &S3StorageService{
		client:     s3.NewFromConfig(awsCfg),
		bucketName: cfg.BucketName,
		baseURL:    baseURL,
	}, nil
}

// UploadFile stores the object under a fresh uuid key, keeping the
// original extension.
func (s *S3StorageService) UploadFile(ctx context.Context, reader io.Reader, fileSize int64, fileName string, mimeType string) (*cctypes.FileInfo, error) {
	ext := filepath.Ext(fileName)
	if ext == "" {
		extensions, _ := mime.ExtensionsByType(mimeType)
		if len(extensions) > 0 {
			ext = extensions[0]
		}
	}
	key := "uploads/" + uuid.New().String() + ext

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          reader,
		ContentLength: aws.Int64(fileSize),
		ContentType:   aws.String(mimeType),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading to S3 bucket '%s': %w", s.bucketName, err)
	}

	fileURL := strings.TrimSuffix(s.baseURL, "/") + "/" + key

	return &cctypes.FileInfo{
		URL:      fileURL,
		Path:     key,
		Size:     fileSize,
		MimeType: mimeType,
		FileName: fileName,
	}, nil
}
