// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/gmatrix/gmatrix-backend/internal/config"
	"github.com/gmatrix/gmatrix-backend/internal/utils"
)

// StorageService keeps product photos in S3. Without AWS credentials it
// degrades to URL stubs so local development works without a bucket.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg.AWS.AccessKeyID == "" {
		// Local development: no S3.
		return &StorageService{config: cfg}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

// UploadProductImage stores a front or back photo under products/<side>/ and
// returns its public URL. The caller validates size and MIME type first via
// ValidatePhoto; this re-checks the magic bytes so a mislabeled payload
// cannot slip into the bucket. Keys are derived from the content hash so
// re-uploading the same photo overwrites rather than duplicates.
func (s *StorageService) UploadProductImage(photo []byte, mimeType, side string) (*UploadResult, error) {
	if err := ValidatePhoto(photo, mimeType); err != nil {
		return nil, err
	}
	if !hasImageMagicBytes(photo) {
		return nil, ErrUnsupportedImageType
	}

	key := s.generateKey(photo, mimeType, side)

	if s.s3Client == nil {
		return &UploadResult{
			URL:      fmt.Sprintf("http://localhost:8080/uploads/%s", key),
			Key:      key,
			Size:     int64(len(photo)),
			MimeType: mimeType,
		}, nil
	}

	_, err := s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(photo),
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(int64(len(photo))),
		ACL:           aws.String("public-read"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		URL:      s.publicURL(key),
		Key:      key,
		Size:     int64(len(photo)),
		MimeType: mimeType,
	}, nil
}

func (s *StorageService) DeleteImage(key string) error {
	if s.s3Client == nil {
		return nil
	}

	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image from S3: %w", err)
	}
	return nil
}

// ResolveImageURL turns a stored image URL into one the client can fetch.
// S3-backed deployments presign a short-lived GET; local development returns
// the stored URL unchanged.
func (s *StorageService) ResolveImageURL(storedURL string, expiration time.Duration) (string, error) {
	key := ImageKeyFromURL(storedURL)
	if s.s3Client == nil || key == "" {
		return storedURL, nil
	}
	return s.GeneratePresignedURL(key, expiration)
}

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

// ImageKeyFromURL recovers the storage key from any URL this service has
// handed out (local stub, raw S3, or CloudFront). Returns "" for URLs that
// do not point into the product image space.
func ImageKeyFromURL(url string) string {
	idx := strings.Index(url, "products/")
	if idx < 0 {
		return ""
	}
	return url[idx:]
}

func (s *StorageService) generateKey(photo []byte, mimeType, side string) string {
	ext := extensionForMime(mimeType)
	folder := "products/front"
	if side == "back" {
		folder = "products/back"
	}

	return filepath.Join(folder, utils.HashBytes(photo)[:16]+ext)
}

func (s *StorageService) publicURL(key string) string {
	if s.config.AWS.CloudFrontURL != "" {
		return fmt.Sprintf("%s/%s", s.config.AWS.CloudFrontURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s",
		s.config.AWS.S3Bucket, s.config.AWS.Region, key)
}

func extensionForMime(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func hasImageMagicBytes(buffer []byte) bool {
	// JPEG
	if len(buffer) >= 3 && buffer[0] == 0xFF && buffer[1] == 0xD8 && buffer[2] == 0xFF {
		return true
	}

	// PNG
	if len(buffer) >= 8 && buffer[0] == 0x89 && buffer[1] == 0x50 && buffer[2] == 0x4E && buffer[3] == 0x47 {
		return true
	}

	// WebP: RIFF....WEBP
	if len(buffer) >= 12 && string(buffer[0:4]) == "RIFF" && string(buffer[8:12]) == "WEBP" {
		return true
	}

	return false
}
