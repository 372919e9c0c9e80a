package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	// MaxCoverSize is the maximum accepted cover image size (5MB).
	MaxCoverSize = 5 * 1024 * 1024
	// FolderCovers is the S3 prefix for demo-class cover images.
	FolderCovers = "demo-classes"
	// sniffLen is how many leading bytes are inspected to detect the content type.
	sniffLen = 3072
)

// ErrUnsupportedType is returned when an upload is not an allowed image.
var ErrUnsupportedType = errors.New("unsupported image type")

// AllowedImageTypes maps accepted MIME types to the extension used in object keys.
var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Bucket               string
	PresignExpireMinutes int
}

// S3 uploads and removes media objects in a single bucket.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config, falling back to AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY
// and then the default chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey, secretKey := cfg.AccessKeyID, cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("bucket", cfg.Bucket))
	} else {
		logger.Warn("S3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3{
		client:   client,
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// DetectImage sniffs the leading bytes of r and returns the detected MIME type, its key extension
// and a reader that still yields the full content.
func DetectImage(r io.Reader) (contentType, ext string, body io.Reader, err error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", "", nil, fmt.Errorf("read head: %w", err)
	}
	head = head[:n]
	mt := mimetype.Detect(head)
	for m := mt; m != nil; m = m.Parent() {
		if e, ok := AllowedImageTypes[m.String()]; ok {
			return m.String(), e, io.MultiReader(bytes.NewReader(head), r), nil
		}
	}
	return "", "", nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
}

// CoverKey returns the object key for a demo-class cover: demo-classes/{id}/cover-{unix}{ext}.
func CoverKey(demoClassID string, ext string, at time.Time) string {
	return path.Join(FolderCovers, demoClassID, fmt.Sprintf("cover-%d%s", at.Unix(), ext))
}

// Bucket returns the media bucket name.
func (s *S3) Bucket() string { return s.cfg.Bucket }

// PublicURL returns the unsigned URL of key in the media bucket.
func (s *S3) PublicURL(key string) string {
	if key == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

// Upload streams body to key in the media bucket and returns its public URL.
func (s *S3) Upload(ctx context.Context, key, contentType string, body io.Reader, publicRead bool) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if publicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	s.logger.Debug("object uploaded", zap.String("bucket", s.cfg.Bucket), zap.String("key", key))
	return s.PublicURL(key), nil
}

// Delete removes key from the media bucket.
func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// PresignGet returns a pre-signed GET URL for key.
func (s *S3) PresignGet(ctx context.Context, key string) (string, error) {
	expires := 15 * time.Minute
	if s.cfg.PresignExpireMinutes > 0 {
		expires = time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
	}
	req, err := s3.NewPresignClient(s.client).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}
