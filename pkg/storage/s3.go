package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// FolderInvites is the S3 prefix for event iCal invites.
const FolderInvites = "invites"

// Accepted invite MIME types and extensions.
var (
	allowedInviteTypes = map[string]struct{}{
		"text/calendar": {},
	}
	allowedInviteExtensions = map[string]struct{}{
		".ics":  {},
		".ical": {},
	}
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	InvitesBucket        string
	PresignExpireMinutes int
}

// S3 stores event invite files and issues pre-signed download URLs.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using static credentials from config/.env, or
// the default provider chain when none are set.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
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
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
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

// ValidateInviteFile reports whether the content type and/or extension are
// acceptable for an iCal invite upload. Browsers often send
// application/octet-stream for .ics files, so the extension check comes first.
func ValidateInviteFile(contentType, filename string) bool {
	if _, ok := allowedInviteExtensions[strings.ToLower(path.Ext(filename))]; ok {
		return true
	}
	// Strip parameters like "; charset=utf-8".
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	_, ok := allowedInviteTypes[strings.TrimSpace(strings.ToLower(contentType))]
	return ok
}

// InviteKey returns the S3 object key for an event's invite.
func InviteKey(eventID string) string {
	return path.Join(FolderInvites, eventID+".ics")
}

// UploadInvite streams an iCal file to the invites bucket and returns its key.
func (s *S3) UploadInvite(ctx context.Context, eventID string, body io.Reader) (string, error) {
	key := InviteKey(eventID)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.InvitesBucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("text/calendar"),
	})
	if err != nil {
		return "", fmt.Errorf("upload invite: %w", err)
	}
	s.logger.Info("invite uploaded", zap.String("key", key))
	return key, nil
}

// PresignInviteDownload returns a pre-signed GET URL for an invite object.
func (s *S3) PresignInviteDownload(ctx context.Context, key string) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.InvitesBucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.presignExpire()
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// DeleteInvite removes an invite object.
func (s *S3) DeleteInvite(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.InvitesBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	return nil
}

func (s *S3) presignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}
