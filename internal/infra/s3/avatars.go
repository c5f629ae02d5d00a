package s3

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// DefaultPresignTTL is how long a presigned avatar URL stays valid.
const DefaultPresignTTL = 15 * time.Minute

// Config holds the avatar bucket settings.
type Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the S3 endpoint (MinIO, localstack).
	Endpoint string
	// BaseURL serves avatars from a public location instead of presigning.
	BaseURL    string
	PresignTTL time.Duration
}

// Avatars turns profile avatar keys into URLs a browser can load.
type Avatars struct {
	presign *s3.PresignClient
	cfg     Config
}

// NewAvatars builds the resolver. Credentials come from the config or from
// AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY, falling back to the default chain.
func NewAvatars(ctx context.Context, cfg Config, log zerolog.Logger) (*Avatars, error) {
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = DefaultPresignTTL
	}
	if cfg.BaseURL != "" {
		return &Avatars{cfg: cfg}, nil
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("avatars: bucket or base_url required")
	}

	accessKey, secretKey := cfg.AccessKeyID, cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	} else {
		log.Warn().Msg("avatar presigner using default AWS credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	log.Info().Str("bucket", cfg.Bucket).Str("region", cfg.Region).Msg("avatar presigner ready")
	return &Avatars{presign: s3.NewPresignClient(client), cfg: cfg}, nil
}

// AvatarURL implements app.AvatarResolver.
func (a *Avatars) AvatarURL(ctx context.Context, key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if a.cfg.BaseURL != "" {
		return strings.TrimSuffix(a.cfg.BaseURL, "/") + "/" + key, nil
	}
	req, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = a.cfg.PresignTTL
	})
	if err != nil {
		return "", fmt.Errorf("presign avatar %s: %w", key, err)
	}
	return req.URL, nil
}
