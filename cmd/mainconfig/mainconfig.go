package mainconfig

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/dental-receptionist/internal/config"
	"github.com/wolfman30/dental-receptionist/internal/notify"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

// LoadAWSConfig centralizes AWS SDK initialization so every binary shares the
// same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loaders...)
}

// NewS3Client builds an S3 client, honoring AWS_ENDPOINT_OVERRIDE with
// path-style addressing for LocalStack.
func NewS3Client(awsCfg aws.Config, cfg *appconfig.Config) *s3.Client {
	endpoint := strings.TrimSpace(cfg.AWSEndpointOverride)
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

// NewSESClient builds an SES v2 client, honoring AWS_ENDPOINT_OVERRIDE.
func NewSESClient(awsCfg aws.Config, cfg *appconfig.Config) *sesv2.Client {
	endpoint := strings.TrimSpace(cfg.AWSEndpointOverride)
	return sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// ConnectPostgres returns nil when url is empty or the database is unreachable;
// callers fall back to in-memory storage.
func ConnectPostgres(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres unreachable, using in-memory storage", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// NewRedisClient returns nil when no address is configured.
func NewRedisClient(cfg *appconfig.Config) *redis.Client {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

// NewEmailSender picks the clinic inbox sender by EMAIL_PROVIDER:
// "sendgrid", "ses", "stub", or "auto" (SendGrid when keyed, else stub).
func NewEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, error) {
	sendgridSender := func() notify.EmailSender {
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			return s
		}
		return nil
	}

	switch cfg.EmailProvider {
	case "sendgrid":
		if s := sendgridSender(); s != nil {
			return s, nil
		}
		return nil, fmt.Errorf("mainconfig: EMAIL_PROVIDER=sendgrid requires SENDGRID_API_KEY")
	case "ses":
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("mainconfig: load aws config: %w", err)
		}
		return notify.NewSESSender(NewSESClient(awsCfg, cfg), notify.SESConfig{
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger), nil
	case "stub":
		return notify.NewStubEmailSender(logger), nil
	default:
		if s := sendgridSender(); s != nil {
			return s, nil
		}
		return notify.NewStubEmailSender(logger), nil
	}
}

// NewSMSSender returns the Telnyx sender when configured, otherwise a stub.
func NewSMSSender(cfg *appconfig.Config, logger *logging.Logger) notify.SMSSender {
	if s := notify.NewTelnyxSMSSender(notify.TelnyxConfig{
		APIKey:             cfg.TelnyxAPIKey,
		MessagingProfileID: cfg.TelnyxMessagingProfileID,
		FromNumber:         cfg.SMSFromNumber,
	}, logger); s != nil {
		return s
	}
	return notify.NewStubSMSSender(logger)
}
