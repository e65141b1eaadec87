package attachment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the minimal S3 interface required by S3Uploader.
// *s3.Client from aws-sdk-go-v2 satisfies this interface.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// presignAPI is satisfied by *s3.PresignClient.
type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config configures photo uploads to S3.
type S3Config struct {
	Bucket        string
	Region        string
	Prefix        string
	PublicBaseURL string
	PresignExpiry time.Duration
}

// S3Uploader stores photos in an S3 bucket. It returns a public URL when
// PublicBaseURL is set and a presigned GET URL otherwise.
type S3Uploader struct {
	api       s3API
	presigner presignAPI
	cfg       S3Config
}

// NewS3Uploader loads the default AWS config and creates an uploader.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return newS3Uploader(client, s3.NewPresignClient(client), cfg)
}

func newS3Uploader(api s3API, presigner presignAPI, cfg S3Config) (*S3Uploader, error) {
	if api == nil {
		return nil, errors.New("s3: api must not be nil")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 7 * 24 * time.Hour
	}
	return &S3Uploader{api: api, presigner: presigner, cfg: cfg}, nil
}

// Upload puts the file at localPath under the configured prefix.
func (u *S3Uploader) Upload(ctx context.Context, key, localPath, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("s3: open %s: %w", localPath, err)
	}
	defer f.Close()

	objectKey := key
	if u.cfg.Prefix != "" {
		objectKey = path.Join(u.cfg.Prefix, key)
	}

	_, err = u.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(objectKey),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3: put object %q: %w", objectKey, err)
	}

	if u.cfg.PublicBaseURL != "" {
		return strings.TrimRight(u.cfg.PublicBaseURL, "/") + "/" + objectKey, nil
	}
	if u.presigner == nil {
		return "", errors.New("s3: no presigner and no public base URL")
	}
	req, err := u.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(u.cfg.PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("s3: presign %q: %w", objectKey, err)
	}
	return req.URL, nil
}
