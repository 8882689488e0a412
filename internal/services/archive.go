package services

import (
	"bytes"
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/msavelyev-dev/teamcoach/internal/config"
)

// Seams for tests.
var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
	newS3PresignClient    = s3.NewPresignClient
	s3PutObject           = func(ctx context.Context, client *s3.Client, input *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return client.PutObject(ctx, input)
	}
	s3PresignGetObject = func(ctx context.Context, client *s3.PresignClient, input *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return client.PresignGetObject(ctx, input, optFns...)
	}
)

// S3Archiver copies backup payloads to an S3-compatible backend (MinIO in
// development). It satisfies the Archiver interface of HistoryService.
type S3Archiver struct {
	config *config.Config
}

func NewS3Archiver(cfg *config.Config) *S3Archiver {
	return &S3Archiver{config: cfg}
}

func (a *S3Archiver) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(a.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			a.config.S3RootUser,
			a.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(a.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})
	return client, nil
}

// Upload writes body to the configured bucket under key and returns the key.
func (a *S3Archiver) Upload(ctx context.Context, key string, body []byte) (string, error) {
	client, err := a.getClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := a.config.S3Bucket
	contentType := "application/json"

	_, err = s3PutObject(ctx, client, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// GetPresignedGetUrl returns a time-limited download URL for an archived
// backup, so large payloads never stream through this process.
func (a *S3Archiver) GetPresignedGetUrl(ctx context.Context, key string) (string, error) {
	client, err := a.getClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := a.config.S3Bucket
	req, err := s3PresignGetObject(ctx, newS3PresignClient(client), &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
