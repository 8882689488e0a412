package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/msavelyev-dev/teamcoach/internal/config"
)

func newArchiverForTest() *S3Archiver {
	return NewS3Archiver(&config.Config{
		S3RootUser:     "admin",
		S3RootPassword: "secretpassword",
		S3Bucket:       "backups",
		S3Region:       "us-east-1",
		S3BaseEndpoint: "http://127.0.0.1:9000",
	})
}

func TestS3Archiver_Upload(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	origPut := s3PutObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		s3PutObject = origPut
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		return aws.Config{}, nil
	}

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://127.0.0.1:9000" {
			t.Fatalf("base endpoint not applied: %v", opts.BaseEndpoint)
		}
		if !opts.UsePathStyle {
			t.Fatalf("path style addressing required for MinIO")
		}
		return &s3.Client{}
	}

	var gotKey, gotBucket string
	var gotBody []byte
	s3PutObject = func(ctx context.Context, client *s3.Client, input *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		gotBucket = aws.ToString(input.Bucket)
		gotKey = aws.ToString(input.Key)
		body, err := io.ReadAll(input.Body)
		if err != nil {
			t.Fatalf("reading body: %v", err)
		}
		gotBody = body
		return &s3.PutObjectOutput{}, nil
	}

	key, err := newArchiverForTest().Upload(context.Background(), "backups/acc-1/b-1.json", []byte(`{}`))
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if key != "backups/acc-1/b-1.json" || gotKey != key {
		t.Fatalf("key mismatch: %q vs %q", key, gotKey)
	}
	if gotBucket != "backups" || string(gotBody) != `{}` {
		t.Fatalf("unexpected put: bucket=%q body=%q", gotBucket, gotBody)
	}
}

func TestS3Archiver_UploadConfigError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	wantErr := errors.New("no credentials")
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, wantErr
	}

	if _, err := newArchiverForTest().Upload(context.Background(), "k", nil); !errors.Is(err, wantErr) {
		t.Fatalf("want config error, got %v", err)
	}
}

func TestS3Archiver_GetPresignedGetUrl(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	origPresignClient := newS3PresignClient
	origPresign := s3PresignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		newS3PresignClient = origPresignClient
		s3PresignGetObject = origPresign
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return &s3.Client{}
	}

	presignClientBuilt := false
	newS3PresignClient = func(c *s3.Client, optFns ...func(*s3.PresignOptions)) *s3.PresignClient {
		if c == nil {
			t.Fatalf("nil client passed to presign")
		}
		presignClientBuilt = true
		return &s3.PresignClient{}
	}

	var gotBucket, gotKey string
	s3PresignGetObject = func(ctx context.Context, client *s3.PresignClient, input *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		gotBucket = aws.ToString(input.Bucket)
		gotKey = aws.ToString(input.Key)
		return &v4.PresignedHTTPRequest{URL: "http://127.0.0.1:9000/backups/b-1.json?sig=abc"}, nil
	}

	url, err := newArchiverForTest().GetPresignedGetUrl(context.Background(), "backups/acc-1/b-1.json")
	if err != nil {
		t.Fatalf("GetPresignedGetUrl error: %v", err)
	}
	if !presignClientBuilt {
		t.Fatalf("presign client never constructed")
	}
	if gotBucket != "backups" || gotKey != "backups/acc-1/b-1.json" {
		t.Fatalf("unexpected presign input: bucket=%q key=%q", gotBucket, gotKey)
	}
	if url != "http://127.0.0.1:9000/backups/b-1.json?sig=abc" {
		t.Fatalf("unexpected url: %q", url)
	}
}

func TestS3Archiver_GetPresignedGetUrlError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	origPresignClient := newS3PresignClient
	origPresign := s3PresignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		newS3PresignClient = origPresignClient
		s3PresignGetObject = origPresign
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client, optFns ...func(*s3.PresignOptions)) *s3.PresignClient {
		return &s3.PresignClient{}
	}

	wantErr := errors.New("presign failed")
	s3PresignGetObject = func(ctx context.Context, client *s3.PresignClient, input *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, wantErr
	}

	if _, err := newArchiverForTest().GetPresignedGetUrl(context.Background(), "k"); !errors.Is(err, wantErr) {
		t.Fatalf("want presign error, got %v", err)
	}
}

func TestS3Archiver_UploadPutError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	origPut := s3PutObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		s3PutObject = origPut
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return &s3.Client{}
	}

	wantErr := errors.New("bucket unreachable")
	s3PutObject = func(ctx context.Context, client *s3.Client, input *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return nil, wantErr
	}

	if _, err := newArchiverForTest().Upload(context.Background(), "k", []byte("x")); !errors.Is(err, wantErr) {
		t.Fatalf("want put error, got %v", err)
	}
}
