// Package storage talks to the S3-compatible object store (Cloudflare R2,
// MinIO) that holds uploaded file contents.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/cloudra/internal/common"
	sc "github.com/dmitrijs2005/cloudra/internal/server/config"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
		return c.DeleteObject(ctx, in, optFns...)
	}
)

// S3Storage issues presigned URLs and deletes objects in one bucket.
type S3Storage struct {
	config *sc.Config
	now    func() time.Time
}

func NewS3Storage(config *sc.Config) *S3Storage {
	return &S3Storage{config: config, now: time.Now}
}

func (s *S3Storage) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3AccessKeyID,
			s.config.S3SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		}
		o.UsePathStyle = true
	}), nil
}

func (s *S3Storage) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}
	return newS3PresignClient(client), nil
}

// IssueUploadSignature presigns a PUT for a fresh key under namespace.
func (s *S3Storage) IssueUploadSignature(ctx context.Context, namespace string) (*models.UploadSignature, error) {
	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorExternalService, err)
	}

	bucket := s.config.S3Bucket
	key := fmt.Sprintf("%s/%s", strings.Trim(namespace, "/"), uuid.NewString())
	validity := s.config.UploadURLValidityDuration
	now := s.now()

	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(validity))
	if err != nil {
		return nil, fmt.Errorf("%w: presign put: %v", common.ErrorExternalService, err)
	}

	sig := &models.UploadSignature{
		ObjectKey: key,
		UploadURL: req.URL,
		Method:    req.Method,
		PublicURL: s.PublicURL(key),
		Timestamp: now.Unix(),
		ExpiresAt: now.Add(validity),
	}
	if u, err := url.Parse(req.URL); err == nil {
		q := u.Query()
		sig.Signature = q.Get("X-Amz-Signature")
		sig.Credential = q.Get("X-Amz-Credential")
	}
	return sig, nil
}

// PresignGet returns a time-limited download URL for key.
func (s *S3Storage) PresignGet(ctx context.Context, key string) (string, error) {
	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorExternalService, err)
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.UploadURLValidityDuration))
	if err != nil {
		return "", fmt.Errorf("%w: presign get: %v", common.ErrorExternalService, err)
	}
	return req.URL, nil
}

// DeleteObject removes key. An object that is already gone counts as
// deleted.
func (s *S3Storage) DeleteObject(ctx context.Context, key string) error {
	client, err := s.getClient(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorExternalService, err)
	}

	bucket := s.config.S3Bucket
	if _, err := deleteObject(client, ctx, &s3.DeleteObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}); err != nil {
		if isMissingObject(err) {
			return nil
		}
		return fmt.Errorf("%w: delete %s: %v", common.ErrorExternalService, key, err)
	}
	return nil
}

func isMissingObject(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// PublicURL is where key can be fetched without signing. Without a
// configured public base it falls back to a path-style endpoint URL.
func (s *S3Storage) PublicURL(key string) string {
	if base := strings.TrimRight(s.config.S3PublicBaseURL, "/"); base != "" {
		return base + "/" + key
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.config.S3BaseEndpoint, "/"), s.config.S3Bucket, key)
}
