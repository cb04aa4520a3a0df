package storage

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/cloudra/internal/common"
	sc "github.com/dmitrijs2005/cloudra/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage() *S3Storage {
	s := NewS3Storage(&sc.Config{
		S3Region:                  "auto",
		S3AccessKeyID:             "minioadmin",
		S3SecretAccessKey:         "minioadmin",
		S3BaseEndpoint:            "http://127.0.0.1:9000/",
		S3Bucket:                  "cloudra",
		UploadURLValidityDuration: 15 * time.Minute,
	})
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

// stubAWS replaces the client constructors and restores them on cleanup.
func stubAWS(t *testing.T) *string {
	t.Helper()
	origLoad, origNewS3, origNewPre := loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient
	origPut, origGet, origDel := presignPutObject, presignGetObject, deleteObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject, presignGetObject, deleteObject = origPut, origGet, origDel
	})

	var endpoint string
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "auto" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint != nil {
			endpoint = *opts.BaseEndpoint
		}
		if !opts.UsePathStyle {
			t.Fatalf("path style addressing not enabled")
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient { return &s3.PresignClient{} }
	return &endpoint
}

func TestIssueUploadSignature(t *testing.T) {
	endpoint := stubAWS(t)
	s := newTestStorage()

	var gotKey string
	var gotExpires time.Duration
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		gotKey = *in.Key
		var po s3.PresignOptions
		for _, fn := range optFns {
			fn(&po)
		}
		gotExpires = po.Expires
		return &v4.PresignedHTTPRequest{
			URL:          "http://127.0.0.1:9000/cloudra/" + *in.Key + "?X-Amz-Credential=cred%2Fauto&X-Amz-Signature=abc123",
			Method:       http.MethodPut,
			SignedHeader: http.Header{},
		}, nil
	}

	sig, err := s.IssueUploadSignature(context.Background(), common.UploadNamespace("u1"))
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9000/", *endpoint)
	assert.True(t, strings.HasPrefix(gotKey, "cloudra/u1/"), "key %q", gotKey)
	assert.Equal(t, gotKey, sig.ObjectKey)
	assert.Equal(t, 15*time.Minute, gotExpires)
	assert.Equal(t, http.MethodPut, sig.Method)
	assert.Equal(t, "abc123", sig.Signature)
	assert.Equal(t, "cred/auto", sig.Credential)
	assert.Equal(t, int64(1700000000), sig.Timestamp)
	assert.Equal(t, time.Unix(1700000000, 0).Add(15*time.Minute), sig.ExpiresAt)
	assert.Equal(t, "http://127.0.0.1:9000/cloudra/"+gotKey, sig.PublicURL)
}

func TestIssueUploadSignature_PresignError(t *testing.T) {
	stubAWS(t)
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign-put-fail")
	}

	_, err := newTestStorage().IssueUploadSignature(context.Background(), "cloudra/u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrorExternalService))
	assert.Contains(t, err.Error(), "presign-put-fail")
}

func TestClient_LoadConfigError(t *testing.T) {
	stubAWS(t)
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}

	s := newTestStorage()
	_, err := s.PresignGet(context.Background(), "k")
	assert.True(t, errors.Is(err, common.ErrorExternalService))
	assert.Contains(t, err.Error(), "load-fail")

	err = s.DeleteObject(context.Background(), "k")
	assert.True(t, errors.Is(err, common.ErrorExternalService))
}

func TestPresignGet(t *testing.T) {
	stubAWS(t)
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: "https://signed/" + *in.Bucket + "/" + *in.Key}, nil
	}

	got, err := newTestStorage().PresignGet(context.Background(), "cloudra/u1/x")
	require.NoError(t, err)
	assert.Equal(t, "https://signed/cloudra/cloudra/u1/x", got)
}

func TestDeleteObject(t *testing.T) {
	stubAWS(t)

	var deleted []string
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
		switch *in.Key {
		case "bad":
			return nil, errors.New("denied")
		case "gone":
			return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}
		case "locked":
			return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "nope"}
		}
		deleted = append(deleted, *in.Key)
		return &s3.DeleteObjectOutput{}, nil
	}

	s := newTestStorage()
	require.NoError(t, s.DeleteObject(context.Background(), "good"))
	err := s.DeleteObject(context.Background(), "bad")
	assert.True(t, errors.Is(err, common.ErrorExternalService))
	assert.Contains(t, err.Error(), "denied")
	assert.NoError(t, s.DeleteObject(context.Background(), "gone"))
	assert.ErrorIs(t, s.DeleteObject(context.Background(), "locked"), common.ErrorExternalService)
	assert.Equal(t, []string{"good"}, deleted)
}

func TestPublicURL(t *testing.T) {
	s := newTestStorage()
	assert.Equal(t, "http://127.0.0.1:9000/cloudra/a/b", s.PublicURL("a/b"))

	s.config.S3PublicBaseURL = "https://cdn.example.com/"
	assert.Equal(t, "https://cdn.example.com/a/b", s.PublicURL("a/b"))
}
