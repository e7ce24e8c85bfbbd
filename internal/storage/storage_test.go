package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	k := ObjectKey("companies/7", `C:\scans\Contract.PDF`)
	assert.True(t, strings.HasPrefix(k, "companies/7/"), k)
	assert.True(t, strings.HasSuffix(k, ".pdf"), k)
	assert.NotEqual(t, k, ObjectKey("companies/7", "Contract.pdf"))
	assert.True(t, strings.HasPrefix(ObjectKey("", "a"), "uploads/"))
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.PresignUpload(context.Background(), "x", "a.pdf")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = Disabled{}.PresignDownload(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestS3Store_Presign(t *testing.T) {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String("http://localhost:4566"),
		UsePathStyle: true,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "test", SecretAccessKey: "test"}, nil
		}),
	})
	store := newS3Store(s3.NewPresignClient(client), "archive", time.Minute)

	up, err := store.PresignUpload(context.Background(), "companies/1", "scan.tiff")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.URL, "http://localhost:4566/archive/companies/1/"), up.URL)
	assert.Contains(t, up.URL, "X-Amz-Signature=")
	assert.True(t, strings.HasSuffix(up.Key, ".tiff"))

	url, err := store.PresignDownload(context.Background(), up.Key)
	require.NoError(t, err)
	assert.Contains(t, url, up.Key)
}
