package uploads

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore_Put(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewFSStore(dir)
	require.NoError(t, err)

	a, err := store.Put(context.Background(), "scan.png", "image/png", []byte("one"))
	require.NoError(t, err)
	b, err := store.Put(context.Background(), "scan.png", "image/png", []byte("two"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "same name must not overwrite")
	assert.True(t, strings.HasPrefix(a, store.Dir()))
	assert.Equal(t, "scan.png", filepath.Base(a))

	got, err := os.ReadFile(a)
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))
}

func TestFSStore_CancelledContext(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "a.png", "image/png", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestNewS3Store_AppliesConfig(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	var lo awsconfig.LoadOptions
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		return aws.Config{Region: lo.Region}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return origNew(cfg, optFns...)
	}

	store, err := NewS3Store(context.Background(), S3Config{
		User: "minio", Password: "secret", Bucket: "medisoft", Region: "eu-central-1",
		BaseEndpoint: "http://127.0.0.1:9000",
	})
	require.NoError(t, err)
	require.NotNil(t, store)

	assert.Equal(t, "eu-central-1", lo.Region)
	require.NotNil(t, lo.Credentials)
	creds, err := lo.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minio", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)

	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Store_ConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	boom := errors.New("no config")
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, boom
	}

	_, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"})
	assert.ErrorIs(t, err, boom)
}

func TestS3Store_Put(t *testing.T) {
	putter := &fakePutter{}
	store := &S3Store{client: putter, bucket: "medisoft"}

	loc, err := store.Put(context.Background(), "xray.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)

	require.NotNil(t, putter.input)
	assert.Equal(t, "medisoft", aws.ToString(putter.input.Bucket))
	key := aws.ToString(putter.input.Key)
	assert.True(t, strings.HasPrefix(key, "uploads/"))
	assert.True(t, strings.HasSuffix(key, "/xray.jpg"))
	assert.Equal(t, "image/jpeg", aws.ToString(putter.input.ContentType))
	assert.Equal(t, int64(10), aws.ToInt64(putter.input.ContentLength))
	assert.Equal(t, "jpeg-bytes", string(putter.body))
	assert.Equal(t, "s3://medisoft/"+key, loc)
}

func TestS3Store_PutError(t *testing.T) {
	boom := errors.New("denied")
	store := &S3Store{client: &fakePutter{err: boom}, bucket: "b"}

	_, err := store.Put(context.Background(), "a.png", "image/png", []byte("x"))
	assert.ErrorIs(t, err, boom)
}
