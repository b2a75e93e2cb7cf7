package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)
	key := ObjectKey(now, "image/png")
	assert.Regexp(t, regexp.MustCompile(`^attachments/2024/03/07/[0-9a-f-]{36}\.png$`), key)

	assert.Regexp(t, `\.jpg$`, ObjectKey(now, "image/jpeg"))
	assert.Regexp(t, `[0-9a-f]$`, ObjectKey(now, "not a type"))
	assert.NotEqual(t, ObjectKey(now, "image/png"), ObjectKey(now, "image/png"))
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "http://cdn/b/k.png", PublicURL("http://cdn/b/", "k.png"))
	assert.Equal(t, "http://cdn/b/k.png", PublicURL("http://cdn/b", "k.png"))
}

type fakeMinIO struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakeMinIO) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.bucket, f.key, f.contentType = bucket, key, opts.ContentType
	f.body, _ = io.ReadAll(r)
	return minio.UploadInfo{Bucket: bucket, Key: key}, f.err
}

func TestMinIORelay_Store(t *testing.T) {
	fake := &fakeMinIO{}
	relay := &MinIORelay{client: fake, bucket: "nebula", publicURL: "http://localhost:9000/nebula"}

	url, err := relay.Store(context.Background(), []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "nebula", fake.bucket)
	assert.Equal(t, "image/png", fake.contentType)
	assert.Equal(t, []byte("png-bytes"), fake.body)
	assert.Equal(t, "http://localhost:9000/nebula/"+fake.key, url)

	_, err = relay.Store(context.Background(), nil, "image/png")
	assert.ErrorIs(t, err, ErrEmptyAttachment)

	fake.err = errors.New("disk full")
	_, err = relay.Store(context.Background(), []byte("x"), "image/png")
	assert.ErrorContains(t, err, "disk full")
}

type fakeS3 struct {
	in *s3.PutObjectInput
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	return &s3.PutObjectOutput{}, nil
}

func TestS3Relay_Store(t *testing.T) {
	fake := &fakeS3{}
	relay := &S3Relay{client: fake, bucket: "att", publicURL: "https://att.s3.us-east-1.amazonaws.com"}

	url, err := relay.Store(context.Background(), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	require.NotNil(t, fake.in)
	assert.Equal(t, "att", *fake.in.Bucket)
	assert.Equal(t, "application/pdf", *fake.in.ContentType)
	assert.EqualValues(t, 4, *fake.in.ContentLength)
	assert.Regexp(t, `\.pdf$`, *fake.in.Key)
	assert.Equal(t, "https://att.s3.us-east-1.amazonaws.com/"+*fake.in.Key, url)
}

func TestHTTPFetcher_CachesByURL(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("attachment"))
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.Client(), 1<<20, 1<<10)
	require.NoError(t, err)
	defer f.Close()

	data, err := f.Fetch(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("attachment"), data)
	f.Wait()

	data, err = f.Fetch(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("attachment"), data)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestHTTPFetcher_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(nil, 1<<20, 32)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "404")
	_, err = f.Fetch(context.Background(), srv.URL+"/big")
	assert.ErrorContains(t, err, "larger than")
}
