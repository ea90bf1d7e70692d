package minio

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// fakeMinIO keeps objects in memory and returns S3-style errors.
type fakeMinIO struct {
	mu        sync.Mutex
	buckets   map[string]bool
	objects   map[string][]byte
	meta      map[string]minio.PutObjectOptions
	lifecycle *lifecycle.Configuration
	err       error
}

func newFakeMinIO() *fakeMinIO {
	return &fakeMinIO{
		buckets: map[string]bool{},
		objects: map[string][]byte{},
		meta:    map[string]minio.PutObjectOptions{},
	}
}

func noSuchKey() error {
	return minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."}
}

func (f *fakeMinIO) ListBuckets(context.Context) ([]minio.BucketInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []minio.BucketInfo
	for b := range f.buckets {
		out = append(out, minio.BucketInfo{Name: b})
	}
	return out, nil
}

func (f *fakeMinIO) BucketExists(_ context.Context, bucket string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[bucket], f.err
}

func (f *fakeMinIO) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucket] = true
	return f.err
}

func (f *fakeMinIO) SetBucketLifecycle(_ context.Context, _ string, cfg *lifecycle.Configuration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lifecycle = cfg
	return f.err
}

func (f *fakeMinIO) PutObject(_ context.Context, bucket, name string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	data, _ := io.ReadAll(r)
	f.objects[bucket+"/"+name] = data
	f.meta[bucket+"/"+name] = opts
	return minio.UploadInfo{Bucket: bucket, Key: name, Size: size}, nil
}

func (f *fakeMinIO) GetObject(_ context.Context, bucket, name string, _ minio.GetObjectOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[bucket+"/"+name]
	if !ok {
		return nil, noSuchKey()
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeMinIO) StatObject(_ context.Context, bucket, name string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return minio.ObjectInfo{}, f.err
	}
	data, ok := f.objects[bucket+"/"+name]
	if !ok {
		return minio.ObjectInfo{}, noSuchKey()
	}
	return minio.ObjectInfo{Key: name, Size: int64(len(data))}, nil
}

func (f *fakeMinIO) RemoveObject(_ context.Context, bucket, name string, _ minio.RemoveObjectOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+name)
	return f.err
}

func (f *fakeMinIO) PresignedGetObject(_ context.Context, bucket, name string, expiry time.Duration, params url.Values) (*url.URL, error) {
	if f.err != nil {
		return nil, f.err
	}
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("X-Amz-Expires", expiry.String())
	return &url.URL{Scheme: "http", Host: "minio.local", Path: "/" + bucket + "/" + name, RawQuery: q.Encode()}, nil
}
