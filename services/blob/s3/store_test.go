package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi1475/School-ERPS-sub002/core"
)

type fakeObject struct {
	data        []byte
	contentType *string
	metadata    map[string]string
}

// fakeAPI is an in-memory bucket paging List results by pageSize.
type fakeAPI struct {
	mu       sync.Mutex
	bucket   string
	objects  map[string]fakeObject
	pageSize int
}

func newFakeAPI(bucket string) *fakeAPI {
	return &fakeAPI{bucket: bucket, objects: make(map[string]fakeObject), pageSize: 2}
}

func (f *fakeAPI) checkBucket(bucket *string) error {
	if aws.ToString(bucket) != f.bucket {
		return &types.NoSuchBucket{}
	}
	return nil
}

func (f *fakeAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = fakeObject{data: data, contentType: in.ContentType, metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   obj.contentType,
		Metadata:      obj.metadata,
	}, nil
}

func (f *fakeAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0)
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	end := start + f.pageSize
	if end > len(keys) {
		end = len(keys)
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(f.objects[k].data)))})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func TestOpen_bucketRequired(t *testing.T) {
	_, err := Open(context.Background(), core.BlobConfig{Driver: core.BlobDriverS3})
	assert.True(t, errors.Is(err, errBucketRequired), "error = %v", err)
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeAPI("documents"), "documents")
	assert.Equal(t, core.BlobDriverS3, s.Driver())

	info, err := s.Put(ctx, "drafts/1/markSheet/a", bytes.NewReader([]byte("%PDF-1.4")), core.BlobPutOptions{
		ContentType: "application/pdf",
		Metadata:    map[string]string{"filename": "mark.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), info.Size)

	for _, k := range []string{"drafts/1/studentImage/b", "drafts/1/fatherImage/c", "drafts/2/studentImage/d"} {
		_, err = s.Put(ctx, k, bytes.NewReader([]byte("img")), core.BlobPutOptions{})
		require.NoError(t, err)
	}

	got, rc, err := s.Get(ctx, "drafts/1/markSheet/a")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, []byte("%PDF-1.4"), data)
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, "mark.pdf", got.Metadata["filename"])

	infos, err := s.List(ctx, "drafts/1/")
	require.NoError(t, err)
	keys := make([]string, 0, len(infos))
	for _, i := range infos {
		keys = append(keys, i.Key)
	}
	assert.Equal(t, []string{"drafts/1/fatherImage/c", "drafts/1/markSheet/a", "drafts/1/studentImage/b"}, keys, "pages are followed")

	deleted, err := s.Delete(ctx, "drafts/1/markSheet/a")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, _, err = s.Get(ctx, "drafts/1/markSheet/a")
	assert.True(t, errors.Is(err, core.ErrBlobNotFound), "error = %v", err)

	_, _, err = New(newFakeAPI("documents"), "other").Get(ctx, "x")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrBlobNotFound))
}
