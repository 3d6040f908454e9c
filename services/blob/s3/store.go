// Package s3blob keeps uploaded documents in an S3 compatible bucket (AWS S3 or MinIO).
package s3blob

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"

	"github.com/ravi1475/School-ERPS-sub002/core"
)

var errBucketRequired = errors.New("s3 bucket required")

// API is the subset of the s3 client used by Store.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type Store struct {
	client API
	bucket string
}

var _ core.BlobStore = (*Store)(nil) // interface compliance check

// Open builds a Store from the blob config. Credentials come from the default AWS chain
// unless static keys are configured.
func Open(ctx context.Context, conf core.BlobConfig) (*Store, error) {
	if conf.S3Bucket == "" {
		return nil, errBucketRequired
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(conf.S3Region)}
	if conf.S3AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.S3AccessKey, conf.S3SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = conf.S3PathStyle
		if conf.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.S3Endpoint)
		}
	})
	return New(client, conf.S3Bucket), nil
}

func New(client API, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

func (s *Store) Driver() string { return core.BlobDriverS3 }

func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.BlobPutOptions) (core.BlobInfo, error) {
	input := &s3.PutObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key), Body: r}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return core.BlobInfo{}, errors.Wrapf(err, "putting %q", key)
	}
	info := core.BlobInfo{
		Key:          key,
		ContentType:  opts.ContentType,
		Metadata:     opts.Metadata,
		LastModified: time.Now().UTC(),
	}
	if sized, ok := r.(interface{ Size() int64 }); ok {
		info.Size = sized.Size()
	}
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (core.BlobInfo, io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return core.BlobInfo{}, nil, errors.Wrapf(core.ErrBlobNotFound, "%q", key)
		}
		return core.BlobInfo{}, nil, errors.Wrapf(err, "getting %q", key)
	}
	info := core.BlobInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		Metadata:     out.Metadata,
		LastModified: aws.ToTime(out.LastModified),
	}
	return info, out.Body, nil
}

// Delete removes the object; S3 does not report whether it existed so true is returned on success.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return false, errors.Wrapf(err, "deleting %q", key)
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]core.BlobInfo, error) {
	var infos []core.BlobInfo
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "listing %q", prefix)
		}
		for _, obj := range out.Contents {
			infos = append(infos, core.BlobInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
