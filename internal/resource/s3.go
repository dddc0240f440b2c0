package resource

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

const s3Scheme = "s3://"

// ParseS3 splits an s3://bucket/key location.
func ParseS3(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not an s3 location", ErrLocation, location)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q needs a bucket and a key", ErrLocation, location)
	}
	return bucket, key, nil
}

// s3Resource reads an object with one ranged GET per ReadAt.
type s3Resource struct {
	ctx    context.Context
	api    s3iface.S3API
	bucket string
	key    string
	size   int64
}

func openS3(ctx context.Context, location string, o options) (Resource, error) {
	bucket, key, err := ParseS3(location)
	if err != nil {
		return nil, err
	}

	api := o.s3
	if api == nil {
		cfg := aws.NewConfig()
		if o.region != "" {
			cfg = cfg.WithRegion(o.region)
		}
		sess, err := session.NewSession(cfg)
		if err != nil {
			return nil, fmt.Errorf("aws session: %w", err)
		}
		api = s3.New(sess)
	}

	head, err := api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("head %s: %w", location, err)
	}

	return &s3Resource{
		ctx:    ctx,
		api:    api,
		bucket: bucket,
		key:    key,
		size:   aws.Int64Value(head.ContentLength),
	}, nil
}

func (r *s3Resource) Size() int64 {
	return r.size
}

func (r *s3Resource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("s3://%s/%s: negative offset %d", r.bucket, r.key, off)
	}
	if off >= r.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	want := p
	if remaining := r.size - off; int64(len(want)) > remaining {
		want = want[:remaining]
	}

	out, err := r.api.GetObjectWithContext(r.ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+int64(len(want))-1)),
	})
	if err != nil {
		return 0, fmt.Errorf("get s3://%s/%s at %d: %w", r.bucket, r.key, off, err)
	}
	defer out.Body.Close()

	n, err := io.ReadFull(out.Body, want)
	if err != nil {
		return n, fmt.Errorf("reading s3://%s/%s at %d: %w", r.bucket, r.key, off, err)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *s3Resource) Close() error {
	return nil
}
