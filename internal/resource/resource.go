// Package resource opens baked terrain resources for random access.
//
// A location is either a local path, a zstd-compressed local path ending in
// ".zst" (decompressed into memory) or an object URL of the form s3://bucket/key
// read with ranged requests.
package resource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// CompressedExt marks zstd-compressed resources.
const CompressedExt = ".zst"

// ErrLocation is returned for malformed resource locations.
var ErrLocation = errors.New("invalid resource location")

// Resource is a random-access terrain resource.
type Resource interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

type options struct {
	s3     s3iface.S3API
	region string
	log    *zap.Logger
}

// Option configures Open.
type Option func(*options)

// WithS3Client sets the client used for s3:// locations.
func WithS3Client(api s3iface.S3API) Option {
	return func(o *options) {
		o.s3 = api
	}
}

// WithRegion sets the region of the default S3 client.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithLogger sets the logger reporting opened resources.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// Open opens the resource at location.
func Open(ctx context.Context, location string, opts ...Option) (Resource, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		r    Resource
		err  error
		kind string
	)
	switch {
	case strings.HasPrefix(location, s3Scheme):
		kind = "s3"
		r, err = openS3(ctx, location, o)
	case strings.HasSuffix(location, CompressedExt):
		kind = "zstd"
		r, err = OpenCompressed(location)
	default:
		kind = "file"
		r, err = OpenFile(location)
	}
	if err != nil {
		return nil, err
	}

	o.log.Info("opened terrain resource",
		zap.String("location", location),
		zap.String("kind", kind),
		zap.Int64("size", r.Size()),
	)
	return r, nil
}

type fileResource struct {
	*os.File
	size int64
}

func (f *fileResource) Size() int64 {
	return f.size
}

// OpenFile opens an uncompressed resource file.
func OpenFile(path string) (Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	return &fileResource{File: f, size: info.Size()}, nil
}

type memoryResource struct {
	*bytes.Reader
}

func (m memoryResource) Close() error {
	return nil
}

// OpenCompressed decompresses a zstd resource into memory.
func OpenCompressed(path string) (Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader for %s: %w", path, err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}

	return memoryResource{bytes.NewReader(data)}, nil
}
