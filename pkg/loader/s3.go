// Package loader provides pongo2 template loaders backed by object storage.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/flosch/pongo2/v6"
)

// DefaultMaxSize bounds a single template object.
const DefaultMaxSize int64 = 1 << 20

// ErrTooLarge is returned for objects above the loader's size limit.
var ErrTooLarge = errors.New("loader: template object too large")

// ObjectGetter is the subset of *s3.Client the loader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Option configures an S3Loader.
type S3Option func(*S3Loader)

// WithPrefix sets the key prefix templates live under, such as "themes/".
func WithPrefix(prefix string) S3Option {
	return func(l *S3Loader) {
		prefix = strings.Trim(strings.TrimSpace(prefix), "/")
		if prefix != "" {
			prefix += "/"
		}
		l.prefix = prefix
	}
}

// WithTimeout bounds each GetObject call.
func WithTimeout(d time.Duration) S3Option {
	return func(l *S3Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithMaxSize bounds the size of a template object. Zero disables the limit.
func WithMaxSize(n int64) S3Option {
	return func(l *S3Loader) {
		if n >= 0 {
			l.maxSize = n
		}
	}
}

// S3Loader is a pongo2.TemplateLoader reading templates from a bucket.
// Names are object keys relative to the prefix; includes resolve relative to
// the including template.
type S3Loader struct {
	client  ObjectGetter
	bucket  string
	prefix  string
	timeout time.Duration
	maxSize int64
}

var _ pongo2.TemplateLoader = (*S3Loader)(nil)

// NewS3Loader returns a loader for bucket.
//
// Example usage:
//
//	client := s3.NewFromConfig(aws.Config{Region: "eu-west-1"})
//	l := loader.NewS3Loader(client, "my-templates", loader.WithPrefix("themes"))
//	engine, _ := pongo.New(pongo.WithLoader(l))
func NewS3Loader(client ObjectGetter, bucket string, options ...S3Option) (*S3Loader, error) {
	if client == nil {
		return nil, errors.New("loader: s3 client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("loader: bucket is required")
	}
	l := &S3Loader{
		client:  client,
		bucket:  strings.TrimSpace(bucket),
		timeout: 10 * time.Second,
		maxSize: DefaultMaxSize,
	}
	for _, opt := range options {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Abs implements pongo2.TemplateLoader.
func (l *S3Loader) Abs(base, name string) string {
	if strings.HasPrefix(name, "/") || base == "" {
		return path.Clean(strings.TrimPrefix(name, "/"))
	}
	return path.Join(path.Dir(base), name)
}

// Get implements pongo2.TemplateLoader. Missing keys report fs.ErrNotExist
// so a template set falls through to its next loader.
func (l *S3Loader) Get(name string) (io.Reader, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	key := l.prefix + strings.TrimPrefix(path.Clean(name), "/")
	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("loader: s3://%s/%s: %w", l.bucket, key, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("loader: get s3://%s/%s: %w", l.bucket, key, err)
	}
	defer out.Body.Close()

	var body io.Reader = out.Body
	if l.maxSize > 0 {
		body = io.LimitReader(out.Body, l.maxSize+1)
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, body)
	if err != nil {
		return nil, fmt.Errorf("loader: read s3://%s/%s: %w", l.bucket, key, err)
	}
	if l.maxSize > 0 && n > l.maxSize {
		return nil, fmt.Errorf("%w: s3://%s/%s", ErrTooLarge, l.bucket, key)
	}
	return bytes.NewReader(buf.Bytes()), nil
}
