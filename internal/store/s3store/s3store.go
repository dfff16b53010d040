// Package s3store implements the vault stores on an S3-compatible bucket.
//
// Keys live under <prefix>keys/<name> and blobs under <prefix>blobs/<name>.
// Key creation uses a conditional put (If-None-Match: *), so the first
// writer wins without a lock.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/skhoolar/skhoolar/internal/store"
)

// DefaultPrefix namespaces every object the vault writes.
const DefaultPrefix = "skhoolar/"

// Options addresses a bucket. Endpoint is only needed for non-AWS services
// (MinIO, R2, ...) and switches to path-style addressing. Without AccessKey
// the default AWS credential chain is used.
type Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	AccessKey string
	SecretKey string

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
}

func (o Options) String() string {
	if o.Endpoint != "" {
		return fmt.Sprintf("s3://%s (%s)", o.Bucket, o.Endpoint)
	}
	return "s3://" + o.Bucket
}

type bucket struct {
	client *s3.Client
	name   string
	prefix string
}

func open(ctx context.Context, opts Options, kind string) (*bucket, error) {
	if opts.Bucket == "" {
		return nil, store.Unavailable("open s3", errors.New("bucket not set"))
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	if opts.HTTPClient != nil {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(opts.HTTPClient))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, store.Unavailable("load aws config", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	slog.Debug("s3 store configured", "bucket", opts.Bucket, "endpoint", opts.Endpoint, "prefix", prefix+kind)
	return &bucket{client: client, name: opts.Bucket, prefix: prefix + kind}, nil
}

func (b *bucket) key(name string) *string { return aws.String(b.prefix + name) }

func (b *bucket) get(ctx context.Context, name string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(b.name), Key: b.key(name)})
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, store.Unavailable("get object", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, store.Unavailable("read object", err)
	}
	return data, nil
}

func (b *bucket) put(ctx context.Context, name string, data []byte, ifAbsent bool) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(b.name),
		Key:           b.key(name),
		Body:          strings.NewReader(string(data)),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("text/plain"),
	}
	if ifAbsent {
		in.IfNoneMatch = aws.String("*")
	}
	_, err := b.client.PutObject(ctx, in)
	return err
}

// isNotFound matches a missing object on GET (NoSuchKey) or HEAD (NotFound).
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return statusCode(err) == http.StatusNotFound
}

// isConflict matches a conditional put that lost to an existing object.
func isConflict(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	code := statusCode(err)
	return code == http.StatusPreconditionFailed || code == http.StatusConflict
}

func statusCode(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}

// KeyStore implements store.KeyStore.
type KeyStore struct{ b *bucket }

func NewKeyStore(ctx context.Context, opts Options) (*KeyStore, error) {
	b, err := open(ctx, opts, "keys/")
	if err != nil {
		return nil, err
	}
	return &KeyStore{b: b}, nil
}

func (s *KeyStore) GetKey(ctx context.Context, name string) ([]byte, error) {
	return s.b.get(ctx, name)
}

func (s *KeyStore) CreateKey(ctx context.Context, name string, desc []byte) ([]byte, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}
	if err := s.b.put(ctx, name, desc, true); err != nil && !isConflict(err) {
		return nil, store.Unavailable("create key", err)
	}
	return s.GetKey(ctx, name)
}

func (s *KeyStore) Close() error { return nil }

// BlobStore implements store.BlobStore.
type BlobStore struct{ b *bucket }

func NewBlobStore(ctx context.Context, opts Options) (*BlobStore, error) {
	b, err := open(ctx, opts, "blobs/")
	if err != nil {
		return nil, err
	}
	return &BlobStore{b: b}, nil
}

func (s *BlobStore) GetBlob(ctx context.Context, name string) (string, error) {
	data, err := s.b.get(ctx, name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *BlobStore) PutBlob(ctx context.Context, name, blob string) error {
	if err := store.ValidateName(name); err != nil {
		return err
	}
	if err := s.b.put(ctx, name, []byte(blob), false); err != nil {
		return store.Unavailable("put blob", err)
	}
	return nil
}

func (s *BlobStore) DeleteBlob(ctx context.Context, name string) error {
	_, err := s.b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.b.name), Key: s.b.key(name)})
	if err != nil && !isNotFound(err) {
		return store.Unavailable("delete blob", err)
	}
	return nil
}

func (s *BlobStore) HasBlob(ctx context.Context, name string) (bool, error) {
	_, err := s.b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.b.name), Key: s.b.key(name)})
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	}
	return false, store.Unavailable("check blob", err)
}

func (s *BlobStore) Close() error { return nil }
