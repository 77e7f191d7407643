package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	"github.com/kenneth/crypto-range-gateway/internal/config"
)

// s3Backend stores ciphertext blobs in a single S3 bucket. Ranged reads map
// directly onto S3 Range GETs, so the gateway never downloads more
// ciphertext than a request needs.
type s3Backend struct {
	client *s3.Client
	bucket string
	logger *logrus.Logger
}

// NewS3Backend creates an S3-backed store from the gateway configuration.
func NewS3Backend(cfg *config.S3StoreConfig, logger *logrus.Logger) (Backend, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Options := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &s3Backend{
		client: s3.NewFromConfig(awsCfg, s3Options...),
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

func (b *s3Backend) Name() string { return "s3" }

func (b *s3Backend) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	// PutObject does not report the stored size; count as the SDK reads.
	counted := &countingReader{src: r}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   counted,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to put object %s: %w", key, mapS3Error(err))
	}

	b.logger.WithFields(logrus.Fields{
		"key":  key,
		"size": counted.n,
	}).Debug("Stored object in S3")
	return counted.n, nil
}

func (b *s3Backend) Open(ctx context.Context, key string) (ReaderAtCloser, int64, error) {
	head, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, mapS3Error(err)
	}
	size := aws.ToInt64(head.ContentLength)
	return &s3ReaderAt{backend: b, ctx: ctx, key: key, size: size}, size, nil
}

func (b *s3Backend) Delete(ctx context.Context, key string) error {
	// S3 DeleteObject is silent on missing keys; probe first so missing
	// objects surface as ErrNotFound like the file backend.
	if _, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return mapS3Error(err)
	}

	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, mapS3Error(err))
	}
	return nil
}

func (b *s3Backend) Close() error { return nil }

// s3ReaderAt satisfies io.ReaderAt with one Range GET per call.
type s3ReaderAt struct {
	backend *s3Backend
	ctx     context.Context
	key     string
	size    int64
}

func (r *s3ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= r.size {
		return 0, io.EOF
	}
	end := off + int64(len(p)) - 1
	if end >= r.size {
		end = r.size - 1
	}

	rng := fmt.Sprintf("bytes=%d-%d", off, end)
	out, err := r.backend.client.GetObject(r.ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.backend.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(rng),
	})
	if err != nil {
		return 0, mapS3Error(err)
	}
	defer out.Body.Close()

	n, err := io.ReadFull(out.Body, p[:end-off+1])
	if err != nil && err != io.ErrUnexpectedEOF {
		return n, err
	}
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

func (r *s3ReaderAt) Close() error { return nil }

// countingReader counts bytes as the SDK consumes them.
type countingReader struct {
	src io.Reader
	n   int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.src.Read(p)
	c.n += int64(n)
	return n, err
}

// mapS3Error translates SDK errors into backend sentinels where possible.
func mapS3Error(err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return ErrNotFound
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return ErrNotFound
		}
	}
	return err
}
