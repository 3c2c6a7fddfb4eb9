package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/divs-identity/divs-agent/interfaces"
)

// S3Pinner mirrors pinned payloads into Amazon S3 or a compatible service.
// Objects are keyed by CID under an optional prefix.
type S3Pinner struct {
	client      *s3.S3
	bucketName  string
	prefix      string
	log         *slog.Logger
	locationURI string
}

// NewS3Pinner creates an S3 backend. Without static credentials the default
// AWS credential chain is used.
func NewS3Pinner(bucketName, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Pinner, error) {
	uri := fmt.Sprintf("s3://%s/%s?region=%s", bucketName, prefix, region)
	if accessKey != "" {
		uri = fmt.Sprintf("s3://%s:***@%s/%s?region=%s", accessKey, bucketName, prefix, region)
	}
	if endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", endpoint)
	}

	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Pinner{
		client:      s3.New(sess),
		bucketName:  bucketName,
		prefix:      strings.Trim(prefix, "/"),
		log:         log,
		locationURI: uri,
	}, nil
}

// Pin uploads payload under its derived CID.
func (b *S3Pinner) Pin(ctx context.Context, payload []byte, name string) (interfaces.ContentID, error) {
	id, err := interfaces.ComputeContentID(payload)
	if err != nil {
		return "", err
	}
	if err := b.put(ctx, id, payload, name); err != nil {
		return "", err
	}
	return id, nil
}

// Mirror uploads payload under an identifier assigned by another backend.
func (b *S3Pinner) Mirror(ctx context.Context, id interfaces.ContentID, payload []byte) error {
	if _, err := interfaces.ParseContentID(id.String()); err != nil {
		return err
	}
	return b.put(ctx, id, payload, "")
}

func (b *S3Pinner) put(ctx context.Context, id interfaces.ContentID, payload []byte, name string) error {
	key := b.objectKey(id)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	}
	if name != "" {
		input.Metadata = map[string]*string{"name": aws.String(name)}
	}

	if _, err := b.client.PutObjectWithContext(ctx, input); err != nil {
		return fmt.Errorf("failed to upload object to S3: %w", err)
	}

	b.log.Debug("Stored content in S3",
		slog.String("bucket", b.bucketName),
		slog.String("key", key))
	return nil
}

// Fetch retrieves an object by CID and verifies it against the identifier.
// Returns ErrContentNotFound if the object doesn't exist.
func (b *S3Pinner) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	start := time.Now()
	if _, err := interfaces.ParseContentID(id.String()); err != nil {
		return nil, err
	}
	key := b.objectKey(id)

	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			b.log.Debug("Content not found in S3",
				slog.String("bucket", b.bucketName),
				slog.String("key", key),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrContentNotFound
		}

		b.log.Error("Failed to get object from S3",
			slog.String("bucket", b.bucketName),
			slog.String("key", key),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := readContent(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	if err := verifyContent(id, data); err != nil {
		b.log.Warn("Content hash mismatch", slog.String("key", key), "err", err)
		return nil, err
	}

	b.log.Debug("Fetched content from S3",
		slog.String("bucket", b.bucketName),
		slog.String("key", key),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Available checks if the bucket is accessible.
func (b *S3Pinner) Available(ctx context.Context) bool {
	_, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucketName),
	})
	if err != nil {
		b.log.Warn("S3 backend unavailable",
			slog.String("bucket", b.bucketName),
			"err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this pinning backend.
func (b *S3Pinner) Name() string {
	return fmt.Sprintf("s3-%s", b.bucketName)
}

// LocationURI returns the URI that identifies this backend, credentials masked.
func (b *S3Pinner) LocationURI() string {
	return b.locationURI
}

func (b *S3Pinner) objectKey(id interfaces.ContentID) string {
	if b.prefix == "" {
		return id.String()
	}
	return path.Join(b.prefix, id.String())
}
