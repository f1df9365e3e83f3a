package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"twin/internal/logging"
	"twin/internal/session"
)

// ObjectAPI is the subset of the S3 client used by the store.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store keeps one JSON object per session at <prefix><id>.json in a bucket.
type Store struct {
	client ObjectAPI
	bucket string
	prefix string
	logger logging.Logger
}

// Option customises the store.
type Option func(*Store)

// WithPrefix places every object under prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.TrimLeft(prefix, "/")
	}
}

// New builds an object storage backed store.
func New(client ObjectAPI, bucket string, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3 session store requires a client")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("s3 session store requires a bucket")
	}
	s := &Store{
		client: client,
		bucket: bucket,
		logger: logging.NewComponentLogger("SessionS3Store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) key(id string) string {
	return s.prefix + id + ".json"
}

// Load returns the stored transcript, or an empty one when the object does
// not exist.
func (s *Store) Load(ctx context.Context, id string) ([]session.Turn, error) {
	key := s.key(id)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return []session.Turn{}, nil
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}
	turns, err := session.Decode(data)
	if err != nil {
		s.logger.Error("Failed to decode session object s3://%s/%s: %v", s.bucket, key, err)
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return turns, nil
}

// Save replaces the stored object.
func (s *Store) Save(ctx context.Context, id string, turns []session.Turn) error {
	data, err := session.Encode(turns)
	if err != nil {
		return err
	}
	key := s.key(id)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
