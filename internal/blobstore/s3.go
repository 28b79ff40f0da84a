package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func init() {
	Register("s3", func(args map[string]string) (Store, error) {
		if args["bucket"] == "" {
			return nil, fmt.Errorf("s3 bucket is required")
		}
		return NewS3Store(context.Background(), S3Config{
			Bucket:   args["bucket"],
			Region:   args["region"],
			Endpoint: args["endpoint"],
			Prefix:   args["prefix"],
		})
	})
}

// S3Config configures the S3-backed blob store. Credentials come from the
// standard AWS environment/credential chain.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // Optional, for S3-compatible services
	Prefix   string
}

// S3Store keeps blobs as S3 objects keyed by content identifier.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &StoreError{Op: "init", Err: err}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Store) Put(ctx context.Context, data []byte) (string, error) {
	cid := ContentID(data)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(cid)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", &StoreError{Op: "put", CID: cid, Err: err}
	}
	return cid, nil
}

func (s *S3Store) Get(ctx context.Context, cid string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(cid)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, &StoreError{Op: "get", CID: cid, Err: ErrNotFound}
		}
		return nil, &StoreError{Op: "get", CID: cid, Err: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &StoreError{Op: "get", CID: cid, Err: err}
	}
	return data, nil
}

func (s *S3Store) key(cid string) string {
	if s.prefix == "" {
		return cid
	}
	return path.Join(s.prefix, cid)
}
