package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Destination receives the JSONL output of one job run.
type Destination interface {
	Write(ctx context.Context, job string, data []byte) error
}

// S3Destination writes each job to <prefix><job>.jsonl in an S3-compatible
// bucket.
type S3Destination struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, prefix, region, endpoint string) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		})
	}
	return &S3Destination{
		client: s3.NewFromConfig(cfg, s3opts...),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Key returns the object key a job is written to.
func (d *S3Destination) Key(job string) string {
	return path.Join(d.prefix, job+".jsonl")
}

// Write uploads data as the job's object.
func (d *S3Destination) Write(ctx context.Context, job string, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.Key(job)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// WriterDestination appends every job's output to one writer.
type WriterDestination struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterDestination writes to w.
func NewWriterDestination(w io.Writer) *WriterDestination {
	return &WriterDestination{w: w}
}

func (d *WriterDestination) Write(_ context.Context, job string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", job, err)
	}
	return nil
}
