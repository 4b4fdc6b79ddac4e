// Package awss3 uploads batches of events as objects to an S3 bucket.
package awss3

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/codecs"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/sinks"
	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
)

const (
	SinkType              = "aws_s3"
	DefaultBatchMaxEvents = 1000
	DefaultBatchTimeout   = 5 * time.Minute
)

type Encoding string

const (
	EncodingNDJSON  Encoding = "ndjson"
	EncodingParquet Encoding = "parquet"
)

type AuthConfig struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" validate:"required_with=AccessKeyID"`
}

type BatchConfig struct {
	MaxEvents int `yaml:"max_events" validate:"gte=0"`
	// Timeout caps how long events wait for their batch to fill. It is
	// checked as events arrive.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

type Config struct {
	Bucket    string `yaml:"bucket" validate:"required"`
	KeyPrefix string `yaml:"key_prefix"`
	Region    string `yaml:"region"`
	// Endpoint points the client at an S3 compatible service.
	Endpoint       string      `yaml:"endpoint" validate:"omitempty,url"`
	ForcePathStyle bool        `yaml:"force_path_style"`
	Encoding       Encoding    `yaml:"encoding" validate:"omitempty,oneof=ndjson parquet"`
	Auth           AuthConfig  `yaml:"auth"`
	Batch          BatchConfig `yaml:"batch"`

	client api
	now    func() time.Time
}

// api is the part of the S3 client the sink uses.
type api interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

func init() {
	config.RegisterSink(SinkType, func() config.SinkConfig { return &Config{} })
}

func (c *Config) InputType() events.DataType { return events.DataTypeAny }
func (c *Config) SinkType() string           { return SinkType }

func (c *Config) Build(ctx context.Context, cx config.SinkContext) (sinks.Sink, sinks.Healthcheck, error) {
	client := c.client
	if client == nil {
		var err error
		if client, err = c.newClient(ctx); err != nil {
			return nil, nil, fmt.Errorf("aws_s3 sink: %w", err)
		}
	}
	codec, err := codecs.New(codecs.EncodingJSON, cx.Globals.LogSchema.Message())
	if err != nil {
		return nil, nil, err
	}

	u := &uploader{
		client:    client,
		bucket:    c.Bucket,
		prefix:    c.KeyPrefix,
		encoding:  c.Encoding,
		codec:     codec,
		maxEvents: c.Batch.MaxEvents,
		timeout:   c.Batch.Timeout,
		now:       c.now,
	}
	if u.encoding == "" {
		u.encoding = EncodingNDJSON
	}
	if u.maxEvents == 0 {
		u.maxEvents = DefaultBatchMaxEvents
	}
	if u.timeout == 0 {
		u.timeout = DefaultBatchTimeout
	}
	if u.now == nil {
		u.now = time.Now
	}

	healthcheck := func(ctx context.Context) error {
		if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.Bucket)}); err != nil {
			return fmt.Errorf("aws_s3 sink: bucket %q: %w", c.Bucket, err)
		}
		return nil
	}
	return sinks.NewStreamSink(ctx, cx.Name, SinkType, u, cx.Acker), healthcheck, nil
}

func (c *Config) newClient(ctx context.Context) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	if c.Auth.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.Auth.AccessKeyID, c.Auth.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = c.ForcePathStyle
	}), nil
}

// row is one event in a parquet object.
type row struct {
	Timestamp int64  `parquet:"timestamp"`
	Type      string `parquet:"type"`
	Event     string `parquet:"event"`
}

type uploader struct {
	client    api
	bucket    string
	prefix    string
	encoding  Encoding
	codec     codecs.Codec
	maxEvents int
	timeout   time.Duration
	now       func() time.Time

	rows    []row
	started time.Time
}

func (u *uploader) Consume(ctx context.Context, event events.Event) error {
	data, err := u.codec.Encode(event)
	if err != nil {
		return err
	}
	now := u.now()
	if len(u.rows) == 0 {
		u.started = now
	}
	u.rows = append(u.rows, row{Timestamp: now.UnixMilli(), Type: string(event.Type()), Event: string(data)})
	if len(u.rows) >= u.maxEvents || now.Sub(u.started) >= u.timeout {
		return u.Flush(ctx)
	}
	return nil
}

func (u *uploader) Flush(ctx context.Context) error {
	if len(u.rows) == 0 {
		return nil
	}
	body, contentType, err := u.encode()
	if err != nil {
		return err
	}
	key := path.Join(u.prefix, u.started.UTC().Format("2006/01/02"), uuid.NewString()+"."+string(u.encoding))
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("aws_s3 sink: put %q: %w", key, err)
	}
	u.rows = u.rows[:0]
	return nil
}

func (u *uploader) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	if u.encoding == EncodingParquet {
		if err := parquet.Write(&buf, u.rows); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "application/vnd.apache.parquet", nil
	}
	for _, r := range u.rows {
		buf.WriteString(r.Event)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), "application/x-ndjson", nil
}
