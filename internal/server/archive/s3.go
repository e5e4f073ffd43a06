package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Config describes a MinIO-compatible endpoint with static credentials.
type S3Config struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes one JSON-lines object per call.
type S3Archiver struct {
	client putObjectAPI
	bucket string
	clock  timex.Clock
	newID  func() string
}

func NewS3Archiver(ctx context.Context, c S3Config, clock timex.Clock) (*S3Archiver, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3Archiver(client, c.Bucket, clock), nil
}

func newS3Archiver(client putObjectAPI, bucket string, clock timex.Clock) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		clock:  clock,
		newID:  func() string { return uuid.NewString() },
	}
}

// ObjectKey returns the key for an archive written at t.
func ObjectKey(t time.Time, id string) string {
	t = t.UTC()
	return fmt.Sprintf("refresh-tokens/swept/%04d/%02d/%02d/%s.jsonl", t.Year(), t.Month(), t.Day(), id)
}

func (a *S3Archiver) Archive(ctx context.Context, rows []*models.RefreshToken) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range rows {
		if err := enc.Encode(NewRecord(r)); err != nil {
			return "", fmt.Errorf("encode record %d: %w", r.ID, err)
		}
	}

	key := ObjectKey(a.clock.Now(), a.newID())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}
