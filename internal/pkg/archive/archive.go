// Package archive stores raw webhook payloads in an S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/comanda/internal/pkg/config"
)

type Archive struct {
	s3Client *s3.Client
	bucket   string
	prefix   string
	log      *logrus.Entry
}

// New creates the archive client and checks that the bucket is reachable.
// It returns (nil, nil) when archiving is disabled.
func New(ctx context.Context, cfg config.Archive, log *logrus.Entry) (*Archive, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "load AWS config")
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible providers (B2, MinIO) need path-style URLs.
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	a := &Archive{
		s3Client: s3Client,
		bucket:   cfg.BucketName,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		log:      log.WithField("component", "archive"),
	}
	if _, err := s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)}); err != nil {
		return nil, errors.Wrapf(err, "bucket %s not accessible", a.bucket)
	}

	a.log.WithField("bucket", a.bucket).Info("webhook payload archive enabled")
	return a, nil
}

// ObjectKey returns prefix/YYYY/MM/DD/<event id>.json for a payload
// received at receivedAt.
func ObjectKey(prefix, eventID string, receivedAt time.Time) string {
	receivedAt = receivedAt.UTC()
	if eventID == "" {
		eventID = fmt.Sprintf("unknown-%d", receivedAt.UnixNano())
	}
	key := fmt.Sprintf("%04d/%02d/%02d/%s.json", receivedAt.Year(), receivedAt.Month(), receivedAt.Day(), eventID)
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// Store uploads payload under its object key.
func (a *Archive) Store(ctx context.Context, eventID string, payload []byte, receivedAt time.Time) error {
	key := ObjectKey(a.prefix, eventID, receivedAt)
	_, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(payload))),
		Metadata: map[string]string{
			"event-id":      eventID,
			"upload-source": "comanda-billing",
		},
	})
	if err != nil {
		return errors.Wrapf(err, "upload s3://%s/%s", a.bucket, key)
	}

	a.log.WithField("key", key).Debug("archived webhook payload")
	return nil
}
