// Package storage archives persisted pipeline results to S3-compatible object
// storage such as DigitalOcean Spaces.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nijaru/yt-sentiment/config"
	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/models"
	"github.com/nijaru/yt-sentiment/repository"
)

// Archiver copies a persisted result somewhere durable.
type Archiver interface {
	ArchiveResult(ctx context.Context, target repository.Target, result *models.PipelineResult) error
}

// ObjectAPI is the subset of the S3 client the archive needs.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type SpacesClient struct {
	client ObjectAPI
	bucket string
}

func NewSpacesClient(ctx context.Context, cfg config.SpacesConfig) (*SpacesClient, error) {
	const op = "storage.NewSpacesClient"

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, errors.Internal(op, err, "unable to load SDK config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewSpacesClientWithAPI(client, cfg.Bucket), nil
}

// NewSpacesClientWithAPI wraps an existing object client.
func NewSpacesClientWithAPI(client ObjectAPI, bucket string) *SpacesClient {
	return &SpacesClient{client: client, bucket: bucket}
}

// ObjectKey returns where a result for videoID is archived.
func ObjectKey(target repository.Target, videoID string) string {
	if target == "" {
		target = repository.TargetLive
	}
	return fmt.Sprintf("analyses/%s/%s.json", target, videoID)
}

func (s *SpacesClient) ArchiveResult(ctx context.Context, target repository.Target, result *models.PipelineResult) error {
	const op = "storage.ArchiveResult"

	if result == nil || result.VideoID == "" {
		return errors.InvalidInput(op, nil, "result with video id required")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "failed to marshal result")
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(ObjectKey(target, result.VideoID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.E(errors.KindPersistenceError, op, err, "failed to save to Spaces")
	}
	return nil
}

// FetchResult reads an archived result back.
func (s *SpacesClient) FetchResult(ctx context.Context, target repository.Target, videoID string) (*models.PipelineResult, error) {
	const op = "storage.FetchResult"

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ObjectKey(target, videoID)),
	})
	if err != nil {
		return nil, errors.E(errors.KindPersistenceError, op, err, "failed to get from Spaces")
	}
	defer out.Body.Close()

	var result models.PipelineResult
	if err := json.NewDecoder(out.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to decode archived result")
	}
	return &result, nil
}
