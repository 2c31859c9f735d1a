package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/models"
	"github.com/nijaru/yt-sentiment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryObjects struct {
	objects map[string][]byte
	failPut bool
}

func (m *memoryObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.failPut {
		return nil, fmt.Errorf("access denied")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memoryObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, fmt.Errorf("no such key")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestArchiveRoundTrip(t *testing.T) {
	mem := &memoryObjects{objects: map[string][]byte{}}
	client := NewSpacesClientWithAPI(mem, "bucket")
	ctx := context.Background()

	result := &models.PipelineResult{VideoID: "abc123", Slug: "review-abc123"}
	require.NoError(t, client.ArchiveResult(ctx, repository.TargetPreview, result))
	assert.Contains(t, mem.objects, "bucket/analyses/preview/abc123.json")

	got, err := client.FetchResult(ctx, repository.TargetPreview, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "review-abc123", got.Slug)
}

func TestArchiveFailure(t *testing.T) {
	client := NewSpacesClientWithAPI(&memoryObjects{failPut: true}, "bucket")

	err := client.ArchiveResult(context.Background(), repository.TargetLive, &models.PipelineResult{VideoID: "abc123"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindPersistenceError))
}

func TestArchiveRequiresVideoID(t *testing.T) {
	client := NewSpacesClientWithAPI(&memoryObjects{objects: map[string][]byte{}}, "bucket")

	err := client.ArchiveResult(context.Background(), repository.TargetLive, &models.PipelineResult{})
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestObjectKeyDefaultsToLive(t *testing.T) {
	assert.Equal(t, "analyses/live/x.json", ObjectKey("", "x"))
}
