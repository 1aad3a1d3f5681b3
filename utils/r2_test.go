package utils

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	key, bucket, contentType string
	body                     []byte
	err                      error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = *in.Key
	f.bucket = *in.Bucket
	f.contentType = *in.ContentType
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestR2ArchivePutJSON(t *testing.T) {
	put := &fakePutter{}
	archive := &R2Archive{Client: put, Bucket: "standings"}

	err := archive.PutJSON(context.Background(), "leagues/2026-10-12/bronze.json", map[string]int{"rank": 1})
	require.NoError(t, err)

	assert.Equal(t, "standings", put.bucket)
	assert.Equal(t, "leagues/2026-10-12/bronze.json", put.key)
	assert.Equal(t, "application/json", put.contentType)
	assert.JSONEq(t, `{"rank":1}`, string(put.body))
}

func TestR2ArchivePutJSONUploadError(t *testing.T) {
	archive := &R2Archive{Client: &fakePutter{err: errors.New("boom")}, Bucket: "b"}

	err := archive.PutJSON(context.Background(), "k.json", []int{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "k.json")
}
