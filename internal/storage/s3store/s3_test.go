package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/ButyrinIA/bookblog/internal/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// мок для интерфейса Client
type mockClient struct {
	mock.Mock
}

func (m *mockClient) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, aws.ToString(params.Bucket), aws.ToString(params.Key))
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(params.Body)
	args := m.Called(ctx, aws.ToString(params.Bucket), aws.ToString(params.Key), string(body))
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, aws.ToString(params.Bucket), aws.ToString(params.Key))
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func TestGet(t *testing.T) {
	client := &mockClient{}
	client.On("GetObject", mock.Anything, "bucket", "state/blog_posts.json").
		Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString(`[]`))}, nil)

	store := NewWithClient(client, "bucket", "state")
	value, err := store.Get(context.Background(), "blog_posts")

	assert.NoError(t, err)
	assert.Equal(t, `[]`, string(value))
	client.AssertExpectations(t)
}

func TestGet_NoSuchKey(t *testing.T) {
	client := &mockClient{}
	client.On("GetObject", mock.Anything, "bucket", "missing.json").
		Return(nil, &types.NoSuchKey{Message: aws.String("no such key")})

	store := NewWithClient(client, "bucket", "")
	_, err := store.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, storage.ErrNotFound)
	client.AssertExpectations(t)
}

func TestGet_OtherError(t *testing.T) {
	client := &mockClient{}
	client.On("GetObject", mock.Anything, "bucket", "k.json").Return(nil, errors.New("access denied"))

	store := NewWithClient(client, "bucket", "")
	_, err := store.Get(context.Background(), "k")

	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestSetAndRemove(t *testing.T) {
	client := &mockClient{}
	client.On("PutObject", mock.Anything, "bucket", "p/bookstore_rentals.json", `[{"id":"r1"}]`).
		Return(&s3.PutObjectOutput{}, nil)
	client.On("DeleteObject", mock.Anything, "bucket", "p/bookstore_rentals.json").
		Return(&s3.DeleteObjectOutput{}, nil)

	store := NewWithClient(client, "bucket", "p/")
	ctx := context.Background()

	assert.NoError(t, store.Set(ctx, "bookstore_rentals", []byte(`[{"id":"r1"}]`)))
	assert.NoError(t, store.Remove(ctx, "bookstore_rentals"))
	assert.NoError(t, store.Close())
	client.AssertExpectations(t)
}
