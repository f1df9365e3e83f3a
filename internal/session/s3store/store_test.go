package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin/internal/session"
)

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
	putErr  error
	types   map[string]string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

const testID = "3f2c1b7e-8a4d-4c6b-9e21-5d7a0f3b2c11"

func TestStoreRoundTrip(t *testing.T) {
	objects := newFakeObjects()
	store, err := New(objects, "twin-memory", WithPrefix("/sessions/"))
	require.NoError(t, err)
	ctx := context.Background()

	turns := []session.Turn{
		{Role: session.RoleUser, Content: "hello"},
		{Role: session.RoleAssistant, Content: "hi there"},
	}
	require.NoError(t, store.Save(ctx, testID, turns))
	assert.Contains(t, objects.objects, "twin-memory/sessions/"+testID+".json")
	assert.Equal(t, "application/json", objects.types["twin-memory/sessions/"+testID+".json"])

	got, err := store.Load(ctx, testID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, session.RoleUser, got[0].Role)
	assert.Equal(t, "hi there", got[1].Content)
}

func TestStoreMissingObjectIsEmpty(t *testing.T) {
	store, err := New(newFakeObjects(), "bucket")
	require.NoError(t, err)

	got, err := store.Load(context.Background(), testID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStoreGenericNotFoundCode(t *testing.T) {
	objects := newFakeObjects()
	objects.getErr = &smithy.GenericAPIError{Code: "NotFound", Message: "not found"}
	store, err := New(objects, "bucket")
	require.NoError(t, err)

	got, err := store.Load(context.Background(), testID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStorePropagatesBackendErrors(t *testing.T) {
	objects := newFakeObjects()
	objects.getErr = &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	objects.putErr = errors.New("network down")
	store, err := New(objects, "bucket")
	require.NoError(t, err)

	_, err = store.Load(context.Background(), testID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")

	err = store.Save(context.Background(), testID, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
}

func TestStoreMalformedObject(t *testing.T) {
	objects := newFakeObjects()
	objects.objects["bucket/"+testID+".json"] = []byte(`{"role":"user"}`)
	store, err := New(objects, "bucket")
	require.NoError(t, err)

	_, err = store.Load(context.Background(), testID)
	assert.ErrorIs(t, err, session.ErrMalformed)
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, "bucket")
	require.Error(t, err)
	_, err = New(newFakeObjects(), " ")
	require.Error(t, err)
}
