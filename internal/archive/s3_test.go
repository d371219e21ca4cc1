package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeObject struct {
	data     []byte
	metadata map[string]string
}

// fakeS3 implements s3API and uploader on top of a map.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string]fakeObject
	bucketErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]fakeObject)}
}

func (f *fakeS3) Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = fakeObject{data: data, metadata: in.Metadata}
	return &manager.UploadOutput{Key: in.Key}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{Metadata: obj.metadata}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.bucketErr
}

func TestS3Archive_ObjectKeys(t *testing.T) {
	fake := newFakeS3()
	a := newS3Archive("offsite", "bucket", "team/", fake, fake)

	if err := a.PutSnapshot(context.Background(), "wikiwatch.db", strings.NewReader("abc"), 3, 9); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}

	obj, ok := fake.objects["team/snapshots/wikiwatch.db"]
	if !ok {
		t.Fatalf("object not stored under expected key, have %v", fake.objects)
	}
	if obj.metadata[versionMetadataKey] != "9" {
		t.Errorf("version metadata = %q, want %q", obj.metadata[versionMetadataKey], "9")
	}
}

func TestS3Archive_ValidateSetup(t *testing.T) {
	fake := newFakeS3()
	fake.bucketErr = errors.New("access denied")
	a := newS3Archive("offsite", "bucket", "", fake, fake)

	if err := a.ValidateSetup(context.Background()); err == nil {
		t.Error("ValidateSetup() expected error when bucket is not accessible")
	}
}
