package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"wikiwatch/internal/config"
	"wikiwatch/internal/watch"
)

const versionMetadataKey = "wikiwatch-version"

// s3API is the subset of *s3.Client the archive calls.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archive stores snapshots as objects under <prefix>snapshots/<name>.
// The version travels as object metadata.
type S3Archive struct {
	name     string
	bucket   string
	prefix   string
	client   s3API
	uploader uploader
}

var _ watch.Archive = (*S3Archive)(nil)

// NewS3Archive builds an S3 client from cfg. Static credentials are used
// when both key fields are set; otherwise the default AWS chain applies.
// A custom endpoint switches to path-style addressing for S3-compatible stores.
func NewS3Archive(ctx context.Context, cfg config.ArchiveConfig) (*S3Archive, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 archive requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3KeyID != "" && cfg.S3Secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3KeyID, cfg.S3Secret, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Archive(cfg.Name, cfg.S3Bucket, cfg.S3Prefix, client, manager.NewUploader(client)), nil
}

func newS3Archive(name, bucket, prefix string, client s3API, up uploader) *S3Archive {
	return &S3Archive{
		name:     name,
		bucket:   bucket,
		prefix:   prefix,
		client:   client,
		uploader: up,
	}
}

func (a *S3Archive) key(name string) string {
	return a.prefix + path.Join("snapshots", name)
}

func (a *S3Archive) PutSnapshot(ctx context.Context, name string, r io.Reader, size int64, version int64) error {
	if err := validateName(name); err != nil {
		return err
	}

	counted := &countingReader{r: r}
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(a.bucket),
		Key:      aws.String(a.key(name)),
		Body:     counted,
		Metadata: map[string]string{versionMetadataKey: strconv.FormatInt(version, 10)},
	})
	if err != nil {
		return fmt.Errorf("uploading snapshot %s: %w", name, err)
	}
	if counted.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counted.n)
	}
	return nil
}

func (a *S3Archive) GetSnapshot(ctx context.Context, name string, w io.Writer) error {
	if err := validateName(name); err != nil {
		return err
	}

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		return fmt.Errorf("downloading snapshot %s: %w", name, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading snapshot %s: %w", name, err)
	}
	return nil
}

// SnapshotVersion returns 0 if the object does not exist.
func (a *S3Archive) SnapshotVersion(ctx context.Context, name string) (int64, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}

	out, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading snapshot metadata: %w", err)
	}

	raw, ok := out.Metadata[versionMetadataKey]
	if !ok {
		return 0, nil
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (a *S3Archive) ValidateSetup(ctx context.Context) error {
	if _, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)}); err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", a.bucket, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
