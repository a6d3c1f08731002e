package source

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/repodeploy/internal/logfields"
	"git.home.luguber.info/inful/repodeploy/internal/workspace"
)

// ObjectAPI is the subset of the S3 client used by S3Source.
type ObjectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configures the S3 client built by NewS3Client.
type S3Options struct {
	Region    string
	Endpoint  string // custom endpoint, e.g. a MinIO server
	AccessKey string
	SecretKey string
	// KeyFile holds accessKey= and secretKey= lines. It is consulted when no
	// keys are configured; when it is absent the default AWS chain applies.
	KeyFile string
}

// DefaultKeyFile returns ~/.amazon/account-key.
func DefaultKeyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".amazon", "account-key")
}

// NewS3Client builds an S3 client from explicit keys, the key file, or the
// default credential chain, in that order.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}

	accessKey, secretKey := opts.AccessKey, opts.SecretKey
	if accessKey == "" && opts.KeyFile != "" {
		if values, err := godotenv.Read(opts.KeyFile); err == nil {
			accessKey, secretKey = values["accessKey"], values["secretKey"]
		} else if !os.IsNotExist(err) {
			return nil, errors.ConfigError("cannot read AWS key file").WithCause(err).WithContext("path", opts.KeyFile).Build()
		}
	}
	if accessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.ConfigError("unable to load AWS SDK config").WithCause(err).Build()
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Source polls a zip archive stored as an S3 object.
type S3Source struct {
	api    ObjectAPI
	bucket string
	key    string
	work   *workspace.Manager
	logger *slog.Logger
}

// NewS3Source creates a source for bucket/key using api.
func NewS3Source(api ObjectAPI, bucket, key string, work *workspace.Manager, logger *slog.Logger) *S3Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Source{api: api, bucket: bucket, key: key, work: work, logger: logger}
}

func (s *S3Source) Kind() Kind     { return KindObjectStorage }
func (s *S3Source) Linkable() bool { return false }

// Current returns the object's entity tag without quotes.
func (s *S3Source) Current(ctx context.Context) (Version, bool, error) {
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isNotFound(err) {
			s.logger.Debug("Remote object not found", logfields.URL(s.location()))
			return "", false, nil
		}
		return "", false, s.classify("s3 head failed", err)
	}
	etag := strings.Trim(aws.ToString(out.ETag), `"`)
	return Version(etag), etag != "", nil
}

// Fetch downloads the object into the cache and unpacks it.
func (s *S3Source) Fetch(ctx context.Context) (Artifact, bool, error) {
	cache, err := s.work.Fresh(workspace.CacheDir)
	if err != nil {
		return Artifact{}, false, errors.FileSystemError("cannot prepare cache directory").WithCause(err).Build()
	}

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isNotFound(err) {
			s.logger.Warn("Remote object disappeared before fetch", logfields.URL(s.location()))
			return Artifact{}, false, nil
		}
		return Artifact{}, false, s.classify("s3 get failed", err)
	}
	defer func() { _ = out.Body.Close() }()

	archive := filepath.Join(cache, path.Base(s.key))
	if err := writeFile(out.Body, archive); err != nil {
		return Artifact{}, false, errors.NetworkError("failed to download object").
			WithCause(err).WithContext("url", s.location()).Build()
	}

	unpacked, err := s.work.Fresh(workspace.UnpackedDir)
	if err != nil {
		return Artifact{}, false, errors.FileSystemError("cannot prepare unpack directory").WithCause(err).Build()
	}
	if err := Unzip(archive, unpacked); err != nil {
		return Artifact{}, false, err
	}
	return Artifact{Version: Version(strings.Trim(aws.ToString(out.ETag), `"`)), Path: unpacked}, true, nil
}

func (s *S3Source) location() string { return "s3://" + s.bucket + "/" + s.key }

func (s *S3Source) classify(msg string, err error) error {
	b := errors.TransportError(msg).WithCause(err).WithContext("url", s.location())
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "Forbidden", "403":
			return b.WithCategory(errors.CategoryAuth).UserAction().Build()
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable":
			return b.Retryable().Build()
		}
		return b.Build()
	}
	return b.WithCategory(errors.CategoryNetwork).Retryable().Build()
}

// isNotFound recognises the missing-object errors S3 returns for HEAD and GET.
func isNotFound(err error) bool {
	var notFound *s3types.NotFound
	var noSuchKey *s3types.NoSuchKey
	if stderrors.As(err, &notFound) || stderrors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket", "404":
			return true
		}
	}
	return false
}

func writeFile(r io.Reader, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
