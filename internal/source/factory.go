package source

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/repodeploy/internal/auth"
	"git.home.luguber.info/inful/repodeploy/internal/config"
	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/repodeploy/internal/logfields"
	"git.home.luguber.info/inful/repodeploy/internal/retry"
	"git.home.luguber.info/inful/repodeploy/internal/workspace"
)

// Options carries the collaborators a transport may need. Zero values select
// defaults; S3 and HTTPClient exist mainly so tests can substitute fakes.
type Options struct {
	Work       *workspace.Manager
	Logger     *slog.Logger
	HTTPClient *http.Client
	S3         ObjectAPI
	S3Options  S3Options
	GitAuth    transport.AuthMethod
}

// New constructs the transport for loc.
func New(ctx context.Context, loc Location, opts Options) (Source, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With(logfields.Kind(loc.Kind.String()))
	switch loc.Kind {
	case KindObjectStorage:
		api := opts.S3
		if api == nil {
			client, err := NewS3Client(ctx, opts.S3Options)
			if err != nil {
				return nil, err
			}
			api = client
		}
		return NewS3Source(api, loc.Bucket, loc.Key, opts.Work, logger), nil
	case KindHTTP:
		return NewHTTPSource(loc.URL, opts.HTTPClient, opts.Work, logger), nil
	case KindGit:
		return NewGitSource(loc, opts.GitAuth, opts.Work, logger), nil
	default:
		return nil, errors.ConfigError("unknown source kind").WithContext("url", loc.Raw).Fatal().Build()
	}
}

// FromConfig parses the configured repository URL and builds its transport,
// wrapped with the configured retry policy.
func FromConfig(ctx context.Context, cfg *config.Config, work *workspace.Manager, logger *slog.Logger) (Source, error) {
	loc, err := Parse(cfg.Repository)
	if err != nil {
		return nil, errors.ConfigError("unsupported repository").
			WithCause(err).
			WithContext("url", cfg.Repository).
			Build()
	}

	opts := Options{Work: work, Logger: logger}
	switch loc.Kind {
	case KindObjectStorage:
		opts.S3Options = S3Options{
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
			KeyFile:   DefaultKeyFile(),
		}
	case KindHTTP:
		opts.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	case KindGit:
		method, err := auth.CreateAuth(&cfg.GitAuth)
		if err != nil {
			return nil, err
		}
		opts.GitAuth = method
	}

	src, err := New(ctx, loc, opts)
	if err != nil {
		return nil, err
	}
	return WithRetry(src, retry.FromConfig(cfg), logger), nil
}
