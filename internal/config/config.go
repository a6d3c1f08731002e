package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
)

// Default locations, matching the layout installed by the packaging scripts.
const (
	DefaultPath        = "/etc/repo-deploy/repo-deploy.cfg"
	DefaultPreHooks    = "/etc/repo-deploy/pre-update.d"
	DefaultPostHooks   = "/etc/repo-deploy/post-update.d"
	DefaultSchedule    = "* * * * *"
	DefaultAWSRegion   = "us-east-1"
	DefaultNATSSubject = "repodeploy.updates"

	versionFileName = "current.version"
	activeDirName   = "current"
	workDirName     = "work"
)

// Config is the agent configuration produced from a KEY = VALUE file.
type Config struct {
	Path string // file the configuration was read from

	Repository string
	Directory  string
	Identity   string
	PreHooks   string
	PostHooks  string
	Schedule   string

	AWSAccessKey string
	AWSSecretKey string
	AWSRegion    string
	S3Endpoint   string

	GitAuth AuthConfig

	HTTPTimeout time.Duration
	HookTimeout time.Duration

	RetryMax      int
	RetryBackoff  RetryBackoffMode
	RetryInitial  time.Duration
	RetryMaxDelay time.Duration

	MetricsAddr string
	NATSURL     string
	NATSSubject string

	LogLevel LogLevel

	// Raw holds every key from the file (lowercased) after environment overrides.
	Raw map[string]string
}

// VersionFile is the path of the persisted version identifier.
func (c *Config) VersionFile() string { return filepath.Join(c.Directory, versionFileName) }

// ActiveDir is the well-known directory the rest of the host observes.
func (c *Config) ActiveDir() string { return filepath.Join(c.Directory, activeDirName) }

// WorkDir is the root of the transport working area.
func (c *Config) WorkDir() string { return filepath.Join(c.Directory, workDirName) }

// Load reads the configuration file, applies REPODEPLOY_* environment overrides,
// fills defaults and validates the result.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.ConfigError("configuration file not found").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.ConfigError("failed to parse configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	cfg, err := FromValues(values)
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	return cfg, nil
}

// FromValues builds a Config from already parsed key/value pairs.
func FromValues(values map[string]string) (*Config, error) {
	raw := make(map[string]string, len(values))
	for k, v := range values {
		raw[normalizeKey(k)] = strings.TrimSpace(v)
	}
	applyEnvOverrides(raw)
	if err := applyInstanceData(raw); err != nil {
		return nil, err
	}

	cfg := &Config{
		Repository:   raw["repository"],
		Directory:    raw["directory"],
		Identity:     raw["identity"],
		PreHooks:     raw["pre_hooks"],
		PostHooks:    raw["post_hooks"],
		Schedule:     raw["schedule"],
		AWSAccessKey: raw["aws_access_key"],
		AWSSecretKey: raw["aws_secret_key"],
		AWSRegion:    raw["aws_region"],
		S3Endpoint:   raw["s3_endpoint"],
		MetricsAddr:  raw["metrics_addr"],
		NATSURL:      raw["nats_url"],
		NATSSubject:  raw["nats_subject"],
		RetryBackoff: NormalizeRetryBackoff(raw["retry_backoff"]),
		LogLevel:     NormalizeLogLevel(raw["log_level"]),
		GitAuth: AuthConfig{
			Type:     NormalizeAuthType(raw["git_auth"]),
			Username: raw["git_username"],
			Password: raw["git_password"],
			Token:    raw["git_token"],
			KeyPath:  raw["git_ssh_key"],
		},
		Raw: raw,
	}

	if v := raw["git_auth"]; v != "" && cfg.GitAuth.Type == "" {
		return nil, invalidValue("git_auth", v, fmt.Errorf("expected none, ssh, token or basic"))
	}
	if v := raw["retry_backoff"]; v != "" && cfg.RetryBackoff == "" {
		return nil, invalidValue("retry_backoff", v, fmt.Errorf("expected fixed, linear or exponential"))
	}

	var err error
	if cfg.HTTPTimeout, err = parseDuration(raw, "http_timeout"); err != nil {
		return nil, err
	}
	if cfg.HookTimeout, err = parseDuration(raw, "hook_timeout"); err != nil {
		return nil, err
	}
	if cfg.RetryInitial, err = parseDuration(raw, "retry_initial"); err != nil {
		return nil, err
	}
	if cfg.RetryMaxDelay, err = parseDuration(raw, "retry_max_delay"); err != nil {
		return nil, err
	}
	if v := raw["retry_max"]; v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return nil, invalidValue("retry_max", v, convErr)
		}
		cfg.RetryMax = n
	}

	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) error {
	if cfg.Directory == "" {
		wd, err := os.Getwd()
		if err != nil {
			return errors.ConfigError("cannot determine working directory").WithCause(err).Build()
		}
		cfg.Directory = wd
	}
	abs, err := filepath.Abs(cfg.Directory)
	if err != nil {
		return invalidValue("directory", cfg.Directory, err)
	}
	cfg.Directory = abs

	if cfg.PreHooks == "" {
		cfg.PreHooks = DefaultPreHooks
	}
	if cfg.PostHooks == "" {
		cfg.PostHooks = DefaultPostHooks
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.AWSRegion == "" {
		cfg.AWSRegion = DefaultAWSRegion
	}
	if cfg.NATSSubject == "" {
		cfg.NATSSubject = DefaultNATSSubject
	}
	if cfg.RetryBackoff == "" {
		cfg.RetryBackoff = RetryBackoffLinear
	}
	if cfg.Identity == "" {
		cfg.Identity = hostIdentity()
	}
	if cfg.GitAuth.Type == "" {
		cfg.GitAuth.Type = inferAuthType(cfg.GitAuth)
	}
	return nil
}

// Validate checks the fields required to start the agent.
func Validate(cfg *Config) error {
	if cfg.Repository == "" {
		return errors.ConfigError("no repository configured").WithContext("key", "repository").Build()
	}
	if cfg.Identity == "" {
		return errors.ConfigError("no identity set").WithContext("key", "identity").Build()
	}
	if cfg.RetryMax < 0 {
		return invalidValue("retry_max", strconv.Itoa(cfg.RetryMax), fmt.Errorf("must not be negative"))
	}
	if !cfg.GitAuth.Type.IsValid() {
		return invalidValue("git_auth", string(cfg.GitAuth.Type), fmt.Errorf("expected none, ssh, token or basic"))
	}
	return nil
}

func parseDuration(raw map[string]string, key string) (time.Duration, error) {
	v := raw[key]
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, invalidValue(key, v, err)
	}
	return d, nil
}

func invalidValue(key, value string, cause error) error {
	return errors.ConfigError("invalid configuration value").
		WithCause(cause).
		WithContext("key", key).
		WithContext("value", value).
		Build()
}

func normalizeKey(k string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(k)), "-", "_")
}
