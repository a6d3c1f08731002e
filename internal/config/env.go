package config

import (
	"os"
	"strings"
)

// EnvPrefix is prepended to upper-cased keys to form override variable names,
// e.g. REPODEPLOY_REPOSITORY overrides repository.
const EnvPrefix = "REPODEPLOY_"

// knownKeys lists the keys that may be supplied through the environment.
var knownKeys = []string{
	"repository", "directory", "identity", "pre_hooks", "post_hooks", "schedule",
	"aws_access_key", "aws_secret_key", "aws_region", "s3_endpoint",
	"git_auth", "git_username", "git_password", "git_token", "git_ssh_key",
	"http_timeout", "hook_timeout",
	"retry_max", "retry_backoff", "retry_initial", "retry_max_delay",
	"metrics_addr", "nats_url", "nats_subject", "log_level", "ec2_user_data",
}

// applyEnvOverrides replaces file values with non-empty REPODEPLOY_* variables.
func applyEnvOverrides(raw map[string]string) {
	for _, key := range knownKeys {
		if v, ok := os.LookupEnv(EnvPrefix + strings.ToUpper(key)); ok && v != "" {
			raw[key] = v
		}
	}
}
