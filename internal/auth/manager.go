// Package auth turns the configured git credentials into go-git transport auth.
package auth

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/repodeploy/internal/config"
	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
)

// Provider builds authentication for one config.AuthType.
type Provider interface {
	Type() config.AuthType
	CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error)
}

// Manager dispatches to the provider registered for each auth type.
type Manager struct {
	providers map[config.AuthType]Provider
}

// NewManager creates a manager with the standard providers.
func NewManager() *Manager {
	m := &Manager{providers: make(map[config.AuthType]Provider)}
	m.Register(noneProvider{})
	m.Register(sshProvider{})
	m.Register(tokenProvider{})
	m.Register(basicProvider{})
	return m
}

// Register adds or replaces a provider.
func (m *Manager) Register(p Provider) {
	m.providers[p.Type()] = p
}

// CreateAuth returns nil, nil when no authentication is configured.
func (m *Manager) CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	if authCfg.IsZero() {
		return nil, nil
	}
	p, ok := m.providers[authCfg.Type]
	if !ok {
		return nil, errors.AuthError("unsupported authentication type").
			WithContext("type", string(authCfg.Type)).Build()
	}
	method, err := p.CreateAuth(authCfg)
	if err != nil {
		return nil, errors.AuthError("failed to create authentication").
			WithCause(err).
			WithContext("type", string(authCfg.Type)).
			Build()
	}
	return method, nil
}

// DefaultManager is a package-level instance for convenience.
var DefaultManager = NewManager()

// CreateAuth is a convenience function that uses the default manager.
func CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	return DefaultManager.CreateAuth(authCfg)
}

type noneProvider struct{}

func (noneProvider) Type() config.AuthType { return config.AuthTypeNone }

func (noneProvider) CreateAuth(*config.AuthConfig) (transport.AuthMethod, error) { return nil, nil }

type sshProvider struct{}

func (sshProvider) Type() config.AuthType { return config.AuthTypeSSH }

func (sshProvider) CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	keyPath := authCfg.KeyPath
	if keyPath == "" {
		keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
	}
	publicKeys, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key from %s: %w", keyPath, err)
	}
	return publicKeys, nil
}

type tokenProvider struct{}

func (tokenProvider) Type() config.AuthType { return config.AuthTypeToken }

func (tokenProvider) CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	if authCfg.Token == "" {
		return nil, fmt.Errorf("token authentication requires a token")
	}
	// Most Git hosting services use "token" as the username for token auth
	return &http.BasicAuth{Username: "token", Password: authCfg.Token}, nil
}

type basicProvider struct{}

func (basicProvider) Type() config.AuthType { return config.AuthTypeBasic }

func (basicProvider) CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	if authCfg.Username == "" || authCfg.Password == "" {
		return nil, fmt.Errorf("basic authentication requires username and password")
	}
	return &http.BasicAuth{Username: authCfg.Username, Password: authCfg.Password}, nil
}
