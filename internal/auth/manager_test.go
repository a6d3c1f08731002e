package auth

import (
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/repodeploy/internal/config"
	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
)

func TestManager_CreateAuth(t *testing.T) {
	manager := NewManager()

	tests := []struct {
		name        string
		authConfig  *config.AuthConfig
		expectNil   bool
		expectError bool
	}{
		{name: "nil config", authConfig: nil, expectNil: true},
		{name: "none auth", authConfig: &config.AuthConfig{Type: config.AuthTypeNone}, expectNil: true},
		{name: "token auth - valid", authConfig: &config.AuthConfig{Type: config.AuthTypeToken, Token: "test-token"}},
		{name: "token auth - missing token", authConfig: &config.AuthConfig{Type: config.AuthTypeToken}, expectNil: true, expectError: true},
		{name: "basic auth - valid", authConfig: &config.AuthConfig{Type: config.AuthTypeBasic, Username: "u", Password: "p"}},
		{name: "basic auth - missing password", authConfig: &config.AuthConfig{Type: config.AuthTypeBasic, Username: "u"}, expectNil: true, expectError: true},
		{name: "ssh auth - missing key", authConfig: &config.AuthConfig{Type: config.AuthTypeSSH, KeyPath: filepath.Join(t.TempDir(), "id_missing")}, expectNil: true, expectError: true},
		{name: "unknown type", authConfig: &config.AuthConfig{Type: "kerberos"}, expectNil: true, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method, err := manager.CreateAuth(tt.authConfig)
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, errors.HasCategory(err, errors.CategoryAuth))
			} else {
				require.NoError(t, err)
			}
			if tt.expectNil {
				assert.Nil(t, method)
			} else {
				assert.NotNil(t, method)
			}
		})
	}
}

func TestTokenAuthUsesTokenUsername(t *testing.T) {
	method, err := CreateAuth(&config.AuthConfig{Type: config.AuthTypeToken, Token: "abc"})
	require.NoError(t, err)
	basic, ok := method.(*http.BasicAuth)
	require.True(t, ok)
	assert.Equal(t, "token", basic.Username)
	assert.Equal(t, "abc", basic.Password)
}
