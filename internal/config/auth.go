package config

import "strings"

// AuthType enumerates supported git authentication methods.
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeSSH   AuthType = "ssh"
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
)

// NormalizeAuthType converts user input (case-insensitive) into a typed method, returning empty string for unknown.
func NormalizeAuthType(raw string) AuthType {
	switch AuthType(strings.ToLower(strings.TrimSpace(raw))) {
	case AuthTypeNone:
		return AuthTypeNone
	case AuthTypeSSH:
		return AuthTypeSSH
	case AuthTypeToken:
		return AuthTypeToken
	case AuthTypeBasic:
		return AuthTypeBasic
	default:
		return ""
	}
}

// IsValid reports whether the method is one of the known constants.
func (a AuthType) IsValid() bool {
	switch a {
	case AuthTypeNone, AuthTypeSSH, AuthTypeToken, AuthTypeBasic:
		return true
	default:
		return false
	}
}

// AuthConfig represents git authentication configuration.
type AuthConfig struct {
	Type     AuthType
	Username string
	Password string
	Token    string
	KeyPath  string
}

// IsZero reports whether no auth method specified.
func (a *AuthConfig) IsZero() bool { return a == nil || a.Type == "" || a.Type == AuthTypeNone }

func inferAuthType(a AuthConfig) AuthType {
	switch {
	case a.KeyPath != "":
		return AuthTypeSSH
	case a.Token != "":
		return AuthTypeToken
	case a.Username != "" && a.Password != "":
		return AuthTypeBasic
	default:
		return AuthTypeNone
	}
}
