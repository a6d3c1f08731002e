package config

import "testing"

func TestNormalizeAuthType(t *testing.T) {
	tests := []struct {
		input    string
		expected AuthType
	}{
		{"ssh", AuthTypeSSH},
		{"SSH", AuthTypeSSH},
		{"token", AuthTypeToken},
		{"basic", AuthTypeBasic},
		{"None", AuthTypeNone},
		{"  ssh  ", AuthTypeSSH},
		{"invalid", ""},
		{"", ""},
	}

	for _, test := range tests {
		result := NormalizeAuthType(test.input)
		if result != test.expected {
			t.Errorf("NormalizeAuthType(%q) = %q, want %q", test.input, result, test.expected)
		}
	}
}

func TestInferAuthType(t *testing.T) {
	tests := []struct {
		name     string
		auth     AuthConfig
		expected AuthType
	}{
		{"key wins", AuthConfig{KeyPath: "/k", Token: "t"}, AuthTypeSSH},
		{"token", AuthConfig{Token: "t", Username: "u"}, AuthTypeToken},
		{"basic", AuthConfig{Username: "u", Password: "p"}, AuthTypeBasic},
		{"username only", AuthConfig{Username: "u"}, AuthTypeNone},
		{"empty", AuthConfig{}, AuthTypeNone},
	}
	for _, test := range tests {
		if got := inferAuthType(test.auth); got != test.expected {
			t.Errorf("%s: inferAuthType = %q, want %q", test.name, got, test.expected)
		}
	}
}
