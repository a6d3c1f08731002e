package config

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
)

// Snapshot computes a stable hash of the effective configuration: every raw
// key after environment overrides plus the resolved defaults. Two configs with
// the same snapshot build the same engine.
func (c *Config) Snapshot() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(k, v string) {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	for _, k := range slices.Sorted(maps.Keys(c.Raw)) {
		w(k, c.Raw[k])
	}
	w("@directory", c.Directory)
	w("@identity", c.Identity)
	w("@git_auth", string(c.GitAuth.Type))
	return hex.EncodeToString(h.Sum(nil))
}
