package config

import (
	"os"
	"slices"
	"strings"
)

// hostname is replaced in tests.
var hostname = os.Hostname

// hostIdentity derives a default identity from the host name with its labels
// reversed, e.g. web1.prod.example.com becomes com.example.prod.web1.
func hostIdentity() string {
	host, err := hostname()
	if err != nil || host == "" {
		return ""
	}
	labels := strings.Split(strings.TrimSuffix(host, "."), ".")
	slices.Reverse(labels)
	return strings.Join(labels, ".")
}
