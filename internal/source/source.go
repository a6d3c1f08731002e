// Package source implements the remote transports the agent deploys from.
//
// A Source reports the version currently published by the remote and fetches
// that version into the local work area. Three transports exist: an S3 object
// holding a zip archive, an HTTP resource holding a zip archive, and a git
// branch optionally narrowed to a subdirectory. Only git fetches into a stable
// path, so only git sources are linkable.
package source

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
)

// Version identifies published content. Versions are compared for equality only.
type Version string

func (v Version) String() string { return string(v) }

// Kind names a transport.
type Kind int

const (
	KindObjectStorage Kind = iota + 1
	KindHTTP
	KindGit
)

func (k Kind) String() string {
	switch k {
	case KindObjectStorage:
		return "s3"
	case KindHTTP:
		return "http"
	case KindGit:
		return "git"
	default:
		return "unknown"
	}
}

// Artifact is fetched content ready for activation.
type Artifact struct {
	Version Version
	Path    string
}

// Source is a remote the agent polls.
//
// Current and Fetch report found=false when the remote holds nothing usable;
// that is not an error. Errors abort the calling cycle.
type Source interface {
	Kind() Kind
	Current(ctx context.Context) (Version, bool, error)
	Fetch(ctx context.Context) (Artifact, bool, error)
	// Linkable reports whether fetched content stays at a stable path, so it
	// can be activated through a symlink instead of being moved into place.
	Linkable() bool
}

// ErrUnrecognizedURL is returned by Parse for URLs no transport accepts.
var ErrUnrecognizedURL = stderrors.New("unrecognized repository URL")

const (
	gitMarker     = ".git"
	defaultBranch = "master"
)

// Location is a parsed repository URL.
type Location struct {
	Kind Kind
	Raw  string

	// object storage
	Bucket string
	Key    string

	// http
	URL string

	// git
	Remote  string // clone URL, up to and including the last .git
	Subpath string // path inside the clone, may be empty
	Branch  string
}

// Parse selects a transport for raw. It does not touch the network.
func Parse(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		// scp-like addresses such as git@host:org/app.git are not URLs
		if gitMarkerIndex(raw) >= 0 {
			return parseGit(raw), nil
		}
		return Location{}, fmt.Errorf("%w: %s: %w", ErrUnrecognizedURL, raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("%w: %s: s3 URLs need a bucket and a key", ErrUnrecognizedURL, raw)
		}
		return Location{Kind: KindObjectStorage, Raw: raw, Bucket: u.Host, Key: key}, nil
	case "http", "https":
		// git over http needs the git+ prefix
		if u.Host == "" {
			return Location{}, fmt.Errorf("%w: %s: missing host", ErrUnrecognizedURL, raw)
		}
		return Location{Kind: KindHTTP, Raw: raw, URL: raw}, nil
	case "git+ssh", "git+http", "git+https", "git", "ssh":
		return parseGit(raw), nil
	}
	if gitMarkerIndex(u.Path) >= 0 {
		return parseGit(raw), nil
	}
	return Location{}, fmt.Errorf("%w: %s", ErrUnrecognizedURL, raw)
}

// parseGit splits remote.git/sub/path#branch into its parts.
func parseGit(raw string) Location {
	loc := Location{Kind: KindGit, Raw: raw, Remote: raw, Branch: defaultBranch}
	rest := ""
	if pos := gitMarkerIndex(raw); pos >= 0 {
		end := pos + len(gitMarker)
		loc.Remote = raw[:end]
		rest = raw[end:]
	}
	if pos := strings.LastIndex(rest, "#"); pos >= 0 {
		if branch := rest[pos+1:]; branch != "" {
			loc.Branch = branch
		}
		rest = rest[:pos]
	}
	loc.Subpath = strings.Trim(rest, "/")
	loc.Remote = strings.TrimPrefix(loc.Remote, "git+")
	return loc
}

// gitMarkerIndex returns the position of the last ".git" that ends a path
// segment, or -1.
func gitMarkerIndex(s string) int {
	for i := strings.LastIndex(s, gitMarker); i >= 0; i = strings.LastIndex(s[:i], gitMarker) {
		end := i + len(gitMarker)
		if end == len(s) || s[end] == '/' || s[end] == '#' {
			return i
		}
	}
	return -1
}
