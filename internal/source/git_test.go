package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/repodeploy/internal/workspace"
)

// testRemote is a bare repository plus a working clone used to push commits into it.
type testRemote struct {
	bare string
	seed *git.Repository
	path string
}

func newTestRemote(t *testing.T) *testRemote {
	t.Helper()
	tmp := t.TempDir()
	bare := filepath.Join(tmp, "remote.git")
	_, err := git.PlainInit(bare, true)
	require.NoError(t, err)

	seedPath := filepath.Join(tmp, "seed")
	seed, err := git.PlainInit(seedPath, false)
	require.NoError(t, err)
	_, err = seed.CreateRemote(&ggitcfg.RemoteConfig{Name: "origin", URLs: []string{bare}})
	require.NoError(t, err)
	return &testRemote{bare: bare, seed: seed, path: seedPath}
}

// commit writes files into the seed, commits and pushes every local branch.
func (r *testRemote) commit(t *testing.T, files map[string]string) plumbing.Hash {
	t.Helper()
	wt, err := r.seed.Worktree()
	require.NoError(t, err)
	for name, content := range files {
		full := filepath.Join(r.path, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
		_, err = wt.Add(name)
		require.NoError(t, err)
	}
	return r.push(t, wt)
}

// push commits the seed's index and pushes every local branch.
func (r *testRemote) push(t *testing.T, wt *git.Worktree) plumbing.Hash {
	t.Helper()
	hash, err := wt.Commit("update", &git.CommitOptions{Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()}})
	require.NoError(t, err)
	err = r.seed.Push(&git.PushOptions{RemoteName: "origin", RefSpecs: []ggitcfg.RefSpec{"refs/heads/*:refs/heads/*"}})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		require.NoError(t, err)
	}
	return hash
}

// linkSubmodule records remote at commit as submodule name and pushes it.
func (r *testRemote) linkSubmodule(t *testing.T, name string, sub *testRemote, commit plumbing.Hash) {
	t.Helper()
	gitmodules := fmt.Sprintf("[submodule %q]\n\tpath = %s\n\turl = %s\n", name, name, sub.bare)
	require.NoError(t, os.WriteFile(filepath.Join(r.path, ".gitmodules"), []byte(gitmodules), 0o600))
	wt, err := r.seed.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(".gitmodules")
	require.NoError(t, err)

	idx, err := r.seed.Storer.Index()
	require.NoError(t, err)
	linked := false
	for _, e := range idx.Entries {
		if e.Name == name {
			e.Hash = commit
			linked = true
		}
	}
	if !linked {
		idx.Entries = append(idx.Entries, &index.Entry{Name: name, Hash: commit, Mode: filemode.Submodule})
	}
	sort.Slice(idx.Entries, func(i, j int) bool { return idx.Entries[i].Name < idx.Entries[j].Name })
	require.NoError(t, r.seed.Storer.SetIndex(idx))
	r.push(t, wt)
}

func newGitSource(t *testing.T, raw string) (*GitSource, *workspace.Manager) {
	t.Helper()
	loc, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, KindGit, loc.Kind)
	work := workspace.NewManager(filepath.Join(t.TempDir(), "work"), nil)
	require.NoError(t, work.Create())
	return NewGitSource(loc, nil, work, nil), work
}

func TestGit_FirstCycle(t *testing.T) {
	remote := newTestRemote(t)
	head := remote.commit(t, map[string]string{"app.conf": "v1"})

	src, work := newGitSource(t, remote.bare)

	v, found, err := src.Current(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Version(head.String()), v)

	art, found, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, v, art.Version)
	assert.Equal(t, work.Path(workspace.GitDir), art.Path)
	assert.FileExists(t, filepath.Join(art.Path, "app.conf"))
	assert.DirExists(t, filepath.Join(work.Path(workspace.GitStageDir), ".git"))
}

func TestGit_PullsNewCommitsAndDiscardsLocalChanges(t *testing.T) {
	remote := newTestRemote(t)
	remote.commit(t, map[string]string{"app.conf": "v1"})

	src, _ := newGitSource(t, remote.bare)
	art, found, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, os.WriteFile(filepath.Join(art.Path, "app.conf"), []byte("tampered"), 0o600))

	second := remote.commit(t, map[string]string{"app.conf": "v2"})
	art2, found, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Version(second.String()), art2.Version)
	assert.Equal(t, art.Path, art2.Path)

	data, err := os.ReadFile(filepath.Join(art2.Path, "app.conf"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestGit_FetchUpdatesSubmodules(t *testing.T) {
	lib := newTestRemote(t)
	first := lib.commit(t, map[string]string{"lib.conf": "one"})

	remote := newTestRemote(t)
	remote.commit(t, map[string]string{"app.conf": "v1"})
	remote.linkSubmodule(t, "lib", lib, first)

	src, _ := newGitSource(t, remote.bare)
	art, found, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	data, err := os.ReadFile(filepath.Join(art.Path, "lib", "lib.conf"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data), "submodule checked out on first clone")

	second := lib.commit(t, map[string]string{"lib.conf": "two"})
	remote.linkSubmodule(t, "lib", lib, second)

	art, found, err = src.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	data, err = os.ReadFile(filepath.Join(art.Path, "lib", "lib.conf"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data), "submodule follows the recorded commit after a pull")
}

func TestGit_Subpath(t *testing.T) {
	remote := newTestRemote(t)
	remote.commit(t, map[string]string{"hosts/web/nginx.conf": "x", "README": "y"})

	src, work := newGitSource(t, remote.bare+"/hosts/web")
	art, found, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, filepath.Join(work.Path(workspace.GitDir), "hosts", "web"), art.Path)

	missing, _ := newGitSource(t, remote.bare+"/hosts/db")
	_, found, err = missing.Current(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGit_Branch(t *testing.T) {
	remote := newTestRemote(t)
	remote.commit(t, map[string]string{"app.conf": "master"})

	wt, err := remote.seed.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("production"), Create: true}))
	prod := remote.commit(t, map[string]string{"app.conf": "production"})

	src, _ := newGitSource(t, remote.bare+"#production")
	art, found, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Version(prod.String()), art.Version)
	data, err := os.ReadFile(filepath.Join(art.Path, "app.conf"))
	require.NoError(t, err)
	assert.Equal(t, "production", string(data))
}

func TestGit_RemoteChangeReclones(t *testing.T) {
	first := newTestRemote(t)
	first.commit(t, map[string]string{"a": "1"})
	second := newTestRemote(t)
	secondHead := second.commit(t, map[string]string{"b": "2"})

	src, work := newGitSource(t, first.bare)
	_, _, err := src.Fetch(context.Background())
	require.NoError(t, err)

	loc, err := Parse(second.bare)
	require.NoError(t, err)
	moved := NewGitSource(loc, nil, work, nil)
	art, found, err := moved.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Version(secondHead.String()), art.Version)
	assert.NoFileExists(t, filepath.Join(art.Path, "a"))
	assert.FileExists(t, filepath.Join(art.Path, "b"))
}

func TestGit_MissingBranchFails(t *testing.T) {
	remote := newTestRemote(t)
	remote.commit(t, map[string]string{"a": "1"})

	src, _ := newGitSource(t, remote.bare+"#does-not-exist")
	_, _, err := src.Current(context.Background())
	require.Error(t, err)
}
