package source

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/repodeploy/internal/logfields"
	"git.home.luguber.info/inful/repodeploy/internal/workspace"
)

// GitSource tracks one branch of a git repository.
//
// Version queries pull into a staging clone (git-work) so that the clone
// backing the active link (git) only moves when the agent decides to deploy.
type GitSource struct {
	remote  string
	branch  string
	subpath string
	auth    transport.AuthMethod
	work    *workspace.Manager
	logger  *slog.Logger
}

// NewGitSource creates a source for loc. auth may be nil.
func NewGitSource(loc Location, auth transport.AuthMethod, work *workspace.Manager, logger *slog.Logger) *GitSource {
	if logger == nil {
		logger = slog.Default()
	}
	branch := loc.Branch
	if branch == "" {
		branch = defaultBranch
	}
	return &GitSource{
		remote:  loc.Remote,
		branch:  branch,
		subpath: loc.Subpath,
		auth:    auth,
		work:    work,
		logger:  logger,
	}
}

func (s *GitSource) Kind() Kind     { return KindGit }
func (s *GitSource) Linkable() bool { return true }

// Current pulls the staging clone and returns its HEAD commit when the
// configured subpath exists in it.
func (s *GitSource) Current(ctx context.Context) (Version, bool, error) {
	dir := s.work.Path(workspace.GitStageDir)
	version, err := s.pull(ctx, dir)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(s.contentPath(dir)); err != nil {
		s.logger.Warn("Subpath missing from repository", logfields.URL(s.remote), logfields.Branch(s.branch), logfields.Path(s.subpath))
		return "", false, nil
	}
	return version, true, nil
}

// Fetch pulls the persistent clone and returns the subpath inside it.
func (s *GitSource) Fetch(ctx context.Context) (Artifact, bool, error) {
	dir := s.work.Path(workspace.GitDir)
	version, err := s.pull(ctx, dir)
	if err != nil {
		return Artifact{}, false, err
	}
	path := s.contentPath(dir)
	if _, err := os.Stat(path); err != nil {
		s.logger.Warn("Subpath missing from repository", logfields.URL(s.remote), logfields.Branch(s.branch), logfields.Path(s.subpath))
		return Artifact{}, false, nil
	}
	return Artifact{Version: version, Path: path}, true, nil
}

func (s *GitSource) contentPath(dir string) string {
	return filepath.Join(dir, filepath.FromSlash(s.subpath))
}

// pull brings dir to the tip of the tracked branch and returns the HEAD commit.
// A clone of a different remote is discarded first.
func (s *GitSource) pull(ctx context.Context, dir string) (Version, error) {
	repo, err := s.openMatching(dir)
	if err != nil {
		return "", err
	}
	if repo == nil {
		repo, err = s.clone(ctx, dir)
	} else {
		err = s.update(ctx, repo)
	}
	if err != nil {
		return "", err
	}
	if err := s.updateSubmodules(ctx, repo); err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", classifyGitError(err, "head", s.remote)
	}
	s.logger.Debug("Repository updated", logfields.Path(dir), logfields.Branch(s.branch), logfields.Commit(head.Hash().String()))
	return Version(head.Hash().String()), nil
}

// openMatching opens the clone in dir if it tracks the configured remote.
// Anything else found in dir is removed and nil is returned.
func (s *GitSource) openMatching(dir string) (*git.Repository, error) {
	if _, err := os.Stat(filepath.Join(dir, git.GitDirName)); err != nil {
		return nil, s.reset(dir)
	}
	repo, err := git.PlainOpen(dir)
	if err != nil {
		s.logger.Warn("Discarding unreadable clone", logfields.Path(dir), logfields.Error(err))
		return nil, s.reset(dir)
	}
	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil || len(remote.Config().URLs) == 0 || remote.Config().URLs[0] != s.remote {
		s.logger.Info("Repository location changed, recloning", logfields.Path(dir), logfields.URL(s.remote))
		return nil, s.reset(dir)
	}
	return repo, nil
}

func (s *GitSource) reset(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return classifyGitError(err, "reset", s.remote)
	}
	return nil
}

func (s *GitSource) clone(ctx context.Context, dir string) (*git.Repository, error) {
	s.logger.Info("Cloning repository", logfields.URL(s.remote), logfields.Branch(s.branch), logfields.Path(dir))
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           s.remote,
		ReferenceName: plumbing.NewBranchReferenceName(s.branch),
		SingleBranch:  true,
		Auth:          s.auth,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, classifyGitError(err, "clone", s.remote)
	}
	return repo, nil
}

// update fetches the branch, force-checks it out and hard resets it onto the
// remote tip, discarding local modifications.
func (s *GitSource) update(ctx context.Context, repo *git.Repository) error {
	refSpec := ggitcfg.RefSpec("+refs/heads/" + s.branch + ":refs/remotes/origin/" + s.branch)
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		RefSpecs:   []ggitcfg.RefSpec{refSpec},
		Tags:       git.NoTags,
		Auth:       s.auth,
	})
	if err != nil && !stderrors.Is(err, git.NoErrAlreadyUpToDate) {
		return classifyGitError(err, "fetch", s.remote)
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, s.branch), true)
	if err != nil {
		return classifyGitError(err, "resolve", s.remote)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return classifyGitError(err, "worktree", s.remote)
	}

	localRef := plumbing.NewBranchReferenceName(s.branch)
	checkout := &git.CheckoutOptions{Branch: localRef, Force: true}
	if _, err := repo.Reference(localRef, true); err != nil {
		checkout.Create = true
		checkout.Hash = remoteRef.Hash()
	}
	if err := wt.Checkout(checkout); err != nil {
		return classifyGitError(err, "checkout", s.remote)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return classifyGitError(err, "reset", s.remote)
	}
	return nil
}

func (s *GitSource) updateSubmodules(ctx context.Context, repo *git.Repository) error {
	wt, err := repo.Worktree()
	if err != nil {
		return classifyGitError(err, "worktree", s.remote)
	}
	subs, err := wt.Submodules()
	if err != nil {
		return classifyGitError(err, "submodules", s.remote)
	}
	if len(subs) == 0 {
		return nil
	}
	err = subs.UpdateContext(ctx, &git.SubmoduleUpdateOptions{
		Init:              true,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
		Auth:              s.auth,
	})
	if err != nil {
		return classifyGitError(err, "submodule update", s.remote)
	}
	return nil
}
