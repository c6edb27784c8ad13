// Package contentsource keeps the lesson content directory in step with a git
// repository.
package contentsource

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
)

const remoteName = "origin"

// Source describes the repository to mirror.
type Source struct {
	URL      string
	Branch   string
	Username string
	Token    string
}

// Result reports what a sync did.
type Result struct {
	Commit  string
	Cloned  bool
	Changed bool
}

// ShortCommit returns the abbreviated commit hash.
func (r Result) ShortCommit() string {
	if len(r.Commit) > 8 {
		return r.Commit[:8]
	}
	return r.Commit
}

// Syncer clones Source into a directory and later fast-forwards it. Local
// edits in the directory are discarded on update.
type Syncer struct {
	src Source
	dir string
}

// NewSyncer mirrors src into dir.
func NewSyncer(src Source, dir string) *Syncer {
	if src.Branch == "" {
		src.Branch = "main"
	}
	return &Syncer{src: src, dir: dir}
}

// Dir returns the working tree location.
func (s *Syncer) Dir() string { return s.dir }

func (s *Syncer) auth() transport.AuthMethod {
	if s.src.Token == "" {
		return nil
	}
	user := s.src.Username
	if user == "" {
		user = "token"
	}
	return &http.BasicAuth{Username: user, Password: s.src.Token}
}

// Sync clones the repository when dir holds none yet, otherwise fetches and
// resets the branch to the remote head. Being up to date is not an error.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	if _, err := os.Stat(filepath.Join(s.dir, git.GitDirName)); err == nil {
		return s.update(ctx)
	}
	return s.clone(ctx)
}

func (s *Syncer) clone(ctx context.Context) (Result, error) {
	slog.Info("Cloning content repository", "url", s.src.URL, "branch", s.src.Branch, logfields.Path(s.dir))
	if entries, err := os.ReadDir(s.dir); err == nil && len(entries) > 0 {
		return Result{}, ferrors.ValidationError("content directory is not empty and not a git repository").
			WithContext("path", s.dir).Build()
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Result{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create content directory").Build()
	}
	repo, err := git.PlainCloneContext(ctx, s.dir, false, &git.CloneOptions{
		URL:           s.src.URL,
		Auth:          s.auth(),
		ReferenceName: plumbing.NewBranchReferenceName(s.src.Branch),
		SingleBranch:  true,
	})
	if err != nil {
		return Result{}, s.gitError(err, "clone content repository")
	}
	head, err := repo.Head()
	if err != nil {
		return Result{}, s.gitError(err, "resolve HEAD")
	}
	res := Result{Commit: head.Hash().String(), Cloned: true, Changed: true}
	slog.Info("Content repository cloned", "commit", res.ShortCommit())
	return res, nil
}

func (s *Syncer) update(ctx context.Context) (Result, error) {
	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return Result{}, s.gitError(err, "open content repository")
	}
	wt, err := repo.Worktree()
	if err != nil {
		return Result{}, s.gitError(err, "open worktree")
	}
	before, _ := repo.Head()

	refSpec := ggitcfg.RefSpec("+refs/heads/" + s.src.Branch + ":refs/remotes/" + remoteName + "/" + s.src.Branch)
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []ggitcfg.RefSpec{refSpec},
		Auth:       s.auth(),
		Tags:       git.NoTags,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return Result{}, s.gitError(err, "fetch content repository")
	}

	remote, err := repo.Reference(plumbing.NewRemoteReferenceName(remoteName, s.src.Branch), true)
	if err != nil {
		return Result{}, s.gitError(err, "resolve remote branch")
	}
	local := plumbing.NewBranchReferenceName(s.src.Branch)
	if _, err := repo.Reference(local, true); err != nil {
		if err := repo.Storer.SetReference(plumbing.NewHashReference(local, remote.Hash())); err != nil {
			return Result{}, s.gitError(err, "create local branch")
		}
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: local, Force: true}); err != nil {
		return Result{}, s.gitError(err, "checkout branch")
	}
	if err := wt.Reset(&git.ResetOptions{Commit: remote.Hash(), Mode: git.HardReset}); err != nil {
		return Result{}, s.gitError(err, "reset to remote")
	}

	res := Result{Commit: remote.Hash().String()}
	res.Changed = before == nil || before.Hash() != remote.Hash()
	if res.Changed {
		slog.Info("Content repository updated", "commit", res.ShortCommit())
	} else {
		slog.Info("Content repository already up to date", "commit", res.ShortCommit())
	}
	return res, nil
}

func (s *Syncer) gitError(err error, msg string) error {
	return ferrors.WrapError(err, ferrors.CategoryGit, msg).
		WithContext("url", s.src.URL).
		WithContext("branch", s.src.Branch).
		Build()
}
