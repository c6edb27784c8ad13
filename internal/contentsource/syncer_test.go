package contentsource

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
)

type remoteFixture struct {
	bare string
	seed *git.Repository
	path string
}

func newRemote(t *testing.T) *remoteFixture {
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
	return &remoteFixture{bare: bare, seed: seed, path: seedPath}
}

// commit writes a lesson file in the seed repository and pushes it.
func (f *remoteFixture) commit(t *testing.T, rel, body string) string {
	t.Helper()
	full := filepath.Join(f.path, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	wt, err := f.seed.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(rel)
	require.NoError(t, err)
	hash, err := wt.Commit("update "+rel, &git.CommitOptions{
		Author: &object.Signature{Name: "Tutor", Email: "tutor@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	require.NoError(t, f.seed.Push(&git.PushOptions{RemoteName: "origin"}))
	return hash.String()
}

func TestSyncClonesThenUpdates(t *testing.T) {
	remote := newRemote(t)
	first := remote.commit(t, "languages/python/variables.md", "# Variables\n")

	dir := filepath.Join(t.TempDir(), "content")
	s := NewSyncer(Source{URL: remote.bare, Branch: "master"}, dir)

	res, err := s.Sync(t.Context())
	require.NoError(t, err)
	assert.True(t, res.Cloned)
	assert.Equal(t, first, res.Commit)
	assert.FileExists(t, filepath.Join(dir, "languages", "python", "variables.md"))

	res, err = s.Sync(t.Context())
	require.NoError(t, err)
	assert.False(t, res.Cloned)
	assert.False(t, res.Changed)
	assert.Equal(t, first, res.Commit)

	second := remote.commit(t, "languages/python/loops.md", "# Loops\n")
	// Local edits are discarded by the reset.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "languages", "python", "variables.md"), []byte("edited"), 0o644))

	res, err = s.Sync(t.Context())
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, second, res.Commit)
	assert.Equal(t, second[:8], res.ShortCommit())
	assert.FileExists(t, filepath.Join(dir, "languages", "python", "loops.md"))
	body, err := os.ReadFile(filepath.Join(dir, "languages", "python", "variables.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Variables\n", string(body))
}

func TestSyncRefusesForeignDirectory(t *testing.T) {
	remote := newRemote(t)
	remote.commit(t, "README.md", "hi\n")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("mine"), 0o644))

	_, err := NewSyncer(Source{URL: remote.bare, Branch: "master"}, dir).Sync(t.Context())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestSyncUnknownBranch(t *testing.T) {
	remote := newRemote(t)
	remote.commit(t, "README.md", "hi\n")

	_, err := NewSyncer(Source{URL: remote.bare, Branch: "nope"}, filepath.Join(t.TempDir(), "c")).Sync(t.Context())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryGit))
}

func TestAuth(t *testing.T) {
	assert.Nil(t, NewSyncer(Source{URL: "x"}, "d").auth())
	s := NewSyncer(Source{URL: "x", Token: "t0k"}, "d")
	assert.Equal(t, "main", s.src.Branch)
	assert.NotNil(t, s.auth())
}
