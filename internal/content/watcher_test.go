package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type chanInvalidator chan string

func (c chanInvalidator) Invalidate(key string) { c <- key }

func TestWatcherInvalidatesChangedLanguage(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := fixtureContent(t)
	got := make(chanInvalidator, 8)
	w, err := NewWatcher(root, got, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(t.Context()))
	defer w.Stop()

	writeTree(t, root, map[string]string{"languages/python/classes.md": "Classes.\n"})

	select {
	case key := <-got:
		require.Equal(t, "python", key)
	case <-time.After(5 * time.Second):
		t.Fatal("no invalidation after file change")
	}
}

func TestWatcherStartFailsWithoutLanguagesDir(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := NewWatcher(t.TempDir(), make(chanInvalidator, 1), 0)
	require.NoError(t, err)
	require.Error(t, w.Start(t.Context()))
	w.Stop()
}
