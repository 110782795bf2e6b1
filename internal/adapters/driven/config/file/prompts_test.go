package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
)

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	store, err := NewPromptStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".coursemind", "prompts"), store.Dir())
}

func TestPromptStore_Load_WritesDefaults(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptTutorSystem)
	require.NoError(t, err)
	assert.Contains(t, prompt, "[Source N]")
	assert.Contains(t, prompt, "%s")

	for _, name := range []string{driven.PromptTutorSystem, driven.PromptNoContext} {
		_, err := os.Stat(filepath.Join(dir, name+".txt"))
		assert.NoError(t, err, "expected %s.txt", name)
	}
}

func TestPromptStore_Load_CustomFileWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tutor_system.txt"), []byte("  Physics tutor for %s\n"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptTutorSystem)
	require.NoError(t, err)
	assert.Equal(t, "Physics tutor for %s", prompt)
}

func TestPromptStore_EmptyFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "no_context.txt"), []byte("\n"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptNoContext)
	require.NoError(t, err)
	assert.Equal(t, defaultPrompts[driven.PromptNoContext], prompt)
}

func TestPromptStore_UnknownPrompt(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("does_not_exist")
	assert.Error(t, err)
}

func TestPromptStore_Reload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptNoContext)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "no_context.txt"), []byte("Nothing found."), 0600))

	cached, err := store.Load(driven.PromptNoContext)
	require.NoError(t, err)
	assert.Equal(t, defaultPrompts[driven.PromptNoContext], cached)

	store.Reload()
	fresh, err := store.Load(driven.PromptNoContext)
	require.NoError(t, err)
	assert.Equal(t, "Nothing found.", fresh)
}

func TestPromptStore_InitFailureUsesDefaults(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	store, err := NewPromptStore(filepath.Join(blocker, "prompts"))
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptTutorSystem)
	require.NoError(t, err)
	assert.Equal(t, defaultPrompts[driven.PromptTutorSystem], prompt)

	_, err = store.Load("unknown")
	assert.ErrorContains(t, err, "init failed")
}

func TestPromptStore_ConcurrentLoad(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := store.Load(driven.PromptTutorSystem)
			assert.NoError(t, err)
			assert.NotEmpty(t, p)
		}()
	}
	wg.Wait()
}
