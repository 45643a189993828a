package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_New(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "sessions")
	st, err := NewStorage(root)
	require.NoError(t, err)
	assert.Equal(t, root, st.Root())
	assert.DirExists(t, root)
}

func TestStorage_New_EmptyRoot(t *testing.T) {
	_, err := NewStorage("")
	assert.Error(t, err)
}

func TestStorage_SessionDir(t *testing.T) {
	st, err := NewStorage(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(st.Root(), "session-alpha"), st.SessionDir("alpha"))
}

func TestParseSessionDir(t *testing.T) {
	tests := []struct {
		name   string
		dir    string
		wantID string
		wantOK bool
	}{
		{"plain id", "session-alpha", "alpha", true},
		{"id with dash", "session-my-account", "my-account", true},
		{"no prefix", "alpha", "", false},
		{"prefix only", "session-", "", false},
		{"unrelated dir", "cache", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ParseSessionDir(tt.dir)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestStorage_ListPersisted(t *testing.T) {
	st, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(st.SessionDir("bravo"), 0o755))
	require.NoError(t, os.MkdirAll(st.SessionDir("alpha"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(st.Root(), "not-a-session"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(st.Root(), "session-file"), []byte("x"), 0o644))

	ids, err := st.ListPersisted()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "bravo"}, ids)
}

func TestStorage_DeleteFolder(t *testing.T) {
	st, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	dir := st.SessionDir("alpha")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Default"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Default", "prefs"), []byte("{}"), 0o644))

	require.NoError(t, st.DeleteFolder("alpha"))
	assert.NoDirExists(t, dir)
}

func TestStorage_DeleteFolder_Missing(t *testing.T) {
	st, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	// Deleting a session that never persisted anything is not an error.
	assert.NoError(t, st.DeleteFolder("ghost"))
}

func TestStorage_DeleteFolder_SymlinkEscape(t *testing.T) {
	base := t.TempDir()
	st, err := NewStorage(filepath.Join(base, "sessions"))
	require.NoError(t, err)

	outside := filepath.Join(base, "outside")
	require.NoError(t, os.MkdirAll(outside, 0o755))
	sentinel := filepath.Join(outside, "keep.txt")
	require.NoError(t, os.WriteFile(sentinel, []byte("keep"), 0o644))

	// session-evil is a symlink resolving outside the sessions root.
	require.NoError(t, os.Symlink(outside, st.SessionDir("evil")))

	err = st.DeleteFolder("evil")
	require.Error(t, err)

	var sessErr *SessionError
	require.True(t, errors.As(err, &sessErr))
	assert.Equal(t, ErrCodePathTraversal, sessErr.Code)

	// Nothing outside the root was touched.
	assert.FileExists(t, sentinel)
	assert.DirExists(t, outside)
}

func TestStorage_ReleaseSingletonLock(t *testing.T) {
	st, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	dir := st.SessionDir("alpha")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	lock := filepath.Join(dir, "SingletonLock")
	require.NoError(t, os.Symlink("host-12345", lock))

	require.NoError(t, st.ReleaseSingletonLock("alpha"))
	_, statErr := os.Lstat(lock)
	assert.True(t, os.IsNotExist(statErr))

	// Releasing again is a no-op.
	assert.NoError(t, st.ReleaseSingletonLock("alpha"))
}
