package session

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// sessionDirPattern extracts the session id from a persisted directory name.
var sessionDirPattern = regexp.MustCompile(`^session-(.+)$`)

// Storage manages the on-disk layout under the sessions root:
// <root>/session-<id>/ holds one session's browser profile.
type Storage struct {
	root string
}

// NewStorage creates the storage rooted at dir, creating the root if
// needed.
func NewStorage(root string) (*Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("sessions root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sessions root: %w", err)
	}
	return &Storage{root: root}, nil
}

// Root returns the sessions root directory.
func (st *Storage) Root() string {
	return st.root
}

// SessionDir returns the persisted directory for a session id.
func (st *Storage) SessionDir(id string) string {
	return filepath.Join(st.root, "session-"+id)
}

// ListPersisted enumerates session ids that have a persisted directory.
func (st *Storage) ListPersisted() ([]string, error) {
	entries, err := os.ReadDir(st.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions root: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if match := sessionDirPattern.FindStringSubmatch(entry.Name()); match != nil {
			ids = append(ids, match[1])
		}
	}
	return ids, nil
}

// ParseSessionDir extracts a session id from a directory name, reporting
// whether the name matches the persisted layout.
func ParseSessionDir(name string) (string, bool) {
	match := sessionDirPattern.FindStringSubmatch(name)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// DeleteFolder erases the persisted directory of a session. It resolves
// symlinks on both the target and the root and refuses to delete anything
// that is not a strict descendant of the root: a crafted or symlinked id
// must not reach outside the sessions tree.
func (st *Storage) DeleteFolder(id string) error {
	target := st.SessionDir(id)

	resolvedTarget, err := filepath.EvalSymlinks(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return newError(ErrCodeFolderDelete, fmt.Sprintf("failed to resolve %s", target), err)
	}
	resolvedRoot, err := filepath.EvalSymlinks(st.root)
	if err != nil {
		return newError(ErrCodeFolderDelete, "failed to resolve sessions root", err)
	}

	if !strings.HasPrefix(resolvedTarget, resolvedRoot+string(os.PathSeparator)) {
		return newError(ErrCodePathTraversal, "invalid path: directory traversal detected", nil)
	}

	if err := os.RemoveAll(resolvedTarget); err != nil {
		return newError(ErrCodeFolderDelete, fmt.Sprintf("failed to delete %s", resolvedTarget), err)
	}
	return nil
}

// ReleaseSingletonLock removes the browser's stale SingletonLock artifact
// left by an unclean shutdown. Without this a respawned browser refuses
// to reuse the profile.
func (st *Storage) ReleaseSingletonLock(id string) error {
	lockPath := filepath.Join(st.SessionDir(id), "SingletonLock")
	if _, err := os.Lstat(lockPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat browser lock: %w", err)
	}
	log.Warn().Str("sessionId", id).Msg("Browser lock file exists, removing")
	if err := os.Remove(lockPath); err != nil {
		return fmt.Errorf("failed to remove browser lock: %w", err)
	}
	return nil
}
