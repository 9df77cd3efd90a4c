// Package file keeps conversation stacks as JSON files, one per user and
// device plus one roaming file per user:
//
//	<base>/<user>/roaming.json
//	<base>/<user>/clients/<client>.json
//
// IDs are path-escaped. Writes go to a temp file that is fsynced and renamed
// into place, so a reader never sees a partial stack.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// DefaultDir is used when New is given an empty path.
var DefaultDir = filepath.Join(".parley", "state")

// Store implements ports.StateCache on the local filesystem.
type Store struct {
	BasePath string
}

// New creates a Store rooted at basePath.
func New(basePath string) *Store {
	if basePath == "" {
		basePath = DefaultDir
	}
	return &Store{BasePath: basePath}
}

func (s *Store) userDir(userID string) string {
	return filepath.Join(s.BasePath, url.PathEscape(userID))
}

func (s *Store) clientPath(userID, clientID string) string {
	return filepath.Join(s.userDir(userID), "clients", url.PathEscape(clientID)+".json")
}

func (s *Store) roamingPath(userID string) string {
	return filepath.Join(s.userDir(userID), "roaming.json")
}

// TryRetrieve returns the client stack, falling back to the roaming stack.
func (s *Store) TryRetrieve(ctx context.Context, userID, clientID string) (*domain.ConversationStack, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}
	data, err := os.ReadFile(s.clientPath(userID, clientID))
	if errors.Is(err, fs.ErrNotExist) {
		data, err = os.ReadFile(s.roamingPath(userID))
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var stack domain.ConversationStack
	if err := json.Unmarshal(data, &stack); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stack: %w", err)
	}
	return &stack, nil
}

// SetClientState stores the stack for one user/device.
func (s *Store) SetClientState(ctx context.Context, userID, clientID string, stack *domain.ConversationStack) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}
	return writeStack(s.clientPath(userID, clientID), stack)
}

// SetRoamingState stores the stack that follows the user across devices.
func (s *Store) SetRoamingState(ctx context.Context, userID string, stack *domain.ConversationStack) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}
	return writeStack(s.roamingPath(userID), stack)
}

// ClearBothStates removes the client and roaming stacks.
func (s *Store) ClearBothStates(ctx context.Context, userID, clientID string) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}
	for _, p := range []string{s.clientPath(userID, clientID), s.roamingPath(userID)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete state file: %w", err)
		}
	}
	return nil
}

// Users returns the IDs of users with stored state.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := url.PathUnescape(e.Name())
		if err != nil {
			continue
		}
		users = append(users, id)
	}
	return users, nil
}

func writeStack(dest string, stack *domain.ConversationStack) error {
	data, err := json.MarshalIndent(stack, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stack: %w", err)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure state directory: %w", err)
	}

	// Same directory as dest, so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(dir, "tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

var _ ports.StateCache = (*Store)(nil)
