package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

const ext = ".json"

// Store implements ports.StateStore using the local filesystem.
// Each conversation is a JSON file in BasePath; conversation IDs are path-escaped
// so phone numbers and scoped IDs ("bot:+49...") are valid file names.
type Store struct {
	BasePath string

	mu sync.Mutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".parley/conversations".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".parley", "conversations")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(conversationID string) string {
	name := strings.ReplaceAll(url.PathEscape(conversationID), ":", "%3A")
	return filepath.Join(s.BasePath, name+ext)
}

// Save persists the state atomically: it writes a temp file, fsyncs it and renames it over the destination.
func (s *Store) Save(ctx context.Context, conversationID string, state *domain.ConversationState) error {
	if conversationID == "" {
		return errors.New("conversationID cannot be empty")
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure conversation directory: %w", err)
	}

	// Same directory as the destination so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-*"+ext)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	dest := s.path(conversationID)
	if err := os.Rename(tmpPath, dest); err != nil {
		// Windows refuses to rename over an existing file.
		if rmErr := os.Remove(dest); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("failed to replace conversation file: %w", err)
		}
		if err := os.Rename(tmpPath, dest); err != nil {
			return fmt.Errorf("failed to rename temp file: %w", err)
		}
	}
	return nil
}

// Load retrieves the state of a conversation.
func (s *Store) Load(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	if conversationID == "" {
		return nil, errors.New("conversationID cannot be empty")
	}

	data, err := os.ReadFile(s.path(conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation state: %w", err)
	}
	return &state, nil
}

// Delete removes the conversation file. Deleting an unknown conversation is not an error.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return errors.New("conversationID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(conversationID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete conversation file: %w", err)
	}
	return nil
}

// List returns the IDs of all stored conversations, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ext || strings.HasPrefix(name, "tmp-") {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, ext))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
