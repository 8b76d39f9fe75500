// Package selection persists the user's selected subtitles and the last
// known download quota between CLI invocations.
package selection

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/subgrab/subgrab/internal/events"
	"github.com/subgrab/subgrab/internal/models"
)

// Keys under which values are stored.
const (
	KeySelectedSubtitles = "selectedSubtitles"
	KeyQuotaInfo         = "quotaInfo"
)

// Store is a JSON file holding one value per key. Values that cannot be
// decoded read as empty. It is not safe for concurrent writers.
type Store struct {
	path string
	bus  *events.Bus
}

// NewStore opens the store at path. The file is created on first write.
// Mutations of the selection are published on bus, which may be nil.
func NewStore(path string, bus *events.Bus) *Store {
	return &Store{path: path, bus: bus}
}

// DefaultPath returns the store location under the user's config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".subgrab", "store.json")
	}
	return filepath.Join(dir, "subgrab", "store.json")
}

// SelectedSubtitles returns the selection in insertion order.
func (s *Store) SelectedSubtitles() []models.SelectedSubtitle {
	var selected []models.SelectedSubtitle
	if !s.get(KeySelectedSubtitles, &selected) {
		return []models.SelectedSubtitle{}
	}
	if selected == nil {
		selected = []models.SelectedSubtitle{}
	}
	return selected
}

// SetSelectedSubtitles replaces the selection.
func (s *Store) SetSelectedSubtitles(selected []models.SelectedSubtitle) error {
	if selected == nil {
		selected = []models.SelectedSubtitle{}
	}
	return s.set(KeySelectedSubtitles, selected)
}

// AddSelectedSubtitle appends sub, replacing any entry with the same file id.
func (s *Store) AddSelectedSubtitle(sub models.SelectedSubtitle) error {
	selected := slices.DeleteFunc(s.SelectedSubtitles(), func(existing models.SelectedSubtitle) bool {
		return existing.FileID == sub.FileID
	})
	if err := s.SetSelectedSubtitles(append(selected, sub)); err != nil {
		return err
	}
	s.bus.Publish(events.Event{Kind: events.SubtitleSelected, Subtitle: sub})
	return nil
}

// RemoveSelectedSubtitle drops the entry for fileID, if any.
func (s *Store) RemoveSelectedSubtitle(fileID int64) error {
	selected := slices.DeleteFunc(s.SelectedSubtitles(), func(existing models.SelectedSubtitle) bool {
		return existing.FileID == fileID
	})
	if err := s.SetSelectedSubtitles(selected); err != nil {
		return err
	}
	s.bus.Publish(events.Event{Kind: events.SubtitleRemoved, FileID: fileID})
	return nil
}

// IsSubtitleSelected reports whether fileID is in the selection.
func (s *Store) IsSubtitleSelected(fileID int64) bool {
	return slices.ContainsFunc(s.SelectedSubtitles(), func(existing models.SelectedSubtitle) bool {
		return existing.FileID == fileID
	})
}

// ClearSelectedSubtitles removes the selection key.
func (s *Store) ClearSelectedSubtitles() error {
	if err := s.remove(KeySelectedSubtitles); err != nil {
		return err
	}
	s.bus.Publish(events.Event{Kind: events.SelectionCleared})
	return nil
}

// QuotaInfo returns the stored quota, or nil when none was recorded.
func (s *Store) QuotaInfo() *models.StoredQuota {
	var quota models.StoredQuota
	if !s.get(KeyQuotaInfo, &quota) {
		return nil
	}
	return &quota
}

// SetQuotaInfo records the latest quota.
func (s *Store) SetQuotaInfo(quota models.StoredQuota) error {
	return s.set(KeyQuotaInfo, quota)
}

// load reads every raw value. A missing or corrupt file yields an empty map.
func (s *Store) load() map[string]json.RawMessage {
	values := make(map[string]json.RawMessage)
	data, err := os.ReadFile(s.path)
	if err != nil {
		return values
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return make(map[string]json.RawMessage)
	}
	return values
}

// get decodes key into v and reports whether a usable value was present.
func (s *Store) get(key string, v any) bool {
	raw, ok := s.load()[key]
	if !ok || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func (s *Store) set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	values := s.load()
	values[key] = raw
	return s.save(values)
}

func (s *Store) remove(key string) error {
	values := s.load()
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

// save replaces the file atomically.
func (s *Store) save(values map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".store-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	// No-op once the rename succeeded.
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}
