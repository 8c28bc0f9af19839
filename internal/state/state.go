package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Errors for state operations.
var (
	ErrNoVaultConfigured = errors.New("no vault configured for workspace")
	ErrInvalidVaultPath  = errors.New("invalid vault path")
	ErrStateCorrupted    = errors.New("state file corrupted")
	ErrStoreClosed       = errors.New("state store is closed")
	ErrNegativeFrequency = errors.New("audit frequency must be >= 0")
)

// Document is the persisted state structure.
type Document struct {
	DefaultVaultPath string                    `json:"default_vault_path"`
	WorkspaceVaults  map[string]string         `json:"workspace_vaults"`
	AuditFrequency   *int                      `json:"audit_frequency,omitempty"`
	RunCounters      map[string]map[string]int `json:"run_counters,omitempty"`
}

func newDocument() *Document {
	return &Document{
		WorkspaceVaults: make(map[string]string),
		RunCounters:     make(map[string]map[string]int),
	}
}

// Binding maps a workspace directory to a vault directory.
type Binding struct {
	Workspace string `json:"workspace"`
	Vault     string `json:"vault"`
}

// Store is the durable state document. Methods are safe for concurrent use
// within one process.
type Store struct {
	mu     sync.Mutex
	path   string
	doc    *Document
	dirty  bool
	closed bool
}

// Open loads the state document at path, creating its parent directory.
// A missing file is treated as an empty document.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("state path is required")
	}
	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	s := &Store{path: path, doc: newDocument()}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the location of the state document.
func (s *Store) Path() string {
	return s.path
}

// Close writes any state left unsaved by a failed write. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.dirty {
		return s.save()
	}
	return nil
}

// ResolveVault returns the vault bound to workspace or its nearest bound
// ancestor, falling back to the default vault.
func (s *Store) ResolveVault(workspace string) (string, error) {
	doc, err := s.snapshot()
	if err != nil {
		return "", err
	}

	if workspace != "" {
		current, err := normalize(workspace)
		if err != nil {
			return "", err
		}
		for {
			if vault, ok := doc.WorkspaceVaults[current]; ok && vault != "" {
				return vault, nil
			}
			parent := filepath.Dir(current)
			if parent == current {
				break
			}
			current = parent
		}
	}

	if doc.DefaultVaultPath != "" {
		return doc.DefaultVaultPath, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoVaultConfigured, workspace)
}

// BindVault binds workspace to vaultPath. The vault must be an existing
// directory. The first vault ever bound also becomes the default. An empty
// workspace only sets the default when none exists.
func (s *Store) BindVault(vaultPath, workspace string) (Binding, error) {
	vault, err := validateVault(vaultPath)
	if err != nil {
		return Binding{}, err
	}

	var ws string
	if workspace != "" {
		if ws, err = normalize(workspace); err != nil {
			return Binding{}, err
		}
	}

	err = s.mutate(func(doc *Document) {
		if ws != "" {
			doc.WorkspaceVaults[ws] = vault
		}
		if doc.DefaultVaultPath == "" {
			doc.DefaultVaultPath = vault
		}
	})
	if err != nil {
		return Binding{}, err
	}
	return Binding{Workspace: ws, Vault: vault}, nil
}

// DefaultVault returns the default vault, or "" when none is set.
func (s *Store) DefaultVault() (string, error) {
	doc, err := s.snapshot()
	if err != nil {
		return "", err
	}
	return doc.DefaultVaultPath, nil
}

// Bindings returns every workspace binding sorted by workspace path.
func (s *Store) Bindings() ([]Binding, error) {
	doc, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	out := make([]Binding, 0, len(doc.WorkspaceVaults))
	for ws, vault := range doc.WorkspaceVaults {
		out = append(out, Binding{Workspace: ws, Vault: vault})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Workspace < out[j].Workspace })
	return out, nil
}

// AuditFrequency returns the persisted audit frequency and whether one has
// been set.
func (s *Store) AuditFrequency() (int, bool, error) {
	doc, err := s.snapshot()
	if err != nil {
		return 0, false, err
	}
	if doc.AuditFrequency == nil {
		return 0, false, nil
	}
	return *doc.AuditFrequency, true, nil
}

// SetAuditFrequency persists n. Zero disables auto-audit.
func (s *Store) SetAuditFrequency(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeFrequency, n)
	}
	return s.mutate(func(doc *Document) {
		doc.AuditFrequency = &n
	})
}

// BumpRunCounter increments the counter for (workspace, slug), creating it
// at zero, and returns the new value.
func (s *Store) BumpRunCounter(workspace, slug string) (int, error) {
	ws, err := normalize(workspace)
	if err != nil {
		return 0, err
	}
	var count int
	err = s.mutate(func(doc *Document) {
		counters, ok := doc.RunCounters[ws]
		if !ok {
			counters = make(map[string]int)
			doc.RunCounters[ws] = counters
		}
		counters[slug]++
		count = counters[slug]
	})
	return count, err
}

// ResetRunCounter sets the counter for (workspace, slug) back to zero.
func (s *Store) ResetRunCounter(workspace, slug string) error {
	ws, err := normalize(workspace)
	if err != nil {
		return err
	}
	return s.mutate(func(doc *Document) {
		if counters, ok := doc.RunCounters[ws]; ok {
			counters[slug] = 0
		}
	})
}

// RunCounter returns the current counter for (workspace, slug).
func (s *Store) RunCounter(workspace, slug string) (int, error) {
	ws, err := normalize(workspace)
	if err != nil {
		return 0, err
	}
	doc, err := s.snapshot()
	if err != nil {
		return 0, err
	}
	return doc.RunCounters[ws][slug], nil
}

// snapshot reloads the document and returns it. Callers must not mutate it.
func (s *Store) snapshot() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if !s.dirty {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s.doc, nil
}

// mutate reloads, applies fn and saves atomically.
func (s *Store) mutate(fn func(*Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if !s.dirty {
		if err := s.load(); err != nil {
			return err
		}
	}
	fn(s.doc)
	s.dirty = true
	return s.save()
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.doc = newDocument()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	doc := newDocument()
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, doc); err != nil {
			return fmt.Errorf("%w: %v", ErrStateCorrupted, err)
		}
	}
	if doc.WorkspaceVaults == nil {
		doc.WorkspaceVaults = make(map[string]string)
	}
	if doc.RunCounters == nil {
		doc.RunCounters = make(map[string]map[string]int)
	}
	s.doc = doc
	return nil
}

// save writes the document atomically and clears the dirty flag on success.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename state: %w", err)
	}

	s.dirty = false
	return nil
}
