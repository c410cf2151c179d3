package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/pkg/apperrors"
	"github.com/GoAITrader/tradegate/internal/pkg/logger"
)

const activePointerFile = "active_config.json"

// FileStore persists one JSON document per market plus one active-pointer
// record, all under a single directory. Documents stay human-editable;
// every write goes through a temp file and rename so a crash never leaves
// a half-written document behind.
type FileStore struct {
	dir string

	// mu guards the pointer map. Entries are created once at startup.
	mu       sync.RWMutex
	pointers map[string]model.ActivePointer
	entries  map[string]*marketEntry
	order    []string
}

type marketEntry struct {
	id string

	// writeMu serializes writers (save, read-modify-write, activation
	// sequences) per market. Readers never take it.
	writeMu sync.Mutex

	// docMu guards the in-memory document snapshot.
	docMu sync.RWMutex
	doc   model.Document
}

// NewFileStore opens (or initializes) the store directory: missing market
// documents are seeded from the built-in defaults, the pointer record is
// loaded or created so every activation group starts with exactly one
// active market.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	s := &FileStore{
		dir:      dir,
		pointers: map[string]model.ActivePointer{},
		entries:  map[string]*marketEntry{},
		order:    model.MarketIDs(),
	}

	for _, id := range s.order {
		doc, err := s.loadOrSeed(id)
		if err != nil {
			return nil, err
		}
		s.entries[id] = &marketEntry{id: id, doc: doc}
	}

	if err := s.loadPointers(); err != nil {
		return nil, err
	}
	if err := s.seedMissingGroups(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) loadOrSeed(id string) (model.Document, error) {
	path := s.documentPath(id)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		doc := DefaultDocument(id)
		if err := s.writeFileAtomic(path, mustMarshalDocument(doc)); err != nil {
			return nil, fmt.Errorf("seed %s: %w", id, err)
		}
		logger.Info("Seeded default market document", "market", id, "path", path)
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc model.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func (s *FileStore) loadPointers() error {
	raw, err := os.ReadFile(filepath.Join(s.dir, activePointerFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read active pointer record: %w", err)
	}
	if err := json.Unmarshal(raw, &s.pointers); err != nil {
		return fmt.Errorf("parse active pointer record: %w", err)
	}
	return nil
}

// seedMissingGroups activates the first market (in listing order) of any
// group that has no pointer yet, so the one-active-per-group invariant
// holds from first startup.
func (s *FileStore) seedMissingGroups() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, id := range s.order {
		entry := s.entries[id]
		entry.docMu.RLock()
		group := entry.doc.ActivationGroup()
		entry.docMu.RUnlock()
		if _, ok := s.pointers[group]; !ok {
			s.pointers[group] = model.ActivePointer{Market: id, ActivatedAt: time.Now().UTC()}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.persistPointersLocked()
}

// Load returns an isolated snapshot of one market profile.
func (s *FileStore) Load(id string) (*model.MarketProfile, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.docMu.RLock()
	doc := entry.doc.Clone()
	entry.docMu.RUnlock()

	group := doc.ActivationGroup()
	s.mu.RLock()
	active := s.pointers[group].Market == id
	s.mu.RUnlock()

	return &model.MarketProfile{
		ID:       id,
		Kind:     model.KindForMarket(id),
		Group:    group,
		IsActive: active,
		Document: doc,
	}, nil
}

// List returns every profile in stable listing order.
func (s *FileStore) List() []*model.MarketProfile {
	out := make([]*model.MarketProfile, 0, len(s.order))
	for _, id := range s.order {
		p, err := s.Load(id)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Save replaces a market's document wholesale. The write is rejected before
// any mutation when the document fails the structural gate; on success the
// file and the in-memory snapshot are swapped together.
func (s *FileStore) Save(id string, doc model.Document) error {
	entry, err := s.entry(id)
	if err != nil {
		return err
	}

	entry.writeMu.Lock()
	defer entry.writeMu.Unlock()
	return s.saveLocked(entry, doc)
}

// UpdateDocument applies a read-modify-write under the market's write lock,
// so concurrent updates to the same market serialize instead of clobbering
// each other. The mutate callback receives an isolated copy; returning an
// error abandons the write with the stored document untouched.
func (s *FileStore) UpdateDocument(id string, mutate func(model.Document) (model.Document, error)) error {
	entry, err := s.entry(id)
	if err != nil {
		return err
	}

	entry.writeMu.Lock()
	defer entry.writeMu.Unlock()

	entry.docMu.RLock()
	current := entry.doc.Clone()
	entry.docMu.RUnlock()

	next, err := mutate(current)
	if err != nil {
		return err
	}
	return s.saveLocked(entry, next)
}

func (s *FileStore) saveLocked(entry *marketEntry, doc model.Document) error {
	data, err := marshalDocument(doc)
	if err != nil {
		return err
	}
	if err := s.writeFileAtomic(s.documentPath(entry.id), data); err != nil {
		return apperrors.New(apperrors.ErrInternal, fmt.Sprintf("persist market %q", entry.id), err)
	}

	entry.docMu.Lock()
	entry.doc = doc.Clone()
	entry.docMu.Unlock()
	return nil
}

// WithLock runs fn while holding one market's exclusive write lock. The
// switcher uses it to make validate-then-activate atomic against saves.
// fn may call Load and SetActive, but not Save or UpdateDocument.
func (s *FileStore) WithLock(id string, fn func() error) error {
	entry, err := s.entry(id)
	if err != nil {
		return err
	}
	entry.writeMu.Lock()
	defer entry.writeMu.Unlock()
	return fn()
}

// SetActive flips an activation group's pointer to the given market. The
// whole flip happens inside one critical section, so readers observe the old
// or the new pointer, never neither. Validation is the caller's job.
func (s *FileStore) SetActive(group, id string) error {
	if _, err := s.entry(id); err != nil {
		return err
	}
	if group == "" {
		group = model.DefaultGroup
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A market is active in at most one group.
	for g, ptr := range s.pointers {
		if g != group && ptr.Market == id {
			delete(s.pointers, g)
		}
	}
	s.pointers[group] = model.ActivePointer{Market: id, ActivatedAt: time.Now().UTC()}
	return s.persistPointersLocked()
}

// ActivePointer reports the active market of one group.
func (s *FileStore) ActivePointer(group string) (model.ActivePointer, bool) {
	if group == "" {
		group = model.DefaultGroup
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ptr, ok := s.pointers[group]
	return ptr, ok
}

// ActivePointers returns a copy of the whole pointer record, keyed by group.
func (s *FileStore) ActivePointers() map[string]model.ActivePointer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.ActivePointer, len(s.pointers))
	for g, ptr := range s.pointers {
		out[g] = ptr
	}
	return out
}

// Groups returns the known activation groups, sorted.
func (s *FileStore) Groups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.pointers))
	for g := range s.pointers {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

func (s *FileStore) entry(id string) (*marketEntry, error) {
	entry, ok := s.entries[id]
	if !ok {
		return nil, apperrors.NewNotFound(fmt.Sprintf("unknown market %q", id))
	}
	return entry, nil
}

func (s *FileStore) documentPath(id string) string {
	return filepath.Join(s.dir, id+"_market_config.json")
}

// persistPointersLocked writes the pointer record; callers hold s.mu.
func (s *FileStore) persistPointersLocked() error {
	data, err := json.MarshalIndent(s.pointers, "", "  ")
	if err != nil {
		return apperrors.New(apperrors.ErrInternal, "encode active pointer record", err)
	}
	if err := s.writeFileAtomic(filepath.Join(s.dir, activePointerFile), data); err != nil {
		return apperrors.New(apperrors.ErrInternal, "persist active pointer record", err)
	}
	return nil
}

func (s *FileStore) writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".write-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// marshalDocument is the structural gate for writes: a document must be a
// non-empty JSON object declaring its market_type. Everything deeper is the
// validator's business.
func marshalDocument(doc model.Document) ([]byte, error) {
	if len(doc) == 0 {
		return nil, apperrors.NewInvalidDocument("document must be a non-empty object")
	}
	if _, ok := doc.StringField(model.FieldMarketType); !ok {
		return nil, apperrors.NewInvalidDocument("document must declare market_type")
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, apperrors.NewInvalidDocument(fmt.Sprintf("document is not serializable: %v", err))
	}
	return data, nil
}

func mustMarshalDocument(doc model.Document) []byte {
	data, err := marshalDocument(doc)
	if err != nil {
		panic(fmt.Sprintf("built-in default document invalid: %v", err))
	}
	return data
}
