package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FileStore persists records to a single JSON file. Writes land in memory
// immediately and are flushed to disk periodically and on Close.
//
// FileStore is for local development only: it does not support multiple
// processes sharing the file and a crash loses up to one flush interval.
type FileStore struct {
	*MemoryStore

	filePath    string
	log         zerolog.Logger
	dirtyMu     sync.Mutex
	dirty       bool
	flushTicker *time.Ticker
	stopFlush   chan struct{}
	flushDone   chan struct{}
	closeOnce   sync.Once
}

type fileData struct {
	Seq         uint64                           `json:"seq"`
	Collections map[string]map[string]fileEntry `json:"collections"`
}

type fileEntry struct {
	Seq  uint64   `json:"seq"`
	Data Document `json:"data"`
}

// NewFileStore loads filePath (if present) and starts the flush loop.
// environment is the deployment name; production gets a warning.
func NewFileStore(filePath string, flushInterval time.Duration, environment string, log zerolog.Logger) (*FileStore, error) {
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	if env := strings.ToLower(environment); env == "production" || env == "prod" {
		log.Warn().Str("path", filePath).Msg("storage.file_store_in_production")
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	s := &FileStore{
		MemoryStore: NewMemoryStore(),
		filePath:    filePath,
		log:         log,
		flushTicker: time.NewTicker(flushInterval),
		stopFlush:   make(chan struct{}),
		flushDone:   make(chan struct{}),
	}
	if err := s.load(); err != nil {
		s.flushTicker.Stop()
		return nil, err
	}

	go s.periodicFlush()
	return s, nil
}

func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}

	s.MemoryStore.mu.Lock()
	defer s.MemoryStore.mu.Unlock()
	s.MemoryStore.seq = data.Seq
	for name, entries := range data.Collections {
		col := make(map[string]storedRecord, len(entries))
		for id, e := range entries {
			if e.Data == nil {
				e.Data = Document{}
			}
			col[id] = storedRecord{seq: e.Seq, data: e.Data}
		}
		s.MemoryStore.collections[name] = col
	}
	return nil
}

// Insert implements RecordStore.
func (s *FileStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	id, err := s.MemoryStore.Insert(ctx, collection, doc)
	if err == nil {
		s.markDirty()
	}
	return id, err
}

// Update implements RecordStore.
func (s *FileStore) Update(ctx context.Context, collection, id string, patch Document) error {
	err := s.MemoryStore.Update(ctx, collection, id, patch)
	if err == nil {
		s.markDirty()
	}
	return err
}

// Delete implements RecordStore.
func (s *FileStore) Delete(ctx context.Context, collection, id string) error {
	err := s.MemoryStore.Delete(ctx, collection, id)
	if err == nil {
		s.markDirty()
	}
	return err
}

// Flush writes the current state to disk if anything changed.
func (s *FileStore) Flush() error {
	s.dirtyMu.Lock()
	if !s.dirty {
		s.dirtyMu.Unlock()
		return nil
	}
	s.dirty = false
	s.dirtyMu.Unlock()

	if err := s.save(); err != nil {
		s.markDirty()
		return err
	}
	return nil
}

// Close stops the flush loop and performs a final flush.
func (s *FileStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopFlush)
		s.flushTicker.Stop()
		<-s.flushDone
		err = s.Flush()
	})
	return err
}

func (s *FileStore) markDirty() {
	s.dirtyMu.Lock()
	s.dirty = true
	s.dirtyMu.Unlock()
}

func (s *FileStore) periodicFlush() {
	defer close(s.flushDone)
	for {
		select {
		case <-s.stopFlush:
			return
		case <-s.flushTicker.C:
			if err := s.Flush(); err != nil {
				s.log.Error().Err(err).Str("path", s.filePath).Msg("storage.flush_failed")
			}
		}
	}
}

// save snapshots under the read lock, then writes via a temp file and
// rename so a crash never leaves a truncated file behind.
func (s *FileStore) save() error {
	s.MemoryStore.mu.RLock()
	data := fileData{
		Seq:         s.MemoryStore.seq,
		Collections: make(map[string]map[string]fileEntry, len(s.MemoryStore.collections)),
	}
	for name, col := range s.MemoryStore.collections {
		entries := make(map[string]fileEntry, len(col))
		for id, rec := range col {
			entries[id] = fileEntry{Seq: rec.seq, Data: cloneDocument(rec.data)}
		}
		data.Collections[name] = entries
	}
	s.MemoryStore.mu.RUnlock()

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}
