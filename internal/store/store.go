package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	ErrEmptyKey = errors.New("store: empty key")
	ErrClosed   = errors.New("store: closed")
)

type walOp string

const (
	walPut    walOp = "put"
	walDelete walOp = "delete"
)

type walEntry struct {
	Op    walOp  `json:"op"`
	Key   string `json:"key"`
	Value []byte `json:"value,omitempty"`
}

const (
	walName = "store.wal"

	// DefaultCompactAfter is the log length at which writes start compacting.
	DefaultCompactAfter = 1024
)

// Store is a single-node key/value store kept in memory and persisted as an
// append-only log of JSON lines under dataDir.
type Store struct {
	mu      sync.RWMutex
	data    map[string][]byte
	dir     string
	log     *os.File
	entries int

	compactAfter int
}

type Option func(*Store)

// WithCompactAfter makes a write compact the log once it holds at least n
// entries and more than twice as many as there are live keys. Zero or less
// disables it.
func WithCompactAfter(n int) Option { return func(s *Store) { s.compactAfter = n } }

// Open loads the log under dataDir, creating the directory if needed.
func Open(dataDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{data: make(map[string][]byte), dir: dataDir, compactAfter: DefaultCompactAfter}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.replay(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(s.path(), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}
	s.log = f
	return s, nil
}

func (s *Store) path() string { return filepath.Join(s.dir, walName) }

// replay rebuilds the in-memory map. A torn final line, left by a crash in
// the middle of a write, is dropped.
func (s *Store) replay() error {
	f, err := os.Open(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var (
		good    int64
		pending error
	)
	for sc.Scan() {
		if pending != nil {
			return pending
		}
		line := sc.Bytes()
		var e walEntry
		if err := json.Unmarshal(line, &e); err != nil {
			pending = fmt.Errorf("decode wal entry %d: %w", s.entries+1, err)
			continue
		}
		switch e.Op {
		case walPut:
			s.data[e.Key] = e.Value
		case walDelete:
			delete(s.data, e.Key)
		default:
			return fmt.Errorf("unknown wal op %q", e.Op)
		}
		s.entries++
		good += int64(len(line)) + 1
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read wal: %w", err)
	}
	if pending != nil {
		if err := os.Truncate(s.path(), good); err != nil {
			return fmt.Errorf("truncate torn wal: %w", err)
		}
	}
	return nil
}

// Put stores value under key and syncs the log. If the write triggers a
// compaction that fails, the value is stored and the compaction error returned.
func (s *Store) Put(key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.append(walEntry{Op: walPut, Key: key, Value: value}); err != nil {
		return err
	}
	s.data[key] = append([]byte(nil), value...)
	return s.maybeCompact()
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	if err := s.append(walEntry{Op: walDelete, Key: key}); err != nil {
		return err
	}
	delete(s.data, key)
	return s.maybeCompact()
}

// Keys returns every key with the given prefix in sorted order. An empty
// prefix matches all keys.
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Compact rewrites the log so it holds exactly one put per live key.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compact()
}

// Entries is the number of entries in the log.
func (s *Store) Entries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries
}

// maybeCompact must be called with s.mu held.
func (s *Store) maybeCompact() error {
	if s.compactAfter <= 0 || s.entries < s.compactAfter || s.entries <= 2*len(s.data) {
		return nil
	}
	if err := s.compact(); err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	return nil
}

// compact must be called with s.mu held.
func (s *Store) compact() error {
	if s.log == nil {
		return ErrClosed
	}

	tmp, err := os.CreateTemp(s.dir, walName+".*")
	if err != nil {
		return fmt.Errorf("create compacted wal: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b, err := json.Marshal(walEntry{Op: walPut, Key: k, Value: s.data[k]})
		if err != nil {
			_ = tmp.Close()
			return fmt.Errorf("marshal wal entry: %w", err)
		}
		_, _ = w.Write(append(b, '\n'))
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write compacted wal: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync compacted wal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close compacted wal: %w", err)
	}

	if err := s.log.Close(); err != nil {
		return fmt.Errorf("close wal: %w", err)
	}
	s.log = nil
	if err := os.Rename(tmp.Name(), s.path()); err != nil {
		return fmt.Errorf("replace wal: %w", err)
	}
	f, err := os.OpenFile(s.path(), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reopen wal: %w", err)
	}
	s.log = f
	s.entries = len(keys)
	return nil
}

// Close closes the log. Further writes fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log == nil {
		return nil
	}
	err := s.log.Close()
	s.log = nil
	return err
}

// append must be called with s.mu held.
func (s *Store) append(e walEntry) error {
	if s.log == nil {
		return ErrClosed
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal wal entry: %w", err)
	}
	if _, err := s.log.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write wal: %w", err)
	}
	if err := s.log.Sync(); err != nil {
		return fmt.Errorf("sync wal: %w", err)
	}
	s.entries++
	return nil
}
