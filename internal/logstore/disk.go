package logstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// DiskStore writes records as zstd-compressed JSON files to a
// lazily-created temp directory. Build logs compress extremely well
// (repetitive store paths and derivation names), so logs survive the
// in-memory cache without meaningful disk cost.
type DiskStore struct {
	mu  sync.Mutex
	dir string

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewDiskStore creates a DiskStore. The underlying temp directory is
// created lazily on the first Save.
func NewDiskStore() (*DiskStore, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &DiskStore{enc: enc, dec: dec}, nil
}

// Save compresses and writes a record to disk.
func (s *DiskStore) Save(rec *Record) error {
	dir, err := s.ensureDir()
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling log %s: %w", rec.ID, err)
	}
	path := filepath.Join(dir, rec.ID+".json.zst")
	if err := os.WriteFile(path, s.enc.EncodeAll(data, nil), 0o644); err != nil {
		return fmt.Errorf("writing log %s: %w", rec.ID, err)
	}
	return nil
}

// Load reads and decompresses a record from disk.
func (s *DiskStore) Load(id string) (*Record, error) {
	dir, err := s.ensureDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, id+".json.zst")
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading log %s: %w", id, err)
	}
	data, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing log %s: %w", id, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshalling log %s: %w", id, err)
	}
	return &rec, nil
}

// List returns summaries for all archived logs, newest first.
func (s *DiskStore) List() []Summary {
	s.mu.Lock()
	dir := s.dir
	s.mu.Unlock()
	if dir == "" {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []Summary
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), ".json.zst")
		if !ok {
			continue
		}
		rec, err := s.Load(id)
		if err != nil {
			continue
		}
		out = append(out, Summary{
			ID:        rec.ID,
			Command:   rec.Command,
			CreatedAt: rec.CreatedAt,
			Bytes:     len(rec.Log),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *DiskStore) ensureDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		return s.dir, nil
	}
	dir, err := os.MkdirTemp("", "chix-logs-*")
	if err != nil {
		return "", fmt.Errorf("creating log directory: %w", err)
	}
	s.dir = dir
	return dir, nil
}
