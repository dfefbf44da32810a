package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"liquidityEngine/internal/model"
)

// JsonlStorage is the result log: one JSON line per applied operation, in
// sequence order.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutResults appends a batch and syncs it to disk before returning.
func (s *JsonlStorage) PutResults(results []model.Result) error {
	if len(results) == 0 {
		return nil
	}
	if err := s.ensureDir(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open result log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	enc := json.NewEncoder(writer)
	for _, result := range results {
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode result %d: %w", result.Seq, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush result log: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync result log: %w", err)
	}
	return nil
}

// TrimAfter drops every result recorded past seq. A run resumed from a snapshot
// at seq calls it first, so results written after that snapshot are not repeated.
func (s *JsonlStorage) TrimAfter(seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open result log: %w", err)
	}
	defer src.Close()

	tmp := s.path + ".tmp"
	dst, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create trimmed log: %w", err)
	}
	defer os.Remove(tmp)

	dropped, err := copyUpTo(src, dst, seq)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if dropped == 0 {
		return nil
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace result log: %w", err)
	}
	return nil
}

// copyUpTo copies the lines of src with seq at or below the bound and reports
// how many it left out.
func copyUpTo(src, dst *os.File, seq uint64) (int, error) {
	var kept, dropped int
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	writer := bufio.NewWriter(dst)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var head struct {
			Seq uint64 `json:"seq"`
		}
		if err := json.Unmarshal(line, &head); err != nil {
			return dropped, fmt.Errorf("result log line %d: %w", kept+dropped+1, err)
		}
		if head.Seq > seq {
			dropped++
			continue
		}
		if _, err := writer.Write(line); err != nil {
			return dropped, fmt.Errorf("write trimmed log: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return dropped, fmt.Errorf("write trimmed log: %w", err)
		}
		kept++
	}
	if err := scanner.Err(); err != nil {
		return dropped, fmt.Errorf("read result log: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return dropped, fmt.Errorf("flush trimmed log: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return dropped, fmt.Errorf("sync trimmed log: %w", err)
	}
	return dropped, nil
}

func (s *JsonlStorage) ensureDir() error {
	dir := filepath.Dir(s.path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}
