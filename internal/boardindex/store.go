// Package boardindex persists the board index as a single JSON document.
package boardindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

// DefaultFileName is the index file looked up when no path is configured.
const DefaultFileName = "boards_index.json"

// Store reads and writes the index document.
type Store struct {
	path     string
	logger   *zap.Logger
	readFile func(string) ([]byte, error)
}

// New builds a Store. An empty path makes Load search the candidate
// locations and Save write DefaultFileName in the working directory.
func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: strings.TrimSpace(path), logger: logger, readFile: os.ReadFile}
}

// Path returns the configured path, which may be empty.
func (s *Store) Path() string {
	return s.path
}

// Candidates lists the files Load tries, in order.
func (s *Store) Candidates() []string {
	if s.path != "" {
		return []string{s.path}
	}
	var out []string
	if exe, err := os.Executable(); err == nil {
		out = append(out, filepath.Join(filepath.Dir(exe), DefaultFileName))
	}
	out = append(out, DefaultFileName)
	if wd, err := os.Getwd(); err == nil {
		out = append(out, filepath.Join(wd, DefaultFileName))
	}
	return out
}

// Resolve returns the first existing candidate file.
func (s *Store) Resolve() (string, error) {
	for _, candidate := range s.Candidates() {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", crawler.ErrIndexNotFound, strings.Join(s.Candidates(), ", "))
}

// Load reads and decodes the index. Files that are missing or cannot be read
// yield ErrIndexNotFound and undecodable ones ErrMalformedIndex.
func (s *Store) Load(_ context.Context) (crawler.BoardIndex, error) {
	path, err := s.Resolve()
	if err != nil {
		return crawler.BoardIndex{}, err
	}
	data, err := s.readFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return crawler.BoardIndex{}, fmt.Errorf("%w: %s", crawler.ErrIndexNotFound, path)
		}
		return crawler.BoardIndex{}, fmt.Errorf("%w: read %s: %w", crawler.ErrIndexNotFound, path, err)
	}
	idx, err := Decode(data)
	if err != nil {
		return crawler.BoardIndex{}, fmt.Errorf("decode index %s: %w", path, err)
	}
	s.logger.Debug("board index loaded", zap.String("path", path), zap.Int("boards", len(idx.Boards)))
	return idx, nil
}

// Save writes the index atomically and returns the path written.
func (s *Store) Save(_ context.Context, idx crawler.BoardIndex) (string, error) {
	path := s.path
	if path == "" {
		path = DefaultFileName
	}
	data, err := Encode(idx)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create index directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".boards_index-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp index: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("replace index: %w", err)
	}
	s.logger.Info("board index saved", zap.String("path", path), zap.Int("boards", len(idx.Boards)))
	return path, nil
}

// Encode renders the index with two-space indentation and unescaped UTF-8.
func Encode(idx crawler.BoardIndex) ([]byte, error) {
	idx.Boards = append(make([]crawler.Board, 0, len(idx.Boards)), idx.Boards...)
	for i := range idx.Boards {
		if idx.Boards[i].Forums == nil {
			idx.Boards[i].Forums = []crawler.ForumRef{}
		}
		if idx.Boards[i].Collections == nil {
			idx.Boards[i].Collections = []crawler.CollectionRef{}
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(idx); err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses an index document. A document that is not a JSON object is
// malformed; a missing boards array decodes as empty.
func Decode(data []byte) (crawler.BoardIndex, error) {
	var idx crawler.BoardIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return crawler.BoardIndex{}, fmt.Errorf("%w: %v", crawler.ErrMalformedIndex, err)
	}
	if idx.Boards == nil {
		idx.Boards = []crawler.Board{}
	}
	return idx, nil
}
