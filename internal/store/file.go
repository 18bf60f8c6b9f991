package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
)

// DefaultFilePath is where FileStore keeps overlays unless configured otherwise.
const DefaultFilePath = "~/.chatpilot/selectors.json"

const fileFormatVersion = 1

type fileDocument struct {
	Version int                                  `json:"version"`
	Sites   map[schemas.Site]schemas.SelectorSet `json:"sites"`
}

// FileStore keeps every overlay in one JSON document. Writes replace the file
// atomically so a crash never leaves a torn document behind.
type FileStore struct {
	mu   sync.Mutex
	path string
	log  *zap.Logger
}

// NewFileStore creates a store at path ("~" is expanded). An empty path
// selects DefaultFilePath.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		path = DefaultFilePath
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand store path %q: %w", path, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: expanded, log: logger.Named("store")}, nil
}

// Path returns the resolved file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) GetCustomSelectors(_ context.Context, site schemas.Site) (*schemas.SelectorSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	set, ok := doc.Sites[site]
	if !ok {
		return nil, nil
	}
	set = set.Clone()
	return &set, nil
}

func (s *FileStore) SaveCustomSelectors(ctx context.Context, site schemas.Site, set schemas.SelectorSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Sites[site] = set.Clone()
	if err := s.write(ctx, doc); err != nil {
		return err
	}
	s.log.Debug("Custom selectors saved.", zap.String("site", string(site)), zap.String("path", s.path))
	return nil
}

func (s *FileStore) DeleteCustomSelectors(ctx context.Context, site schemas.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := doc.Sites[site]; !ok {
		return ErrNotFound
	}
	delete(doc.Sites, site)
	return s.write(ctx, doc)
}

func (s *FileStore) ListSites(_ context.Context) ([]schemas.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	sites := make([]schemas.Site, 0, len(doc.Sites))
	for site := range doc.Sites {
		sites = append(sites, site)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i] < sites[j] })
	return sites, nil
}

// read loads the document; a missing file is an empty document.
func (s *FileStore) read() (*fileDocument, error) {
	doc := &fileDocument{Version: fileFormatVersion, Sites: map[schemas.Site]schemas.SelectorSet{}}
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read selector store: %w", err)
	}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("failed to decode selector store %s: %w", s.path, err)
	}
	if doc.Sites == nil {
		doc.Sites = map[schemas.Site]schemas.SelectorSet{}
	}
	return doc, nil
}

func (s *FileStore) write(ctx context.Context, doc *fileDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc.Version = fileFormatVersion
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode selector store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".selectors-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace selector store: %w", err)
	}
	return nil
}
