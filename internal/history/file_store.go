package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/charmbracelet/log"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/domain"
)

// document is the on-disk layout: {"list": [DomainRecord, ...]}.
type document struct {
	List []domain.DomainRecord `json:"list"`
}

// FileStore keeps the whole history in memory and rewrites the JSON document
// after every mutation. It assumes a single writer: two processes sharing a
// file overwrite each other's changes.
type FileStore struct {
	path    string
	fs      fileSystem
	records []domain.DomainRecord
	index   map[string]int
}

// OpenFileStore loads the history document at path. A missing file yields
// ErrNotFound; an invalid document yields ErrCorrupt.
func OpenFileStore(path string) (*FileStore, error) {
	return newFileStore(osFileSystem{}, path)
}

func newFileStore(fsys fileSystem, path string) (*FileStore, error) {
	data, err := fsys.readFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s (create it with {\"list\": []})", ErrNotFound, path)
		}
		return nil, fmt.Errorf("history: read %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	store := &FileStore{
		path:    path,
		fs:      fsys,
		records: make([]domain.DomainRecord, 0, len(doc.List)),
		index:   make(map[string]int, len(doc.List)),
	}
	for _, rec := range doc.List {
		if err := checkRecord(rec); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if _, dup := store.index[rec.Domain]; dup {
			return nil, fmt.Errorf("%w: %s: domain %q listed twice", ErrCorrupt, path, rec.Domain)
		}
		store.index[rec.Domain] = len(store.records)
		store.records = append(store.records, rec)
	}

	log.Debug("Domain history loaded", "path", path, "domains", len(store.records))
	return store, nil
}

// Len returns the number of domains with history.
func (s *FileStore) Len() int {
	return len(s.records)
}

func (s *FileStore) Lookup(_ context.Context, name string) (domain.DomainRecord, bool, error) {
	i, ok := s.index[name]
	if !ok {
		return domain.DomainRecord{}, false, nil
	}
	rec := s.records[i]
	if !rec.Consistent() {
		return domain.DomainRecord{}, false, fmt.Errorf("%w: record %q: count %d, %d queries",
			ErrCorrupt, name, rec.Count, len(rec.Queries))
	}
	return rec.Clone(), true, nil
}

func (s *FileStore) Append(_ context.Context, name string, q domain.Query) (domain.DomainRecord, error) {
	if name == "" {
		return domain.DomainRecord{}, errors.New("history: domain name is required")
	}

	i, exists := s.index[name]
	if !exists {
		s.records = append(s.records, domain.NewDomainRecord(name, q))
		s.index[name] = len(s.records) - 1
		if err := s.flush(); err != nil {
			s.records = s.records[:len(s.records)-1]
			delete(s.index, name)
			return domain.DomainRecord{}, err
		}
		return s.records[len(s.records)-1].Clone(), nil
	}

	prev := s.records[i]
	if !prev.Consistent() {
		return domain.DomainRecord{}, fmt.Errorf("%w: record %q: count %d, %d queries",
			ErrCorrupt, name, prev.Count, len(prev.Queries))
	}

	next := prev.Clone()
	next.Queries = append(next.Queries, q)
	next.Count++
	s.records[i] = next

	if err := s.flush(); err != nil {
		s.records[i] = prev
		return domain.DomainRecord{}, err
	}
	return next.Clone(), nil
}

func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(document{List: s.records}, "", "    ")
	if err != nil {
		return fmt.Errorf("history: encode %s: %w", s.path, err)
	}
	if err := s.fs.writeFile(s.path, data); err != nil {
		return fmt.Errorf("history: write %s: %w", s.path, err)
	}
	return nil
}
