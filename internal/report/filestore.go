package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pemsgate/pemsgate/internal/conformity"
)

// ErrBadTripID is returned for trip IDs that cannot form a file name.
var ErrBadTripID = errors.New("trip id not usable as file name")

// FileStore exports report bundles as JSON files, one per trip. Files
// are written to a temporary name and renamed into place so a crashed
// export never leaves a truncated report behind.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir, creating it if
// needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Write exports a bundle to <dir>/<tripID>.json.
func (s *FileStore) Write(bundle *conformity.ReportBundle) (string, error) {
	path, err := s.pathFor(bundle.TripID)
	if err != nil {
		return "", err
	}

	payload, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".report-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("publish report: %w", err)
	}
	return path, nil
}

// Read loads an exported bundle.
func (s *FileStore) Read(tripID string) (*conformity.ReportBundle, error) {
	path, err := s.pathFor(tripID)
	if err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	var bundle conformity.ReportBundle
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	return &bundle, nil
}

func (s *FileStore) pathFor(tripID string) (string, error) {
	if tripID == "" || strings.ContainsAny(tripID, "/\\") || tripID != filepath.Base(tripID) {
		return "", fmt.Errorf("%w: %q", ErrBadTripID, tripID)
	}
	return filepath.Join(s.dir, tripID+".json"), nil
}
