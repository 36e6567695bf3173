// Package results stores encoded report payloads on the local filesystem.
package results

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/crewviz/reportd/internal/domain"
)

// FileStore writes report payloads under a single directory. The path
// recorded on a job is the bare file name, so the directory can move
// between deployments without invalidating job rows.
type FileStore struct {
	dir string
}

// NewFileStore creates the store, ensuring the directory exists.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create result directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Write persists the payload for a job and returns the stored file name.
func (s *FileStore) Write(jobID uuid.UUID, format domain.ReportFormat, data []byte) (string, error) {
	name := jobID.String() + extension(format)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report result: %w", err)
	}
	return name, nil
}

// Read returns the payload stored under the given file name. The name is
// reduced to its base component so a stored path can never escape the
// result directory.
func (s *FileStore) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to read report result: %w", err)
	}
	return data, nil
}

func extension(format domain.ReportFormat) string {
	switch format {
	case domain.FormatCSV:
		return ".csv"
	case domain.FormatTSV:
		return ".tsv"
	case domain.FormatPDF:
		return ".pdf"
	default:
		return ".dat"
	}
}
