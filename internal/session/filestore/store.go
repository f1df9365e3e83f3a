package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"twin/internal/logging"
	"twin/internal/session"
)

// Store keeps one JSON document per session at <baseDir>/<id>.json.
type Store struct {
	baseDir string
	logger  logging.Logger
}

// New creates the base directory if needed. A leading "~/" is expanded.
func New(baseDir string) (*Store, error) {
	if strings.HasPrefix(baseDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		baseDir = filepath.Join(home, baseDir[2:])
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir %s: %w", baseDir, err)
	}
	return &Store{
		baseDir: baseDir,
		logger:  logging.NewComponentLogger("SessionFileStore"),
	}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s.json", id))
}

// Load returns the stored transcript, or an empty one for an unseen id.
func (s *Store) Load(ctx context.Context, id string) ([]session.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.path(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []session.Turn{}, nil
		}
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	turns, err := session.Decode(data)
	if err != nil {
		s.logger.Error("Failed to decode session file %s: %v. Preview: %s", path, err, previewJSON(data))
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return turns, nil
}

// Save replaces the stored transcript. The document is written to a
// temporary file and renamed so readers never observe a partial write.
func (s *Store) Save(ctx context.Context, id string, turns []session.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := session.Encode(turns)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.baseDir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write session %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close session %s: %w", id, err)
	}
	if err := os.Rename(tmpName, s.path(id)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit session %s: %w", id, err)
	}
	return nil
}

func previewJSON(data []byte) string {
	const maxPreview = 512
	preview := strings.TrimSpace(string(data))
	preview = strings.ReplaceAll(preview, "\n", " ")
	preview = strings.ReplaceAll(preview, "\t", " ")
	if len(preview) > maxPreview {
		preview = preview[:maxPreview] + "... (truncated)"
	}
	return preview
}
