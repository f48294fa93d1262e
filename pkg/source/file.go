package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileSource reads a snapshot from a JSON, YAML or TOML file. The format is
// picked from the file extension.
type FileSource struct {
	path string
}

// NewFileSource creates a source backed by the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string {
	return s.path
}

// Path returns the file the source reads.
func (s *FileSource) Path() string {
	return s.path
}

func (s *FileSource) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	snapshot, err := Decode(filepath.Ext(s.path), data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.path, err)
	}

	if err := Validate(snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Decode parses snapshot data in the format named by ext (".json", ".yaml",
// ".yml" or ".toml").
func Decode(ext string, data []byte) (*Snapshot, error) {
	var snapshot Snapshot

	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &snapshot); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &snapshot); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(data, &snapshot); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", ext)
	}

	return &snapshot, nil
}
