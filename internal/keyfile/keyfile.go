// Package keyfile reads answer keys and recognized answer sheets from disk.
package keyfile

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/grading"
	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
)

// ErrNoKeys is returned when a file parses but holds no answer keys.
var ErrNoKeys = errors.New("no answer keys in file")

// Format is the encoding of a key file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// File is a parsed answer-key file.
type File struct {
	Path string
	Hash string
	Keys []model.AnswerKey
}

// document is the on-disk layout. A file holds either a list under
// answer_keys or one key at the top level.
type document struct {
	AnswerKeys []model.AnswerKey `json:"answer_keys" yaml:"answer_keys"`
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported key file extension %q", filepath.Ext(path))
	}
}

// Load reads and parses an answer-key file.
func Load(path string) (File, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return File{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	keys, err := Parse(data, format)
	if err != nil {
		return File{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return File{Path: path, Hash: Hash(data), Keys: keys}, nil
}

// Parse decodes answer keys from data.
func Parse(data []byte, format Format) ([]model.AnswerKey, error) {
	var doc document
	var single model.AnswerKey
	switch format {
	case FormatJSON:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &doc.AnswerKeys); err != nil {
				return nil, err
			}
			break
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		if len(doc.AnswerKeys) == 0 {
			if err := json.Unmarshal(trimmed, &single); err != nil {
				return nil, err
			}
		}
	case FormatYAML:
		var root yaml.Node
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, err
		}
		if len(root.Content) == 0 {
			return nil, ErrNoKeys
		}
		body := root.Content[0]
		if body.Kind == yaml.SequenceNode {
			if err := body.Decode(&doc.AnswerKeys); err != nil {
				return nil, err
			}
			break
		}
		if err := body.Decode(&doc); err != nil {
			return nil, err
		}
		if len(doc.AnswerKeys) == 0 {
			if err := body.Decode(&single); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	keys := doc.AnswerKeys
	if len(keys) == 0 && single.ID != "" {
		keys = []model.AnswerKey{single}
	}
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	return keys, nil
}

// LoadSheet reads one recognized answer sheet stored as JSON. Labels "-"
// and "" read as unanswered.
func LoadSheet(path string) (grading.Submission, error) {
	var sub grading.Submission
	data, err := os.ReadFile(path)
	if err != nil {
		return sub, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &sub); err != nil {
		return sub, fmt.Errorf("parse %s: %w", path, err)
	}
	if sub.StudentID == "" {
		sub.StudentID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sub, nil
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
