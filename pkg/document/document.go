// Package document loads settings documents into layering trees. YAML, TOML,
// JSON and JSONC files are supported; YAML and JSON keep mapping key order.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"

	"github.com/goliatone/go-scenarios/layering"
)

// Format names a supported document syntax.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatTOML  Format = "toml"
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
)

// DirectoryPattern selects the files merged when Load is given a directory.
const DirectoryPattern = "**/*.{yml,yaml}"

var ErrUnsupportedFormat = errors.New("document: unsupported format")

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonc":
		return FormatJSONC, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load reads the document at path. A directory loads every YAML file below it
// in lexical order and deep merges them, later files winning.
func Load(path string) (layering.Node, error) {
	info, err := os.Stat(path)
	if err != nil {
		return layering.Null(), fmt.Errorf("document: %w", err)
	}
	if info.IsDir() {
		return LoadDir(os.DirFS(path), DirectoryPattern)
	}
	format, err := FormatOf(path)
	if err != nil {
		return layering.Null(), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return layering.Null(), fmt.Errorf("document: %w", err)
	}
	node, err := Decode(format, data)
	if err != nil {
		return layering.Null(), fmt.Errorf("document: %s: %w", path, err)
	}
	return node, nil
}

// LoadDir merges the files of fsys matching pattern in lexical order.
func LoadDir(fsys fs.FS, pattern string) (layering.Node, error) {
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return layering.Null(), fmt.Errorf("document: glob %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return layering.Null(), fmt.Errorf("document: no files match %q", pattern)
	}
	sort.Strings(matches)

	merged := layering.NewMapping()
	for _, name := range matches {
		format, err := FormatOf(name)
		if err != nil {
			return layering.Null(), err
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return layering.Null(), fmt.Errorf("document: %w", err)
		}
		node, err := Decode(format, data)
		if err != nil {
			return layering.Null(), fmt.Errorf("document: %s: %w", name, err)
		}
		if node.IsNull() {
			continue
		}
		if !node.IsMapping() {
			return layering.Null(), fmt.Errorf("document: %s: top level must be a mapping, got %s", name, node.Kind())
		}
		layering.MergeInto(&merged, node)
	}
	return merged, nil
}

// Decode parses data in format. An empty document decodes to null.
func Decode(format Format, data []byte) (layering.Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return layering.Null(), nil
	}
	switch format {
	case FormatYAML:
		return decodeYAML(data)
	case FormatTOML:
		return decodeTOML(data)
	case FormatJSON, FormatJSONC:
		var node layering.Node
		if err := node.UnmarshalJSON(jsonc.ToJSON(data)); err != nil {
			return layering.Null(), err
		}
		return node, nil
	default:
		return layering.Null(), fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// TOML tables have no key order; FromNative sorts keys.
func decodeTOML(data []byte) (layering.Node, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return layering.Null(), err
	}
	return layering.FromNative(normaliseTOML(raw))
}

func normaliseTOML(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		for key, item := range typed {
			typed[key] = normaliseTOML(item)
		}
		return typed
	case []any:
		for i, item := range typed {
			typed[i] = normaliseTOML(item)
		}
		return typed
	case fmt.Stringer:
		return typed.String()
	default:
		return value
	}
}
