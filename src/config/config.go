package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DefaultIndexFile is the library index read when no --config is given.
const DefaultIndexFile = "libraries.json"

// DefaultSet is the library set used when none is selected.
const DefaultSet = "Libraries"

// ErrConfig marks malformed or missing configuration. It is always fatal and
// surfaces before any build runs.
var ErrConfig = errors.New("configuration error")

// Index is the top-level document: named sets of library names.
//
//	{
//	  // every library in the repo
//	  "Libraries": ["openssl", "wolfssl", "mbedtls"],
//	  "Nightly":   ["openssl"],
//	}
type Index struct {
	Path string
	Sets map[string][]string
}

// LoadIndex reads the library index at path. The format follows the file
// extension: .json/.jsonc (comments and trailing commas allowed), .yml/.yaml,
// or .toml.
func LoadIndex(path string) (*Index, error) {
	if path == "" {
		path = DefaultIndexFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrConfig, path, err)
	}

	sets := map[string][]string{}
	if err := decode(path, data, &sets, false); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}

	return &Index{Path: path, Sets: sets}, nil
}

// Dir returns the directory containing the index, the default library root.
func (ix *Index) Dir() string {
	return filepath.Dir(ix.Path)
}

// Libraries returns the library names of set in declared order.
func (ix *Index) Libraries(set string) ([]string, error) {
	if set == "" {
		set = DefaultSet
	}
	names, ok := ix.Sets[set]
	if !ok {
		return nil, fmt.Errorf("%w: %s: no library set %q (have: %s)", ErrConfig, ix.Path, set, strings.Join(ix.SetNames(), ", "))
	}

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return nil, fmt.Errorf("%w: %s: library %q listed twice in set %q", ErrConfig, ix.Path, n, set)
		}
		seen[n] = true
	}
	return names, nil
}

// SetNames returns the sorted set identifiers.
func (ix *Index) SetNames() []string {
	names := make([]string, 0, len(ix.Sets))
	for n := range ix.Sets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SelectLibraries filters all by the allow-list, keeping the order of all.
// An empty allow-list selects everything. Allow-list entries that name no
// configured library are returned as unknown.
func SelectLibraries(all, allow []string) (selected, unknown []string) {
	if len(allow) == 0 {
		return all, nil
	}

	want := make(map[string]bool, len(allow))
	for _, a := range allow {
		want[a] = true
	}
	known := make(map[string]bool, len(all))
	for _, name := range all {
		known[name] = true
		if want[name] {
			selected = append(selected, name)
		}
	}
	for _, a := range allow {
		if !known[a] {
			unknown = append(unknown, a)
		}
	}
	return selected, unknown
}

// decode unmarshals data into v according to the extension of path.
// strict rejects unknown fields.
func decode(path string, data []byte, v any, strict bool) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		if strict {
			dec.DisallowUnknownFields()
		}
		return dec.Decode(v)
	case ".yml", ".yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(strict)
		return dec.Decode(v)
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		if strict {
			dec.DisallowUnknownFields()
		}
		return dec.Decode(v)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}
