package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// libraryFiles are tried in order inside each library directory.
var libraryFiles = []string{"build.json", "build.jsonc", "build.yml", "build.yaml", "build.toml", "build.hcl"}

// LibraryConfig describes how to build every image of one library.
type LibraryConfig struct {
	// Latest is a rendered image version. Tasks whose rendered image version
	// equals it are additionally tagged :latest.
	Latest string `json:"latest" yaml:"latest" toml:"latest"`

	// BuildGroups are expanded in declared order.
	BuildGroups BuildGroups `json:"build_groups" yaml:"build_groups" toml:"build_groups"`
}

// BuildGroup is one dockerfile crossed with versions and instances.
type BuildGroup struct {
	// Name identifies the group. In the object form of build_groups it is
	// the key and may be omitted.
	Name string `json:"name,omitempty" yaml:"name,omitempty" toml:"name"`

	// Dockerfile is relative to the library directory.
	Dockerfile string `json:"dockerfile" yaml:"dockerfile" toml:"dockerfile"`

	Versions  []string `json:"versions" yaml:"versions" toml:"versions"`
	Instances []string `json:"instances" yaml:"instances" toml:"instances"`

	// ImageVersion is the tag template, e.g. "{v}" or "{v}-fips".
	ImageVersion string `json:"image_version" yaml:"image_version" toml:"image_version"`

	// BuildArgs values may reference {v}.
	BuildArgs map[string]string `json:"build_args,omitempty" yaml:"build_args,omitempty" toml:"build_args"`
}

// BuildGroups keeps build groups in declaration order. It accepts either a
// map keyed by group name or a list of groups carrying a name:
//
//	"build_groups": {
//	  "legacy": { "dockerfile": "Dockerfile-1_0_x", ... },
//	  "modern": { "dockerfile": "Dockerfile-3_x", ... }
//	}
//
// TOML documents use the list form ([[build_groups]]); HCL documents use
// labelled build_group blocks.
type BuildGroups []BuildGroup

// UnmarshalJSON decodes the map form token by token so key order survives.
func (g *BuildGroups) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*g = nil
		return nil
	}

	if len(data) > 0 && data[0] == '[' {
		var list []BuildGroup
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&list); err != nil {
			return fmt.Errorf("build_groups: %w", err)
		}
		*g = list
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return errors.New("build_groups: expected object or array")
	}

	var groups BuildGroups
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("build_groups: %w", err)
		}
		name, _ := tok.(string)

		var bg BuildGroup
		if err := dec.Decode(&bg); err != nil {
			return fmt.Errorf("build_groups.%s: %w", name, err)
		}
		bg.Name = name
		groups = append(groups, bg)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("build_groups: %w", err)
	}

	*g = groups
	return nil
}

// UnmarshalYAML decodes the mapping form pairwise so key order survives.
// Groups are decoded strictly in either form.
func (g *BuildGroups) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		groups := make(BuildGroups, 0, len(value.Content))
		for i, node := range value.Content {
			var bg BuildGroup
			if err := decodeGroupYAML(node, &bg); err != nil {
				return fmt.Errorf("build_groups[%d]: %w", i, err)
			}
			groups = append(groups, bg)
		}
		*g = groups
		return nil

	case yaml.MappingNode:
		groups := make(BuildGroups, 0, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			name := value.Content[i].Value
			var bg BuildGroup
			if err := decodeGroupYAML(value.Content[i+1], &bg); err != nil {
				return fmt.Errorf("build_groups.%s: %w", name, err)
			}
			bg.Name = name
			groups = append(groups, bg)
		}
		*g = groups
		return nil
	}

	return fmt.Errorf("build_groups: expected mapping or sequence, got YAML kind %d", value.Kind)
}

// decodeGroupYAML decodes one group node with unknown keys rejected.
// Node.Decode does not carry the outer decoder's KnownFields setting, so the
// node is re-encoded and run through a strict decoder.
func decodeGroupYAML(node *yaml.Node, bg *BuildGroup) error {
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(bg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// NamedLibrary pairs a library directory name with its loaded configuration.
type NamedLibrary struct {
	Name     string
	Path     string
	Config   *LibraryConfig
	Warnings []string
}

// LibraryPath returns the first build document that exists for library
// under root.
func LibraryPath(root, library string) (string, error) {
	dir := filepath.Join(root, library)
	for _, name := range libraryFiles {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s: %w", ErrConfig, p, err)
		}
	}
	return "", fmt.Errorf("%w: %s: no build file (tried %s): %w", ErrConfig, dir, strings.Join(libraryFiles, ", "), fs.ErrNotExist)
}

// LoadLibrary reads and validates the build document of one library.
func LoadLibrary(root, library string) (*NamedLibrary, error) {
	path, err := LibraryPath(root, library)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrConfig, path, err)
	}

	lib, err := ParseLibrary(path, data)
	if err != nil {
		return nil, err
	}

	warnings, err := ValidateLibrary(library, lib)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}

	return &NamedLibrary{Name: library, Path: path, Config: lib, Warnings: warnings}, nil
}

// ParseLibrary decodes a build document. path only selects the format.
func ParseLibrary(path string, data []byte) (*LibraryConfig, error) {
	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		lib, err := decodeHCL(path, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
		}
		return lib, nil
	}

	var lib LibraryConfig
	if err := decode(path, data, &lib, true); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}
	return &lib, nil
}

// LoadLibraries loads every named library under root, in order. The first
// failure aborts loading.
func LoadLibraries(root string, names []string) ([]NamedLibrary, error) {
	libs := make([]NamedLibrary, 0, len(names))
	for _, name := range names {
		lib, err := LoadLibrary(root, name)
		if err != nil {
			return nil, err
		}
		libs = append(libs, *lib)
	}
	return libs, nil
}
