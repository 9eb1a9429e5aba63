package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func groupNames(groups BuildGroups) []string {
	var names []string
	for _, g := range groups {
		names = append(names, g.Name)
	}
	return names
}

func TestLoadIndexJSONC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "libraries.json")
	writeFile(t, path, `{
  // every library
  "Libraries": ["openssl", "wolfssl"],
  "Nightly": ["openssl"], /* trailing comma below */
}`)

	ix, err := LoadIndex(path)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if ix.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", ix.Dir(), dir)
	}
	libs, err := ix.Libraries("")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(libs, []string{"openssl", "wolfssl"}) {
		t.Errorf("default set = %v", libs)
	}
	if got := ix.SetNames(); !reflect.DeepEqual(got, []string{"Libraries", "Nightly"}) {
		t.Errorf("SetNames() = %v", got)
	}
}

func TestIndexLibrariesErrors(t *testing.T) {
	ix := &Index{Path: "libraries.json", Sets: map[string][]string{
		"Libraries": {"a", "b", "a"},
	}}

	if _, err := ix.Libraries("Missing"); !errors.Is(err, ErrConfig) {
		t.Errorf("unknown set: err = %v", err)
	}
	_, err := ix.Libraries("Libraries")
	if !errors.Is(err, ErrConfig) || !strings.Contains(err.Error(), "listed twice") {
		t.Errorf("duplicate library: err = %v", err)
	}
}

func TestLoadIndexMissing(t *testing.T) {
	_, err := LoadIndex(filepath.Join(t.TempDir(), "libraries.json"))
	if !errors.Is(err, ErrConfig) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want configuration error wrapping not-exist", err)
	}
}

func TestLoadIndexYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libraries.yaml")
	writeFile(t, path, "Libraries:\n  - zlib\n  - curl\n")

	ix, err := LoadIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	if libs, _ := ix.Libraries(DefaultSet); !reflect.DeepEqual(libs, []string{"zlib", "curl"}) {
		t.Errorf("libraries = %v", libs)
	}
}

func TestSelectLibraries(t *testing.T) {
	all := []string{"a", "b", "c"}

	sel, unknown := SelectLibraries(all, nil)
	if !reflect.DeepEqual(sel, all) || unknown != nil {
		t.Errorf("empty allow-list: %v %v", sel, unknown)
	}

	sel, unknown = SelectLibraries(all, []string{"c", "zzz", "a"})
	if !reflect.DeepEqual(sel, []string{"a", "c"}) {
		t.Errorf("selected = %v, want configured order", sel)
	}
	if !reflect.DeepEqual(unknown, []string{"zzz"}) {
		t.Errorf("unknown = %v", unknown)
	}

	sel, _ = SelectLibraries(all, []string{"nope"})
	if len(sel) != 0 {
		t.Errorf("non-matching allow-list selected %v", sel)
	}
}

func TestParseLibraryJSONKeepsGroupOrder(t *testing.T) {
	doc := `{
  "latest": "3.2.1",
  "build_groups": {
    "zeta": {"dockerfile": "Dockerfile-z", "versions": ["1"], "instances": ["alpine"], "image_version": "{v}"},
    "alpha": {"dockerfile": "Dockerfile-a", "versions": ["2"], "instances": ["alpine"], "image_version": "{v}",
              "build_args": {"VERSION": "{v}"}},
    "mid": {"dockerfile": "Dockerfile-m", "versions": ["3"], "instances": ["alpine"], "image_version": "{v}"}
  }
}`
	lib, err := ParseLibrary("build.json", []byte(doc))
	if err != nil {
		t.Fatalf("ParseLibrary: %v", err)
	}
	if got := groupNames(lib.BuildGroups); !reflect.DeepEqual(got, []string{"zeta", "alpha", "mid"}) {
		t.Errorf("group order = %v", got)
	}
	if lib.Latest != "3.2.1" {
		t.Errorf("latest = %q", lib.Latest)
	}
	if lib.BuildGroups[1].BuildArgs["VERSION"] != "{v}" {
		t.Errorf("build args = %v", lib.BuildGroups[1].BuildArgs)
	}
}

func TestParseLibraryJSONList(t *testing.T) {
	doc := `{"build_groups": [
  {"name": "b", "dockerfile": "D", "versions": ["1"], "instances": ["x"], "image_version": "{v}"},
  {"name": "a", "dockerfile": "D", "versions": ["1"], "instances": ["y"], "image_version": "{v}"},
]}`
	lib, err := ParseLibrary("build.jsonc", []byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if got := groupNames(lib.BuildGroups); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("group order = %v", got)
	}
}

func TestParseLibraryRejectsUnknownFields(t *testing.T) {
	_, err := ParseLibrary("build.json", []byte(`{"latest": "1", "lastest": "2"}`))
	if !errors.Is(err, ErrConfig) {
		t.Errorf("unknown top-level field: err = %v", err)
	}

	_, err = ParseLibrary("build.json", []byte(`{"build_groups": {"g": {"dockerfile": "D", "verisons": ["1"]}}}`))
	if !errors.Is(err, ErrConfig) {
		t.Errorf("unknown group field: err = %v", err)
	}
	yamlDocs := map[string]string{
		"mapping form": `build_groups:
  main:
    dockerfile: Dockerfile
    versions: ["1.0"]
    instances: [alpine]
    image_version: "{v}"
    buildargs: {X: "{v}"}
`,
		"sequence form": `build_groups:
  - name: main
    dockerfile: Dockerfile
    buildargs: {X: "{v}"}
`,
		"top level": "latest: \"1\"\nlastest: \"2\"\n",
	}
	for name, doc := range yamlDocs {
		_, err := ParseLibrary("build.yaml", []byte(doc))
		if !errors.Is(err, ErrConfig) {
			t.Errorf("yaml %s: err = %v, want configuration error", name, err)
			continue
		}
		if name != "top level" && !strings.Contains(err.Error(), "buildargs") {
			t.Errorf("yaml %s: error does not name the field: %v", name, err)
		}
	}
}

func TestParseLibraryYAMLKeepsGroupOrder(t *testing.T) {
	doc := `latest: "2.0"
build_groups:
  second:
    dockerfile: Dockerfile
    versions: ["2.0"]
    instances: [debian]
    image_version: "{v}"
  first:
    dockerfile: Dockerfile
    versions: ["1.0"]
    instances: [debian]
    image_version: "{v}"
`
	lib, err := ParseLibrary("build.yaml", []byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if got := groupNames(lib.BuildGroups); !reflect.DeepEqual(got, []string{"second", "first"}) {
		t.Errorf("group order = %v", got)
	}
}

func TestParseLibraryTOML(t *testing.T) {
	doc := `latest = "1.0"

[[build_groups]]
name = "main"
dockerfile = "Dockerfile"
versions = ["1.0", "1.1"]
instances = ["alpine"]
image_version = "{v}"

[build_groups.build_args]
VERSION = "{v}"
`
	lib, err := ParseLibrary("build.toml", []byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(lib.BuildGroups) != 1 {
		t.Fatalf("groups = %+v", lib.BuildGroups)
	}
	g := lib.BuildGroups[0]
	if g.Name != "main" || len(g.Versions) != 2 || g.BuildArgs["VERSION"] != "{v}" {
		t.Errorf("group = %+v", g)
	}
}

func TestParseLibraryUnsupportedFormat(t *testing.T) {
	if _, err := ParseLibrary("build.ini", []byte("x=1")); !errors.Is(err, ErrConfig) {
		t.Errorf("err = %v", err)
	}
}

func validGroup() BuildGroup {
	return BuildGroup{
		Name:         "main",
		Dockerfile:   "Dockerfile",
		Versions:     []string{"1.0"},
		Instances:    []string{"alpine"},
		ImageVersion: "{v}",
	}
}

func TestValidateLibrary(t *testing.T) {
	tests := []struct {
		name    string
		library string
		mutate  func(*BuildGroup)
		wantErr string
	}{
		{"valid", "openssl", func(*BuildGroup) {}, ""},
		{"bad library name", "OpenSSL", func(*BuildGroup) {}, "library name"},
		{"missing dockerfile", "lib", func(g *BuildGroup) { g.Dockerfile = "" }, "dockerfile is required"},
		{"escaping dockerfile", "lib", func(g *BuildGroup) { g.Dockerfile = "../other/Dockerfile" }, "inside the library directory"},
		{"missing image version", "lib", func(g *BuildGroup) { g.ImageVersion = "" }, "image_version is required"},
		{"duplicate version", "lib", func(g *BuildGroup) { g.Versions = []string{"1", "1"} }, "duplicate value"},
		{"empty version", "lib", func(g *BuildGroup) { g.Versions = []string{" "} }, "empty value"},
		{"bad instance", "lib", func(g *BuildGroup) { g.Instances = []string{"Alpine Linux"} }, "not a valid image name component"},
		{"bad build arg", "lib", func(g *BuildGroup) { g.BuildArgs = map[string]string{"A=B": "x"} }, "invalid key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGroup()
			tt.mutate(&g)
			_, err := ValidateLibrary(tt.library, &LibraryConfig{BuildGroups: BuildGroups{g}})
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateLibraryDuplicateGroups(t *testing.T) {
	lib := &LibraryConfig{BuildGroups: BuildGroups{validGroup(), validGroup()}}
	if _, err := ValidateLibrary("lib", lib); err == nil || !strings.Contains(err.Error(), "duplicate build group") {
		t.Errorf("err = %v", err)
	}
}

func TestValidateLibraryWarnings(t *testing.T) {
	warnings, err := ValidateLibrary("lib", &LibraryConfig{})
	if err != nil || len(warnings) != 1 {
		t.Errorf("empty library: warnings=%v err=%v", warnings, err)
	}

	g := validGroup()
	g.Instances = nil
	warnings, err = ValidateLibrary("lib", &LibraryConfig{BuildGroups: BuildGroups{g}})
	if err != nil || len(warnings) != 1 {
		t.Errorf("group without instances: warnings=%v err=%v", warnings, err)
	}
}

func TestLoadLibraries(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "zlib", "build.json"), `{"build_groups": {"main": {
  "dockerfile": "Dockerfile", "versions": ["1.3"], "instances": ["alpine"], "image_version": "{v}"}}}`)
	writeFile(t, filepath.Join(root, "curl", "build.yml"), `build_groups:
  main:
    dockerfile: Dockerfile
    versions: ["8.5.0"]
    instances: [debian]
    image_version: "{v}"
`)

	libs, err := LoadLibraries(root, []string{"curl", "zlib"})
	if err != nil {
		t.Fatalf("LoadLibraries: %v", err)
	}
	if len(libs) != 2 || libs[0].Name != "curl" || libs[1].Name != "zlib" {
		t.Fatalf("libs = %+v", libs)
	}
	if filepath.Base(libs[0].Path) != "build.yml" {
		t.Errorf("curl path = %s", libs[0].Path)
	}

	_, err = LoadLibraries(root, []string{"zlib", "missing"})
	if !errors.Is(err, ErrConfig) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing library: err = %v", err)
	}
}

func TestParseLibraryHCL(t *testing.T) {
	doc := `latest = "3.2.1"

build_group "modern" {
  dockerfile    = "Dockerfile-3_x"
  versions      = ["3.1.5", "3.2.1"]
  instances     = ["alpine", "debian"]
  image_version = "{v}"
  build_args    = { VERSION = "{v}" }
}

build_group "legacy" {
  dockerfile    = "Dockerfile-1_0_x"
  versions      = ["1.0.2u"]
  instances     = ["alpine"]
  image_version = "{v}-legacy"
}
`
	lib, err := ParseLibrary("build.hcl", []byte(doc))
	if err != nil {
		t.Fatalf("ParseLibrary: %v", err)
	}
	if lib.Latest != "3.2.1" {
		t.Errorf("latest = %q", lib.Latest)
	}
	if got := groupNames(lib.BuildGroups); !reflect.DeepEqual(got, []string{"modern", "legacy"}) {
		t.Errorf("group order = %v", got)
	}
	modern := lib.BuildGroups[0]
	if modern.BuildArgs["VERSION"] != "{v}" || len(modern.Instances) != 2 {
		t.Errorf("modern = %+v", modern)
	}
	if lib.BuildGroups[1].ImageVersion != "{v}-legacy" {
		t.Errorf("legacy = %+v", lib.BuildGroups[1])
	}
}

func TestParseLibraryHCLRejectsUnknownAttribute(t *testing.T) {
	doc := `build_group "main" {
  dockerfile = "Dockerfile"
  platforms  = ["linux/amd64"]
}
`
	if _, err := ParseLibrary("build.hcl", []byte(doc)); !errors.Is(err, ErrConfig) {
		t.Errorf("err = %v, want configuration error", err)
	}
}
