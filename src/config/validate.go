package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Docker repository path components: lowercase alphanumerics joined by
// single separators.
var repoComponentRe = regexp.MustCompile(`^[a-z0-9]+(?:(?:[._]|__|-+)[a-z0-9]+)*$`)

// ValidateLibrary checks the structural invariants of one library document.
// Returns warnings (soft issues) and a hard error if the document is invalid.
func ValidateLibrary(name string, lib *LibraryConfig) (warnings []string, err error) {
	var errs []string

	if !repoComponentRe.MatchString(name) {
		errs = append(errs, fmt.Sprintf("library name %q is not a valid image name component", name))
	}

	if len(lib.BuildGroups) == 0 {
		warnings = append(warnings, "build_groups: empty, library produces no images")
	}

	groupNames := make(map[string]bool)
	for i, g := range lib.BuildGroups {
		gpath := fmt.Sprintf("build_groups[%d]", i)
		if g.Name != "" {
			gpath = "build_groups." + g.Name
		}

		if g.Name == "" {
			errs = append(errs, fmt.Sprintf("%s: name is required", gpath))
		} else if groupNames[g.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate build group", gpath))
		} else {
			groupNames[g.Name] = true
		}

		switch {
		case g.Dockerfile == "":
			errs = append(errs, fmt.Sprintf("%s: dockerfile is required", gpath))
		case filepath.IsAbs(g.Dockerfile) || escapesDir(g.Dockerfile):
			errs = append(errs, fmt.Sprintf("%s: dockerfile %q must stay inside the library directory", gpath, g.Dockerfile))
		}

		if g.ImageVersion == "" {
			errs = append(errs, fmt.Sprintf("%s: image_version is required", gpath))
		}

		errs = append(errs, checkList(gpath+".versions", g.Versions, nil)...)
		errs = append(errs, checkList(gpath+".instances", g.Instances, repoComponentRe)...)

		for k := range g.BuildArgs {
			if strings.TrimSpace(k) == "" || strings.Contains(k, "=") {
				errs = append(errs, fmt.Sprintf("%s.build_args: invalid key %q", gpath, k))
			}
		}

		if len(g.Versions) == 0 || len(g.Instances) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s: no versions or no instances, group produces no images", gpath))
		}
	}

	if len(errs) > 0 {
		return warnings, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return warnings, nil
}

// checkList rejects empty and duplicate entries, and entries not matching re
// when re is set.
func checkList(path string, items []string, re *regexp.Regexp) []string {
	var errs []string
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		switch {
		case strings.TrimSpace(item) == "":
			errs = append(errs, fmt.Sprintf("%s[%d]: empty value", path, i))
		case seen[item]:
			errs = append(errs, fmt.Sprintf("%s[%d]: duplicate value %q", path, i, item))
		case re != nil && !re.MatchString(item):
			errs = append(errs, fmt.Sprintf("%s[%d]: %q is not a valid image name component", path, i, item))
		}
		seen[item] = true
	}
	return errs
}

func escapesDir(p string) bool {
	clean := filepath.ToSlash(filepath.Clean(p))
	return clean == ".." || strings.HasPrefix(clean, "../")
}
