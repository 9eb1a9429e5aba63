package build

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// VersionFilter restricts which versions of a build group are expanded.
//
// Patterns are regular expressions with literal dots, matched from the start
// of the version: "1.1" matches "1.1" and "1.1.0" but not "101", "11.1.0" or
// "0.1.1". A trailing "$" pins an exact version. Constraints are semver
// ranges such as ">=1.1, <3". A version passes when it matches any pattern
// (if patterns are set) and satisfies any constraint (if constraints are
// set). A nil filter accepts everything.
type VersionFilter struct {
	patterns    []*regexp.Regexp
	constraints []*semver.Constraints
}

// NewVersionFilter compiles patterns and constraints. Returns nil when both
// are empty.
func NewVersionFilter(patterns, constraints []string) (*VersionFilter, error) {
	if len(patterns) == 0 && len(constraints) == 0 {
		return nil, nil
	}

	f := &VersionFilter{}
	for _, p := range patterns {
		re, err := regexp.Compile(`^(?:` + escapeDots(p) + `)`)
		if err != nil {
			return nil, fmt.Errorf("build: version pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, re)
	}
	for _, c := range constraints {
		sc, err := semver.NewConstraint(c)
		if err != nil {
			return nil, fmt.Errorf("build: version constraint %q: %w", c, err)
		}
		f.constraints = append(f.constraints, sc)
	}
	return f, nil
}

// Match reports whether version passes the filter.
func (f *VersionFilter) Match(version string) bool {
	if f == nil {
		return true
	}
	if len(f.patterns) > 0 && !f.matchPattern(version) {
		return false
	}
	if len(f.constraints) > 0 && !f.matchConstraint(version) {
		return false
	}
	return true
}

func (f *VersionFilter) matchPattern(version string) bool {
	for _, re := range f.patterns {
		if re.MatchString(version) {
			return true
		}
	}
	return false
}

func (f *VersionFilter) matchConstraint(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	for _, c := range f.constraints {
		if c.Check(v) {
			return true
		}
	}
	return false
}

// escapeDots makes unescaped dots literal.
func escapeDots(p string) string {
	var b strings.Builder
	escaped := false
	for _, r := range p {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '.':
			b.WriteString(`\.`)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
