package build

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/sofmeright/imagefreight/src/config"
)

// ExpandOption configures an Expander.
type ExpandOption func(*Expander)

// WithVersionFilter drops versions rejected by f before tasks are numbered.
func WithVersionFilter(f *VersionFilter) ExpandOption {
	return func(e *Expander) {
		e.filter = f
	}
}

// Expander turns library configurations into numbered build tasks.
// Sequence numbers continue across Expand calls on the same Expander.
type Expander struct {
	prefix string
	filter *VersionFilter
	seq    int
}

// NewExpander creates an Expander for the given registry prefix.
// An empty prefix produces local-only tags.
func NewExpander(registryPrefix string, opts ...ExpandOption) *Expander {
	e := &Expander{prefix: registryPrefix}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand produces the tasks for one library: build groups in declared order,
// then versions, then instances.
func (e *Expander) Expand(library string, lib *config.LibraryConfig) []Task {
	if lib == nil {
		return nil
	}

	var tasks []Task
	for _, group := range lib.BuildGroups {
		dockerfile := path.Join(library, group.Dockerfile)
		for _, version := range group.Versions {
			if !e.filter.Match(version) {
				continue
			}
			imageVersion := Render(group.ImageVersion, version)
			isLatest := lib.Latest != "" && imageVersion == lib.Latest
			for _, instance := range group.Instances {
				e.seq++
				tasks = append(tasks, Task{
					Seq:            e.seq,
					Library:        library,
					Group:          group.Name,
					Dockerfile:     dockerfile,
					Version:        version,
					Instance:       instance,
					ImageVersion:   imageVersion,
					BuildArgs:      RenderArgs(group.BuildArgs, version),
					RegistryPrefix: e.prefix,
					Tag:            PrimaryTag(e.prefix, library, instance, imageVersion),
					TagLatest:      isLatest,
				})
			}
		}
	}
	return tasks
}

// ExpandAll expands every library in order.
func (e *Expander) ExpandAll(libs []config.NamedLibrary) []Task {
	var tasks []Task
	for _, l := range libs {
		tasks = append(tasks, e.Expand(l.Name, l.Config)...)
	}
	return tasks
}

// CheckTasks verifies the expanded set before execution. Duplicate primary
// tags are a configuration error. Libraries whose latest marker matches no
// rendered image version produce a warning.
func CheckTasks(tasks []Task, libs []config.NamedLibrary) (warnings []string, err error) {
	seen := make(map[string]int, len(tasks))
	var dups []string
	for _, t := range tasks {
		if first, ok := seen[t.Tag]; ok {
			dups = append(dups, fmt.Sprintf("%s (tasks %d and %d)", t.Tag, first, t.Seq))
			continue
		}
		seen[t.Tag] = t.Seq
	}

	latestHit := make(map[string]bool)
	for _, t := range tasks {
		if t.TagLatest {
			latestHit[t.Library] = true
		}
	}
	for _, l := range libs {
		if l.Config == nil || l.Config.Latest == "" || latestHit[l.Name] {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("%s: latest %q matches no selected image version", l.Name, l.Config.Latest))
	}

	if len(dups) > 0 {
		sort.Strings(dups)
		return warnings, fmt.Errorf("%w: duplicate image tags: %s", config.ErrConfig, strings.Join(dups, "; "))
	}
	return warnings, nil
}
