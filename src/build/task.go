package build

import "fmt"

// Task is one expanded unit of work: a single (version, instance) image
// built from one build group. Tasks are created by an Expander and never
// mutated afterwards.
type Task struct {
	Seq            int               // 1-based, unique within the run
	Library        string            // library directory name
	Group          string            // build group name
	Dockerfile     string            // library-relative dockerfile, joined with the library name
	Version        string            // raw version identifier
	Instance       string            // build target flavor inside the dockerfile
	ImageVersion   string            // image-version template rendered with Version
	BuildArgs      map[string]string // build args rendered with Version
	RegistryPrefix string            // e.g. "ghcr.io/acme/" or ""
	Tag            string            // {prefix}{library}-{instance}:{image version}
	TagLatest      bool              // also tag {repo}:latest
}

// Repository returns the tag without its version suffix.
func (t Task) Repository() string {
	return fmt.Sprintf("%s%s-%s", t.RegistryPrefix, t.Library, t.Instance)
}

// LatestTag returns the floating latest tag on the task's repository.
func (t Task) LatestTag() string {
	return t.Repository() + ":latest"
}

// Target returns the dockerfile stage selected for this task.
func (t Task) Target() string {
	return fmt.Sprintf("%s-%s", t.Library, t.Instance)
}

// Tags returns every tag applied at build time, primary first.
func (t Task) Tags() []string {
	if t.TagLatest {
		return []string{t.Tag, t.LatestTag()}
	}
	return []string{t.Tag}
}

// PrimaryTag formats the deterministic primary tag of a task.
func PrimaryTag(prefix, library, instance, imageVersion string) string {
	return fmt.Sprintf("%s%s-%s:%s", prefix, library, instance, imageVersion)
}
