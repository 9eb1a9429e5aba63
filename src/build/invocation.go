package build

import (
	"sort"
	"strings"
)

// DefaultDocker is the builder binary used when none is configured.
const DefaultDocker = "docker"

// Invocation describes a single external command: program, arguments and
// working directory. It is inert until handed to a Runner.
type Invocation struct {
	Name string
	Args []string
	Dir  string
}

// String renders the invocation the way it would be typed in a shell.
func (inv Invocation) String() string {
	if len(inv.Args) == 0 {
		return inv.Name
	}
	return inv.Name + " " + strings.Join(inv.Args, " ")
}

// Commands composes the docker invocations for build tasks.
type Commands struct {
	Docker string // binary name or path
	Dir    string // working directory, also the build context
}

func (c Commands) docker() string {
	if c.Docker == "" {
		return DefaultDocker
	}
	return c.Docker
}

// Exists lists local images matching the task's primary tag.
func (c Commands) Exists(t Task) Invocation {
	return Invocation{
		Name: c.docker(),
		Args: []string{"images", "-q", t.Tag},
		Dir:  c.Dir,
	}
}

// Build composes the docker build invocation for a task. The build always
// runs with --no-cache against the current directory as context.
func (c Commands) Build(t Task) Invocation {
	args := []string{"build"}

	// Build args, sorted for a stable command line
	keys := make([]string, 0, len(t.BuildArgs))
	for k := range t.BuildArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--build-arg", k+"="+t.BuildArgs[k])
	}

	for _, tag := range t.Tags() {
		args = append(args, "-t", tag)
	}

	args = append(args,
		"-f", t.Dockerfile,
		"--target", t.Target(),
		"--no-cache",
		".",
	)

	return Invocation{Name: c.docker(), Args: args, Dir: c.Dir}
}

// Push composes one "push --all-tags" invocation per distinct repository
// the task tagged.
func (c Commands) Push(t Task) []Invocation {
	repos := []string{t.Repository()}
	if t.TagLatest {
		if latest := repositoryOf(t.LatestTag()); latest != repos[0] {
			repos = append(repos, latest)
		}
	}

	invs := make([]Invocation, 0, len(repos))
	for _, repo := range repos {
		invs = append(invs, Invocation{
			Name: c.docker(),
			Args: []string{"push", "--all-tags", repo},
			Dir:  c.Dir,
		})
	}
	return invs
}

// repositoryOf strips the tag from an image reference. A colon inside the
// registry host (host:port/...) is not a tag separator.
func repositoryOf(ref string) string {
	i := strings.LastIndex(ref, ":")
	if i < 0 || strings.Contains(ref[i:], "/") {
		return ref
	}
	return ref[:i]
}
