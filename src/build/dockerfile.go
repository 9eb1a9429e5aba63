package build

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sofmeright/imagefreight/src/config"
)

var (
	// FROM [--platform=...] <image> [AS <name>]
	fromRe = regexp.MustCompile(`(?i)^FROM\s+(?:--platform=\S+\s+)?(\S+)(?:\s+AS\s+(\S+))?`)
	// ARG <name>[=<default>] [<name>[=<default>] ...]
	argRe = regexp.MustCompile(`(?i)^ARG\s+(.+)$`)
)

// DockerfileInfo is the subset of a Dockerfile that preflight needs.
type DockerfileInfo struct {
	Path   string
	Stages []Stage
	Args   []string
}

// Stage describes a single FROM stage in a Dockerfile.
type Stage struct {
	Name      string // alias from "AS name", empty if unnamed
	BaseImage string // the FROM image reference
	Line      int    // line number of the FROM instruction
}

// HasStage reports whether a stage named name is declared (case-insensitive,
// as docker treats stage names).
func (d *DockerfileInfo) HasStage(name string) bool {
	for _, s := range d.Stages {
		if strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}

// HasArg reports whether ARG name is declared anywhere in the file.
func (d *DockerfileInfo) HasArg(name string) bool {
	for _, a := range d.Args {
		if a == name {
			return true
		}
	}
	return false
}

// ParseDockerfile extracts stage and arg declarations from a Dockerfile.
// This is a regex-based parser, not a full AST.
func ParseDockerfile(path string) (*DockerfileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := &DockerfileInfo{Path: path}
	scanner := bufio.NewScanner(f)
	lineNum := 0

	var pending string
	startLine := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// join backslash continuations into one instruction
		if rest, ok := strings.CutSuffix(line, "\\"); ok {
			if pending == "" {
				startLine = lineNum
			}
			pending += rest + " "
			continue
		}
		if pending != "" {
			line, pending = pending+line, ""
		} else {
			startLine = lineNum
		}
		info.parseInstruction(line, startLine)
	}
	if pending != "" {
		info.parseInstruction(pending, startLine)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return info, nil
}

func (d *DockerfileInfo) parseInstruction(line string, lineNum int) {
	if m := fromRe.FindStringSubmatch(line); m != nil {
		d.Stages = append(d.Stages, Stage{
			BaseImage: m[1],
			Name:      m[2],
			Line:      lineNum,
		})
		return
	}

	if m := argRe.FindStringSubmatch(line); m != nil {
		for _, field := range strings.Fields(m[1]) {
			name, _, _ := strings.Cut(field, "=")
			if name != "" {
				d.Args = append(d.Args, name)
			}
		}
	}
}

// Preflight checks the dockerfiles referenced by tasks relative to dir.
// A missing dockerfile is a configuration error. Undeclared target stages
// and build args are warnings: docker reports those itself at build time.
func Preflight(dir string, tasks []Task) (warnings []string, err error) {
	parsed := make(map[string]*DockerfileInfo)
	var errs []string
	warned := make(map[string]bool)
	warn := func(msg string) {
		if !warned[msg] {
			warned[msg] = true
			warnings = append(warnings, msg)
		}
	}

	for _, t := range tasks {
		info, seen := parsed[t.Dockerfile]
		if !seen {
			p, perr := ParseDockerfile(filepath.Join(dir, filepath.FromSlash(t.Dockerfile)))
			switch {
			case errors.Is(perr, fs.ErrNotExist):
				errs = append(errs, fmt.Sprintf("%s: dockerfile not found", t.Dockerfile))
			case perr != nil:
				errs = append(errs, fmt.Sprintf("%s: %v", t.Dockerfile, perr))
			}
			parsed[t.Dockerfile] = p
			info = p
		}
		if info == nil {
			continue
		}

		if !info.HasStage(t.Target()) {
			warn(fmt.Sprintf("%s: no stage named %q", t.Dockerfile, t.Target()))
		}
		for arg := range t.BuildArgs {
			if !info.HasArg(arg) {
				warn(fmt.Sprintf("%s: build arg %q is not declared", t.Dockerfile, arg))
			}
		}
	}

	sort.Strings(warnings)
	if len(errs) > 0 {
		return warnings, fmt.Errorf("%w: %s", config.ErrConfig, strings.Join(errs, "; "))
	}
	return warnings, nil
}
