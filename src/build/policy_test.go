package build

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func testTask(prefix string, latest bool) Task {
	return Task{
		Seq:            1,
		Library:        "foo",
		Group:          "main",
		Dockerfile:     "foo/Dockerfile",
		Version:        "1.0",
		Instance:       "alpine",
		ImageVersion:   "v1.0",
		BuildArgs:      map[string]string{"VERSION": "1.0"},
		RegistryPrefix: prefix,
		Tag:            PrimaryTag(prefix, "foo", "alpine", "v1.0"),
		TagLatest:      latest,
	}
}

func TestPolicySkipsExistingImage(t *testing.T) {
	r := &fakeRunner{images: "sha256:abc\n"}
	p := &Policy{Runner: r, Push: true}

	out := p.Handle(context.Background(), testTask("reg/", false))
	if out.Kind != Skipped {
		t.Fatalf("kind = %s, want skipped", out.Kind)
	}
	if got := joined(r.subcommands()); got != "images" {
		t.Errorf("calls = %s, want only the existence query", got)
	}
}

func TestPolicyForceIgnoresExistingImage(t *testing.T) {
	r := &fakeRunner{images: "sha256:abc\n"}
	p := &Policy{Runner: r, Force: true}

	out := p.Handle(context.Background(), testTask("", false))
	if out.Kind != Succeeded {
		t.Fatalf("kind = %s, want succeeded", out.Kind)
	}
	if got := joined(r.subcommands()); got != "build" {
		t.Errorf("calls = %s, want build only", got)
	}
}

func TestPolicyBuildFailure(t *testing.T) {
	r := &fakeRunner{build: 3}
	p := &Policy{Runner: r, Push: true}
	task := testTask("reg/", false)

	out := p.Handle(context.Background(), task)
	if out.Kind != BuildFailed {
		t.Fatalf("kind = %s, want build failed", out.Kind)
	}
	if !out.Failed() {
		t.Error("Failed() = false for build failure")
	}
	want := p.Commands.Build(task).String()
	if out.Command != want {
		t.Errorf("command = %q, want %q", out.Command, want)
	}
	if !strings.Contains(out.Err.Error(), "status 3") {
		t.Errorf("err = %v", out.Err)
	}
	if !strings.Contains(out.Output, "error: boom") {
		t.Errorf("output not captured: %q", out.Output)
	}
	for _, sub := range r.subcommands() {
		if sub == "push" {
			t.Error("push attempted after failed build")
		}
	}
}

func TestPolicyRunnerErrorIsBuildFailure(t *testing.T) {
	r := &fakeRunner{buildErr: errors.New("exec: docker: not found")}
	p := &Policy{Runner: r}

	out := p.Handle(context.Background(), testTask("", false))
	if out.Kind != BuildFailed || out.Err == nil {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestPolicyNoRegistryNeverPushes(t *testing.T) {
	r := &fakeRunner{}
	p := &Policy{Runner: r, Push: false}

	out := p.Handle(context.Background(), testTask("", true))
	if out.Kind != Succeeded || out.Pushed {
		t.Fatalf("outcome = %+v", out)
	}
	if got := joined(r.subcommands()); got != "images,build" {
		t.Errorf("calls = %s", got)
	}
}

func TestPolicyPush(t *testing.T) {
	r := &fakeRunner{}
	p := &Policy{Runner: r, Push: true}

	out := p.Handle(context.Background(), testTask("reg.example/", true))
	if out.Kind != Succeeded || !out.Pushed {
		t.Fatalf("outcome = %+v", out)
	}
	if got := joined(r.subcommands()); got != "images,build,push" {
		t.Errorf("calls = %s", got)
	}
	push, _ := r.lastCall("push")
	if got := push.String(); got != "docker push --all-tags reg.example/foo-alpine" {
		t.Errorf("push = %q", got)
	}
	buildInv, _ := r.lastCall("build")
	if !strings.Contains(buildInv.String(), "-t reg.example/foo-alpine:v1.0 -t reg.example/foo-alpine:latest") {
		t.Errorf("build lacks latest tag: %q", buildInv.String())
	}
}

func TestPolicyPushFailure(t *testing.T) {
	r := &fakeRunner{push: 1}
	p := &Policy{Runner: r, Push: true}

	out := p.Handle(context.Background(), testTask("reg/", false))
	if out.Kind != PushFailed {
		t.Fatalf("kind = %s, want push failed", out.Kind)
	}
	if out.Command != "docker push --all-tags reg/foo-alpine" {
		t.Errorf("command = %q", out.Command)
	}
}

func TestPolicyExistenceQueryFailureBuilds(t *testing.T) {
	r := &fakeRunner{imageErr: errors.New("daemon unreachable")}
	p := &Policy{Runner: r}

	out := p.Handle(context.Background(), testTask("", false))
	if out.Kind != Succeeded {
		t.Fatalf("kind = %s, want succeeded", out.Kind)
	}
	if got := joined(r.subcommands()); got != "images,build" {
		t.Errorf("calls = %s", got)
	}
}

func TestPolicyBlankExistenceOutputBuilds(t *testing.T) {
	r := &fakeRunner{images: "  \n"}
	p := &Policy{Runner: r}

	if out := p.Handle(context.Background(), testTask("", false)); out.Kind != Succeeded {
		t.Fatalf("kind = %s, want succeeded", out.Kind)
	}
}
