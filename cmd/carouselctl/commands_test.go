package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(bytes.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommands_push_and_control(t *testing.T) {
	srv := newCarouselServer(t)
	path := filepath.Join(t.TempDir(), "chunk.arrow")
	if err := os.WriteFile(path, arrowChunk(t, "job-a", "job-b", "job-c"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, nil, "--server", srv.URL, "push", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "added 3, total 3") {
		t.Errorf("unexpected push output %q", out)
	}

	out, err = execute(t, nil, "--server", srv.URL, "count")
	if err != nil || strings.TrimSpace(out) != "3" {
		t.Errorf("expected count 3, got %q (%v)", out, err)
	}

	out, err = execute(t, nil, "--server", srv.URL, "start")
	if err != nil || !strings.Contains(out, "running at index 0") {
		t.Errorf("unexpected start output %q (%v)", out, err)
	}

	if _, err := execute(t, nil, "--server", srv.URL, "render", "--", "-1"); err != nil {
		t.Errorf("negative index should wrap: %v", err)
	}

	out, err = execute(t, nil, "--server", srv.URL, "stop")
	if err != nil || !strings.Contains(out, "stopped") {
		t.Errorf("unexpected stop output %q (%v)", out, err)
	}

	out, err = execute(t, nil, "--server", srv.URL, "state")
	if err != nil || !strings.Contains(out, `"job-c"`) {
		t.Errorf("unexpected state output %q (%v)", out, err)
	}
}

func TestCommands_push_replay_from_stdin(t *testing.T) {
	srv := newCarouselServer(t)

	out, err := execute(t, arrowChunk(t, "a", "b"), "--server", srv.URL, "push", "--replay", "-")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `2 services, job "b"`) {
		t.Errorf("unexpected replay output %q", out)
	}
}

func TestCommands_argument_errors(t *testing.T) {
	srv := newCarouselServer(t)

	if _, err := execute(t, nil, "--server", srv.URL, "render", "two"); err == nil {
		t.Error("expected error for non-numeric index")
	}
	if _, err := execute(t, nil, "--server", srv.URL, "push"); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := execute(t, nil, "--server", srv.URL, "start"); err == nil {
		t.Error("expected error when no services are loaded")
	}
}
