package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRun_VersionFlag(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	code := run([]string{"-version"}, &out)

	if code != 0 {
		t.Fatalf("exit code = %d; want 0", code)
	}
	if !strings.Contains(out.String(), "chatd version") {
		t.Errorf("expected version output, got %q", out.String())
	}
}

func TestRun_HelpFlag(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	code := run([]string{"-help"}, &out)

	if code != 0 {
		t.Fatalf("exit code = %d; want 0", code)
	}
	if !strings.Contains(out.String(), "Usage") {
		t.Errorf("expected usage output, got %q", out.String())
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if code := run([]string{"-no-such-flag"}, &out); code != 2 {
		t.Fatalf("exit code = %d; want 2", code)
	}
}

func TestRun_MissingConfigFile(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if code := run([]string{"-config", "/no/such/file.yaml"}, &out); code != 1 {
		t.Fatalf("exit code = %d; want 1", code)
	}
}
