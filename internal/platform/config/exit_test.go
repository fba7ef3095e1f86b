package config

import (
	"bytes"
	"testing"
)

func TestExitfWritesMessageAndExitsWithCode1(t *testing.T) {
	var buf bytes.Buffer
	code := -1

	previousExit, previousStderr := exitFunc, stderr
	exitFunc = func(c int) { code = c }
	stderr = &buf
	t.Cleanup(func() {
		exitFunc, stderr = previousExit, previousStderr
	})

	Exitf("fatal: %s", "cart store unavailable")

	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if got := buf.String(); got != "fatal: cart store unavailable\n" {
		t.Fatalf("stderr = %q, want %q", got, "fatal: cart store unavailable\n")
	}
}
