package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTool writes an executable shell script named name into dir and
// returns its path. body runs under /bin/sh with the checker's arguments.
// Tests using it are skipped on Windows.
func WriteTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script tools require a POSIX shell")
	}
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// WriteSpec writes a placeholder specification artifact and its config
// into dir and returns both paths.
func WriteSpec(t *testing.T, dir string) (specPath, configPath string) {
	t.Helper()
	specPath = filepath.Join(dir, "decision.tla")
	configPath = filepath.Join(dir, "decision.cfg")
	require.NoError(t, os.WriteFile(specPath, []byte("---- MODULE decision ----\n====\n"), 0o644))
	require.NoError(t, os.WriteFile(configPath, []byte("SPECIFICATION Spec\n"), 0o644))
	return specPath, configPath
}
