// Package testutil provides shared test fixtures: a scripted stand-in for
// the media player and a throwaway music directory.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// fakePlayer mimics mplayer's slave mode closely enough for the driver and
// output monitor: it acknowledges every command it reads, and prints the
// end-of-file marker when told to quit or when its stdin closes.
const fakePlayer = `#!/bin/sh
for last; do :; done
echo "Playing $last."
while IFS= read -r cmd; do
	echo "ANS_cmd=$cmd"
	case "$cmd" in
	quit*) break ;;
	"loadfile "*) echo "Playing ${cmd#loadfile }." ;;
	esac
done
echo "Exiting... (End of file)"
`

// FakePlayerScript writes the fake player into a temp dir and returns its
// path. The test is skipped when no POSIX shell is available.
func FakePlayerScript(t testing.TB) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "fake-mplayer")
	if err := os.WriteFile(path, []byte(fakePlayer), 0o755); err != nil {
		t.Fatalf("write fake player: %v", err)
	}
	return path
}

// MusicDir creates a temp directory holding empty files with the given
// slash-separated names and returns its path.
func MusicDir(t testing.TB, names ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", name, err)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return root
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
