package testutil

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakePlayerScript(t *testing.T) {
	t.Parallel()

	script := FakePlayerScript(t)
	cmd := exec.Command(script, "-slave", "walzer.mp3")
	cmd.Stdin = strings.NewReader("speed_set 1.5\nloadfile polka.ogg 0\nquit\nnever read\n")
	var out bytes.Buffer
	cmd.Stdout = &out
	require.NoError(t, cmd.Run())

	want := strings.Join([]string{
		"Playing walzer.mp3.",
		"ANS_cmd=speed_set 1.5",
		"ANS_cmd=loadfile polka.ogg 0",
		"Playing polka.ogg 0.",
		"ANS_cmd=quit",
		"Exiting... (End of file)",
		"",
	}, "\n")
	assert.Equal(t, want, out.String())
}

func TestFakePlayerScript_EndsOnStdinEOF(t *testing.T) {
	t.Parallel()

	script := FakePlayerScript(t)
	out, err := exec.Command(script, "x.mp3").Output()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(out), "(End of file)\n"))
}

func TestMusicDir(t *testing.T) {
	t.Parallel()

	root := MusicDir(t, "a.mp3", "side b/c.ogg")
	for _, name := range []string{"a.mp3", "side b/c.ogg"} {
		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(name)))
		AssertNoError(t, err)
	}
}
