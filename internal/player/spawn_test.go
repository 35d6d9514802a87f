package player

import (
	"bufio"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecSpawner_RoundTrip(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	script := `read cmd; echo "got $cmd"; echo "oops" 1>&2; echo "Exiting... (End of file)"`
	p, err := ExecSpawner{}.Spawn(SpawnSpec{Argv: []string{"sh", "-c", script}, Dir: t.TempDir()})
	require.NoError(t, err)
	defer p.Close()

	_, err = io.WriteString(p.Stdin(), "pause\n")
	require.NoError(t, err)

	var lines []string
	sc := bufio.NewScanner(p.Output())
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	assert.Equal(t, []string{"got pause", "oops", "Exiting... (End of file)"}, lines)

	select {
	case <-p.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	assert.NoError(t, p.Wait())

	_, err = io.WriteString(p.Stdin(), "pause\n")
	assert.True(t, IsBrokenPipe(err), "write after exit: %v", err)
}

func TestExecSpawner_Errors(t *testing.T) {
	_, err := ExecSpawner{}.Spawn(SpawnSpec{})
	assert.Error(t, err)

	_, err = ExecSpawner{}.Spawn(SpawnSpec{Argv: []string{"/nonexistent/crankbox-player"}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no such file") || strings.Contains(err.Error(), "not found"))
}

func TestMockProcess_WritesAfterExitBreak(t *testing.T) {
	p := NewMockProcess(7)
	_, err := io.WriteString(p.Stdin(), "pause\n")
	require.NoError(t, err)
	p.Exit()
	_, err = io.WriteString(p.Stdin(), "pause\n")
	assert.True(t, IsBrokenPipe(err))
	assert.Equal(t, []string{"pause"}, p.Written())
}
