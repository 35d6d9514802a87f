package lineio

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, r io.Reader, opts Options) []string {
	t.Helper()
	scanner := NewScanner(r, opts)
	var out []string
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestScanner_Lines(t *testing.T) {
	in := "Starting..\r\nAverage RPM (Last 5000 ms): 20.00\r\n\r\nbutton1_pressed"
	got := collect(t, strings.NewReader(in), Options{})
	want := []string{"Starting..", "Average RPM (Last 5000 ms): 20.00", "", "button1_pressed"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestScanner_OverlongRecordKeepsTail(t *testing.T) {
	var discarded []int
	noise := bytes.Repeat([]byte{0xff}, 70*1024)
	reading := "Average RPM (Last 5000 ms): 20.00"
	in := io.MultiReader(bytes.NewReader(noise), strings.NewReader(reading+"\r\nbutton1_pressed\r\n"))

	got := collect(t, in, Options{OnDiscard: func(n int) { discarded = append(discarded, n) }})

	require.Len(t, got, 2)
	assert.Len(t, got[0], TailKeep)
	assert.True(t, strings.HasSuffix(got[0], reading), "tail %q", got[0])
	assert.Equal(t, "button1_pressed", got[1])
	assert.Equal(t, []int{len(noise) + len(reading) - TailKeep}, discarded)
}

func TestScanner_OverlongRecordInSmallReads(t *testing.T) {
	var count int
	in := strings.Repeat("x", 3*DefaultMaxRecord) + "\nok\n"

	got := collect(t, iotest.OneByteReader(strings.NewReader(in)), Options{OnDiscard: func(int) { count++ }})

	assert.Equal(t, []string{strings.Repeat("x", TailKeep), "ok"}, got)
	assert.Equal(t, 1, count)
}

func TestScanner_OverlongRecordAtEOF(t *testing.T) {
	var discarded []int
	in := "first\n" + strings.Repeat("y", DefaultMaxRecord+10)

	got := collect(t, strings.NewReader(in), Options{OnDiscard: func(n int) { discarded = append(discarded, n) }})

	assert.Equal(t, []string{"first", strings.Repeat("y", TailKeep)}, got)
	assert.Equal(t, []int{DefaultMaxRecord + 10 - TailKeep}, discarded)
}

func TestScanner_BreakOnCR(t *testing.T) {
	status := strings.Repeat("A:   1.2 (01.1) of 180.0 (03:00.0)  0.4% \r", 2000)
	in := "Playing walzer.mp3.\n" + status + "\nExiting... (End of file)\n"

	got := collect(t, strings.NewReader(in), Options{BreakOnCR: true})

	require.Len(t, got, 2002)
	assert.Equal(t, "Playing walzer.mp3.", got[0])
	assert.Equal(t, "A:   1.2 (01.1) of 180.0 (03:00.0)  0.4% ", got[1])
	assert.Equal(t, "Exiting... (End of file)", got[len(got)-1])
}

func TestScanner_SmallLimitIsRaised(t *testing.T) {
	line := strings.Repeat("z", minBuffer-1)
	got := collect(t, strings.NewReader(line+"\n"), Options{MaxRecord: 8})
	assert.Equal(t, []string{line}, got)
}
