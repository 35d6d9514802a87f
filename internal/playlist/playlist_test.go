package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Empty(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmptyPlaylist)
}

func TestPlaylist_IndexWraps(t *testing.T) {
	p, err := New([]string{"a.mp3", "b.mp3", "c.mp3"})
	require.NoError(t, err)

	assert.Equal(t, 3, p.Len())
	assert.Equal(t, 0, p.Next(2))
	assert.Equal(t, 2, p.Next(1))
	assert.Equal(t, TrackRef{Path: "a.mp3", Index: 0}, p.At(3))
	assert.Equal(t, TrackRef{Path: "c.mp3", Index: 2}, p.At(-1))
	assert.Equal(t, "#1 b.mp3", p.At(1).String())
}

func TestPlaylist_TracksIsACopy(t *testing.T) {
	p, err := New([]string{"a.mp3"})
	require.NoError(t, err)

	tracks := p.Tracks()
	tracks[0].Path = "changed"
	assert.Equal(t, "a.mp3", p.At(0).Path)
}
