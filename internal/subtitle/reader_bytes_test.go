package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSRTBytes(t *testing.T) {
	data := []byte("1\n00:00:01,000 --> 00:00:02,000\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n")

	track, err := ReadSRTBytes(data, "embedded://sample")
	require.NoError(t, err)
	require.Len(t, track.Entries, 2)
	assert.Equal(t, "Hello", track.Entries[0].Text)
	assert.Equal(t, "World", track.Entries[1].Text)
	assert.Equal(t, "SRT", track.Format)
	assert.Equal(t, "embedded://sample", track.Path)
}

func TestReadSRTBytesEmpty(t *testing.T) {
	track, err := ReadSRTBytes(nil, "embedded://empty")
	require.NoError(t, err)
	assert.Empty(t, track.Entries)
}
