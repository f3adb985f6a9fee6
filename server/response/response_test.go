package response

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatKeys(t *testing.T) {
	out, err := Format([]Entry{Success("https://youtu.be/abc", "link", "", "https://example.com/abc.mp4")})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 1)

	entry := decoded[0]
	assert.Len(t, entry, 6)
	assert.Equal(t, "success", entry["status"])
	assert.Equal(t, "https://youtu.be/abc", entry["input_link"])
	assert.Equal(t, "link", entry["type"])
	assert.Nil(t, entry["video_file"])
	assert.Equal(t, "https://example.com/abc.mp4", entry["download_link"])
	assert.Nil(t, entry["error"])

	for _, key := range []string{"status", "input_link", "type", "video_file", "download_link", "error"} {
		assert.Contains(t, entry, key)
	}
}

func TestFormatKeyOrderAndIndent(t *testing.T) {
	out, err := Format([]Entry{Failure("https://x.com/a/status/1", "Video unavailable")})
	require.NoError(t, err)

	expected := `[
  {
    "status": "error",
    "input_link": "https://x.com/a/status/1",
    "type": null,
    "video_file": null,
    "download_link": null,
    "error": "Video unavailable"
  }
]`
	assert.Equal(t, expected, out)
}

func TestFormatBatchWithOneFailure(t *testing.T) {
	entries := []Entry{
		Success("https://youtu.be/one", "file", "file-id-1", ""),
		Failure("https://youtu.be/two", "Private video"),
		Success("https://youtu.be/three", "link", "", "https://cdn.example.com/three.mp4"),
	}

	out, err := Format(entries)
	require.NoError(t, err)

	var decoded []Entry
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 3)

	assert.Equal(t, "https://youtu.be/one", decoded[0].InputLink)
	assert.Equal(t, "https://youtu.be/two", decoded[1].InputLink)
	assert.Equal(t, "https://youtu.be/three", decoded[2].InputLink)

	require.NotNil(t, decoded[0].VideoFile)
	assert.Equal(t, "file-id-1", *decoded[0].VideoFile)
	assert.Nil(t, decoded[0].DownloadLink)

	assert.Equal(t, StatusError, decoded[1].Status)
	assert.Nil(t, decoded[1].Type)
	assert.Nil(t, decoded[1].VideoFile)
	assert.Nil(t, decoded[1].DownloadLink)
	require.NotNil(t, decoded[1].Error)
	assert.Equal(t, "Private video", *decoded[1].Error)

	assert.Nil(t, decoded[2].VideoFile)
	require.NotNil(t, decoded[2].DownloadLink)

	succeeded, failed := Summary(entries)
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, failed)
}

func TestFormatLiteralCharacters(t *testing.T) {
	out, err := Format([]Entry{Failure("https://youtu.be/x?a=1&b=2", "vidéo <indisponible>")})
	require.NoError(t, err)

	assert.True(t, strings.Contains(out, "vidéo <indisponible>"))
	assert.True(t, strings.Contains(out, "a=1&b=2"))
}

func TestFormatEmpty(t *testing.T) {
	out, err := Format(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}
