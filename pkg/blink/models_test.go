package blink

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagUnmarshal(t *testing.T) {
	tests := []struct {
		raw          string
		want         bool
		unrecognised bool
	}{
		{`true`, true, false},
		{`false`, false, false},
		{`"True"`, true, false},
		{`"true"`, true, false},
		{`"False"`, false, false},
		{`""`, false, false},
		{`null`, false, false},
		{`"maybe"`, false, true},
		{`1`, false, true},
		{`0`, false, true},
		{`{"x":1}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var f Flag
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &f))
			assert.Equal(t, tt.want, f.Value)
			assert.Equal(t, tt.unrecognised, f.Unrecognised())
			if tt.unrecognised {
				assert.Equal(t, tt.raw, f.Raw)
			}
		})
	}
}

func TestMediaPageDecodesOddDeletedValues(t *testing.T) {
	var page MediaPageResponse
	raw := `{"media":[
		{"media":"/m/1.mp4","created_at":"2024-01-01T00:00:00Z","deleted":false},
		{"media":"/m/2.mp4","created_at":"2024-01-01T00:01:00Z","deleted":0},
		{"media":"/m/3.mp4","created_at":"2024-01-01T00:02:00Z","deleted":"yes"}
	]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &page))
	require.Len(t, page.Media, 3)
	for _, item := range page.Media {
		assert.False(t, item.Deleted.Value, item.Media)
	}
	assert.True(t, page.Media[1].Deleted.Unrecognised())
}

func TestMediaItemDecodesMissingDeleted(t *testing.T) {
	var page MediaPageResponse
	require.NoError(t, json.Unmarshal([]byte(`{"media":[{"media":"/m/1.mp4","created_at":"2024-01-01T00:00:00Z","network_name":"Home","device_name":"Front"}]}`), &page))
	require.Len(t, page.Media, 1)
	assert.False(t, page.Media[0].Deleted.Value)
	assert.Equal(t, "Front", page.Media[0].DeviceName)
}

func TestFileStem(t *testing.T) {
	tests := []struct {
		createdAt string
		want      string
	}{
		{"2024-01-01T00:00:00Z", "2024-01-01T00-00-00"},
		{"2024-01-01T00:00:00.123Z", "2024-01-01T00-00-00"},
		{"2024-03-05T10:20:30+02:00", "2024-03-05T08-20-30"},
		{"2024-03-05T10:20:30+0000", "2024-03-05T10-20-30"},
		{"2023-12-31T23:30:00-01:00", "2024-01-01T00-30-00"},
	}

	for _, tt := range tests {
		t.Run(tt.createdAt, func(t *testing.T) {
			stem, err := MediaItem{CreatedAt: tt.createdAt}.FileStem()
			require.NoError(t, err)
			assert.Equal(t, tt.want, stem)
		})
	}

	_, err := MediaItem{CreatedAt: "yesterday"}.FileStem()
	assert.Error(t, err)
}
