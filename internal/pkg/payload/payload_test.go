package payload

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLandmarks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []entity.Point
	}{
		{name: "pairs", input: "1,2\n3.5,4.25\n", want: []entity.Point{{X: 1, Y: 2}, {X: 3.5, Y: 4.25}}},
		{name: "spaces and crlf", input: " 10 , 20 \r\n30,40", want: []entity.Point{{X: 10, Y: 20}, {X: 30, Y: 40}}},
		{name: "invalid lines skipped", input: "1,2\nfoo,bar\n3\n4,5,6\n\n7,8\n", want: []entity.Point{{X: 1, Y: 2}, {X: 7, Y: 8}}},
		{name: "empty", input: "", want: []entity.Point{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLandmarks(strings.NewReader(tt.input))

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInputAndWrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "original_image.png"), []byte("img"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segmentation_map.png"), []byte("seg"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "landmarks.txt"), []byte("1,2\n3,4\n"), 0644))

	in, err := Input(
		filepath.Join(dir, "original_image.png"),
		filepath.Join(dir, "segmentation_map.png"),
		filepath.Join(dir, "landmarks.txt"),
	)
	require.NoError(t, err)

	out := filepath.Join(dir, "payload.json")
	require.NoError(t, Write(out, FromInput(in)))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var p Payload
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("img")), p.Image)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("seg")), p.SegmentationMap)
	assert.Equal(t, []entity.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, p.Landmarks)
}

func TestInputMissingFile(t *testing.T) {
	_, err := Input("nope.png", "nope.png", "nope.txt")

	assert.Error(t, err)
}
