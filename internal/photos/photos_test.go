package photos

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStore_SaveDownscales(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, 0, 100)
	require.NoError(t, err)

	name, err := s.Save(context.Background(), "alice", pngBytes(t, 400, 200))
	require.NoError(t, err)
	assert.True(t, ValidName(name), "name %q", name)

	f, err := s.Open("alice", name)
	require.NoError(t, err)
	defer f.Close()

	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	b := img.Bounds()
	assert.LessOrEqual(t, b.Dx(), 100)
	assert.LessOrEqual(t, b.Dy(), 100)
	assert.Equal(t, 100, b.Dx(), "aspect ratio keeps the long edge at the limit")

	entries, err := os.ReadDir(s.userDir("alice"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not remain")
}

func TestStore_SaveKeepsSmallImages(t *testing.T) {
	s, err := NewStore(t.TempDir(), 90, 1000)
	require.NoError(t, err)

	name, err := s.Save(context.Background(), "alice", pngBytes(t, 30, 20))
	require.NoError(t, err)

	f, err := s.Open("alice", name)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Width)
	assert.Equal(t, 20, cfg.Height)
}

func TestStore_SaveRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, 80, 100)
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "alice", []byte("definitely not an image"))
	assert.Error(t, err)
	_, err = s.Save(context.Background(), "alice", nil)
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_RemoveAndNames(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "nested"), 80, 100)
	require.NoError(t, err)

	name, err := s.Save(context.Background(), "alice", pngBytes(t, 10, 10))
	require.NoError(t, err)
	require.NoError(t, s.Remove("alice", name))
	require.NoError(t, s.Remove("alice", name), "removing twice is fine")

	for _, bad := range []string{"", "../secret.jpg", "x.jpg", "0b9f8d1e-3b1a-4e63-9f00-3c1f2a9b7c11.png", "a/b.jpg"} {
		_, err := s.Path("alice", bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
	}
}

// hugePNG returns a tiny valid PNG whose header claims w x h pixels.
func hugePNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	data := buf.Bytes()
	// IHDR: length(4) type(4) width(4) height(4) ... crc, after the 8-byte signature.
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestStore_SaveRejectsOversizedDimensions(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, 80, 100)
	require.NoError(t, err)

	data := hugePNG(t, 16000, 16000)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 16000, cfg.Width)

	_, err = s.Save(context.Background(), "alice", data)
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is written for a rejected upload")
}

func TestStore_PhotosAreScopedToTheirUser(t *testing.T) {
	s, err := NewStore(t.TempDir(), 80, 100)
	require.NoError(t, err)

	name, err := s.Save(context.Background(), "alice", pngBytes(t, 10, 10))
	require.NoError(t, err)

	assert.True(t, s.Exists("alice", name))
	assert.False(t, s.Exists("bob", name))
	_, err = s.Open("bob", name)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, s.Remove("bob", name))
	assert.True(t, s.Exists("alice", name), "another user cannot remove the photo")

	for _, user := range []string{"../alice", "a/b", ".."} {
		p, err := s.Path(user, name)
		require.NoError(t, err)
		assert.Equal(t, s.dir, filepath.Dir(filepath.Dir(p)), "user %q stays one level below the photo dir", user)
	}
}
