// Package photos stores the receipt images attached to records as
// downscaled JPEG files named by a random UUID, one directory per user.
package photos

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

const (
	DefaultQuality = 80
	DefaultMaxEdge = 1600
	// MaxPixels bounds the decoded size of an upload.
	MaxPixels = 50_000_000
	extension = ".jpg"
)

var (
	ErrInvalidName = errors.New("invalid photo name")
	ErrTooLarge    = errors.New("image too large")
)

type Store struct {
	dir     string
	quality int
	maxEdge uint
}

// NewStore creates the photo directory if needed. Non-positive quality or
// edge values fall back to the defaults.
func NewStore(dir string, quality, maxEdge int) (*Store, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create photo directory: %w", err)
	}
	return &Store{dir: dir, quality: quality, maxEdge: uint(maxEdge)}, nil
}

// Save decodes data, shrinks it to fit the maximum edge and writes it as
// JPEG in userID's directory. It returns the file name to keep on the record.
func (s *Store) Save(ctx context.Context, userID string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty image")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return "", fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrTooLarge)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	if uint(b.Dx()) > s.maxEdge || uint(b.Dy()) > s.maxEdge {
		img = resize.Thumbnail(s.maxEdge, s.maxEdge, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}

	dir := s.userDir(userID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create user photo directory: %w", err)
	}

	name := uuid.NewString() + extension
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write photo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close photo: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("store photo: %w", err)
	}

	nb := img.Bounds()
	slog.InfoContext(ctx, "Photo stored",
		"name", name,
		"user_id", userID,
		"source_format", format,
		"width", nb.Dx(),
		"height", nb.Dy(),
		"bytes", buf.Len())
	return name, nil
}

// Path resolves a stored photo name inside userID's directory.
func (s *Store) Path(userID, name string) (string, error) {
	if !ValidName(name) {
		return "", ErrInvalidName
	}
	return filepath.Join(s.userDir(userID), name), nil
}

func (s *Store) Open(userID, name string) (*os.File, error) {
	p, err := s.Path(userID, name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Exists reports whether userID owns a stored photo called name.
func (s *Store) Exists(userID, name string) bool {
	p, err := s.Path(userID, name)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes one of userID's photos. Missing files are not an error.
func (s *Store) Remove(userID, name string) error {
	p, err := s.Path(userID, name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// userDir encodes userID into a single path element, so no user id can
// reach outside the photo directory or into another user's.
func (s *Store) userDir(userID string) string {
	return filepath.Join(s.dir, "u"+base64.RawURLEncoding.EncodeToString([]byte(userID)))
}

// ValidName reports whether name has the "<uuid>.jpg" shape produced by Save.
func ValidName(name string) bool {
	base, ok := strings.CutSuffix(name, extension)
	if !ok {
		return false
	}
	_, err := uuid.Parse(base)
	return err == nil && len(base) == 36
}
