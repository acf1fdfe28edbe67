// Package store persists captured frames and panoramas without ever
// overwriting an existing file.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/teslashibe/go-pano/pkg/frame"
)

// maxSuffix bounds the collision search so a broken filesystem cannot
// spin forever.
const maxSuffix = 100000

// ErrNoFreeName is returned when every candidate name is taken.
var ErrNoFreeName = errors.New("store: no free file name")

// WriteUnique writes data to dir/base+ext, or to dir/base_N+ext with the
// smallest N >= 2 that does not exist yet. The directory is created when
// missing. Files are created with O_EXCL so concurrent writers never
// clobber one another. It returns the path written.
func WriteUnique(dir, base, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: create %s: %w", dir, err)
	}

	for n := 1; n <= maxSuffix; n++ {
		path := filepath.Join(dir, candidate(base, ext, n))

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("store: create %s: %w", path, err)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("store: write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("store: close %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoFreeName, filepath.Join(dir, base+ext))
}

func candidate(base, ext string, n int) string {
	if n == 1 {
		return base + ext
	}
	return base + "_" + strconv.Itoa(n) + ext
}

// Encoder compresses an image for persistence.
type Encoder interface {
	Encode(img frame.Image) ([]byte, error)
	Ext() string
}

// Archive saves session artifacts into a frames folder and a results folder.
type Archive struct {
	enc        Encoder
	framesDir  string
	resultsDir string
}

// NewArchive creates an archive. An empty directory disables that kind of
// artifact.
func NewArchive(enc Encoder, framesDir, resultsDir string) *Archive {
	return &Archive{enc: enc, framesDir: framesDir, resultsDir: resultsDir}
}

// SaveFrame stores one captured frame as image_<index>.
func (a *Archive) SaveFrame(index int, img frame.Image) (string, error) {
	if a.framesDir == "" {
		return "", nil
	}
	return a.save(a.framesDir, "image_"+strconv.Itoa(index), img)
}

// SaveResult stores a final panorama as stitched_image.
func (a *Archive) SaveResult(img frame.Image) (string, error) {
	if a.resultsDir == "" {
		return "", nil
	}
	return a.save(a.resultsDir, "stitched_image", img)
}

// SaveEncoded stores already-encoded image bytes in the results folder.
func (a *Archive) SaveEncoded(data []byte) (string, error) {
	if a.resultsDir == "" {
		return "", nil
	}
	return WriteUnique(a.resultsDir, "stitched_image", a.enc.Ext(), data)
}

func (a *Archive) save(dir, base string, img frame.Image) (string, error) {
	data, err := a.enc.Encode(img)
	if err != nil {
		return "", fmt.Errorf("store: encode %s: %w", base, err)
	}
	return WriteUnique(dir, base, a.enc.Ext(), data)
}
