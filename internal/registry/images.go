package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/kozaktomas/face-registry/internal/store"
)

// ImageDir stores the reference JPEG images of one pipeline.
type ImageDir struct {
	dir string
}

// NewImageDir returns an ImageDir rooted at dir. The directory is created on first save.
func NewImageDir(dir string) *ImageDir {
	return &ImageDir{dir: dir}
}

// Dir returns the root directory.
func (d *ImageDir) Dir() string { return d.dir }

// Save writes the image as <slug>-<short id>.jpg and returns its path.
func (d *ImageDir) Save(name, id string, jpeg []byte) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating image directory: %w", err)
	}

	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	path := filepath.Join(d.dir, Slug(name)+"-"+short+".jpg")

	if err := renameio.WriteFile(path, jpeg, 0o644); err != nil {
		return "", fmt.Errorf("writing reference image: %w", err)
	}
	return path, nil
}

// ReferencePath returns the image path of a record. Records written by the
// older JSON format carry no path; their image was saved as <name>.jpg in
// the pipeline directory. Names that would escape the directory get no path.
func (d *ImageDir) ReferencePath(rec store.Record) string {
	if rec.ImagePath != "" {
		return rec.ImagePath
	}
	if rec.Name == "" || rec.Name == "." || rec.Name == ".." || strings.ContainsAny(rec.Name, `/\`) {
		return ""
	}
	return filepath.Join(d.dir, rec.Name+".jpg")
}

// Remove deletes a reference image; a missing file is not an error.
func (d *ImageDir) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing reference image: %w", err)
	}
	return nil
}
