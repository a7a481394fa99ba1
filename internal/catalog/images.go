package catalog

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ImageExtensions are tried in order; the first existing file wins.
var ImageExtensions = []string{".jpg", ".jpeg", ".png"}

// ImageStore finds crop images named <crop><ext> in a directory.
type ImageStore struct {
	dir string
}

func NewImageStore(dir string) *ImageStore {
	if _, err := os.Stat(dir); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("Crop image directory unavailable, images will be reported missing")
	}
	return &ImageStore{dir: dir}
}

// Find returns the path of the image for crop. The name match is exact and case-sensitive.
// A missing image is not an error.
func (s *ImageStore) Find(crop string) (string, bool) {
	if !validCropName(crop) {
		return "", false
	}
	for _, ext := range ImageExtensions {
		path := filepath.Join(s.dir, crop+ext)
		fi, err := os.Stat(path)
		if err == nil && fi.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

// Dir returns the image directory.
func (s *ImageStore) Dir() string { return s.dir }

func validCropName(crop string) bool {
	if crop == "" || crop == "." || strings.Contains(crop, "..") {
		return false
	}
	return !strings.ContainsAny(crop, `/\`) && !strings.ContainsRune(crop, 0)
}
