package source

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/ivlev/slidefeed/internal/logger"
	"github.com/ivlev/slidefeed/internal/slides"
	"github.com/ivlev/slidefeed/internal/system"
)

// ImageSource turns a directory of images into slides, in file-name order.
// A sidecar "<name>.txt" holds the caption and "<name>.<audio ext>" the
// narration; a sidecar "<name>.action" names the pose.
type ImageSource struct {
	Dir string
	// ImagePrefix and AudioPrefix map file names to the URLs the host serves them at.
	ImagePrefix string
	AudioPrefix string
	Logger      logger.ILogger
}

func (s ImageSource) Load(ctx context.Context) ([]slides.Record, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}

	files := make(map[string]bool, len(entries))
	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files[entry.Name()] = true
		if system.HasExtension(entry.Name(), system.ImageExtensions...) {
			images = append(images, entry.Name())
		}
	}
	sort.Strings(images)

	log := s.Logger
	if log == nil {
		log = logger.NewNop()
	}

	var records []slides.Record
	for _, name := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := checkImage(filepath.Join(s.Dir, name)); err != nil {
			log.Warn(module, "Skipping unreadable image", map[string]interface{}{"file": name, "error": err.Error()})
			continue
		}

		base := strings.TrimSuffix(name, filepath.Ext(name))
		rec := slides.Record{
			Title:      base,
			Background: path.Join(prefixOr(s.ImagePrefix, "/images"), name),
		}
		if data, err := os.ReadFile(filepath.Join(s.Dir, base+".txt")); err == nil {
			rec.Text = string(data)
		}
		if data, err := os.ReadFile(filepath.Join(s.Dir, base+".action")); err == nil {
			rec.Action = strings.TrimSpace(string(data))
		}
		for _, ext := range system.AudioExtensions {
			if files[base+ext] {
				rec.Audio = path.Join(prefixOr(s.AudioPrefix, "audio"), base+ext)
				break
			}
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, ErrEmpty
	}
	return records, nil
}

// checkImage decodes only the header of raster images. SVG files are served as-is.
func checkImage(p string) error {
	if strings.EqualFold(filepath.Ext(p), ".svg") {
		return nil
	}
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	_, _, err = image.DecodeConfig(f)
	return err
}

func prefixOr(prefix, def string) string {
	if prefix == "" {
		return def
	}
	return prefix
}
