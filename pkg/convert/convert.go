// Package convert rewrites non-canonical image encodings to JPG across a
// directory scope.
package convert

import (
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/webp"

	errs "cropcrawler/pkg/errors"
	"cropcrawler/pkg/logger"
	"cropcrawler/pkg/naming"
)

// Options controls a conversion batch
type Options struct {
	// Quality is the JPEG encode quality (1-100)
	Quality int
	// Rename embeds a GUID in converted filenames that lack one
	Rename bool
	// FixNames additionally repairs stems to the canonical risk layout
	FixNames bool
	// DeleteOriginal removes the WEBP source after a verified conversion
	DeleteOriginal bool
}

// Summary reports the outcome of a conversion batch
type Summary struct {
	Found     int
	Converted int
	Renamed   int
	Skipped   int
	Failed    int
}

// Converter batch-converts WEBP files in a directory scope to JPG
type Converter struct {
	opts   Options
	logger logger.Logger
}

// New creates a converter
func New(opts Options, log logger.Logger) *Converter {
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 95
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Converter{opts: opts, logger: log}
}

// ProcessDirectory walks the scope recursively, converting every WEBP file
// to JPG. A failure on one file never aborts the batch; it is counted and
// the converter moves on.
func (c *Converter) ProcessDirectory(root string) (*Summary, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("directory not accessible: %v", err))
	}
	if !info.IsDir() {
		return nil, errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("%s is not a directory", root))
	}

	summary := &Summary{}

	var webpFiles, jpgFiles []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".webp":
			webpFiles = append(webpFiles, path)
		case ".jpg", ".jpeg":
			jpgFiles = append(jpgFiles, path)
		}
		return nil
	})
	if err != nil {
		return summary, errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("scan failed: %v", err))
	}

	summary.Found = len(webpFiles)
	c.logger.InfoWithFields("conversion batch starting", map[string]interface{}{
		"root":  root,
		"found": summary.Found,
	})

	for _, path := range webpFiles {
		// A WEBP whose JPG twin already exists was converted earlier
		if _, err := os.Stat(jpgTwin(path)); err == nil {
			c.logger.DebugWithFields("skipping, JPG already exists", map[string]interface{}{
				"path": path,
			})
			summary.Skipped++
			continue
		}

		jpgPath, err := c.ConvertFile(path)
		if err != nil {
			c.logger.ErrorWithFields("conversion failed", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			summary.Failed++
			continue
		}
		summary.Converted++

		if c.opts.Rename || c.opts.FixNames {
			if renamed := c.renameFile(jpgPath); renamed {
				summary.Renamed++
			}
		}
	}

	// Existing JPGs are brought onto the naming scheme too when renaming
	// is requested
	if c.opts.Rename || c.opts.FixNames {
		for _, path := range jpgFiles {
			if c.renameFile(path) {
				summary.Renamed++
			}
		}
	}

	c.logger.InfoWithFields("conversion batch finished", map[string]interface{}{
		"converted": summary.Converted,
		"renamed":   summary.Renamed,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	})
	return summary, nil
}

// ConvertFile decodes one WEBP file and re-encodes it as JPG next to the
// original. The original is removed only after the JPG is verified
// readable and non-empty. Returns the JPG path.
func (c *Converter) ConvertFile(path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".webp") {
		return "", errs.New(errs.ErrorTypeConversion, fmt.Sprintf("%s is not a WEBP file", path))
	}

	src, err := os.Open(path)
	if err != nil {
		return "", errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("opening source: %v", err))
	}
	img, err := webp.Decode(src)
	src.Close()
	if err != nil {
		return "", errs.New(errs.ErrorTypeConversion, fmt.Sprintf("decoding WEBP: %v", err))
	}

	jpgPath := jpgTwin(path)

	if err := c.writeJPEG(jpgPath, img); err != nil {
		return "", err
	}

	if err := verifyJPEG(jpgPath); err != nil {
		os.Remove(jpgPath)
		return "", err
	}

	if c.opts.DeleteOriginal {
		if err := os.Remove(path); err != nil {
			c.logger.WarnWithFields("could not remove original WEBP", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
		}
	}

	c.logger.DebugWithFields("converted", map[string]interface{}{
		"from": path,
		"to":   jpgPath,
	})
	return jpgPath, nil
}

// writeJPEG encodes the image atomically: temp file first, rename after a
// complete write. JPEG has no alpha channel, so transparency is flattened
// onto white.
func (c *Converter) writeJPEG(jpgPath string, img image.Image) error {
	flattened := flatten(img)

	tempPath := jpgPath + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("creating temp file: %v", err))
	}

	err = jpeg.Encode(out, flattened, &jpeg.Options{Quality: c.opts.Quality})
	closeErr := out.Close()
	if err != nil {
		os.Remove(tempPath)
		return errs.New(errs.ErrorTypeConversion, fmt.Sprintf("encoding JPEG: %v", err))
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("closing temp file: %v", closeErr))
	}

	if err := os.Rename(tempPath, jpgPath); err != nil {
		os.Remove(tempPath)
		return errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("renaming temp file: %v", err))
	}
	return nil
}

// jpgTwin returns the JPG path a WEBP file converts to
func jpgTwin(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".jpg"
}

// flatten draws the image over a white background, dropping any alpha
func flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(out, bounds, img, bounds.Min, draw.Over)
	return out
}

// verifyJPEG confirms the written file decodes to a non-empty image
func verifyJPEG(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("reopening output: %v", err))
	}
	defer f.Close()

	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		return errs.New(errs.ErrorTypeConversion, fmt.Sprintf("verifying output: %v", err))
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return errs.New(errs.ErrorTypeConversion, "verifying output: empty image")
	}
	return nil
}

// renameFile applies the requested naming policy to one file. Returns
// true when the file was renamed.
func (c *Converter) renameFile(path string) bool {
	dir := filepath.Dir(path)
	name := filepath.Base(path)
	newName := name

	if c.opts.FixNames {
		newName = naming.FixFilename(name, path)
	} else if !naming.HasGUID(name) {
		// --rename embeds a fresh GUID while keeping the stem
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		newName = fmt.Sprintf("%s_%s%s", stem, naming.NewGUID(), ext)
	}

	if newName == name {
		return false
	}

	newPath := filepath.Join(dir, newName)
	if err := os.Rename(path, newPath); err != nil {
		c.logger.ErrorWithFields("rename failed", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return false
	}
	c.logger.InfoWithFields("renamed", map[string]interface{}{
		"from": name,
		"to":   newName,
	})
	return true
}
