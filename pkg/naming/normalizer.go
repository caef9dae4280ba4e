package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	errs "cropcrawler/pkg/errors"
	"cropcrawler/pkg/logger"
)

// normalizerExtensions are the file types the normalizer touches
var normalizerExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

// Result summarizes one normalization batch
type Result struct {
	Scanned    int
	Renamed    int
	Removed    int
	Failed     int
	Reassigned int
}

// Normalizer assigns stable GUID-bearing names to every image in a
// directory scope and removes byte-identical duplicates. Running it twice
// over an already-normalized scope is a no-op.
type Normalizer struct {
	logger logger.Logger
}

// NewNormalizer creates a normalizer
func NewNormalizer(log logger.Logger) *Normalizer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Normalizer{logger: log}
}

// Normalize scans the scope recursively in deterministic (lexical walk)
// order. Files keep a valid embedded GUID unless it collides with an
// earlier-discovered file's GUID; colliding and GUID-less files get fresh
// GUIDs embedded while preserving the extension. Two files are duplicates
// only when their byte content is identical, never by name alone.
func (n *Normalizer) Normalize(root string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("directory not accessible: %v", err))
	}
	if !info.IsDir() {
		return nil, errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("%s is not a directory", root))
	}

	result := &Result{}
	seenGUIDs := make(map[string]string)   // guid -> first file path
	seenContent := make(map[string]string) // sha256 -> first file path

	// filepath.WalkDir visits entries in lexical order, which fixes the
	// discovery order collision resolution depends on
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			n.logger.WarnWithFields("skipping unreadable entry", map[string]interface{}{
				"path":  path,
				"error": walkErr.Error(),
			})
			result.Failed++
			return nil
		}
		if d.IsDir() || !normalizerExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		result.Scanned++
		if err := n.normalizeFile(path, seenGUIDs, seenContent, result); err != nil {
			// One bad file must not abort the whole scan
			n.logger.ErrorWithFields("failed to normalize file", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			result.Failed++
		}
		return nil
	})
	if err != nil {
		return result, errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("scan failed: %v", err))
	}

	n.logger.InfoWithFields("normalization finished", map[string]interface{}{
		"root":       root,
		"scanned":    result.Scanned,
		"renamed":    result.Renamed,
		"removed":    result.Removed,
		"reassigned": result.Reassigned,
		"failed":     result.Failed,
	})
	return result, nil
}

// normalizeFile handles one file: duplicate removal first, then GUID
// assignment or collision reassignment
func (n *Normalizer) normalizeFile(path string, seenGUIDs, seenContent map[string]string, result *Result) error {
	hash, err := hashFile(path)
	if err != nil {
		return err
	}

	if original, ok := seenContent[hash]; ok {
		// Byte-identical to an earlier file: the later-discovered one goes
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing duplicate: %w", err)
		}
		n.logger.InfoWithFields("removed duplicate file", map[string]interface{}{
			"path":     path,
			"original": original,
		})
		result.Removed++
		return nil
	}

	name := filepath.Base(path)
	guid, hasGUID := ExtractGUID(name)

	switch {
	case hasGUID && seenGUIDs[guid] == "":
		// Valid and unique: preserved
		seenGUIDs[guid] = path
		seenContent[hash] = path
		return nil

	case hasGUID:
		// Collides with an earlier file's GUID: the later file is
		// reassigned a fresh one
		fresh := NewGUID()
		// ExtractGUID lowercases, so locate the GUID case-insensitively
		idx := strings.Index(strings.ToLower(name), guid)
		newPath := filepath.Join(filepath.Dir(path), name[:idx]+fresh+name[idx+len(guid):])
		if err := os.Rename(path, newPath); err != nil {
			return fmt.Errorf("reassigning GUID: %w", err)
		}
		n.logger.WarnWithFields("GUID collision resolved", map[string]interface{}{
			"path":     path,
			"old_guid": guid,
			"new_guid": fresh,
		})
		seenGUIDs[fresh] = newPath
		seenContent[hash] = newPath
		result.Reassigned++
		return nil

	default:
		// No valid GUID: embed a fresh one, preserving the extension
		fresh := NewGUID()
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		newPath := filepath.Join(filepath.Dir(path), fmt.Sprintf("%s_%s%s", stem, fresh, ext))
		if err := os.Rename(path, newPath); err != nil {
			return fmt.Errorf("embedding GUID: %w", err)
		}
		seenGUIDs[fresh] = newPath
		seenContent[hash] = newPath
		result.Renamed++
		return nil
	}
}

// hashFile computes the sha256 of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
