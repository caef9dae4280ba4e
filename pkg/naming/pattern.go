package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// riskTypes are the top-level corpus categories
var riskTypes = []string{"diseases", "pests", "weeds"}

// riskFilenamePattern is the canonical corpus filename layout:
// riskType_culture_GUID_number.ext
var riskFilenamePattern = regexp.MustCompile(`^(diseases|pests|weeds)_[a-z]+_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}_\d+\.\w+$`)

// fileNumberPattern extracts the trailing number from a filename stem
var fileNumberPattern = regexp.MustCompile(`_(\d+)\.[a-zA-Z]+$`)

// IsValidRiskFilename reports whether a filename matches the canonical
// riskType_culture_GUID_number.ext layout
func IsValidRiskFilename(filename string) bool {
	return riskFilenamePattern.MatchString(strings.ToLower(filename))
}

// RiskFilename builds a canonical corpus filename
func RiskFilename(riskType, culture, guid string, number int, ext string) string {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s_%s_%s_%02d%s",
		strings.ToLower(riskType), strings.ToLower(culture), guid, number, ext)
}

// FixFilename repairs a filename that does not match the canonical layout
// by recovering the risk type, culture and GUID from the file's path
// components. If the components cannot be recovered the original name is
// returned unchanged.
func FixFilename(filename, path string) string {
	if IsValidRiskFilename(filename) {
		return filename
	}

	parts := strings.Split(filepath.ToSlash(filepath.Dir(path)), "/")

	riskType := ""
	culture := "unknown"
	riskName := ""
	for i, part := range parts {
		lower := strings.ToLower(part)
		for _, rt := range riskTypes {
			if lower == rt {
				riskType = rt
				// Directory layout is riskType/culture/riskName
				if i+1 < len(parts) {
					culture = strings.ToLower(parts[i+1])
				}
				if i+2 < len(parts) {
					riskName = strings.ToLower(parts[i+2])
				}
			}
		}
	}
	if riskType == "" {
		return filename
	}

	// Prefer a GUID already present in the name or path, otherwise derive
	// one from the risk identity
	guid, ok := ExtractGUID(filename)
	if !ok {
		guid, ok = ExtractGUID(path)
	}
	if !ok {
		guid = RiskGUID(riskType, culture, riskName)
	}

	number := 0
	if m := fileNumberPattern.FindStringSubmatch(filename); m != nil {
		fmt.Sscanf(m[1], "%d", &number)
	}

	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}

	return RiskFilename(riskType, culture, guid, number, ext)
}
