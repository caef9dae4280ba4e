package crawler

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	errs "cropcrawler/pkg/errors"
)

// Risk is one disease, pest or weed entry from a catalog
type Risk struct {
	Name        string
	EnglishName string
	GUID        string
}

// Catalog holds the risks of one culture parsed from a CSV file
type Catalog struct {
	Path      string
	CultureRU string
	CultureEN string
	RiskType  string
	Risks     []Risk
}

var nonWordPattern = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// ListCatalogFiles returns the CSV catalog files in a directory, sorted
// for deterministic processing order
func ListCatalogFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("CSV directory not readable: %v", err))
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ParseCatalogName extracts (cultureRU, cultureEN, riskType) from a
// catalog filename. Supported layouts:
//
//	diseases_wheat_cereals.csv         -> ("wheat", "cereals", "diseases")
//	example_pests_wheat_cereals.csv    -> ("wheat", "cereals", "pests")
func ParseCatalogName(path string) (cultureRU, cultureEN, riskType string) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(stem, "_")

	if len(parts) >= 4 && parts[0] == "example" {
		return parts[2], parts[3], parts[1]
	}
	if len(parts) >= 3 {
		return parts[1], parts[2], parts[0]
	}
	return "unknown", "unknown", "unknown"
}

// LoadCatalog reads one CSV catalog. Rows need a "name" column; the
// "english_name" and "guid" columns are optional.
func LoadCatalog(path string) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("opening catalog: %v", err))
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("parsing catalog %s: %v", path, err))
	}
	if len(records) == 0 {
		return nil, errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("catalog %s is empty", path))
	}

	header := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		header[strings.ToLower(strings.TrimSpace(col))] = i
	}
	nameIdx, ok := header["name"]
	if !ok {
		return nil, errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("catalog %s has no name column", path))
	}

	cultureRU, cultureEN, riskType := ParseCatalogName(path)
	catalog := &Catalog{
		Path:      path,
		CultureRU: cultureRU,
		CultureEN: cultureEN,
		RiskType:  riskType,
	}

	field := func(row []string, col string) string {
		idx, ok := header[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	for _, row := range records[1:] {
		if nameIdx >= len(row) {
			continue
		}
		name := strings.TrimSpace(row[nameIdx])
		if name == "" {
			continue
		}

		risk := Risk{
			Name:        name,
			EnglishName: field(row, "english_name"),
			GUID:        field(row, "guid"),
		}
		if risk.EnglishName == "" {
			risk.EnglishName = slugify(name)
		}
		catalog.Risks = append(catalog.Risks, risk)
	}

	return catalog, nil
}

// slugify derives a directory-safe english name when the catalog lacks one
func slugify(name string) string {
	cleaned := nonWordPattern.ReplaceAllString(name, "")
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(cleaned), " ", "_"))
}
