package naming

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// guidPattern matches an RFC 4122 UUID embedded in a filename
var guidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// ExtractGUID returns the first syntactically valid GUID embedded in the
// string, if any
func ExtractGUID(s string) (string, bool) {
	match := guidPattern.FindString(strings.ToLower(s))
	if match == "" {
		return "", false
	}
	return match, true
}

// HasGUID reports whether the string contains a syntactically valid GUID
func HasGUID(s string) bool {
	_, ok := ExtractGUID(s)
	return ok
}

// NewGUID generates a fresh random GUID
func NewGUID() string {
	return uuid.NewString()
}

// RiskGUID derives a deterministic GUID for a risk so every image of the
// same disease or pest shares one identifier stem across runs
func RiskGUID(riskType, culture, riskName string) string {
	seed := strings.ToLower(fmt.Sprintf("%s_%s_%s", riskType, culture, riskName))
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(seed)).String()
}
