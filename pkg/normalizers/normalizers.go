// Package normalizers provides field normalization for wine line matching
package normalizers

import (
	"fmt"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("remove_whitespace", RemoveWhitespace)
	Register("remove_punctuation", RemovePunctuation)
	Register("digits_only", DigitsOnly)
	Register("nwine", NormalizeWineName)
	Register("nproducer", NormalizeProducer)
	Register("ngtin", NormalizeGTIN)
	Register("nlwin", NormalizeLWIN)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// RemoveWhitespace removes all whitespace characters
func RemoveWhitespace(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// RemovePunctuation removes all punctuation characters
func RemovePunctuation(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsPunct(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// accentFold maps the accented characters common in wine labels onto ASCII.
var accentFold = strings.NewReplacer(
	"à", "a", "â", "a", "ä", "a", "á", "a", "ã", "a",
	"ç", "c",
	"è", "e", "é", "e", "ê", "e", "ë", "e",
	"ì", "i", "í", "i", "î", "i", "ï", "i",
	"ñ", "n",
	"ò", "o", "ó", "o", "ô", "o", "ö", "o", "õ", "o", "ø", "o",
	"ù", "u", "ú", "u", "û", "u", "ü", "u",
	"ß", "ss",
)

// NormalizeWineName normalizes a wine name for matching
// - Lowercase, accent-folded
// - Punctuation removed, whitespace collapsed
// - Noise tokens dropped (bottle, case, owc, oc, cs)
func NormalizeWineName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = accentFold.Replace(s)
	s = RemovePunctuation(s)

	noise := map[string]bool{
		"bottle": true, "bottles": true, "btl": true,
		"case": true, "cs": true, "owc": true, "oc": true,
		"magnum": false, // size words stay, they carry meaning
	}

	fields := strings.Fields(s)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if noise[f] {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// NormalizeProducer normalizes a producer name for matching. Leading
// articles and legal suffixes are dropped so "Domaine Leflaive SARL" and
// "Leflaive" land near each other.
func NormalizeProducer(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = accentFold.Replace(s)
	s = RemovePunctuation(s)

	suffixes := []string{" sarl", " sa", " srl", " gmbh", " ltd", " llc", " inc"}
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			s = s[:len(s)-len(suffix)]
		}
	}

	prefixes := []string{"the "}
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			s = s[len(prefix):]
		}
	}

	return strings.Join(strings.Fields(s), " ")
}

// NormalizeGTIN strips non-digits and left-pads to GTIN-14. Returns the empty
// string when the result is not a plausible GTIN length.
func NormalizeGTIN(s string) string {
	digits := DigitsOnly(s)
	switch len(digits) {
	case 8, 12, 13, 14:
		return strings.Repeat("0", 14-len(digits)) + digits
	default:
		return ""
	}
}

// NormalizeLWIN strips non-digits. LWIN codes are numeric (7, 11, 16 or 18
// digits depending on precision).
func NormalizeLWIN(s string) string {
	digits := DigitsOnly(s)
	switch len(digits) {
	case 7, 11, 16, 18:
		return digits
	default:
		return ""
	}
}

// VintageToken renders a vintage year for the canonical string. Non-vintage
// lines use the NV token so they compare equal to other non-vintage entries.
func VintageToken(vintage *int) string {
	if vintage == nil {
		return "NV"
	}
	return fmt.Sprintf("%d", *vintage)
}

// VolumeToken renders a bottle volume for the canonical string.
func VolumeToken(volumeML *int) string {
	if volumeML == nil {
		return ""
	}
	return fmt.Sprintf("%dml", *volumeML)
}

// Canonical builds the canonical matching string for a wine: normalized
// producer, normalized name, vintage token and volume token joined by single
// spaces.
func Canonical(producer, name string, vintage *int, volumeML *int) string {
	parts := []string{
		NormalizeProducer(producer),
		NormalizeWineName(name),
		VintageToken(vintage),
	}
	if v := VolumeToken(volumeML); v != "" {
		parts = append(parts, v)
	}
	joined := strings.Join(parts, " ")
	return strings.Join(strings.Fields(joined), " ")
}
