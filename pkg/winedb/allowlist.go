package winedb

import (
	"encoding/json"
	"regexp"
)

// forbiddenKeyPattern matches field names that carry commercial data. The
// wine database contract is identity-only: any payload carrying one of these
// keys is rejected before a single value is read.
var forbiddenKeyPattern = regexp.MustCompile(`(?i)price|offer|currency|market`)

// IsForbiddenKey reports whether a field name is outside the identity-only
// contract.
func IsForbiddenKey(key string) bool {
	return forbiddenKeyPattern.MatchString(key)
}

// FindForbiddenKeys walks decoded JSON (maps, slices, scalars) and collects
// every key that violates the identity-only contract.
func FindForbiddenKeys(data any) []string {
	var found []string
	walkKeys(data, &found)
	return found
}

// FindForbiddenKeysJSON unmarshals raw JSON and scans its keys. An unparsable
// payload yields no keys; the caller handles decode errors separately.
func FindForbiddenKeysJSON(raw []byte) []string {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return FindForbiddenKeys(data)
}

func walkKeys(data any, found *[]string) {
	switch v := data.(type) {
	case map[string]any:
		for key, value := range v {
			if IsForbiddenKey(key) {
				*found = append(*found, key)
			}
			walkKeys(value, found)
		}
	case []any:
		for _, item := range v {
			walkKeys(item, found)
		}
	}
}
