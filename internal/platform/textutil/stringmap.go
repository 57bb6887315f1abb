package textutil

import "strings"

// NormalizeStringMap trims keys and values, removing entries with empty keys.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		result[trimmedKey] = strings.TrimSpace(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// FoldStringMap normalizes like NormalizeStringMap and additionally lowers
// keys and values. Policy files use it so field and system names compare
// case-insensitively.
func FoldStringMap(values map[string]string) map[string]string {
	normalized := NormalizeStringMap(values)
	if normalized == nil {
		return nil
	}
	result := make(map[string]string, len(normalized))
	for key, value := range normalized {
		result[strings.ToLower(key)] = strings.ToLower(value)
	}
	return result
}
