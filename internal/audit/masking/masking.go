// Package masking redacts secret-bearing values in audit metadata
// before they are persisted.
package masking

import "strings"

const maskToken = "****"

var secretKeyMarkers = []string{
	"api_key",
	"apikey",
	"authorization",
	"credential",
	"key_hash",
	"password",
	"secret",
	"token",
}

// SensitiveKey reports whether a metadata key names a secret.
func SensitiveKey(key string) bool {
	lowered := strings.ToLower(strings.TrimSpace(key))
	for _, marker := range secretKeyMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// MaskSecret redacts a secret while keeping the key prefix and a short
// suffix so entries can still be correlated against key inventories.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= 4 {
		return prefix + maskToken
	}

	return prefix + maskToken + remainder[len(remainder)-4:]
}

// MaskMetadata returns a copy of the metadata with values under
// secret-bearing keys redacted. Nested maps and slices are walked;
// values under non-sensitive keys pass through untouched.
func MaskMetadata(input map[string]any) map[string]any {
	if len(input) == 0 {
		return input
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		switch {
		case SensitiveKey(key):
			masked[key] = maskValue(value)
		default:
			if nested, ok := value.(map[string]any); ok {
				masked[key] = MaskMetadata(nested)
				continue
			}
			masked[key] = value
		}
	}
	return masked
}

// maskValue redacts everything beneath a sensitive key, whatever shape
// the value takes.
func maskValue(value any) any {
	switch cast := value.(type) {
	case string:
		return MaskSecret(cast)
	case map[string]any:
		out := make(map[string]any, len(cast))
		for key, nested := range cast {
			out[key] = maskValue(nested)
		}
		return out
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, maskValue(item))
		}
		return out
	default:
		return value
	}
}

func splitPrefix(value string) (string, string) {
	lastUnderscore := strings.LastIndex(value, "_")
	if lastUnderscore == -1 || lastUnderscore == len(value)-1 {
		return "", value
	}
	return value[:lastUnderscore+1], value[lastUnderscore+1:]
}
