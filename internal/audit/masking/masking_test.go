package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("   "))
	assert.Equal(t, "ck_****3456", MaskSecret("ck_abcdef123456"))
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "****cdef", MaskSecret("abcdef"))
}

func TestSensitiveKey(t *testing.T) {
	assert.True(t, SensitiveKey("api_key"))
	assert.True(t, SensitiveKey("backend_api_key"))
	assert.True(t, SensitiveKey("Authorization"))
	assert.True(t, SensitiveKey("session_token"))

	assert.False(t, SensitiveKey("key_id"))
	assert.False(t, SensitiveKey("email"))
	assert.False(t, SensitiveKey("currency"))
}

func TestMaskMetadataRedactsOnlySecretKeys(t *testing.T) {
	input := map[string]any{
		"key_id":   "ck_live_01",
		"api_key":  "ck_live_abcdef123456",
		"currency": "EUR",
		"nested": map[string]any{
			"session_token": "tok_abcdef123456",
			"email":         "user@example.com",
		},
		"tokens": []any{"tok_abcdef123456", "tok_fedcba654321"},
	}

	masked := MaskMetadata(input)

	assert.Equal(t, "ck_live_01", masked["key_id"])
	assert.Equal(t, "EUR", masked["currency"])
	assert.Equal(t, "ck_live_****3456", masked["api_key"])

	nested, ok := masked["nested"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "tok_****3456", nested["session_token"])
	assert.Equal(t, "user@example.com", nested["email"])

	tokens, ok := masked["tokens"].([]any)
	assert.True(t, ok)
	assert.Equal(t, []any{"tok_****3456", "tok_****4321"}, tokens)

	// The input is left untouched.
	assert.Equal(t, "ck_live_abcdef123456", input["api_key"])
}

func TestMaskMetadataEmpty(t *testing.T) {
	assert.Empty(t, MaskMetadata(nil))
	assert.Empty(t, MaskMetadata(map[string]any{}))
}
