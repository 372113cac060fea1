package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidSlug(t *testing.T) {
	cases := []struct {
		name string
		slug string
		want bool
	}{
		{"simple", "acme_corp", true},
		{"digits", "team42", true},
		{"mixed case", "AcmeCorp", true},
		{"min length", "abc", true},
		{"max length", strings.Repeat("a", 50), true},
		{"too short", "ab", false},
		{"too long", strings.Repeat("a", 51), false},
		{"empty", "", false},
		{"hyphen", "acme-corp", false},
		{"space", "acme corp", false},
		{"unicode", "björk", false},
		{"dot", "acme.corp", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValidSlug(tc.slug))
		})
	}
}

func TestIsValidLogoURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want bool
	}{
		{"https with extension", "https://cdn.example.com/logo.png", true},
		{"https without extension", "https://cdn.example.com/assets/12345", true},
		{"https bare host", "https://example.com", true},
		{"http rejected", "http://example.com/logo.png", false},
		{"no scheme", "cdn.example.com/logo.png", false},
		{"empty", "", false},
		{"garbage", "://nope", false},
		{"missing host", "https:///logo.png", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValidLogoURL(tc.url))
		})
	}
}
