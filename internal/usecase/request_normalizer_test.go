package usecase

import (
	"testing"

	"github.com/sitelens/backend/internal/domain"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		input    domain.Category
		expected domain.Category
	}{
		{"cafe", "cafe"},
		{"  Cafe  ", "cafe"},
		{"Convenience Store", "convenience_store"},
		{"convenience   store", "convenience_store"},
		{"convenience-store", "convenience_store"},
		{"Coffee Shop", "cafe"},
		{"GYM", "fitness"},
		{"_bar_", "bar"},
		{"spaceport", "spaceport"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := NormalizeCategory(tt.input); got != tt.expected {
				t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCategoryAliasesResolveToBuiltins(t *testing.T) {
	for alias, category := range categoryAliases {
		if _, ok := DefaultCategoryProfiles[category]; !ok {
			t.Errorf("alias %q points to unregistered category %q", alias, category)
		}
		if NormalizeCategory(alias) != category {
			t.Errorf("alias %q is not in normalized form", alias)
		}
	}
}

func TestNormalizeArea(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gangnam", "gangnam"},
		{"  Gangnam ", "gangnam"},
		{"Old   Town", "old town"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeArea(tt.input); got != tt.expected {
				t.Errorf("NormalizeArea(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeSegment(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"30s", "30s"},
		{"30S", "30s"},
		{"30's", "30s"},
		{" 20 s ", "20s"},
		{"50s+", "50s+"},
		{"50'S+", "50s+"},
		{"students", "students"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeSegment(tt.input); got != tt.expected {
				t.Errorf("NormalizeSegment(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
