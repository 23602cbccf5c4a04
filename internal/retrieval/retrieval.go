// Package retrieval searches the clinic knowledge base.
package retrieval

import (
	"context"
	"strings"
)

// Document is a ranked knowledge-base hit.
type Document struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
}

// Filters narrows a search by document metadata. Empty fields match all.
type Filters struct {
	SkinTypes []string `json:"skin_types,omitempty"`
	AgeGroups []string `json:"age_groups,omitempty"`
}

// IsZero reports whether f filters nothing.
func (f *Filters) IsZero() bool {
	return f == nil || (len(f.SkinTypes) == 0 && len(f.AgeGroups) == 0)
}

// Searcher returns up to topK documents above the minimum relevance.
type Searcher interface {
	Search(ctx context.Context, query string, filters *Filters, topK int) ([]Document, error)
}

// Profile is the part of the user profile that shapes search filters.
type Profile struct {
	SkinType string
	AgeGroup string
}

var skinWords = []struct{ ru, en string }{
	{"жирная", "oily"},
	{"сухая", "dry"},
	{"нормальная", "normal"},
	{"чувствительная", "sensitive"},
	{"проблемная", "problematic"},
}

// BuildFilters derives filters from the stored profile, letting a skin type
// named in the message override the profile's.
func BuildFilters(message string, profile Profile) *Filters {
	f := &Filters{}
	if profile.SkinType != "" {
		f.SkinTypes = []string{profile.SkinType, "all"}
	}
	if profile.AgeGroup != "" {
		f.AgeGroups = []string{profile.AgeGroup}
	}
	lower := strings.ToLower(message)
	for _, w := range skinWords {
		if strings.Contains(lower, w.ru) {
			f.SkinTypes = []string{w.en, "all"}
			break
		}
	}
	if f.IsZero() {
		return nil
	}
	return f
}

// NopSearcher finds nothing. It stands in when no embedding model is
// configured.
type NopSearcher struct{}

func (NopSearcher) Search(context.Context, string, *Filters, int) ([]Document, error) {
	return nil, nil
}
