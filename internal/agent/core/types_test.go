package core

import (
	"math"
	"testing"
)

func TestCompletenessScore(t *testing.T) {
	empty := CompetitorInfo{Name: "Empty Co"}
	if got := empty.CompletenessScore(); got != 0 {
		t.Fatalf("empty profile score = %v, want 0", got)
	}

	full := CompetitorInfo{
		Name:           "Full Co",
		Website:        "https://full.example.com",
		Description:    "Does everything",
		Products:       []string{"Suite"},
		PricingInfo:    map[string]string{"pro": "$10/mo"},
		KeyFeatures:    []string{"fast"},
		TargetMarket:   "SMB",
		MarketPosition: "leader",
	}
	if got := full.CompletenessScore(); got != 1.0 {
		t.Fatalf("full profile score = %v, want 1.0", got)
	}

	partial := CompetitorInfo{
		Name:        "Partial Co",
		Website:     "https://partial.example.com",
		Description: "Some things",
		Products:    []string{"One"},
	}
	if got, want := partial.CompletenessScore(), 3.0/7.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("partial profile score = %v, want %v", got, want)
	}

	// strengths, weaknesses and news do not count toward the score
	extras := CompetitorInfo{
		Name:       "Extras Co",
		Strengths:  []string{"brand"},
		Weaknesses: []string{"price"},
		RecentNews: []string{"raised a round"},
	}
	if got := extras.CompletenessScore(); got != 0 {
		t.Fatalf("extras-only profile score = %v, want 0", got)
	}
}

func TestNormalizeRejectsShortQuery(t *testing.T) {
	for _, q := range []string{"", "  ", "ab", " a "} {
		query := ResearchQuery{Query: q}
		if err := query.Normalize(); err == nil {
			t.Fatalf("expected error for query %q", q)
		}
	}
}

func TestNormalizeDefaults(t *testing.T) {
	query := ResearchQuery{Query: "  CRM tools  "}
	if err := query.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if query.Query != "CRM tools" {
		t.Fatalf("query not trimmed: %q", query.Query)
	}
	if query.Depth != DepthStandard {
		t.Fatalf("depth = %q, want standard", query.Depth)
	}
	if query.MaxResults != 10 {
		t.Fatalf("max results = %d, want 10", query.MaxResults)
	}
}

func TestNormalizeCapsMaxResults(t *testing.T) {
	query := ResearchQuery{Query: "CRM tools", Depth: DepthBasic, MaxResults: 500}
	if err := query.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if query.MaxResults != 50 {
		t.Fatalf("max results = %d, want 50", query.MaxResults)
	}
	if query.Depth != DepthBasic {
		t.Fatalf("depth changed: %q", query.Depth)
	}
}

func TestNormalizeRejectsUnknownDepth(t *testing.T) {
	query := ResearchQuery{Query: "CRM tools", Depth: "extreme"}
	if err := query.Normalize(); err == nil {
		t.Fatal("expected error for unknown depth")
	}
}
