package tools

import (
	"context"
	"strings"
)

// StaticDataSource serves a fixed in-memory dataset. It backs the demo
// binary and the tests; a real deployment would wire a live data layer
// behind the same interface.
type StaticDataSource struct {
	company  map[string]any
	segments map[string]map[string]any
	msas     map[string]map[string]any
	insights []insight
}

type insight struct {
	Title string
	Body  string
	Tags  []string
}

// NewStaticDataSource returns a data source with a representative telecom
// pricing dataset.
func NewStaticDataSource() *StaticDataSource {
	return &StaticDataSource{
		company: map[string]any{
			"revenue_usd":       1240000000.0,
			"arpu_usd":          118.0,
			"subscribers":       875000,
			"yoy_growth_pct":    12.5,
			"monthly_churn_pct": 1.8,
			"gross_margin_pct":  61.2,
		},
		segments: map[string]map[string]any{
			"e1": {
				"tier":            "e1",
				"name":            "Enterprise One",
				"arpu_usd":        320.0,
				"accounts":        1200,
				"net_revenue_usd": 4600000.0,
				"churn_pct":       0.9,
			},
			"e2": {
				"tier":            "e2",
				"name":            "Enterprise Two",
				"arpu_usd":        185.0,
				"accounts":        4800,
				"net_revenue_usd": 10700000.0,
				"churn_pct":       1.4,
			},
			"e3": {
				"tier":            "e3",
				"name":            "Enterprise Three",
				"arpu_usd":        96.0,
				"accounts":        16500,
				"net_revenue_usd": 19000000.0,
				"churn_pct":       2.2,
			},
			"e4": {
				"tier":            "e4",
				"name":            "Enterprise Four",
				"arpu_usd":        42.0,
				"accounts":        61000,
				"net_revenue_usd": 30700000.0,
				"churn_pct":       3.1,
			},
		},
		msas: map[string]map[string]any{
			"dallas-fort worth": {
				"msa":              "Dallas-Fort Worth",
				"households":       2900000,
				"penetration_pct":  23.4,
				"avg_bill_usd":     104.0,
				"competitor_count": 4,
			},
			"atlanta": {
				"msa":              "Atlanta",
				"households":       2300000,
				"penetration_pct":  19.1,
				"avg_bill_usd":     98.0,
				"competitor_count": 3,
			},
			"phoenix": {
				"msa":              "Phoenix",
				"households":       1900000,
				"penetration_pct":  27.8,
				"avg_bill_usd":     111.0,
				"competitor_count": 5,
			},
		},
		insights: []insight{
			{
				Title: "E3 churn spike",
				Body:  "E3 churn rose after the March price change; retention offers recover roughly half of at-risk accounts.",
				Tags:  []string{"churn", "pricing", "e3"},
			},
			{
				Title: "Fiber upsell headroom",
				Body:  "Phoenix shows the highest fiber upsell acceptance among tested MSAs.",
				Tags:  []string{"fiber", "upsell", "phoenix"},
			},
			{
				Title: "Bundle discount elasticity",
				Body:  "Bundle discounts above 15% show diminishing conversion lift across all tiers.",
				Tags:  []string{"pricing", "bundles"},
			},
		},
	}
}

// GetCompanyMetrics returns the company-wide metric set.
func (s *StaticDataSource) GetCompanyMetrics(ctx context.Context) (map[string]any, error) {
	return s.company, nil
}

// GetSegmentDetails returns details for one canonical tier, or nil when the
// tier is not covered by the dataset.
func (s *StaticDataSource) GetSegmentDetails(ctx context.Context, tier string) (map[string]any, error) {
	return s.segments[tier], nil
}

// GetMSADetails looks an MSA up case-insensitively, or returns nil.
func (s *StaticDataSource) GetMSADetails(ctx context.Context, msa string) (map[string]any, error) {
	return s.msas[strings.ToLower(strings.TrimSpace(msa))], nil
}

// SearchInsights returns insights whose title, body or tags contain the
// query, case-insensitively. No matches yields an empty result set, not nil.
func (s *StaticDataSource) SearchInsights(ctx context.Context, query string) (map[string]any, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	var matches []any
	for _, in := range s.insights {
		if s.matches(in, q) {
			matches = append(matches, map[string]any{
				"title": in.Title,
				"body":  in.Body,
				"tags":  in.Tags,
			})
		}
	}
	if matches == nil {
		matches = []any{}
	}
	return map[string]any{"results": matches, "count": len(matches)}, nil
}

func (s *StaticDataSource) matches(in insight, q string) bool {
	if strings.Contains(strings.ToLower(in.Title), q) || strings.Contains(strings.ToLower(in.Body), q) {
		return true
	}
	for _, tag := range in.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}
