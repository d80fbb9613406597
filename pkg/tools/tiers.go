package tools

import (
	"strings"
)

// tierAliases maps normalized tier spellings to their canonical key. The
// model refers to segments in free text ("E1", "tier_e1", "Tier E-1",
// "enterprise one"), all of which must resolve to the same handler input.
var tierAliases = map[string]string{
	"e1":              "e1",
	"e2":              "e2",
	"e3":              "e3",
	"e4":              "e4",
	"tier1":           "e1",
	"tier2":           "e2",
	"tier3":           "e3",
	"tier4":           "e4",
	"enterpriseone":   "e1",
	"enterprisetwo":   "e2",
	"enterprisethree": "e3",
	"enterprisefour":  "e4",
}

// CanonicalTier normalizes a free-text tier identifier to its canonical key.
// The second return reports whether the identifier was recognized.
func CanonicalTier(raw string) (string, bool) {
	key := normalizeTier(raw)
	canonical, ok := tierAliases[key]
	return canonical, ok
}

// normalizeTier lowercases and strips separators and a leading "tier"
// prefix, so "Tier E-1", "tier_e1" and "E1" all collapse to "e1".
func normalizeTier(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '.':
			return -1
		}
		return r
	}, s)
	if strings.HasPrefix(s, "tier") && len(s) > len("tier") {
		rest := s[len("tier"):]
		// "tiere1" and "tier1" both carry the tier after the prefix.
		if _, ok := tierAliases[rest]; ok {
			return rest
		}
	}
	return s
}
