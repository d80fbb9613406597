// Package tools bridges the voice providers' function calling to the
// application data layer: canonical tool declarations, argument
// canonicalization, and result shaping.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/marketscope/voiceagent/internal/log"
	"github.com/marketscope/voiceagent/pkg/voice"
)

// Tool names as declared to the providers.
const (
	ToolCompanyMetrics = "get_company_metrics"
	ToolSegmentDetails = "get_segment_details"
	ToolMSADetails     = "get_msa_details"
	ToolSearchInsights = "search_insights"
)

// DataSource is the application data layer consumed by the dispatcher. A
// nil result map means "not available" and is not an error.
type DataSource interface {
	GetCompanyMetrics(ctx context.Context) (map[string]any, error)
	GetSegmentDetails(ctx context.Context, tier string) (map[string]any, error)
	GetMSADetails(ctx context.Context, msa string) (map[string]any, error)
	SearchInsights(ctx context.Context, query string) (map[string]any, error)
}

// Dispatcher routes function calls from a voice backend to a DataSource and
// shapes results for spoken delivery. Dispatch never returns an error and
// never panics outward; every fault becomes an {"error": ...} payload so the
// session continues uninterrupted.
type Dispatcher struct {
	src DataSource
}

// NewDispatcher creates a dispatcher over the given data source.
func NewDispatcher(src DataSource) *Dispatcher {
	return &Dispatcher{src: src}
}

// Declarations returns the canonical tool declarations for the four
// supported queries, in provider-neutral form.
func (d *Dispatcher) Declarations() []voice.ToolDeclaration {
	return []voice.ToolDeclaration{
		{
			Name:        ToolCompanyMetrics,
			Description: "Get current company-wide metrics: revenue, subscriber counts, growth and churn.",
		},
		{
			Name:        ToolSegmentDetails,
			Description: "Get pricing and performance details for one enterprise segment tier.",
			Parameters: map[string]voice.Property{
				"tier": {
					Type:        voice.TypeString,
					Description: "Segment tier identifier, e.g. E1 or tier_e2",
				},
			},
			Required: []string{"tier"},
		},
		{
			Name:        ToolMSADetails,
			Description: "Get market details for one metropolitan statistical area by name.",
			Parameters: map[string]voice.Property{
				"msa": {
					Type:        voice.TypeString,
					Description: "Metropolitan statistical area name, e.g. Dallas-Fort Worth",
				},
			},
			Required: []string{"msa"},
		},
		{
			Name:        ToolSearchInsights,
			Description: "Search saved market insights by free-text query.",
			Parameters: map[string]voice.Property{
				"query": {
					Type:        voice.TypeString,
					Description: "Free-text search query",
				},
			},
			Required: []string{"query"},
		},
	}
}

// Dispatch routes one function call and returns the shaped result payload.
func (d *Dispatcher) Dispatch(ctx context.Context, call voice.FunctionCall) (result map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("tool handler panic", "tool", call.Name, "panic", r)
			result = errorResult(fmt.Sprintf("tool %s failed", call.Name))
		}
	}()

	switch call.Name {
	case ToolCompanyMetrics:
		return d.shaped(call.Name)(d.src.GetCompanyMetrics(ctx))

	case ToolSegmentDetails:
		raw := stringArg(call.Arguments, "tier")
		if raw == "" {
			return errorResult("missing required argument: tier")
		}
		tier, ok := CanonicalTier(raw)
		if !ok {
			return errorResult(fmt.Sprintf("unknown tier: %s", raw))
		}
		return d.shaped(call.Name)(d.src.GetSegmentDetails(ctx, tier))

	case ToolMSADetails:
		msa := stringArg(call.Arguments, "msa")
		if msa == "" {
			return errorResult("missing required argument: msa")
		}
		return d.shaped(call.Name)(d.src.GetMSADetails(ctx, msa))

	case ToolSearchInsights:
		query := stringArg(call.Arguments, "query")
		if query == "" {
			return errorResult("missing required argument: query")
		}
		return d.shaped(call.Name)(d.src.SearchInsights(ctx, query))

	default:
		return errorResult(fmt.Sprintf("Unknown tool: %s", call.Name))
	}
}

// shaped wraps a handler result: errors and missing data become error
// payloads, everything else gets its numeric fields rendered readable.
func (d *Dispatcher) shaped(tool string) func(map[string]any, error) map[string]any {
	return func(data map[string]any, err error) map[string]any {
		if err != nil {
			log.Warn("tool handler error", "tool", tool, "err", err)
			return errorResult(err.Error())
		}
		if data == nil {
			return errorResult(fmt.Sprintf("no data available for %s", tool))
		}
		return ShapeResult(data)
	}
}

// ShapeResult renders numeric fields human-readable for spoken delivery.
// Keys with a "_usd" suffix become currency strings and lose the suffix;
// keys with a "_pct" suffix become percentage strings. Nested maps and
// slices are shaped recursively.
func ShapeResult(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		switch {
		case strings.HasSuffix(key, "_usd"):
			if n, ok := toFloat(value); ok {
				out[strings.TrimSuffix(key, "_usd")] = FormatCurrency(n)
				continue
			}
		case strings.HasSuffix(key, "_pct"):
			if n, ok := toFloat(value); ok {
				out[strings.TrimSuffix(key, "_pct")] = FormatPercent(n)
				continue
			}
		}
		out[key] = shapeValue(value)
	}
	return out
}

func shapeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return ShapeResult(v)
	case []any:
		shaped := make([]any, len(v))
		for i, item := range v {
			shaped[i] = shapeValue(item)
		}
		return shaped
	default:
		return value
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func errorResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}
