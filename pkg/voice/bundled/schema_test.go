package bundled

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/marketscope/voiceagent/pkg/voice"
)

func sampleTools() []voice.ToolDeclaration {
	return []voice.ToolDeclaration{
		{
			Name:        "get_segment_details",
			Description: "Look up details for a pricing segment",
			Parameters: map[string]voice.Property{
				"tier": {
					Type:        voice.TypeString,
					Description: "Segment tier identifier",
					Enum:        []string{"e1", "e2", "e3", "e4"},
				},
				"include_history": {
					Type:        voice.TypeBoolean,
					Description: "Include historical metrics",
				},
			},
			Required: []string{"tier"},
		},
		{
			Name:        "search_insights",
			Description: "Free-text search over insights",
			Parameters: map[string]voice.Property{
				"query": {
					Type:        voice.TypeString,
					Description: "Search query",
				},
				"tags": {
					Type:        voice.TypeArray,
					Description: "Filter tags",
					Items: &voice.Property{
						Type:        voice.TypeString,
						Description: "A tag",
					},
				},
			},
			Required: []string{"query"},
		},
	}
}

// wireTrip pushes the translated form through a JSON encode/decode, which is
// what actually happens on the socket, before back-translating.
func wireTrip(t *testing.T, translated []map[string]any) []map[string]any {
	t.Helper()

	raw, err := json.Marshal(translated)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return decoded
}

func TestGeminiSchemaRoundTrip(t *testing.T) {
	tools := sampleTools()
	got := parseGeminiDeclarations(wireTrip(t, geminiDeclarations(tools)))
	if !reflect.DeepEqual(got, tools) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, tools)
	}
}

func TestOpenAISchemaRoundTrip(t *testing.T) {
	tools := sampleTools()
	got := parseOpenAITools(wireTrip(t, openaiTools(tools)))
	if !reflect.DeepEqual(got, tools) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, tools)
	}
}

func TestGrokSchemaRoundTrip(t *testing.T) {
	tools := sampleTools()
	got := parseGrokTools(wireTrip(t, grokTools(tools)))
	if !reflect.DeepEqual(got, tools) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, tools)
	}
}

func TestGeminiTypeNames(t *testing.T) {
	cases := []struct {
		in   voice.ParamType
		want string
	}{
		{voice.TypeString, "STRING"},
		{voice.TypeNumber, "NUMBER"},
		{voice.TypeBoolean, "BOOLEAN"},
		{voice.TypeArray, "ARRAY"},
		{voice.TypeObject, "OBJECT"},
	}
	for _, tc := range cases {
		if got := geminiType(tc.in); got != tc.want {
			t.Errorf("geminiType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEmptyToolListTranslatesToNil(t *testing.T) {
	if got := geminiDeclarations(nil); got != nil {
		t.Errorf("gemini: expected nil, got %v", got)
	}
	if got := openaiTools(nil); got != nil {
		t.Errorf("openai: expected nil, got %v", got)
	}
	if got := grokTools(nil); got != nil {
		t.Errorf("grok: expected nil, got %v", got)
	}
}
