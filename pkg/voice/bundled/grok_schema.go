package bundled

import (
	"github.com/marketscope/voiceagent/pkg/voice"
)

// grokTools translates canonical tool declarations into xAI's realtime tool
// format. The shape tracks the OpenAI realtime dialect (flat entries, type
// "function", lowercase JSON Schema types) but is kept separate so the two
// dialects can drift independently.
func grokTools(tools []voice.ToolDeclaration) []map[string]any {
	if len(tools) == 0 {
		return nil
	}

	out := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		out = append(out, map[string]any{
			"type":        "function",
			"name":        tool.Name,
			"description": tool.Description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": grokProperties(tool.Parameters),
				"required":   append([]string(nil), tool.Required...),
			},
		})
	}
	return out
}

func grokProperties(props map[string]voice.Property) map[string]any {
	out := make(map[string]any, len(props))
	for name, prop := range props {
		out[name] = grokProperty(prop)
	}
	return out
}

func grokProperty(prop voice.Property) map[string]any {
	p := map[string]any{
		"type":        string(prop.Type),
		"description": prop.Description,
	}
	if len(prop.Enum) > 0 {
		p["enum"] = append([]string(nil), prop.Enum...)
	}
	if prop.Items != nil {
		p["items"] = grokProperty(*prop.Items)
	}
	return p
}

// parseGrokTools is the inverse of grokTools, used to verify the translation
// is lossless.
func parseGrokTools(entries []map[string]any) []voice.ToolDeclaration {
	tools := make([]voice.ToolDeclaration, 0, len(entries))
	for _, entry := range entries {
		tool := voice.ToolDeclaration{}
		tool.Name, _ = entry["name"].(string)
		tool.Description, _ = entry["description"].(string)

		if params, ok := entry["parameters"].(map[string]any); ok {
			if props, ok := params["properties"].(map[string]any); ok && len(props) > 0 {
				tool.Parameters = make(map[string]voice.Property, len(props))
				for name, raw := range props {
					if propMap, ok := raw.(map[string]any); ok {
						tool.Parameters[name] = parseGrokProperty(propMap)
					}
				}
			}
			tool.Required = toStringSlice(params["required"])
		}
		tools = append(tools, tool)
	}
	return tools
}

func parseGrokProperty(raw map[string]any) voice.Property {
	prop := voice.Property{}
	if t, ok := raw["type"].(string); ok {
		prop.Type = voice.ParamType(t)
	}
	prop.Description, _ = raw["description"].(string)
	prop.Enum = toStringSlice(raw["enum"])
	if items, ok := raw["items"].(map[string]any); ok {
		p := parseGrokProperty(items)
		prop.Items = &p
	}
	return prop
}
