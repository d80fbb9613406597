package bundled

import (
	"github.com/marketscope/voiceagent/pkg/voice"
)

// openaiTools translates canonical tool declarations into the Realtime API
// dialect: flat tool entries with type "function" and a lowercase JSON
// Schema parameters object.
func openaiTools(tools []voice.ToolDeclaration) []map[string]any {
	if len(tools) == 0 {
		return nil
	}

	out := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		entry := map[string]any{
			"type":        "function",
			"name":        tool.Name,
			"description": tool.Description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": openaiProperties(tool.Parameters),
				"required":   append([]string(nil), tool.Required...),
			},
		}
		out = append(out, entry)
	}
	return out
}

func openaiProperties(props map[string]voice.Property) map[string]any {
	out := make(map[string]any, len(props))
	for name, prop := range props {
		out[name] = openaiProperty(prop)
	}
	return out
}

func openaiProperty(prop voice.Property) map[string]any {
	p := map[string]any{
		"type":        string(prop.Type),
		"description": prop.Description,
	}
	if len(prop.Enum) > 0 {
		p["enum"] = append([]string(nil), prop.Enum...)
	}
	if prop.Items != nil {
		p["items"] = openaiProperty(*prop.Items)
	}
	return p
}

// parseOpenAITools is the inverse of openaiTools, used to verify the
// translation is lossless.
func parseOpenAITools(entries []map[string]any) []voice.ToolDeclaration {
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
						tool.Parameters[name] = parseOpenAIProperty(propMap)
					}
				}
			}
			tool.Required = toStringSlice(params["required"])
		}
		tools = append(tools, tool)
	}
	return tools
}

func parseOpenAIProperty(raw map[string]any) voice.Property {
	prop := voice.Property{}
	if t, ok := raw["type"].(string); ok {
		prop.Type = voice.ParamType(t)
	}
	prop.Description, _ = raw["description"].(string)
	prop.Enum = toStringSlice(raw["enum"])
	if items, ok := raw["items"].(map[string]any); ok {
		p := parseOpenAIProperty(items)
		prop.Items = &p
	}
	return prop
}
