package bundled

import (
	"github.com/marketscope/voiceagent/pkg/voice"
)

// geminiDeclarations translates canonical tool declarations into the Gemini
// functionDeclarations dialect. Gemini uses UPPERCASE type names and nests
// parameters under an OBJECT schema.
func geminiDeclarations(tools []voice.ToolDeclaration) []map[string]any {
	if len(tools) == 0 {
		return nil
	}

	decls := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		decl := map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
		}
		if len(tool.Parameters) > 0 {
			decl["parameters"] = map[string]any{
				"type":       "OBJECT",
				"properties": geminiProperties(tool.Parameters),
				"required":   append([]string(nil), tool.Required...),
			}
		}
		decls = append(decls, decl)
	}
	return decls
}

func geminiProperties(props map[string]voice.Property) map[string]any {
	out := make(map[string]any, len(props))
	for name, prop := range props {
		out[name] = geminiProperty(prop)
	}
	return out
}

func geminiProperty(prop voice.Property) map[string]any {
	p := map[string]any{
		"type":        geminiType(prop.Type),
		"description": prop.Description,
	}
	if len(prop.Enum) > 0 {
		p["enum"] = append([]string(nil), prop.Enum...)
	}
	if prop.Items != nil {
		p["items"] = geminiProperty(*prop.Items)
	}
	return p
}

func geminiType(t voice.ParamType) string {
	switch t {
	case voice.TypeString:
		return "STRING"
	case voice.TypeNumber:
		return "NUMBER"
	case voice.TypeBoolean:
		return "BOOLEAN"
	case voice.TypeArray:
		return "ARRAY"
	case voice.TypeObject:
		return "OBJECT"
	default:
		return "STRING"
	}
}

// parseGeminiDeclarations is the inverse of geminiDeclarations. It exists so
// the translation can be verified as lossless.
func parseGeminiDeclarations(decls []map[string]any) []voice.ToolDeclaration {
	tools := make([]voice.ToolDeclaration, 0, len(decls))
	for _, decl := range decls {
		tool := voice.ToolDeclaration{}
		tool.Name, _ = decl["name"].(string)
		tool.Description, _ = decl["description"].(string)

		if params, ok := decl["parameters"].(map[string]any); ok {
			if props, ok := params["properties"].(map[string]any); ok {
				tool.Parameters = make(map[string]voice.Property, len(props))
				for name, raw := range props {
					if propMap, ok := raw.(map[string]any); ok {
						tool.Parameters[name] = parseGeminiProperty(propMap)
					}
				}
			}
			tool.Required = toStringSlice(params["required"])
		}
		tools = append(tools, tool)
	}
	return tools
}

func parseGeminiProperty(raw map[string]any) voice.Property {
	prop := voice.Property{}
	if t, ok := raw["type"].(string); ok {
		prop.Type = parseGeminiType(t)
	}
	prop.Description, _ = raw["description"].(string)
	prop.Enum = toStringSlice(raw["enum"])
	if items, ok := raw["items"].(map[string]any); ok {
		p := parseGeminiProperty(items)
		prop.Items = &p
	}
	return prop
}

func parseGeminiType(t string) voice.ParamType {
	switch t {
	case "STRING":
		return voice.TypeString
	case "NUMBER":
		return voice.TypeNumber
	case "BOOLEAN":
		return voice.TypeBoolean
	case "ARRAY":
		return voice.TypeArray
	case "OBJECT":
		return voice.TypeObject
	default:
		return voice.TypeString
	}
}

// toStringSlice accepts either []string or []any of strings, which is what
// a JSON round trip produces.
func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		if len(vv) == 0 {
			return nil
		}
		return append([]string(nil), vv...)
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}
