package voice

// ParamType is a canonical, provider-independent parameter type.
type ParamType string

// Supported canonical parameter types. Provider adapters translate these to
// their own dialects; translation is total and lossless for this set.
const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Property describes a single named parameter of a tool.
type Property struct {
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// ToolDeclaration is the canonical, provider-agnostic shape of a tool the
// AI can invoke. Each provider adapter owns a pure translation from this
// form to its wire dialect, preserving Enum and Required verbatim.
type ToolDeclaration struct {
	// Name is the unique identifier for the tool (e.g. "get_company_metrics").
	Name string `json:"name"`

	// Description explains what the tool does, helping the AI decide when
	// to use it.
	Description string `json:"description"`

	// Parameters defines the named properties of the tool's arguments.
	Parameters map[string]Property `json:"parameters,omitempty"`

	// Required lists the parameter names the AI must always supply.
	Required []string `json:"required,omitempty"`
}

// FunctionCall represents an invocation of a tool by the AI backend.
type FunctionCall struct {
	// ID correlates the call with its result. Some providers omit it.
	ID string `json:"id,omitempty"`

	// Name is the canonical tool being invoked.
	Name string `json:"name"`

	// Arguments contains the parsed arguments from the AI.
	Arguments map[string]any `json:"arguments"`
}
