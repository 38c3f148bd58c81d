package tools

// Property is one parameter of a tool.
type Property struct {
	// Name is the argument name.
	Name string

	// Type is the JSON type ("string", "integer", "boolean", "array", ...).
	Type string

	// Description tells the model what the argument means.
	Description string

	// Optional marks arguments the model may pass as null.
	// They are still listed as required; their type becomes [Type, "null"].
	Optional bool

	// Items describes array elements that are objects.
	Items *Schema
}

// Schema describes the arguments of a tool, in declaration order.
type Schema struct {
	Properties []Property
}

// JSON returns the schema in the strict form handed to the model:
// every property is required and additional properties are rejected.
// Optional properties are expressed as nullable types instead.
func (s Schema) JSON() map[string]any {
	properties := make(map[string]any, len(s.Properties))
	required := make([]string, 0, len(s.Properties))

	for _, p := range s.Properties {
		prop := map[string]any{}
		if p.Optional {
			prop["type"] = []string{p.Type, "null"}
		} else {
			prop["type"] = p.Type
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Items != nil {
			prop["items"] = p.Items.JSON()
		}
		properties[p.Name] = prop
		required = append(required, p.Name)
	}

	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// Definition is a tool as advertised to the model.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}
