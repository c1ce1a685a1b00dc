package tools

// Schema helpers for building JSON Schema definitions, plus the validator
// the router runs before dispatching any call.

import "fmt"

// ObjectSchema creates an object schema with the given properties.
func ObjectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty creates a string property with optional description.
func StringProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// StringEnumProperty creates a string property with allowed values.
func StringEnumProperty(description string, values ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
		"enum":        values,
	}
}

// NumberProperty creates a number property with optional description.
func NumberProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": description,
	}
}

// IntegerProperty creates an integer property with optional description.
func IntegerProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
	}
}

// BooleanProperty creates a boolean property with optional description.
func BooleanProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "boolean",
		"description": description,
	}
}

// ArrayProperty creates an array property with the given item type.
func ArrayProperty(description string, itemType map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items":       itemType,
	}
}

// validateSchema checks that a schema is well-formed enough to validate
// against: an object schema whose required names all exist as properties.
func validateSchema(schema map[string]interface{}) error {
	if schema == nil {
		return fmt.Errorf("schema is nil")
	}
	if t, _ := schema["type"].(string); t != "object" {
		return fmt.Errorf("schema type must be %q", "object")
	}
	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("schema has no properties map")
	}
	for _, name := range requiredNames(schema) {
		if _, ok := props[name]; !ok {
			return fmt.Errorf("required field %q not declared in properties", name)
		}
	}
	return nil
}

// ValidateArgs validates args against an object schema. The first violated
// constraint is reported; validation stops there because the call must not
// proceed. Unknown fields are allowed (the backend may accept more than the
// contract declares).
func ValidateArgs(schema map[string]interface{}, args map[string]interface{}) error {
	props, _ := schema["properties"].(map[string]interface{})

	for _, name := range requiredNames(schema) {
		v, ok := args[name]
		if !ok || v == nil {
			return fmt.Errorf("missing required field %q", name)
		}
		if s, isStr := v.(string); isStr && s == "" {
			return fmt.Errorf("required field %q is empty", name)
		}
	}

	for name, raw := range args {
		propSchema, ok := props[name].(map[string]interface{})
		if !ok {
			continue
		}
		if err := checkType(name, propSchema, raw); err != nil {
			return err
		}
	}
	return nil
}

func checkType(name string, propSchema map[string]interface{}, value interface{}) error {
	wantType, _ := propSchema["type"].(string)
	switch wantType {
	case "string":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %q must be a string", name)
		}
		if enum, ok := propSchema["enum"].([]string); ok {
			if !containsString(enum, s) {
				return fmt.Errorf("field %q must be one of %v", name, enum)
			}
		}
		if enum, ok := propSchema["enum"].([]interface{}); ok {
			found := false
			for _, e := range enum {
				if es, _ := e.(string); es == s {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("field %q must be one of %v", name, enum)
			}
		}
	case "number":
		if !isNumber(value) {
			return fmt.Errorf("field %q must be a number", name)
		}
	case "integer":
		switch n := value.(type) {
		case int, int32, int64:
		case float64:
			if n != float64(int64(n)) {
				return fmt.Errorf("field %q must be an integer", name)
			}
		default:
			return fmt.Errorf("field %q must be an integer", name)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field %q must be a boolean", name)
		}
	case "array":
		if _, ok := value.([]interface{}); !ok {
			return fmt.Errorf("field %q must be an array", name)
		}
	case "object":
		if _, ok := value.(map[string]interface{}); !ok {
			return fmt.Errorf("field %q must be an object", name)
		}
	}
	return nil
}

func requiredNames(schema map[string]interface{}) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []interface{}:
		names := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return names
	}
	return nil
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
