package modules

import (
	"encoding/json"
	"slices"
	"strconv"
	"sync"

	"github.com/go-faster/errors"
	"github.com/xeipuuv/gojsonschema"

	"zohobooks-mcp/server/internal/apperrors"
)

// compiled schemas keyed by their JSON text
var schemaCache sync.Map

// ValidateParams checks params against InputSchema.
//   - Required fields are checked in declared order; the first one that is
//     absent, nil or "" yields MissingArgumentError.
//   - Optional values that are nil or "" are treated as not set and dropped.
//   - Numbers and booleans given for string properties are converted to strings.
//   - The result is then validated with JSON Schema (type, enum, pattern),
//     yielding InvalidArgumentError.
//
// Returns the cleaned params.
func ValidateParams(schema InputSchema, params map[string]any) (map[string]any, error) {
	for _, key := range schema.Required {
		val, exists := params[key]
		if !exists || val == nil {
			return nil, &apperrors.MissingArgumentError{Name: key}
		}
		if s, ok := val.(string); ok && s == "" {
			return nil, &apperrors.MissingArgumentError{Name: key}
		}
	}

	cleaned := make(map[string]any, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok && str == "" && !slices.Contains(schema.Required, k) {
			continue
		}
		if prop, ok := schema.Properties[k]; ok && prop.Type == "string" {
			v = coerceString(v)
		}
		cleaned[k] = v
	}

	compiled, err := compile(schema)
	if err != nil {
		return nil, err
	}
	result, err := compiled.Validate(gojsonschema.NewGoLoader(cleaned))
	if err != nil {
		return nil, errors.Wrap(err, "validate arguments")
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return nil, &apperrors.InvalidArgumentError{
			Name:   first.Field(),
			Reason: first.Description(),
		}
	}
	return cleaned, nil
}

// coerceString renders scalar ids sent as JSON numbers or booleans.
func coerceString(v any) any {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	}
	return v
}

func compile(schema InputSchema) (*gojsonschema.Schema, error) {
	if schema.Type == "" {
		schema.Type = "object"
	}
	if schema.Properties == nil {
		schema.Properties = map[string]Property{}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, "encode schema")
	}
	key := string(raw)
	if s, ok := schemaCache.Load(key); ok {
		return s.(*gojsonschema.Schema), nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "compile schema")
	}
	schemaCache.Store(key, s)
	return s, nil
}

// findTool looks up a tool by name from a tool list.
func findTool(tools []Tool, name string) (Tool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
