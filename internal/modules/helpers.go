package modules

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// ToJSON renders a handler result as the text of a content block.
// Raw upstream bodies are passed through untouched.
func ToJSON(v any) (string, error) {
	switch raw := v.(type) {
	case jx.Raw:
		return string(raw), nil
	case json.RawMessage:
		return string(raw), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal response")
	}
	return string(b), nil
}

// ErrorJSON encodes msg as {"error": msg}.
func ErrorJSON(msg string) string {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("error")
	e.Str(msg)
	e.ObjEnd()
	return string(e.Bytes())
}
